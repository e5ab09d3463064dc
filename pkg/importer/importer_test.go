package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"p9e.in/lppsync/models"
)

const sampleCSV = "PROJ_NUM;TAG DO LAYOUT;TIPO;ELEMENTO;TITULO;REVISÃO A;DATA REVISÃO A;DESCRIÇÃO REVISÃO A;REV_B;DATA_B;DESC_B;ESCALAS\n" +
	"669;669-EST-01-PE-E00-B;Betão armado;FUN;Sapatas;A;2024-01-10;Emissão inicial;B;2024-02-01;Correções\n" +
	";;;;;;;;;;;\n" +
	"669;;Betão armado;PIL;Pilares;-;;;;;;1:50\n"

func TestReadCSV_UTF8(t *testing.T) {
	res, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, "utf-8", res.Encoding)
	require.Len(t, res.Records, 2)

	first := res.Records[0]
	assert.Equal(t, "669-EST-01-PE-E00-B", first.LayoutName)
	assert.Equal(t, "Betão armado", first.TypeDisplay)
	assert.Equal(t, models.RevisionSlot{Code: "A", Date: "2024-01-10", Description: "Emissão inicial"}, first.Revisions[0])
	assert.Equal(t, "B", first.Revisions[1].Code)

	second := res.Records[1]
	assert.Empty(t, second.LayoutName)
	assert.Equal(t, "1:50", second.Extra["escalas"])
}

func TestReadCSV_BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleCSV)...)

	res, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "utf-8-sig", res.Encoding)
	assert.Equal(t, "669", res.Records[0].ProjectNumber)
}

func TestReadCSV_Latin1(t *testing.T) {
	data, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte("TAG DO LAYOUT;TIPO;LOCALIZAÇÃO\n669-EST-01-PE-E00;Betão armado;Évora\n"))
	require.NoError(t, err)

	res, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "latin-1", res.Encoding)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Betão armado", res.Records[0].TypeDisplay)
	assert.Equal(t, "Évora", res.Records[0].Location)
}

func TestReadCSV_CP1252(t *testing.T) {
	// 0x96 is an en dash in Windows-1252
	data := []byte("TAG DO LAYOUT;TITULO\n669-EST-01-PE-E00;Sapatas \x96 piso 0\n")

	res, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "cp1252", res.Encoding)
	assert.Equal(t, "Sapatas – piso 0", res.Records[0].Title)
}

func TestReadCSV_Empty(t *testing.T) {
	res, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestReadCSV_ExtraValuesWarn(t *testing.T) {
	res, err := ReadCSV(strings.NewReader("TAG DO LAYOUT;TIPO\nX-1;Cortes;sobra\n"))
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "Cortes", res.Records[0].TypeDisplay)
	assert.Len(t, res.Warnings, 1)
}

const sampleJSON = `{
  "dwg_name": "669-EST-FUNDACOES.dwg",
  "desenhos": [
    {
      "layout_name": "669-EST-01-PE-E00-B",
      "attributes": {
        "TIPO": "Betão armado",
        "ELEMENTO": "FUN",
        "ELEMENTO_TITULO": "FUN - Sapatas",
        "DES_NUM": 1,
        "R": "B",
        "ESCALAS": "1:50"
      },
      "revisoes": [
        {"rev_code": "A", "rev_date": "2024-01-10", "rev_desc": "Emissão inicial"},
        {"rev": "B", "data": "2024-02-01", "desc": "Correções"}
      ]
    },
    {
      "layout_name": "669-EST-02-PE-E00-A",
      "attributes": {"TIPO": "Betão armado", "ELEMENTO": "PIL", "R": "A"}
    },
    {
      "attributes": {"TIPO": "Betão armado"}
    }
  ]
}`

func TestReadJSON(t *testing.T) {
	res, err := ReadJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, "669-EST-FUNDACOES.dwg", res.DWGSource)
	require.Len(t, res.Records, 3)

	first := res.Records[0]
	assert.Equal(t, "669-EST-01-PE-E00-B", first.LayoutName)
	assert.Equal(t, "669-EST-FUNDACOES.dwg", first.DWGSource)
	assert.Equal(t, "1", first.DrawingNumber)
	assert.Equal(t, "FUN - Sapatas", first.ElementTitle())
	assert.Equal(t, models.RevisionSlot{Code: "A", Date: "2024-01-10", Description: "Emissão inicial"}, first.Revisions[0])
	assert.Equal(t, models.RevisionSlot{Code: "B", Date: "2024-02-01", Description: "Correções"}, first.Revisions[1])
	assert.Equal(t, "1:50", first.Extra["escalas"])

	second := res.Records[1]
	assert.Equal(t, "A", second.Revisions[0].Code)

	assert.Empty(t, res.Records[2].LayoutName)
}

func TestReadJSON_DefaultsAndLimits(t *testing.T) {
	doc := `{"desenhos":[{"layout_name":"X-1-2-3-4","revisoes":[{"rev":"A"},{"rev":"B"},{"rev":"C"},{"rev":"D"},{"rev":"E"},{"rev":"F"}]}]}`

	res, err := ReadJSON(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, UnknownDWG, res.DWGSource)
	assert.Equal(t, UnknownDWG, res.Records[0].DWGSource)
	assert.Equal(t, "E", res.Records[0].Revisions[4].Code)
	assert.Len(t, res.Warnings, 1)
}

func TestReadJSON_Invalid(t *testing.T) {
	_, err := ReadJSON(strings.NewReader("{not json"))
	assert.Error(t, err)
}
