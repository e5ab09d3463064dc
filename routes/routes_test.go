package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"p9e.in/lppsync/models"
	"p9e.in/lppsync/pkg/artifacts"
	"p9e.in/lppsync/pkg/export"
	"p9e.in/lppsync/pkg/importer"
	"p9e.in/lppsync/pkg/workflow"
	"p9e.in/lppsync/testutil"
)

const registerCSV = "PROJ_NUM;PROJ_NOME;TAG DO LAYOUT;NOME DWG;TIPO;ELEMENTO;TITULO;NUMERO DE DESENHO;DATA;REV_A;DATA_A;DESC_A\n" +
	"669;Moradia T3;669-EST-01-PE-E00-A;669-EST.dwg;Betão armado;FUN;Sapatas;01;2024-01-10;A;2024-01-10;Emissão inicial\n" +
	"669;Moradia T3;669-EST-02-PE-E00;669-EST.dwg;Betão armado;PIL;Pilares;02;2024-01-10;;;\n"

type env struct {
	db     *gorm.DB
	h      http.Handler
	outDir string
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	out := t.TempDir()
	return env{db: db, h: RegisterRoutes(artifacts.NewLocalStore(out), ""), outDir: out}
}

func multipartRequest(t *testing.T, method, path, field, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func importCSV(t *testing.T, e env) map[string]interface{} {
	t.Helper()
	w := serve(e.h, multipartRequest(t, http.MethodPost, "/api/v1/import/csv", "file", "669-EST.csv", []byte(registerCSV), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return testutil.ParseResponse(w)
}

func listDrawings(t *testing.T, e env, query string) []models.Drawing {
	t.Helper()
	w := testutil.DoRequest(e.h, http.MethodGet, "/api/v1/drawings"+query, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out []models.Drawing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndStates(t *testing.T) {
	e := setup(t)

	w := testutil.DoRequest(e.h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/states", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var states []workflow.StateInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &states))
	assert.Len(t, states, 5)
	assert.Equal(t, workflow.StateDevelopment, states[0].Code)
}

func TestImportCSV(t *testing.T) {
	e := setup(t)

	res := importCSV(t, e)
	assert.Equal(t, float64(2), res["imported"])
	assert.Equal(t, "utf-8", res["encoding"])
	archive, _ := res["archive"].(string)
	require.NotEmpty(t, archive)
	assert.True(t, strings.HasPrefix(archive, filepath.Join(e.outDir, "uploads")))
	_, err := os.Stat(archive)
	assert.NoError(t, err)

	list := listDrawings(t, e, "?proj_num=669")
	require.Len(t, list, 2)
	assert.Equal(t, "669-EST-01-PE-E00-A", list[0].LayoutName)
	assert.Equal(t, "BETAO_ARMADO", list[0].TypeKey)
	assert.Equal(t, "A", list[0].Revision)
	assert.Equal(t, workflow.StateDevelopment, list[0].State)

	w := testutil.DoRequest(e.h, http.MethodGet, "/api/v1/projects/669", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Moradia T3", testutil.ParseResponse(w)["proj_nome"])
}

func TestImport_ProjectOverrideAndBadInput(t *testing.T) {
	e := setup(t)

	w := serve(e.h, multipartRequest(t, http.MethodPost, "/api/v1/import/csv", "file", "a.csv", []byte(registerCSV), map[string]string{"proj_num": "700"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, listDrawings(t, e, "?proj_num=700"), 2)
	assert.Empty(t, listDrawings(t, e, "?proj_num=669"))

	w = serve(e.h, multipartRequest(t, http.MethodPost, "/api/v1/import/json", "file", "a.json", []byte("{nope"), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(e.h, http.MethodPost, "/api/v1/import/csv", map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(e.h, http.MethodPost, "/api/v1/import/xml", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportJSON(t *testing.T) {
	e := setup(t)
	payload := `{"dwg_name":"700-ARQ.dwg","desenhos":[{"layout_name":"700-ARQ-01-PE-E00","attributes":{"PROJ_NUM":"700","TIPO":"Planta","ELEMENTO":"PISO 0","DES_NUM":"01"},"revisoes":[{"rev":"A","data":"2024-03-01","desc":"Inicial"}]}]}`

	w := serve(e.h, multipartRequest(t, http.MethodPost, "/api/v1/import/json", "file", "700.json", []byte(payload), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	list := listDrawings(t, e, "?dwg_source=700-ARQ.dwg&revisions=true")
	require.Len(t, list, 1)
	assert.Equal(t, "PLANTA", list[0].TypeKey)
	require.Len(t, list[0].Revisions, 1)
	assert.Equal(t, "A", list[0].Revision)
}

func TestProjectCRUD(t *testing.T) {
	e := setup(t)

	w := testutil.DoRequest(e.h, http.MethodPost, "/api/v1/projects", map[string]string{"proj_num": "800", "proj_nome": "Escola"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = testutil.DoRequest(e.h, http.MethodPost, "/api/v1/projects", map[string]string{"proj_num": "800"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.DoRequest(e.h, http.MethodPost, "/api/v1/projects", map[string]string{"proj_nome": "sem número"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(e.h, http.MethodPut, "/api/v1/projects/800", map[string]string{"proj_nome": "Escola EB1", "cliente": "Câmara"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Câmara", testutil.ParseResponse(w)["cliente"])

	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Escola EB1", list[0].Name)

	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/projects/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.DoRequest(e.h, http.MethodDelete, "/api/v1/projects/800", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProjectDelete_GuardsDrawings(t *testing.T) {
	e := setup(t)
	importCSV(t, e)

	w := testutil.DoRequest(e.h, http.MethodGet, "/api/v1/projects/669/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := testutil.ParseResponse(w)
	assert.Equal(t, float64(2), stats["drawing_count"])
	assert.Equal(t, float64(1), stats["dwg_source_count"])

	w = testutil.DoRequest(e.h, http.MethodDelete, "/api/v1/projects/669", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(2), testutil.ParseResponse(w)["drawings"])
	assert.Len(t, listDrawings(t, e, ""), 2)

	w = testutil.DoRequest(e.h, http.MethodDelete, "/api/v1/projects/669?cascade=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), testutil.ParseResponse(w)["drawings_deleted"])
	assert.Empty(t, listDrawings(t, e, ""))
}

func TestDrawingStateAndHistory(t *testing.T) {
	e := setup(t)
	importCSV(t, e)
	id := listDrawings(t, e, "?elemento_key=FUN")[0].ID
	base := "/api/v1/drawings/" + uintToString(id)

	req := httptest.NewRequest(http.MethodPatch, base+"/state", strings.NewReader(`{"estado_interno":"Precisa Revisão","comentario":"ver armaduras","data_limite":"2020-01-01"}`))
	req.Header.Set("X-User", "ana")
	w := serve(e.h, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(workflow.StateNeedsRevision), testutil.ParseResponse(w)["estado_interno"])

	w = testutil.DoRequest(e.h, http.MethodPatch, base+"/state", map[string]string{"estado_interno": "approved"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the deadline is past, so listing moves the drawing to overdue
	overdue := listDrawings(t, e, "?estado=em_atraso")
	require.Len(t, overdue, 1)
	assert.Equal(t, id, overdue[0].ID)

	w = testutil.DoRequest(e.h, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist []models.WorkflowHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist, 2)
	assert.Equal(t, "ana", hist[0].Author)
	assert.Equal(t, workflow.StateDevelopment, hist[0].PrevState)
	assert.Equal(t, "system", hist[1].Author)
	assert.Equal(t, workflow.StateOverdue, hist[1].NewState)

	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/drawings/9999/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDrawingEdit(t *testing.T) {
	e := setup(t)
	importCSV(t, e)
	list := listDrawings(t, e, "")
	fun, pil := list[0], list[1]

	w := testutil.DoRequest(e.h, http.MethodPut, "/api/v1/drawings/"+uintToString(pil.ID), map[string]string{"r": "B", "titulo": "Pilares piso 1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := testutil.ParseResponse(w)
	assert.Equal(t, "669-EST-02-PE-E00-B", body["layout_name"])
	assert.Equal(t, "PIL - Pilares piso 1", body["elemento_titulo"])

	// renumbering FUN 01 as 02 at revision B collides with the drawing above
	w = testutil.DoRequest(e.h, http.MethodPut, "/api/v1/drawings/"+uintToString(fun.ID), map[string]string{"des_num": "02", "r": "B"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/drawings/"+uintToString(fun.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Drawing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "669-EST-01-PE-E00-A", got.LayoutName)
	require.Len(t, got.Revisions, 1)

	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/drawings/"+uintToString(fun.ID)+"/revisions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var revs []models.Revision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &revs))
	require.Len(t, revs, 1)
	assert.Equal(t, "Emissão inicial", revs[0].Description)
}

func TestDrawingQueriesAndDeletes(t *testing.T) {
	e := setup(t)
	importCSV(t, e)

	w := testutil.DoRequest(e.h, http.MethodGet, "/api/v1/drawings?sort=password", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/drawings?estado=perdido", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sorted := listDrawings(t, e, "?sort=-layout_name")
	require.Len(t, sorted, 2)
	assert.Equal(t, "669-EST-02-PE-E00", sorted[0].LayoutName)
	assert.Len(t, listDrawings(t, e, "?q=sapatas"), 1)

	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/options?proj_num=669", nil)
	require.Equal(t, http.StatusOK, w.Code)
	opts := testutil.ParseResponse(w)
	assert.Len(t, opts["tipos"], 1)
	assert.Len(t, opts["elementos"], 2)
	assert.Equal(t, []interface{}{"669-EST.dwg"}, opts["dwg_sources"])

	w = testutil.DoRequest(e.h, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := testutil.ParseResponse(w)
	assert.Equal(t, float64(2), stats["total_drawings"])
	assert.Equal(t, float64(1), stats["total_projects"])

	w = testutil.DoRequest(e.h, http.MethodDelete, "/api/v1/drawings", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(e.h, http.MethodDelete, "/api/v1/drawings?elemento=pil", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), testutil.ParseResponse(w)["deleted"])

	remaining := listDrawings(t, e, "")
	require.Len(t, remaining, 1)
	w = testutil.DoRequest(e.h, http.MethodDelete, "/api/v1/drawings/"+uintToString(remaining[0].ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = testutil.DoRequest(e.h, http.MethodDelete, "/api/v1/drawings/"+uintToString(remaining[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var n int64
	e.db.Model(&models.Revision{}).Count(&n)
	assert.Zero(t, n)
}

func TestExportCADCSV(t *testing.T) {
	e := setup(t)
	importCSV(t, e)

	w := testutil.DoRequest(e.h, http.MethodGet, "/api/v1/export/cad.csv?dwg_source=669-EST.dwg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "669-EST_")

	res, err := importer.ReadCSV(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "669-EST-01-PE-E00-A", res.Records[0].LayoutName)
	assert.Equal(t, "Moradia T3", res.Records[0].ProjectName)
	assert.Equal(t, "Emissão inicial", res.Records[0].Revisions[0].Description)

	exported, err := os.ReadDir(filepath.Join(e.outDir, "exports"))
	require.NoError(t, err)
	assert.Len(t, exported, 1)
}

func TestExportLPP(t *testing.T) {
	e := setup(t)
	importCSV(t, e)

	w := testutil.DoRequest(e.h, http.MethodPost, "/api/v1/export/lpp?proj_num=669", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2", w.Header().Get("X-LPP-Inserted"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.LPPSheet)
	require.NoError(t, err)
	// header, TIPO, FUN anchor, FUN 01, PIL anchor, PIL 02
	require.Len(t, rows, 6)
	assert.Equal(t, "FUN 01", rows[3][0])
	assert.Equal(t, "PIL 02", rows[5][0])
}

func TestExportLPP_WithUploadedTemplate(t *testing.T) {
	e := setup(t)
	importCSV(t, e)

	tpl, err := export.NewTemplate([]export.Group{{TypeKey: "BETAO_ARMADO", TypeDisplay: "Betão armado", ElementKey: "PIL", Element: "Pilares"}})
	require.NoError(t, err)
	buf, err := tpl.WriteToBuffer()
	require.NoError(t, err)

	w := serve(e.h, multipartRequest(t, http.MethodPost, "/api/v1/export/lpp", "template", "LPP.xlsx", buf.Bytes(), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-LPP-Inserted"))
	assert.Equal(t, "1", w.Header().Get("X-LPP-Unplaced"))

	w = serve(e.h, multipartRequest(t, http.MethodPost, "/api/v1/export/lpp", "template", "bad.xlsx", []byte("not a workbook"), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportLPPTemplate(t *testing.T) {
	e := setup(t)
	importCSV(t, e)

	w := testutil.DoRequest(e.h, http.MethodGet, "/api/v1/export/lpp-template", nil)
	require.Equal(t, http.StatusOK, w.Code)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.LPPSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestCORSPreflight(t *testing.T) {
	e := setup(t)
	w := testutil.DoRequest(e.h, http.MethodOptions, "/api/v1/drawings/1/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func uintToString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
