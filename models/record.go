package models

import "strings"

// RevisionLetters are the lettered revision slots carried by a CAD record,
// in the order they are read and written.
var RevisionLetters = []string{"a", "b", "c", "d", "e"}

// RevisionSlot is one lettered revision group of a flat record.
type RevisionSlot struct {
	Code        string `json:"rev"`
	Date        string `json:"data"`
	Description string `json:"desc"`
}

// Record is one drawing row as exported by the CAD add-in, after header
// aliasing. Columns that are not recognised are kept in Extra.
type Record struct {
	LayoutName    string
	ProjectNumber string
	ProjectName   string
	Client        string
	Site          string
	Location      string
	Specialty     string
	Designer      string
	Phase         string
	PhasePrefix   string
	Emission      string
	Date          string
	Prefix        string
	DrawingNumber string
	TypeDisplay   string
	Element       string
	Title         string
	DWGSource     string
	CADID         string

	// ElementHeading is a ready-made "element - title" heading, sent by the
	// JSON export instead of separate element and title values.
	ElementHeading string

	Revisions [5]RevisionSlot
	Extra     map[string]string
}

// headerAliases maps upper-cased CSV headers and JSON attribute names to the
// canonical field name.
var headerAliases = map[string]string{
	"PROJ_NUM":          "proj_num",
	"PROJ_NOME":         "proj_nome",
	"TAG DO LAYOUT":     "layout_name",
	"LAYOUT":            "layout_name",
	"LAYOUT_NAME":       "layout_name",
	"CLIENTE":           "cliente",
	"OBRA":              "obra",
	"LOCALIZAÇÃO":       "localizacao",
	"LOCALIZACAO":       "localizacao",
	"ESPECIALIDADE":     "especialidade",
	"PROJETOU":          "projetou",
	"FASE":              "fase",
	"FASE_PFIX":         "fase_pfix",
	"EMISSAO":           "emissao",
	"EMISSÃO":           "emissao",
	"DATA":              "data",
	"DATA 1ª EMISSÃO":   "data",
	"DATA 1ª EMISSAO":   "data",
	"PFIX":              "pfix",
	"NUMERO DE DESENHO": "des_num",
	"NÚMERO DE DESENHO": "des_num",
	"DES_NUM":           "des_num",
	"TIPO":              "tipo",
	"TIPO_DISPLAY":      "tipo",
	"ELEMENTO":          "elemento",
	"TITULO":            "titulo",
	"TÍTULO":            "titulo",
	"ELEMENTO_TITULO":   "elemento_titulo",
	"NOME DWG":          "dwg_source",
	"DWG_SOURCE":        "dwg_source",
	"DWG_NAME":          "dwg_source",
	"ID_CAD":            "id_cad",
}

func init() {
	for _, l := range RevisionLetters {
		u := strings.ToUpper(l)
		headerAliases["REVISÃO "+u] = "rev_" + l
		headerAliases["REVISAO "+u] = "rev_" + l
		headerAliases["REV_"+u] = "rev_" + l
		headerAliases["DATA REVISÃO "+u] = "data_" + l
		headerAliases["DATA REVISAO "+u] = "data_" + l
		headerAliases["DATA_"+u] = "data_" + l
		headerAliases["DESCRIÇÃO REVISÃO "+u] = "desc_" + l
		headerAliases["DESCRICAO REVISAO "+u] = "desc_" + l
		headerAliases["DESC_"+u] = "desc_" + l
	}
}

// CanonicalField returns the canonical name of an import header. Headers
// without an alias are lower-cased and passed through.
func CanonicalField(header string) string {
	h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	if h == "" {
		return ""
	}
	upper := strings.ToUpper(h)
	if name, ok := headerAliases[upper]; ok {
		return name
	}
	return strings.ToLower(h)
}

// NewRecord builds a record from raw header/value pairs.
func NewRecord(raw map[string]string) *Record {
	rec := &Record{}
	for header, value := range raw {
		rec.Set(CanonicalField(header), value)
	}
	return rec
}

// Set assigns a value by canonical field name. Values are trimmed.
func (r *Record) Set(field, value string) {
	v := strings.TrimSpace(value)
	switch field {
	case "":
		return
	case "layout_name":
		r.LayoutName = v
	case "proj_num":
		r.ProjectNumber = v
	case "proj_nome":
		r.ProjectName = v
	case "cliente":
		r.Client = v
	case "obra":
		r.Site = v
	case "localizacao":
		r.Location = v
	case "especialidade":
		r.Specialty = v
	case "projetou":
		r.Designer = v
	case "fase":
		r.Phase = v
	case "fase_pfix":
		r.PhasePrefix = v
	case "emissao":
		r.Emission = v
	case "data":
		r.Date = v
	case "pfix":
		r.Prefix = v
	case "des_num":
		r.DrawingNumber = v
	case "tipo":
		r.TypeDisplay = v
	case "elemento":
		r.Element = v
	case "titulo":
		r.Title = v
	case "elemento_titulo":
		r.ElementHeading = v
	case "dwg_source":
		r.DWGSource = v
	case "id_cad":
		r.CADID = v
	default:
		if r.setRevision(field, v) || v == "" {
			return
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[field] = v
	}
}

func (r *Record) setRevision(field, v string) bool {
	prefix, letter, ok := strings.Cut(field, "_")
	if !ok {
		return false
	}
	idx := -1
	for i, l := range RevisionLetters {
		if l == letter {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	switch prefix {
	case "rev":
		r.Revisions[idx].Code = v
	case "data":
		r.Revisions[idx].Date = v
	case "desc":
		r.Revisions[idx].Description = v
	default:
		return false
	}
	return true
}

// ElementTitle joins element and title the way the LPP designation column
// shows them. A supplied heading wins.
func (r *Record) ElementTitle() string {
	switch {
	case r.ElementHeading != "":
		return r.ElementHeading
	case r.Element != "" && r.Title != "":
		return r.Element + " - " + r.Title
	case r.Element != "":
		return r.Element
	default:
		return r.Title
	}
}
