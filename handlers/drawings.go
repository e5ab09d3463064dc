package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"p9e.in/lppsync/config"
	"p9e.in/lppsync/middleware"
	"p9e.in/lppsync/pkg/register"
	"p9e.in/lppsync/pkg/workflow"
)

// DrawingHandler serves the drawing register.
type DrawingHandler struct {
	drawings *register.DrawingService
	now      func() time.Time
}

func NewDrawingHandler() *DrawingHandler {
	return &DrawingHandler{
		drawings: register.NewDrawingService(config.DB),
		now:      time.Now,
	}
}

// queryFromRequest decodes the register view state carried in the query
// string.
func queryFromRequest(r *http.Request) (register.DrawingQuery, error) {
	v := r.URL.Query()
	q := register.DrawingQuery{
		ProjectNumber: strings.TrimSpace(v.Get("proj_num")),
		DWGSource:     strings.TrimSpace(v.Get("dwg_source")),
		TypeKey:       strings.TrimSpace(v.Get("tipo_key")),
		ElementKey:    strings.TrimSpace(v.Get("elemento_key")),
		Search:        v.Get("q"),
		WithRevisions: queryBool(r, "revisions"),
	}
	if s := strings.TrimSpace(v.Get("estado")); s != "" {
		st, err := workflow.ParseState(s)
		if err != nil {
			return q, err
		}
		q.State = st
	}
	for _, f := range strings.Split(v.Get("sort"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			q.Sort = append(q.Sort, f)
		}
	}
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	q.Offset, _ = strconv.Atoi(v.Get("offset"))
	return q, nil
}

// ListDrawings persists overdue transitions first so the listed states are
// current.
func (h *DrawingHandler) ListDrawings(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.drawings.SyncOverdue(h.now()); err != nil {
		zap.L().Warn("Overdue sync failed", zap.Error(err))
	}

	list, err := h.drawings.List(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *DrawingHandler) GetDrawing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid drawing id", http.StatusBadRequest)
		return
	}
	d, err := h.drawings.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	full, err := h.drawings.GetByLayout(d.LayoutName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, full)
}

// UpdateDrawing saves a grid edit. The history author comes from X-User.
func (h *DrawingHandler) UpdateDrawing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid drawing id", http.StatusBadRequest)
		return
	}
	var edit register.DrawingEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if edit.State != nil {
		st, err := workflow.ParseState(string(*edit.State))
		if err != nil {
			writeError(w, r, err)
			return
		}
		edit.State = &st
	}
	edit.Author = middleware.Author(r)

	d, err := h.drawings.EditDrawing(id, edit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DrawingHandler) GetRevisions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid drawing id", http.StatusBadRequest)
		return
	}
	revs, err := h.drawings.Revisions(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revs)
}

func (h *DrawingHandler) DeleteDrawing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid drawing id", http.StatusBadRequest)
		return
	}
	if err := h.drawings.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": 1})
}

// DeleteDrawings removes drawings in bulk. Exactly one selector is honoured,
// checked in the order layout_name, dwg_source, tipo, elemento, all.
func (h *DrawingHandler) DeleteDrawings(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	var (
		n   int64
		err error
	)
	switch {
	case v.Get("layout_name") != "":
		n, err = h.drawings.DeleteByLayout(v.Get("layout_name"))
	case v.Get("dwg_source") != "":
		n, err = h.drawings.DeleteByDWGSource(v.Get("dwg_source"))
	case v.Get("tipo") != "":
		n, err = h.drawings.DeleteByType(v.Get("tipo"))
	case v.Get("elemento") != "":
		n, err = h.drawings.DeleteByElement(v.Get("elemento"))
	case queryBool(r, "all"):
		n, err = h.drawings.DeleteAll()
	default:
		http.Error(w, "one of layout_name, dwg_source, tipo, elemento or all=true is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	zap.L().Info("Drawings deleted", zap.String("query", r.URL.RawQuery), zap.Int64("count", n))
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// GetStats returns register-wide counts.
func (h *DrawingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if _, err := h.drawings.SyncOverdue(h.now()); err != nil {
		zap.L().Warn("Overdue sync failed", zap.Error(err))
	}
	st, err := h.drawings.RegisterStats()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetOptions lists the filter values in use: types, elements (within
// tipo_key when given) and DWG sources, optionally for one project.
func (h *DrawingHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	projNum := r.URL.Query().Get("proj_num")
	types, err := h.drawings.DistinctTypes(projNum)
	if err != nil {
		writeError(w, r, err)
		return
	}
	elements, err := h.drawings.DistinctElements(r.URL.Query().Get("tipo_key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sources, err := h.drawings.DWGSources(projNum)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tipos":       types,
		"elementos":   elements,
		"dwg_sources": sources,
	})
}
