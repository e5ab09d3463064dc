package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"p9e.in/lppsync/config"
	"p9e.in/lppsync/models"
	"p9e.in/lppsync/pkg/artifacts"
	"p9e.in/lppsync/pkg/export"
	"p9e.in/lppsync/pkg/register"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler produces the CAD CSV and the LPP workbook.
type ExportHandler struct {
	drawings     *register.DrawingService
	projects     *register.ProjectService
	store        artifacts.Store
	templatePath string
}

// NewExportHandler creates an export handler. templatePath names the LPP
// template used when a request brings none; a missing file means the
// template is generated.
func NewExportHandler(store artifacts.Store, templatePath string) *ExportHandler {
	return &ExportHandler{
		drawings:     register.NewDrawingService(config.DB),
		projects:     register.NewProjectService(config.DB),
		store:        store,
		templatePath: templatePath,
	}
}

// ExportCADCSV writes the drawings of a DWG file and/or project in the
// column layout the CAD add-in reads back.
func (h *ExportHandler) ExportCADCSV(w http.ResponseWriter, r *http.Request) {
	q := register.DrawingQuery{
		ProjectNumber: strings.TrimSpace(r.URL.Query().Get("proj_num")),
		DWGSource:     strings.TrimSpace(r.URL.Query().Get("dwg_source")),
		Sort:          []string{"layout_name"},
		WithRevisions: true,
	}
	drawings, err := h.drawings.List(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	projects, err := h.projectIndex()
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCADCSV(&buf, drawings, projects); err != nil {
		writeError(w, r, err)
		return
	}

	base := "register"
	switch {
	case q.DWGSource != "":
		base = strings.TrimSuffix(q.DWGSource, ".dwg")
	case q.ProjectNumber != "":
		base = q.ProjectNumber
	}
	filename := fmt.Sprintf("%s_%s.csv", sanitizeFilename(base), time.Now().Format("20060102_150405"))
	h.archive(r.Context(), "exports/"+filename, buf.Bytes())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ExportLPP fills the LPP with the current drawings. The template comes
// from the multipart field "template", else from the configured file, else
// it is generated.
func (h *ExportHandler) ExportLPP(w http.ResponseWriter, r *http.Request) {
	template, err := h.requestTemplate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	projNum := strings.TrimSpace(r.URL.Query().Get("proj_num"))
	drawings, err := h.drawings.List(register.DrawingQuery{ProjectNumber: projNum})
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, res, err := export.BuildLPP(template, drawings)
	if err != nil {
		http.Error(w, "failed to build LPP: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		http.Error(w, "Failed to write Excel file", http.StatusInternalServerError)
		return
	}

	name := "LPP"
	if projNum != "" {
		name = "LPP_" + projNum
	}
	filename := fmt.Sprintf("%s_%s.xlsx", sanitizeFilename(name), time.Now().Format("20060102_150405"))
	h.archive(r.Context(), "exports/"+filename, buf.Bytes())

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.Header().Set("X-LPP-Inserted", fmt.Sprintf("%d", res.Inserted))
	w.Header().Set("X-LPP-Removed", fmt.Sprintf("%d", res.Removed))
	w.Header().Set("X-LPP-Unplaced", fmt.Sprintf("%d", len(res.Unplaced)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ExportLPPTemplate returns a blank template with one section per type and
// element in use.
func (h *ExportHandler) ExportLPPTemplate(w http.ResponseWriter, r *http.Request) {
	drawings, err := h.drawings.List(register.DrawingQuery{
		ProjectNumber: strings.TrimSpace(r.URL.Query().Get("proj_num")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := export.NewTemplate(export.GroupsOf(drawings))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		http.Error(w, "Failed to write Excel file", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=LPP_TEMPLATE.xlsx")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *ExportHandler) requestTemplate(r *http.Request) (io.Reader, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, fmt.Errorf("bad multipart form: %w", err)
		}
		if file, _, err := r.FormFile("template"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return nil, err
			}
			return bytes.NewReader(data), nil
		}
	}
	if h.templatePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(h.templatePath)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("LPP template unreadable", zap.String("path", h.templatePath), zap.Error(err))
		}
		return nil, nil
	}
	return bytes.NewReader(data), nil
}

func (h *ExportHandler) projectIndex() (map[string]models.Project, error) {
	list, err := h.projects.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Project, len(list))
	for _, p := range list {
		out[p.ProjectNumber] = p
	}
	return out, nil
}

func (h *ExportHandler) archive(ctx context.Context, name string, data []byte) {
	if h.store == nil {
		return
	}
	if _, err := h.store.Put(ctx, name, data); err != nil {
		zap.L().Warn("Export not archived", zap.String("name", name), zap.Error(err))
	}
}
