package handlers

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"p9e.in/lppsync/config"
	"p9e.in/lppsync/pkg/artifacts"
	"p9e.in/lppsync/pkg/register"
)

const maxUploadSize = 50 << 20

// ImportHandler accepts CAD exports uploaded as multipart files.
type ImportHandler struct {
	importer *register.Importer
	store    artifacts.Store
}

func NewImportHandler(store artifacts.Store) *ImportHandler {
	return &ImportHandler{
		importer: register.NewImporter(config.DB),
		store:    store,
	}
}

// ImportResponse is the import summary plus where the upload was archived.
type ImportResponse struct {
	*register.ImportSummary
	Archive string `json:"archive,omitempty"`
}

// Import handles POST /import/{format}. The multipart field "file" carries
// the export; an optional "proj_num" overrides the project of every row.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	format := register.Format(strings.ToLower(mux.Vars(r)["format"]))
	if format != register.FormatCSV && format != register.FormatJSON {
		http.Error(w, "unsupported import format", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "bad multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp := ImportResponse{}
	name := "uploads/" + artifacts.Stamped(path.Base(header.Filename), time.Now())
	if loc, err := h.store.Put(r.Context(), name, data); err != nil {
		zap.L().Warn("Upload not archived", zap.String("file", header.Filename), zap.Error(err))
	} else {
		resp.Archive = loc
	}

	sum, err := h.importer.Import(bytes.NewReader(data), format, register.ImportOptions{
		ProjectNumber: r.FormValue("proj_num"),
		Source:        header.Filename,
	})
	if err != nil {
		http.Error(w, "failed to read import file: "+err.Error(), http.StatusBadRequest)
		return
	}
	resp.ImportSummary = sum
	writeJSON(w, http.StatusOK, resp)
}
