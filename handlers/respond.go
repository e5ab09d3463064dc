package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"p9e.in/lppsync/middleware"
	"p9e.in/lppsync/pkg/register"
	"p9e.in/lppsync/pkg/workflow"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to status codes. Unknown errors are logged
// and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var dep *register.DependentsError
	switch {
	case errors.As(err, &dep):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    dep.Error(),
			"proj_num": dep.ProjectNumber,
			"drawings": dep.Count,
		})
	case errors.Is(err, register.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, register.ErrLayoutConflict), errors.Is(err, register.ErrProjectExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, workflow.ErrInvalidState),
		errors.Is(err, register.ErrMissingProjectNum),
		errors.Is(err, register.ErrMissingLayout),
		errors.Is(err, register.ErrInvalidQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		zap.L().Error("Request failed",
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return v
}

// sanitizeFilename makes a value safe for a Content-Disposition filename.
func sanitizeFilename(name string) string {
	return strings.Map(func(c rune) rune {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', ';':
			return '_'
		}
		return c
	}, name)
}
