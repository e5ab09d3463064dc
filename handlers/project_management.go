package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"p9e.in/lppsync/config"
	"p9e.in/lppsync/pkg/register"
)

// ProjectHandler handles project management operations
type ProjectHandler struct {
	projects *register.ProjectService
}

// NewProjectHandler creates a new project handler
func NewProjectHandler() *ProjectHandler {
	return &ProjectHandler{projects: register.NewProjectService(config.DB)}
}

// ListProjects returns every project ordered by number.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// CreateProject creates a new project
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req register.ProjectInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	p, err := h.projects.Create(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	zap.L().Info("Project created", zap.String("proj_num", p.ProjectNumber))
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(mux.Vars(r)["proj_num"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject replaces the descriptive fields of a project. The number in
// the path wins over one in the body.
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req register.ProjectInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	p, err := h.projects.Update(mux.Vars(r)["proj_num"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject refuses to remove a project that still has drawings unless
// cascade=true is given.
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projNum := strings.TrimSpace(mux.Vars(r)["proj_num"])
	res, err := h.projects.Delete(projNum, queryBool(r, "cascade"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ProjectHandler) GetProjectStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.projects.Stats(mux.Vars(r)["proj_num"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
