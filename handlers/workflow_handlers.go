package handlers

import (
	"encoding/json"
	"net/http"

	"p9e.in/lppsync/middleware"
	"p9e.in/lppsync/pkg/register"
	"p9e.in/lppsync/pkg/workflow"
)

// StateChangeRequest is the body of PATCH /drawings/{id}/state. Omitted
// fields keep their stored value.
type StateChangeRequest struct {
	State       *string `json:"estado_interno"`
	Comment     *string `json:"comentario"`
	Deadline    *string `json:"data_limite"`
	Responsible *string `json:"responsavel"`
}

// GetStates lists the workflow states in display order.
func GetStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, workflow.States())
}

// UpdateState changes the workflow fields of a drawing.
func (h *DrawingHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid drawing id", http.StatusBadRequest)
		return
	}
	var req StateChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	upd := register.StateUpdate{
		Comment:     req.Comment,
		Deadline:    req.Deadline,
		Responsible: req.Responsible,
		Author:      middleware.Author(r),
	}
	if req.State != nil {
		st, err := workflow.ParseState(*req.State)
		if err != nil {
			writeError(w, r, err)
			return
		}
		upd.State = &st
	}

	d, err := h.drawings.UpdateStateAndComment(id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetHistory returns the workflow history of a drawing, oldest first.
func (h *DrawingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid drawing id", http.StatusBadRequest)
		return
	}
	hist, err := h.drawings.History(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}
