package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"p9e.in/lppsync/config"
)

// HealthHandler reports whether the database answers.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{db: config.DB}
}

// NewHealthHandlerWithDB is used when the database is not the global one.
func NewHealthHandlerWithDB(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
