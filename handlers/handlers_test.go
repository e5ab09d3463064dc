package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"p9e.in/lppsync/pkg/register"
	"p9e.in/lppsync/pkg/workflow"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestHealth_OK(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectPing()

	w := httptest.NewRecorder()
	NewHealthHandlerWithDB(db).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth_DatabaseDown(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	w := httptest.NewRecorder()
	NewHealthHandlerWithDB(db).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", fmt.Errorf("drawing 3: %w", register.ErrNotFound), http.StatusNotFound},
		{"layout conflict", register.ErrLayoutConflict, http.StatusConflict},
		{"project exists", register.ErrProjectExists, http.StatusConflict},
		{"dependents", &register.DependentsError{ProjectNumber: "669", Count: 5}, http.StatusConflict},
		{"invalid state", workflow.ErrInvalidState, http.StatusBadRequest},
		{"invalid query", register.ErrInvalidQuery, http.StatusBadRequest},
		{"missing project", register.ErrMissingProjectNum, http.StatusBadRequest},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.code, w.Code)
		})
	}

	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), &register.DependentsError{ProjectNumber: "669", Count: 5})
	assert.Contains(t, w.Body.String(), `"drawings":5`)

	w = httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("disk on fire"))
	assert.NotContains(t, w.Body.String(), "disk")
}

func TestQueryFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/drawings?proj_num=669&estado=Em%20Atraso&sort=tipo_key,-des_num&limit=10&revisions=1", nil)
	q, err := queryFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "669", q.ProjectNumber)
	assert.Equal(t, workflow.StateOverdue, q.State)
	assert.Equal(t, []string{"tipo_key", "-des_num"}, q.Sort)
	assert.Equal(t, 10, q.Limit)
	assert.True(t, q.WithRevisions)

	_, err = queryFromRequest(httptest.NewRequest(http.MethodGet, "/?estado=x", nil))
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "LPP_669_a_b", sanitizeFilename("LPP 669/a:b"))
}
