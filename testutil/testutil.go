package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"p9e.in/lppsync/config"
	"p9e.in/lppsync/models"
	"p9e.in/lppsync/pkg/workflow"
)

// SetupTestDB opens a private in-memory SQLite database, runs the real
// migrations and installs it as config.DB for the duration of the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// one connection keeps the in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)

	if err := config.Migrations(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	prev := config.DB
	config.DB = db
	t.Cleanup(func() {
		config.DB = prev
		sqlDB.Close()
	})

	return db
}

// DoRequest executes an HTTP request against h. A non-nil body is sent as
// JSON unless it is already an io.Reader.
func DoRequest(h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody io.Reader = bytes.NewBuffer(nil)
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reqBody = b
		contentType = ""
	default:
		jsonBytes, _ := json.Marshal(b)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes a JSON object response.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedProject creates a project row.
func SeedProject(t *testing.T, db *gorm.DB, projNum, name string) *models.Project {
	t.Helper()
	p := &models.Project{ProjectNumber: projNum, Name: name}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	return p
}

// SeedDrawing creates a drawing row with the given revisions, bypassing the
// import path.
func SeedDrawing(t *testing.T, db *gorm.DB, d *models.Drawing, revs ...models.Revision) *models.Drawing {
	t.Helper()
	if d.State == "" {
		d.State = workflow.DefaultState
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("Failed to seed drawing: %v", err)
	}
	for i := range revs {
		revs[i].DrawingID = d.ID
		if err := db.Create(&revs[i]).Error; err != nil {
			t.Fatalf("Failed to seed revision: %v", err)
		}
	}
	return d
}
