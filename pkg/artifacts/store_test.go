package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"p9e.in/lppsync/config"
)

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	loc, err := s.Put(context.Background(), "exports/669.csv", []byte("a;b\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exports", "669.csv"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "a;b\n", string(data))
}

func TestLocalStore_StaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	loc, err := NewLocalStore(dir).Put(context.Background(), "../../escape.txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), loc)

	_, err = NewLocalStore(dir).Put(context.Background(), "/", []byte("x"))
	assert.Error(t, err)
}

func TestStamped(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 5, 0, time.UTC)
	assert.Equal(t, "20261015-093005-uploads/lista.csv", Stamped("uploads/lista.csv", now))
	assert.Equal(t, "20261015-093005-a.json", Stamped(`..\a.json`, now))
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), &config.Config{OutputDir: "out"})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	_, err = NewStore(context.Background(), &config.Config{UseGCS: true})
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", contentType("a.CSV"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", contentType("lpp.xlsx"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}
