package register

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"p9e.in/lppsync/models"
	"p9e.in/lppsync/pkg/importer"
)

// Format is an import file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// ImportOptions tune one import batch.
type ImportOptions struct {
	// ProjectNumber, when set, replaces the project number of every record.
	ProjectNumber string
	// Source names the batch in logs and summaries.
	Source string
}

// ImportSummary reports the outcome of one batch. It is returned whatever
// happened to individual rows.
type ImportSummary struct {
	BatchID  string   `json:"batch_id"`
	Source   string   `json:"source,omitempty"`
	Encoding string   `json:"encoding,omitempty"`
	RowsRead int      `json:"rows_read"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Warnings []string `json:"warnings"`
}

func (s *ImportSummary) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.Warnings = append(s.Warnings, msg)
	zap.L().Warn("Import warning",
		zap.String("batch_id", s.BatchID),
		zap.String("source", s.Source),
		zap.String("detail", msg),
	)
}

// Importer drives a batch of records through the project and drawing
// upserts. Each record commits on its own; a failing record does not stop
// the batch.
type Importer struct {
	drawings *DrawingService
	projects *ProjectService
}

// NewImporter creates a new importer instance
func NewImporter(db *gorm.DB) *Importer {
	return &Importer{
		drawings: NewDrawingService(db),
		projects: NewProjectService(db),
	}
}

// ImportRecords upserts recs in order.
func (im *Importer) ImportRecords(recs []*models.Record, opts ImportOptions) *ImportSummary {
	sum := &ImportSummary{
		BatchID:  uuid.NewString(),
		Source:   opts.Source,
		Warnings: []string{},
	}
	override := strings.TrimSpace(opts.ProjectNumber)

	for i, rec := range recs {
		sum.RowsRead++
		row := i + 1
		if rec == nil {
			sum.Skipped++
			continue
		}
		if override != "" {
			rec.ProjectNumber = override
		}
		if strings.TrimSpace(rec.LayoutName) == "" {
			sum.Skipped++
			sum.warn("row %d: no layout name, skipped", row)
			continue
		}

		if rec.ProjectNumber != "" {
			if _, err := im.projects.Upsert(ProjectInputFromRecord(rec)); err != nil {
				sum.warn("row %d (%s): project %s not saved: %v", row, rec.LayoutName, rec.ProjectNumber, err)
			}
		}

		if _, err := im.drawings.UpsertDrawing(rec); err != nil {
			sum.Failed++
			sum.warn("row %d (%s): %v", row, rec.LayoutName, err)
			continue
		}
		sum.Imported++
	}

	zap.L().Info("Import finished",
		zap.String("batch_id", sum.BatchID),
		zap.String("source", sum.Source),
		zap.Int("rows_read", sum.RowsRead),
		zap.Int("imported", sum.Imported),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	return sum
}

// Import decodes r in the given format and imports its records.
func (im *Importer) Import(r io.Reader, format Format, opts ImportOptions) (*ImportSummary, error) {
	var (
		res *importer.Result
		err error
	)
	switch format {
	case FormatCSV:
		res, err = importer.ReadCSV(r)
	case FormatJSON:
		res, err = importer.ReadJSON(r)
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
	if err != nil {
		return nil, err
	}

	sum := im.ImportRecords(res.Records, opts)
	sum.Encoding = res.Encoding
	sum.Warnings = append(append([]string{}, res.Warnings...), sum.Warnings...)
	return sum, nil
}

// ImportFile imports one .csv or .json file.
func (im *Importer) ImportFile(path string, opts ImportOptions) (*ImportSummary, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported import file %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if opts.Source == "" {
		opts.Source = filepath.Base(path)
	}
	return im.Import(f, format, opts)
}

// ImportDir imports every .csv and .json file directly under dir, in name
// order. A file that cannot be decoded is logged and skipped.
func (im *Importer) ImportDir(dir string, opts ImportOptions) ([]*ImportSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []*ImportSummary
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatFromPath(e.Name()); !ok {
			continue
		}
		fileOpts := opts
		fileOpts.Source = e.Name()
		sum, err := im.ImportFile(filepath.Join(dir, e.Name()), fileOpts)
		if err != nil {
			zap.L().Error("Import file failed", zap.String("file", e.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		out = append(out, sum)
	}
	return out, errors.Join(errs...)
}
