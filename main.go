package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"p9e.in/lppsync/config"
	"p9e.in/lppsync/models"
	"p9e.in/lppsync/pkg/artifacts"
	"p9e.in/lppsync/pkg/export"
	"p9e.in/lppsync/pkg/register"
	"p9e.in/lppsync/routes"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version info and exit")
	importPath := flag.String("import", "", "Import a CAD export (.csv or .json) or every export in a directory, then exit")
	projNum := flag.String("proj", "", "Project number: overrides imported rows, filters exports")
	exportCSV := flag.String("export-csv", "", "Write the CAD CSV for the named DWG file, then exit")
	lppName := flag.String("lpp", "", "Write the LPP workbook under this file name, then exit")
	templatePath := flag.String("template", "", "LPP template to fill (default LPP_TEMPLATE)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg := config.Load()
	logger, err := config.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := config.Connect(cfg); err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}

	ctx := context.Background()
	store, err := artifacts.NewStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Artifact store unavailable", zap.Error(err))
	}
	if *templatePath != "" {
		cfg.LPPTemplate = *templatePath
	}

	if *importPath != "" || *exportCSV != "" || *lppName != "" {
		if err := runBatch(ctx, cfg, store, *importPath, *projNum, *exportCSV, *lppName); err != nil {
			logger.Fatal("Batch run failed", zap.Error(err))
		}
		return
	}

	handler := routes.RegisterRoutes(store, cfg.LPPTemplate)
	logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("version", Version))
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

// runBatch performs the command-line actions in order: import, CAD CSV,
// LPP.
func runBatch(ctx context.Context, cfg *config.Config, store artifacts.Store, importPath, projNum, dwgSource, lppName string) error {
	if importPath != "" {
		if err := runImport(importPath, projNum); err != nil {
			return err
		}
	}

	drawings := register.NewDrawingService(config.DB)
	if dwgSource != "" {
		list, err := drawings.List(register.DrawingQuery{
			ProjectNumber: projNum,
			DWGSource:     dwgSource,
			Sort:          []string{"layout_name"},
			WithRevisions: true,
		})
		if err != nil {
			return err
		}
		projects, err := register.NewProjectService(config.DB).List()
		if err != nil {
			return err
		}
		index := make(map[string]models.Project, len(projects))
		for _, p := range projects {
			index[p.ProjectNumber] = p
		}

		var buf bytes.Buffer
		if err := export.WriteCADCSV(&buf, list, index); err != nil {
			return err
		}
		loc, err := store.Put(ctx, strings.TrimSuffix(dwgSource, ".dwg")+".csv", buf.Bytes())
		if err != nil {
			return err
		}
		zap.L().Info("CAD CSV written", zap.String("location", loc), zap.Int("drawings", len(list)))
	}

	if lppName != "" {
		list, err := drawings.List(register.DrawingQuery{ProjectNumber: projNum})
		if err != nil {
			return err
		}

		// a nil template makes BuildLPP generate one
		var template io.Reader
		if data, err := os.ReadFile(cfg.LPPTemplate); err == nil {
			template = bytes.NewReader(data)
		} else {
			zap.L().Info("No LPP template, generating one", zap.String("path", cfg.LPPTemplate))
		}

		f, res, err := export.BuildLPP(template, list)
		if err != nil {
			return err
		}
		defer f.Close()

		buf, err := f.WriteToBuffer()
		if err != nil {
			return err
		}
		if !strings.HasSuffix(strings.ToLower(lppName), ".xlsx") {
			lppName += ".xlsx"
		}
		loc, err := store.Put(ctx, lppName, buf.Bytes())
		if err != nil {
			return err
		}
		for _, layout := range res.Unplaced {
			zap.L().Warn("Drawing has no LPP section", zap.String("layout_name", layout))
		}
		zap.L().Info("LPP written", zap.String("location", loc), zap.Int("inserted", res.Inserted))
	}
	return nil
}

func runImport(path, projNum string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	im := register.NewImporter(config.DB)
	opts := register.ImportOptions{ProjectNumber: projNum}

	var sums []*register.ImportSummary
	if info.IsDir() {
		sums, err = im.ImportDir(path, opts)
	} else {
		var sum *register.ImportSummary
		sum, err = im.ImportFile(path, opts)
		if sum != nil {
			sums = append(sums, sum)
		}
	}
	for _, s := range sums {
		fmt.Printf("%s: %d read, %d imported, %d skipped, %d failed\n", s.Source, s.RowsRead, s.Imported, s.Skipped, s.Failed)
		for _, w := range s.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
	}
	return err
}
