package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livestock-import-api/internal/cache"
	"github.com/livestock-import-api/internal/config"
	"github.com/livestock-import-api/internal/database"
	"github.com/livestock-import-api/internal/docstore"
	"github.com/livestock-import-api/internal/importer"
	"github.com/livestock-import-api/internal/models"
	"github.com/livestock-import-api/internal/service"
	"github.com/livestock-import-api/pkg/logger"
)

var (
	importFile      string
	importKind      string
	importProgramme string
	importDryRun    bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Run one import file through the pipeline into the store",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "path to the import file (.csv, .json, .xlsx)")
	importCmd.Flags().StringVarP(&importKind, "kind", "k", "", "import kind: offtake, farmers, fodder or training")
	importCmd.Flags().StringVarP(&importProgramme, "programme", "p", "", "programme to stamp onto records lacking one")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and report, write nothing")
	importCmd.MarkFlagRequired("file")
	importCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	kind := models.ImportKind(importKind)
	if !models.ValidKinds[kind] {
		return fmt.Errorf("unknown kind %q, want offtake, farmers, fodder or training", importKind)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	result, err := parseFile(cfg, kind, importFile)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "parsed %d records (%d rows, %d skipped)\n",
		result.Len(), result.RowCount, result.SkippedRows)
	if importDryRun {
		return nil
	}

	log := logger.New()
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	store := docstore.New(db, log)
	cch := cache.New(cache.NewMemoryKV(cfg.Cache.Capacity))
	engine := service.NewBatchEngine(store, cch, cfg.Import.ChunkSize, log)

	docs := service.BuildDocuments(result, importProgramme)
	written, err := engine.Persist(context.Background(), kind.Collection(), importProgramme, docs,
		consoleObserver{out: cmd.OutOrStdout()})
	if err != nil {
		return fmt.Errorf("%d records written before failure: %w", written, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "done: %d records written to %s\n", written, kind.Collection())
	return nil
}

func parseFile(cfg *config.Config, kind models.ImportKind, path string) (*importer.Result, error) {
	pipeline := importer.NewPipeline(kind)
	if overrides := cfg.Import.KeywordOverridesPath; overrides != "" {
		resolver, err := importer.NewResolverFromFile(overrides)
		if err != nil {
			return nil, err
		}
		pipeline = pipeline.WithResolver(resolver)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return pipeline.ParseJSON(data)
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rows, err := importer.DecodeXLSX(f)
		if err != nil {
			return nil, err
		}
		return pipeline.ParseRows(rows)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return pipeline.ParseCSV(string(data))
	}
}

// consoleObserver renders chunk progress on one line.
type consoleObserver struct {
	out interface{ Write([]byte) (int, error) }
}

func (o consoleObserver) Progress(p models.Progress) {
	fmt.Fprintf(o.out, "\rwriting %d/%d", p.Current, p.Total)
}

func (o consoleObserver) Done(total int) {
	fmt.Fprintf(o.out, "\n")
}
