package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/karoltaylor/finance-ingest/internal/config"
	"github.com/karoltaylor/finance-ingest/internal/detect"
	"github.com/karoltaylor/finance-ingest/internal/gcs"
	infraBQ "github.com/karoltaylor/finance-ingest/internal/infra/bigquery"
	"github.com/karoltaylor/finance-ingest/internal/loader"
	"github.com/karoltaylor/finance-ingest/internal/logger"
	"github.com/karoltaylor/finance-ingest/internal/mapping"
	"github.com/karoltaylor/finance-ingest/internal/pipeline"
)

func main() {
	log := logger.New()

	var (
		filePath = flag.String("file", "", "Local spreadsheet to ingest (csv, txt, xls, xlsx)")
		gcsURI   = flag.String("gcs-uri", "", "GCS URI of the spreadsheet (e.g. gs://bucket/export.csv)")
		wallet   = flag.String("wallet", "", "Fallback wallet name for files without an account column")
		preview  = flag.Bool("preview", false, "Detect and map only; do not materialize or store anything")
		dryRun   = flag.Bool("dry-run", false, "Materialize transactions but do not store them")
	)
	flag.Parse()

	if (*filePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("Exactly one of --file or --gcs-uri is required")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	// Fetch the file bytes and derive the file kind from the name.
	var (
		data     []byte
		filename string
		err      error
	)
	if *filePath != "" {
		filename = filepath.Base(*filePath)
		data, err = os.ReadFile(*filePath)
		if err != nil {
			log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
		}
	} else {
		filename = gcs.FilenameFromURI(*gcsURI)
		data, err = gcs.NewClient("").Fetch(ctx, *gcsURI)
		if err != nil {
			log.Fatal().Err(err).Str("gcs_uri", *gcsURI).Msg("Failed to fetch file")
		}
	}

	kind, err := loader.KindFromFilename(filename)
	if err != nil {
		log.Fatal().Err(err).Str("filename", filename).Msg("Unsupported file kind")
	}

	// Mapping cache: BigQuery when configured, in-memory otherwise.
	var cacheStore mapping.CacheStore
	var bqStore *infraBQ.Store
	if cfg.BigQueryProject != "" {
		bqStore, err = infraBQ.NewStore(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery store")
		}
		defer bqStore.Close()
		cacheStore = bqStore
	} else {
		log.Warn().Msg("No BigQuery project configured, mapping cache is in-memory only")
		cacheStore = mapping.NewMemoryStore()
	}

	gemini, err := mapping.NewGeminiService(ctx, cfg.GenAIModel, cfg.GoogleAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini service")
	}

	mapper := mapping.NewMapper(cacheStore, gemini, mapping.DefaultSchema(), cfg.SchemaVersion, cfg.MappingTimeout, log)

	detector := detect.NewDetector()
	detector.MaxRowsToScan = cfg.MaxRowsToScan

	ing := pipeline.NewIngestor(mapper, log,
		pipeline.WithDetector(detector),
		pipeline.WithSampleRows(cfg.SampleRows),
		pipeline.WithClassifier(gemini),
	)

	if *preview {
		prev, err := ing.Preview(ctx, data, kind)
		if err != nil {
			log.Fatal().Err(err).Msg("Preview failed")
		}
		log.Info().
			Int("header_row", prev.HeaderRow).
			Strs("columns", prev.Columns).
			Interface("mapping", prev.Mapping.Targets).
			Bool("degraded", prev.Degraded).
			Msg("Preview completed")
		return
	}

	res, err := ing.Run(ctx, data, kind, pipeline.Defaults{WalletName: *wallet})
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	for _, re := range res.RowErrors {
		log.Warn().Int("row", re.Row).Str("field", re.Field).Str("reason", re.Reason).Msg("Row rejected")
	}

	if !*dryRun && bqStore != nil {
		if err := bqStore.InsertTransactions(ctx, res.Transactions, filename); err != nil {
			log.Fatal().Err(err).Msg("Failed to store transactions")
		}
	}

	log.Info().
		Str("filename", filename).
		Int("transactions", len(res.Transactions)).
		Int("row_errors", len(res.RowErrors)).
		Bool("degraded", res.Degraded).
		Bool("stored", !*dryRun && bqStore != nil).
		Msg("Ingestion completed")
}
