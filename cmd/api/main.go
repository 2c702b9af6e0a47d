package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/karoltaylor/finance-ingest/internal/api/handlers"
	"github.com/karoltaylor/finance-ingest/internal/api/middleware"
	"github.com/karoltaylor/finance-ingest/internal/config"
	"github.com/karoltaylor/finance-ingest/internal/detect"
	"github.com/karoltaylor/finance-ingest/internal/gcs"
	infraBQ "github.com/karoltaylor/finance-ingest/internal/infra/bigquery"
	"github.com/karoltaylor/finance-ingest/internal/jobs"
	"github.com/karoltaylor/finance-ingest/internal/jobs/inmemory"
	"github.com/karoltaylor/finance-ingest/internal/loader"
	"github.com/karoltaylor/finance-ingest/internal/logger"
	"github.com/karoltaylor/finance-ingest/internal/mapping"
	"github.com/karoltaylor/finance-ingest/internal/pipeline"
)

func main() {
	var (
		port    = flag.String("port", "8080", "HTTP server port")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for staged uploads (or set GCS_BUCKET env)")
		workers = flag.Int("workers", 4, "Concurrent ingestion workers")
	)
	flag.Parse()

	log := logger.New()
	cfg := config.Load()
	ctx := context.Background()

	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - async ingestion will be disabled")
	}

	// Mapping cache, transaction sink and query reader, all backed by one
	// shared BigQuery client. Without a BigQuery project the service still
	// runs, with an in-memory cache and no persistence.
	var (
		cacheStore mapping.CacheStore
		sink       handlers.TransactionSink
		txReader   handlers.TransactionReader
	)
	if cfg.BigQueryProject != "" {
		bqClient, err := bigquery.NewClient(ctx, cfg.BigQueryProject)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer bqClient.Close()
		bqStore := infraBQ.NewStoreWithClient(bqClient, cfg.BigQueryDataset)
		cacheStore = bqStore
		sink = bqStore
		txReader = bqStore
	} else {
		log.Warn().Msg("No BigQuery project configured - running with in-memory cache, no persistence")
		cacheStore = mapping.NewMemoryStore()
	}

	gemini, err := mapping.NewGeminiService(ctx, cfg.GenAIModel, cfg.GoogleAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini service")
	}

	mapper := mapping.NewMapper(cacheStore, gemini, mapping.DefaultSchema(), cfg.SchemaVersion, cfg.MappingTimeout, log)

	detector := detect.NewDetector()
	detector.MaxRowsToScan = cfg.MaxRowsToScan

	ingestor := pipeline.NewIngestor(mapper, log,
		pipeline.WithDetector(detector),
		pipeline.WithSampleRows(cfg.SampleRows),
		pipeline.WithClassifier(gemini),
	)

	// Job infrastructure for async ingestion.
	storage := gcs.NewClient(*bucket)
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.IngestFileJob) error {
		ctx = logger.WithContext(ctx, log)

		log.Info().Str("job_id", job.JobID).Str("gcs_uri", job.GCSURI).Msg("Processing ingestion job")

		data, err := storage.Fetch(ctx, job.GCSURI)
		if err != nil {
			return err
		}
		kind, err := loader.KindFromFilename(job.Filename)
		if err != nil {
			return err
		}

		res, err := ingestor.Run(ctx, data, kind, pipeline.Defaults{WalletName: job.WalletName})
		if err != nil {
			return err
		}
		if sink != nil {
			if err := sink.InsertTransactions(ctx, res.Transactions, job.Filename); err != nil {
				return err
			}
		}

		job.Transactions = len(res.Transactions)
		job.RowErrors = len(res.RowErrors)
		job.Degraded = res.Degraded

		log.Info().
			Str("job_id", job.JobID).
			Int("transactions", job.Transactions).
			Int("row_errors", job.RowErrors).
			Msg("Ingestion job completed")
		return nil
	}

	go func() {
		log.Info().Int("workers", *workers).Msg("Starting ingestion workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Ingestion workers stopped with error")
		}
	}()

	ingestHandler := handlers.NewIngestHandler(ingestor, sink, log)
	uploadHandler := handlers.NewUploadHandler(storage, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	transactionsHandler := handlers.NewTransactionsHandler(txReader, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/ingest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ingestHandler.Ingest(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/preview", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ingestHandler.Preview(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/ingest/async", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if *bucket == "" {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Async ingestion requires a GCS bucket")
			return
		}
		uploadHandler.Upload(w, r)
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if txReader == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Transaction queries require a BigQuery project")
			return
		}
		transactionsHandler.ListTransactions(w, r)
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting ingestion API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
