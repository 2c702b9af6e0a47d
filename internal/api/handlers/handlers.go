// Package handlers implements the HTTP endpoints of the ingestion service:
// synchronous ingestion and preview of uploaded spreadsheets, asynchronous
// ingestion of files staged in GCS, and job status polling.
package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/karoltaylor/finance-ingest/internal/api/middleware"
	"github.com/karoltaylor/finance-ingest/internal/gcs"
	"github.com/karoltaylor/finance-ingest/internal/infra/bigquery"
	"github.com/karoltaylor/finance-ingest/internal/jobs"
	"github.com/karoltaylor/finance-ingest/internal/loader"
	"github.com/karoltaylor/finance-ingest/internal/pipeline"
)

// maxUploadBytes bounds multipart uploads; broker exports are small.
const maxUploadBytes = 32 << 20

// TransactionSink stores materialized transactions.
type TransactionSink interface {
	InsertTransactions(ctx context.Context, txs []*pipeline.Transaction, sourceFile string) error
}

// IngestHandler handles synchronous ingestion and preview endpoints.
type IngestHandler struct {
	ingestor *pipeline.Ingestor
	sink     TransactionSink
	log      zerolog.Logger
}

// NewIngestHandler creates the ingestion handler. A nil sink disables
// persistence, which is what the preview-only deployments run with.
func NewIngestHandler(ingestor *pipeline.Ingestor, sink TransactionSink, log zerolog.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, sink: sink, log: log}
}

// readUpload extracts the uploaded spreadsheet and its file kind from a
// multipart request.
func readUpload(r *http.Request) ([]byte, string, loader.FileKind, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", "", fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	kind, err := loader.KindFromFilename(header.Filename)
	if err != nil {
		return nil, "", "", err
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	return data, header.Filename, kind, nil
}

// Ingest handles POST /api/ingest. The file is processed inline and the
// resulting transactions are stored before the response is written.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, filename, kind, err := readUpload(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	defaults := pipeline.Defaults{WalletName: r.FormValue("wallet_name")}

	res, err := h.ingestor.Run(ctx, data, kind, defaults)
	if err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Ingestion failed")
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if h.sink != nil {
		if err := h.sink.InsertTransactions(ctx, res.Transactions, filename); err != nil {
			h.log.Error().Err(err).Str("filename", filename).Msg("Failed to store transactions")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to store transactions")
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"filename":     filename,
		"header_row":   res.HeaderRow,
		"columns":      res.Columns,
		"mapping":      res.Mapping.Targets,
		"transactions": len(res.Transactions),
		"row_errors":   res.RowErrors,
		"degraded":     res.Degraded,
	})
}

// Preview handles POST /api/preview. Nothing is stored: no transactions
// and no mapping cache entry.
func (h *IngestHandler) Preview(w http.ResponseWriter, r *http.Request) {
	data, filename, kind, err := readUpload(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	prev, err := h.ingestor.Preview(r.Context(), data, kind)
	if err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Preview failed")
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"filename":    filename,
		"header_row":  prev.HeaderRow,
		"columns":     prev.Columns,
		"mapping":     prev.Mapping.Targets,
		"sample_rows": prev.SampleRows,
		"degraded":    prev.Degraded,
	})
}

// TransactionReader queries stored transactions.
type TransactionReader interface {
	QueryTransactionsByWallet(ctx context.Context, wallet string, from, to civil.Date) ([]*bigquery.TransactionRow, error)
}

// TransactionsHandler exposes stored transactions.
type TransactionsHandler struct {
	reader TransactionReader
	log    zerolog.Logger
}

// NewTransactionsHandler creates the transactions handler.
func NewTransactionsHandler(reader TransactionReader, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{reader: reader, log: log}
}

// ListTransactions handles GET /api/transactions. The wallet parameter is
// required; from and to default to the last year.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	wallet := query.Get("wallet")
	if wallet == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing wallet parameter")
		return
	}

	now := time.Now()
	from := civil.DateOf(now.AddDate(-1, 0, 0))
	to := civil.DateOf(now)

	var err error
	if s := query.Get("from"); s != "" {
		from, err = civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid from date, want YYYY-MM-DD")
			return
		}
	}
	if s := query.Get("to"); s != "" {
		to, err = civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid to date, want YYYY-MM-DD")
			return
		}
	}

	rows, err := h.reader.QueryTransactionsByWallet(ctx, wallet, from, to)
	if err != nil {
		h.log.Error().Err(err).Str("wallet", wallet).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	if rows == nil {
		rows = []*bigquery.TransactionRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": rows,
		"count":        len(rows),
	})
}

// UploadHandler stages files in GCS and enqueues asynchronous ingestion.
type UploadHandler struct {
	storage   gcs.Storage
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewUploadHandler creates the async upload handler.
func NewUploadHandler(storage gcs.Storage, publisher jobs.Publisher, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{storage: storage, publisher: publisher, log: log}
}

// Upload handles POST /api/ingest/async: store the file, enqueue a job and
// return 202 with the job ID for polling.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, filename, _, err := readUpload(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	objectName := fmt.Sprintf("uploads/%s/%s-%s", time.Now().Format("2006/01/02"), uuid.NewString(), filename)
	uri, err := h.storage.Save(ctx, objectName, data, r.Header.Get("Content-Type"))
	if err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Failed to stage upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	job := &jobs.IngestFileJob{
		GCSURI:     uri,
		Filename:   filename,
		WalletName: r.FormValue("wallet_name"),
	}
	if err := h.publisher.PublishIngestFile(ctx, job); err != nil {
		h.log.Error().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("gcs_uri", uri).Msg("Ingestion job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": uri,
		"status":  string(job.Status),
	})
}

// JobsHandler exposes job status.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates the jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{Status: jobs.JobStatus(query.Get("status"))}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
