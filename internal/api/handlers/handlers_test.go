package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/karoltaylor/finance-ingest/internal/infra/bigquery"
	"github.com/karoltaylor/finance-ingest/internal/mapping"
	"github.com/karoltaylor/finance-ingest/internal/pipeline"
)

type mockAIService struct {
	response map[string]any
}

func (m *mockAIService) MapColumns(ctx context.Context, req mapping.Request) (map[string]any, error) {
	return m.response, nil
}

type mockSink struct {
	inserted   []*pipeline.Transaction
	sourceFile string
}

func (m *mockSink) InsertTransactions(ctx context.Context, txs []*pipeline.Transaction, sourceFile string) error {
	m.inserted = append(m.inserted, txs...)
	m.sourceFile = sourceFile
	return nil
}

type mockReader struct {
	rows   []*bigquery.TransactionRow
	err    error
	wallet string
	from   civil.Date
	to     civil.Date
}

func (m *mockReader) QueryTransactionsByWallet(ctx context.Context, wallet string, from, to civil.Date) ([]*bigquery.TransactionRow, error) {
	m.wallet = wallet
	m.from = from
	m.to = to
	return m.rows, m.err
}

const exportCSV = `Account,Symbol,Date,Price,Quantity,Currency
Main,AAPL,2024-01-15,190.50,2,USD
Main,MSFT,2024-01-16,400,1,USD
`

func newHandler(sink TransactionSink) *IngestHandler {
	ai := &mockAIService{response: map[string]any{
		"wallet_name":      "account",
		"asset_name":       "symbol",
		"date":             "date",
		"asset_item_price": "price",
		"volume":           "quantity",
		"currency":         "currency",
	}}
	mapper := mapping.NewMapper(mapping.NewMemoryStore(), ai, mapping.DefaultSchema(), 1, time.Second, zerolog.Nop())
	ing := pipeline.NewIngestor(mapper, zerolog.Nop())
	return NewIngestHandler(ing, sink, zerolog.Nop())
}

func multipartUpload(t *testing.T, filename, contents string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(contents)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestIngestEndpoint(t *testing.T) {
	sink := &mockSink{}
	h := newHandler(sink)

	rec := httptest.NewRecorder()
	h.Ingest(rec, multipartUpload(t, "export.csv", exportCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Filename     string              `json:"filename"`
		HeaderRow    int                 `json:"header_row"`
		Transactions int                 `json:"transactions"`
		RowErrors    []pipeline.RowError `json:"row_errors"`
		Degraded     bool                `json:"degraded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Transactions != 2 {
		t.Errorf("transactions = %d, want 2", resp.Transactions)
	}
	if len(resp.RowErrors) != 0 {
		t.Errorf("row errors = %v, want none", resp.RowErrors)
	}
	if resp.Filename != "export.csv" {
		t.Errorf("filename = %q", resp.Filename)
	}

	if len(sink.inserted) != 2 {
		t.Errorf("sink received %d transactions, want 2", len(sink.inserted))
	}
	if sink.sourceFile != "export.csv" {
		t.Errorf("sink source file = %q", sink.sourceFile)
	}
}

func TestIngestRejectsUnsupportedKind(t *testing.T) {
	h := newHandler(&mockSink{})

	rec := httptest.NewRecorder()
	h.Ingest(rec, multipartUpload(t, "export.pdf", "%PDF-1.4"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPreviewEndpointStoresNothing(t *testing.T) {
	sink := &mockSink{}
	h := newHandler(sink)

	rec := httptest.NewRecorder()
	h.Preview(rec, multipartUpload(t, "export.csv", exportCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Columns    []string          `json:"columns"`
		Mapping    map[string]string `json:"mapping"`
		SampleRows [][]string        `json:"sample_rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Mapping["asset_name"] != "symbol" {
		t.Errorf("mapping = %v", resp.Mapping)
	}
	if len(resp.SampleRows) == 0 {
		t.Error("preview returned no sample rows")
	}
	if len(sink.inserted) != 0 {
		t.Errorf("preview stored %d transactions", len(sink.inserted))
	}
}

func TestListTransactions(t *testing.T) {
	reader := &mockReader{rows: []*bigquery.TransactionRow{
		{TransactionID: "t1", WalletName: "main", AssetName: "AAPL", TransactionDate: civil.Date{Year: 2024, Month: 6, Day: 1}},
		{TransactionID: "t2", WalletName: "main", AssetName: "BTC", TransactionDate: civil.Date{Year: 2024, Month: 6, Day: 2}},
	}}
	h := NewTransactionsHandler(reader, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?wallet=main&from=2024-01-01&to=2024-12-31", nil)
	rec := httptest.NewRecorder()
	h.ListTransactions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if reader.wallet != "main" {
		t.Errorf("reader wallet = %q, want main", reader.wallet)
	}
	if got := reader.from.String(); got != "2024-01-01" {
		t.Errorf("reader from = %s, want 2024-01-01", got)
	}
	if got := reader.to.String(); got != "2024-12-31" {
		t.Errorf("reader to = %s, want 2024-12-31", got)
	}

	var resp struct {
		Transactions []bigquery.TransactionRow `json:"transactions"`
		Count        int                       `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Transactions) != 2 {
		t.Errorf("count = %d, transactions = %d, want 2 each", resp.Count, len(resp.Transactions))
	}
	if resp.Transactions[0].TransactionID != "t1" {
		t.Errorf("first transaction = %q, want t1", resp.Transactions[0].TransactionID)
	}
}

func TestListTransactionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing wallet", "/api/transactions"},
		{"bad from date", "/api/transactions?wallet=main&from=yesterday"},
		{"bad to date", "/api/transactions?wallet=main&to=31/12/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &mockReader{}
			h := NewTransactionsHandler(reader, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if reader.wallet != "" {
				t.Error("reader was called despite invalid parameters")
			}
		})
	}
}

func TestListTransactionsReaderError(t *testing.T) {
	reader := &mockReader{err: errors.New("query blew up")}
	h := NewTransactionsHandler(reader, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?wallet=main", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
