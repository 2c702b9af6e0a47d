package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/karoltaylor/finance-ingest/internal/pipeline"
)

// TransactionRow is one materialized transaction in the transactions table.
// Monetary fields are NUMERIC, carried as *big.Rat per the BigQuery client
// conventions. Rows are also served as-is by the transactions endpoint.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id" json:"transaction_id"`

	WalletName string `bigquery:"wallet_name" json:"wallet_name"`
	AssetName  string `bigquery:"asset_name" json:"asset_name"`
	AssetType  string `bigquery:"asset_type" json:"asset_type"`

	TransactionDate civil.Date `bigquery:"transaction_date" json:"transaction_date"`

	AssetItemPrice    *big.Rat `bigquery:"asset_item_price" json:"asset_item_price"`
	Volume            *big.Rat `bigquery:"volume" json:"volume"`
	Fee               *big.Rat `bigquery:"fee" json:"fee"`
	TransactionAmount *big.Rat `bigquery:"transaction_amount" json:"transaction_amount"`

	Currency        string `bigquery:"currency" json:"currency"`
	TransactionType string `bigquery:"transaction_type" json:"transaction_type"`

	Notes      bigquery.NullString `bigquery:"notes" json:"notes,omitempty"`
	SourceFile bigquery.NullString `bigquery:"source_file" json:"source_file,omitempty"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}

// InsertTransactions streams a batch of transactions into the transactions
// table. sourceFile tags every row with the file it came from; pass "" for
// untracked sources.
func (s *Store) InsertTransactions(ctx context.Context, txs []*pipeline.Transaction, sourceFile string) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		row := &TransactionRow{
			TransactionID:     tx.ID,
			WalletName:        tx.WalletName,
			AssetName:         tx.AssetName,
			AssetType:         tx.AssetType,
			TransactionDate:   tx.Date,
			AssetItemPrice:    tx.AssetItemPrice.Rat(),
			Volume:            tx.Volume.Rat(),
			Fee:               tx.Fee.Rat(),
			TransactionAmount: tx.TransactionAmount.Rat(),
			Currency:          tx.Currency,
			TransactionType:   tx.TransactionType,
			CreatedTS:         now,
		}
		if tx.Notes != "" {
			row.Notes = bigquery.NullString{StringVal: tx.Notes, Valid: true}
		}
		if sourceFile != "" {
			row.SourceFile = bigquery.NullString{StringVal: sourceFile, Valid: true}
		}
		rows = append(rows, row)
	}

	inserter := s.client.Dataset(s.dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("bigquery: insert transactions: %w", err)
	}
	return nil
}

// QueryTransactionsByWallet returns a wallet's transactions in the given
// date range, oldest first.
func (s *Store) QueryTransactionsByWallet(ctx context.Context, wallet string, from, to civil.Date) ([]*TransactionRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			wallet_name,
			asset_name,
			asset_type,
			transaction_date,
			asset_item_price,
			volume,
			fee,
			transaction_amount,
			currency,
			transaction_type,
			notes,
			source_file,
			created_ts
		FROM %s.%s
		WHERE wallet_name = @wallet_name
		  AND transaction_date >= @from_date
		  AND transaction_date <= @to_date
		ORDER BY transaction_date, created_ts
	`, s.dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "wallet_name", Value: wallet},
		{Name: "from_date", Value: from.String()},
		{Name: "to_date", Value: to.String()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: query transactions: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: iter transactions: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
