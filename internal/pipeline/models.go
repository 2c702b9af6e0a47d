package pipeline

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction types recognized by the pipeline. The type decides the sign
// with which the fee contributes to the transaction amount.
const (
	TypeBuy         = "buy"
	TypeSell        = "sell"
	TypeDeposit     = "deposit"
	TypeWithdrawal  = "withdrawal"
	TypeTransferIn  = "transfer_in"
	TypeTransferOut = "transfer_out"
)

// MappedRow holds one data row's raw values keyed by target field name,
// after column mapping but before validation.
type MappedRow map[string]string

// Transaction is one normalized transaction ready to be stored.
type Transaction struct {
	ID                string
	WalletName        string
	AssetName         string
	AssetType         string
	Date              civil.Date
	AssetItemPrice    decimal.Decimal
	Volume            decimal.Decimal
	Currency          string
	Fee               decimal.Decimal
	TransactionAmount decimal.Decimal
	TransactionType   string
	Notes             string
}

// Defaults fill fields the source file does not carry. WalletName is the
// fallback for files without an account column; AssetType is applied when
// neither the file nor the classifier yields a type.
type Defaults struct {
	WalletName string
	AssetType  string
}
