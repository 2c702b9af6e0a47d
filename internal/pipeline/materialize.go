package pipeline

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karoltaylor/finance-ingest/internal/mapping"
)

// dateLayouts are tried in order; the first successful parse wins. Day-first
// layouts are listed before month-first because most source exports are
// European bank and broker statements.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
}

// Materializer turns mapped raw row values into validated transactions.
// Numeric derivation runs in a fixed order so results never depend on map
// iteration: transaction_amount first, then price, then volume.
type Materializer struct {
	schema mapping.Schema
}

// NewMaterializer returns a materializer for the given target schema.
func NewMaterializer(schema mapping.Schema) *Materializer {
	return &Materializer{schema: schema}
}

// Materialize validates one raw row, keyed by target field name, into a
// Transaction. On any validation failure it returns nil and the full set of
// row errors; a row is never partially materialized.
func (m *Materializer) Materialize(rowIdx int, raw MappedRow, defaults Defaults) (*Transaction, []RowError) {
	var errs []RowError
	fail := func(field, reason, detail string) {
		errs = append(errs, RowError{Row: rowIdx, Field: field, Reason: reason, Detail: detail})
	}

	get := func(field string) string { return strings.TrimSpace(raw[field]) }

	tx := &Transaction{ID: uuid.NewString(), Notes: get(mapping.FieldNotes)}

	tx.WalletName = get(mapping.FieldWalletName)
	if tx.WalletName == "" {
		tx.WalletName = strings.TrimSpace(defaults.WalletName)
	}
	if tx.WalletName == "" {
		fail(mapping.FieldWalletName, ReasonMissingField, "")
	}

	tx.AssetName = get(mapping.FieldAssetName)
	if tx.AssetName == "" {
		fail(mapping.FieldAssetName, ReasonMissingField, "")
	}

	if s := get(mapping.FieldDate); s == "" {
		fail(mapping.FieldDate, ReasonMissingField, "")
	} else if d, err := parseDate(s); err != nil {
		fail(mapping.FieldDate, ReasonInvalidDate, s)
	} else {
		tx.Date = d
	}

	if s := get(mapping.FieldCurrency); s == "" {
		fail(mapping.FieldCurrency, ReasonMissingField, "")
	} else if c, ok := normalizeCurrency(s); !ok {
		fail(mapping.FieldCurrency, ReasonInvalidCurrency, s)
	} else {
		tx.Currency = c
	}

	// Asset type comes from the file when present and recognized; anything
	// else is left empty for the classifier or the defaults to settle.
	if s := strings.ToLower(get(mapping.FieldAssetType)); mapping.KnownAssetType(s) {
		tx.AssetType = s
	}

	tx.TransactionType = strings.ToLower(get(mapping.FieldTransactionType))
	if tx.TransactionType == "" {
		tx.TransactionType = TypeBuy
	}

	price, hasPrice := m.numeric(mapping.FieldAssetItemPrice, raw, &errs, rowIdx)
	volume, hasVolume := m.numeric(mapping.FieldVolume, raw, &errs, rowIdx)
	amount, hasAmount := m.numeric(mapping.FieldAmount, raw, &errs, rowIdx)

	fee := decimal.Zero
	if f, ok := m.numeric(mapping.FieldFee, raw, &errs, rowIdx); ok {
		fee = f
	}
	tx.Fee = fee
	signed := signedFee(fee, tx.TransactionType)

	// Any one of amount, price and volume can be reconstructed from the
	// other two. Division by zero is not attempted; the field simply stays
	// missing and fails below.
	if !hasAmount && hasPrice && hasVolume {
		amount, hasAmount = price.Mul(volume).Add(signed), true
	}
	if !hasPrice && hasAmount && hasVolume && !volume.IsZero() {
		price, hasPrice = amount.Sub(signed).Div(volume), true
	}
	if !hasVolume && hasAmount && hasPrice && !price.IsZero() {
		volume, hasVolume = amount.Sub(signed).Div(price), true
	}

	if !hasPrice {
		fail(mapping.FieldAssetItemPrice, ReasonMissingField, "")
	} else if price.IsNegative() {
		fail(mapping.FieldAssetItemPrice, ReasonNegativeValue, price.String())
	}
	if !hasVolume {
		fail(mapping.FieldVolume, ReasonMissingField, "")
	} else if volume.IsNegative() {
		fail(mapping.FieldVolume, ReasonNegativeValue, volume.String())
	}
	if !hasAmount {
		fail(mapping.FieldAmount, ReasonMissingField, "")
	}

	if len(errs) > 0 {
		return nil, errs
	}

	tx.AssetItemPrice = price
	tx.Volume = volume
	tx.TransactionAmount = amount
	return tx, nil
}

// numeric parses an optional numeric field. Absent and empty values report
// ok=false without an error; malformed values record InvalidNumber.
func (m *Materializer) numeric(field string, raw MappedRow, errs *[]RowError, rowIdx int) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw[field])
	if s == "" {
		return decimal.Zero, false
	}
	d, err := parseAmount(s)
	if err != nil {
		*errs = append(*errs, RowError{Row: rowIdx, Field: field, Reason: ReasonInvalidNumber, Detail: s})
		return decimal.Zero, false
	}
	return d, true
}

// signedFee returns the fee with the sign it contributes to the transaction
// amount: outgoing money (buys, deposits, transfers in) pays the fee on top,
// incoming money (sells, withdrawals, transfers out) loses it.
func signedFee(fee decimal.Decimal, txType string) decimal.Decimal {
	switch txType {
	case TypeSell, TypeWithdrawal, TypeTransferOut:
		return fee.Neg()
	default:
		return fee
	}
}

// parseAmount parses a human-formatted number. Currency symbols and spaces
// are stripped; a single comma with no dot is treated as a decimal comma,
// otherwise commas are thousands separators.
func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ' ', ' ':
			return -1
		}
		return r
	}, s)

	if strings.Count(cleaned, ",") == 1 && !strings.Contains(cleaned, ".") {
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	return decimal.NewFromString(cleaned)
}

func parseDate(s string) (civil.Date, error) {
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return civil.DateOf(t), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return civil.Date{}, firstErr
}

func normalizeCurrency(s string) (string, bool) {
	if len(s) != 3 {
		return "", false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", false
		}
	}
	return strings.ToUpper(s), true
}
