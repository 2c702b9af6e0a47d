package pipeline

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/karoltaylor/finance-ingest/internal/mapping"
)

func baseRow() map[string]string {
	return map[string]string{
		"wallet_name":      "Main",
		"asset_name":       "AAPL",
		"date":             "2024-01-15",
		"asset_item_price": "10",
		"volume":           "3",
		"currency":         "USD",
		"fee":              "1",
		"transaction_type": "buy",
	}
}

func materializeOne(t *testing.T, raw map[string]string) *Transaction {
	t.Helper()
	tx, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(0, raw, Defaults{})
	if len(errs) > 0 {
		t.Fatalf("unexpected row errors: %v", errs)
	}
	return tx
}

func wantDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", field, got, want)
	}
}

func TestMaterializeDerivesAmount(t *testing.T) {
	tx := materializeOne(t, baseRow())

	wantDecimal(t, "amount", tx.TransactionAmount, "31") // 10*3 + fee
	wantDecimal(t, "price", tx.AssetItemPrice, "10")
	wantDecimal(t, "volume", tx.Volume, "3")
	wantDecimal(t, "fee", tx.Fee, "1")
	if tx.Currency != "USD" {
		t.Errorf("currency = %q, want USD", tx.Currency)
	}
	if tx.Date != (civil.Date{Year: 2024, Month: 1, Day: 15}) {
		t.Errorf("date = %v, want 2024-01-15", tx.Date)
	}
}

func TestMaterializeFeeSignBySide(t *testing.T) {
	tests := []struct {
		txType     string
		wantAmount string
	}{
		{"buy", "31"},
		{"deposit", "31"},
		{"transfer_in", "31"},
		{"sell", "29"},
		{"withdrawal", "29"},
		{"transfer_out", "29"},
	}

	for _, tt := range tests {
		t.Run(tt.txType, func(t *testing.T) {
			raw := baseRow()
			raw["transaction_type"] = tt.txType
			tx := materializeOne(t, raw)
			wantDecimal(t, "amount", tx.TransactionAmount, tt.wantAmount)
		})
	}
}

func TestMaterializeDerivesPriceAndVolume(t *testing.T) {
	t.Run("price from amount and volume", func(t *testing.T) {
		raw := baseRow()
		delete(raw, "asset_item_price")
		raw["transaction_amount"] = "31"
		tx := materializeOne(t, raw)
		wantDecimal(t, "price", tx.AssetItemPrice, "10")
	})

	t.Run("volume from amount and price", func(t *testing.T) {
		raw := baseRow()
		delete(raw, "volume")
		raw["transaction_amount"] = "31"
		tx := materializeOne(t, raw)
		wantDecimal(t, "volume", tx.Volume, "3")
	})

	t.Run("explicit amount is never recomputed", func(t *testing.T) {
		raw := baseRow()
		raw["transaction_amount"] = "999"
		tx := materializeOne(t, raw)
		wantDecimal(t, "amount", tx.TransactionAmount, "999")
	})
}

func TestMaterializeZeroVolumeNeverDivides(t *testing.T) {
	raw := baseRow()
	delete(raw, "asset_item_price")
	raw["volume"] = "0"
	raw["transaction_amount"] = "100"

	tx, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(7, raw, Defaults{})
	if tx != nil {
		t.Fatal("expected materialization to fail")
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Field != "asset_item_price" || errs[0].Reason != ReasonMissingField {
		t.Errorf("got %v, want asset_item_price MissingField", errs[0])
	}
	if errs[0].Row != 7 {
		t.Errorf("row = %d, want 7", errs[0].Row)
	}
}

func TestMaterializeNumberFormats(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"plain", "190.50", "190.5", true},
		{"thousands separator", "42,000.00", "42000", true},
		{"decimal comma", "1,5", "1.5", true},
		{"currency symbol", "$1,234.50", "1234.5", true},
		{"euro symbol", "€99", "99", true},
		{"garbage", "ten", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := baseRow()
			raw["asset_item_price"] = tt.in
			tx, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(0, raw, Defaults{})
			if !tt.valid {
				if tx != nil {
					t.Fatal("expected failure")
				}
				if errs[0].Reason != ReasonInvalidNumber {
					t.Errorf("reason = %s, want InvalidNumber", errs[0].Reason)
				}
				return
			}
			if tx == nil {
				t.Fatalf("unexpected errors: %v", errs)
			}
			wantDecimal(t, "price", tx.AssetItemPrice, tt.want)
		})
	}
}

func TestMaterializeDateFormats(t *testing.T) {
	want := civil.Date{Year: 2024, Month: 1, Day: 15}

	for _, in := range []string{"2024-01-15", "15/01/2024", "2024/01/15", "15-01-2024"} {
		t.Run(in, func(t *testing.T) {
			raw := baseRow()
			raw["date"] = in
			tx := materializeOne(t, raw)
			if tx.Date != want {
				t.Errorf("date = %v, want %v", tx.Date, want)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		raw := baseRow()
		raw["date"] = "someday"
		_, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(0, raw, Defaults{})
		if len(errs) != 1 || errs[0].Reason != ReasonInvalidDate {
			t.Errorf("got %v, want one InvalidDate", errs)
		}
	})
}

func TestMaterializeCurrency(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"USD", "USD", true},
		{"usd", "USD", true},
		{"eUr", "EUR", true},
		{"US", "", false},
		{"USDT", "", false},
		{"U$D", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			raw := baseRow()
			raw["currency"] = tt.in
			tx, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(0, raw, Defaults{})
			if !tt.valid {
				if len(errs) != 1 || errs[0].Reason != ReasonInvalidCurrency {
					t.Errorf("got %v, want one InvalidCurrency", errs)
				}
				return
			}
			if tx == nil {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if tx.Currency != tt.want {
				t.Errorf("currency = %q, want %q", tx.Currency, tt.want)
			}
		})
	}
}

func TestMaterializeNegativeValues(t *testing.T) {
	raw := baseRow()
	raw["volume"] = "-3"
	_, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(0, raw, Defaults{})
	if len(errs) != 1 || errs[0].Field != "volume" || errs[0].Reason != ReasonNegativeValue {
		t.Errorf("got %v, want one volume NegativeValue", errs)
	}
}

func TestMaterializeDefaults(t *testing.T) {
	t.Run("wallet falls back to defaults", func(t *testing.T) {
		raw := baseRow()
		delete(raw, "wallet_name")
		tx, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(0, raw, Defaults{WalletName: "Imported"})
		if len(errs) > 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if tx.WalletName != "Imported" {
			t.Errorf("wallet = %q, want Imported", tx.WalletName)
		}
	})

	t.Run("wallet missing without default", func(t *testing.T) {
		raw := baseRow()
		delete(raw, "wallet_name")
		_, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(0, raw, Defaults{})
		if len(errs) != 1 || errs[0].Field != "wallet_name" || errs[0].Reason != ReasonMissingField {
			t.Errorf("got %v, want one wallet_name MissingField", errs)
		}
	})

	t.Run("fee defaults to zero", func(t *testing.T) {
		raw := baseRow()
		delete(raw, "fee")
		tx := materializeOne(t, raw)
		wantDecimal(t, "fee", tx.Fee, "0")
		wantDecimal(t, "amount", tx.TransactionAmount, "30")
	})

	t.Run("type defaults to buy", func(t *testing.T) {
		raw := baseRow()
		delete(raw, "transaction_type")
		tx := materializeOne(t, raw)
		if tx.TransactionType != TypeBuy {
			t.Errorf("type = %q, want buy", tx.TransactionType)
		}
	})
}

func TestMaterializeCollectsAllRowErrors(t *testing.T) {
	raw := map[string]string{"asset_name": "AAPL", "currency": "USD", "asset_item_price": "10", "volume": "1"}
	_, errs := NewMaterializer(mapping.DefaultSchema()).Materialize(0, raw, Defaults{})

	// wallet_name and date are both missing; both must be reported.
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	if !fields["wallet_name"] || !fields["date"] {
		t.Errorf("errors %v do not cover wallet_name and date", errs)
	}
}
