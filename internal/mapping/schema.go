// Package mapping resolves unknown source columns onto the fixed transaction
// schema. Mappings are computed by an AI service and cached by the structural
// signature of the source table, so a file layout is only ever mapped once
// per schema version.
package mapping

// Target field names of the transaction schema.
const (
	FieldWalletName      = "wallet_name"
	FieldAssetName       = "asset_name"
	FieldAssetType       = "asset_type"
	FieldDate            = "date"
	FieldAssetItemPrice  = "asset_item_price"
	FieldVolume          = "volume"
	FieldCurrency        = "currency"
	FieldFee             = "fee"
	FieldAmount          = "transaction_amount"
	FieldTransactionType = "transaction_type"
	FieldNotes           = "notes"
)

// Field describes one target schema field for the AI service.
type Field struct {
	Name        string
	Description string
	Required    bool
}

// Schema is the ordered contract the AI service and the mapper validate
// against.
type Schema struct {
	Fields []Field
}

// DefaultSchema returns the transaction target schema.
func DefaultSchema() Schema {
	return Schema{Fields: []Field{
		{FieldWalletName, "Name of the wallet or account holding the transaction", true},
		{FieldAssetName, "Name or ticker of the asset (stock, crypto, fund, etc.)", true},
		{FieldAssetType, "Kind of asset (stock, crypto, bond, etf, other)", false},
		{FieldDate, "Transaction or record date", true},
		{FieldAssetItemPrice, "Price per unit/item of the asset", false},
		{FieldVolume, "Quantity or number of assets", false},
		{FieldCurrency, "Three-letter currency code (USD, EUR, ...)", true},
		{FieldFee, "Transaction fee, zero if not charged", false},
		{FieldAmount, "Total transaction amount, derivable from price and volume", false},
		{FieldTransactionType, "Direction of the transaction (buy, sell, deposit, withdrawal)", false},
		{FieldNotes, "Free-form notes or description", false},
	}}
}

// Has reports whether the schema contains the given target field.
func (s Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// FieldNames returns the target field names in schema order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}
