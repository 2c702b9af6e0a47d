package pipeline

import "fmt"

// Row error reasons. A reason classifies why a single source row could not
// be materialized; reasons are stable strings so they can be stored and
// aggregated downstream.
const (
	ReasonMissingField    = "MissingField"
	ReasonInvalidNumber   = "InvalidNumber"
	ReasonInvalidDate     = "InvalidDate"
	ReasonInvalidCurrency = "InvalidCurrency"
	ReasonNegativeValue   = "NegativeValue"
)

// RowError records one validation failure on one data row. Row is the
// zero-based index of the row beneath the detected header. Row errors are
// never fatal: the pipeline collects them and keeps going.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (e RowError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("row %d: field %q: %s (%s)", e.Row, e.Field, e.Reason, e.Detail)
	}
	return fmt.Sprintf("row %d: field %q: %s", e.Row, e.Field, e.Reason)
}
