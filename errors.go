package folio

import (
	"fmt"
	"strings"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// ValidationError reports malformed input. It is always returned before the store is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that nothing matches a name.
type NotFoundError struct {
	Kind string // "ticker", "account", "asset", "lot"...
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no %s matches %q", e.Kind, e.Name)
}

// AmbiguityError reports several plausible matches for a name.
type AmbiguityError struct {
	Kind       string
	Name       string
	Candidates []string
}

func (e AmbiguityError) Error() string {
	return fmt.Sprintf("%q matches several %ss (%s), please name exactly one", e.Name, e.Kind, strings.Join(e.Candidates, ", "))
}

// InsufficientSharesError reports a sale asking for more shares than a lot date holds.
type InsufficientSharesError struct {
	Symbol    string
	Date      date.Date
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e InsufficientSharesError) Error() string {
	return fmt.Sprintf("not enough %s shares purchased on %v: %s available, %s requested", e.Symbol, e.Date, e.Available, e.Requested)
}

// ServiceError wraps a failure of an external collaborator (reasoning service, store, quote provider).
type ServiceError struct {
	Service string
	Err     error
}

func (e ServiceError) Error() string { return e.Service + " unavailable: " + e.Err.Error() }
func (e ServiceError) Unwrap() error { return e.Err }
