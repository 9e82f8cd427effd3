// Package criteria builds composite equality predicates over optional scoping
// fields and renders them for the Postgres and in-memory backends.
package criteria

import (
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/amgate/internal/models"
)

// Field is a column name. Fields come from package constants, never from input.
type Field string

const (
	Domain           Field = "domain"
	Client           Field = "client"
	IdentityProvider Field = "identity_provider"
	Username         Field = "username"
	UserID           Field = "user_id"
	ClientID         Field = "client_id"
	Scope            Field = "scope"
)

// Condition is a single field = value clause
type Condition struct {
	Field Field
	Value string
}

// Eq builds a Condition
func Eq(field Field, value string) Condition {
	return Condition{Field: field, Value: value}
}

// Filter is an AND of conditions, optionally restricted to records visible at a
// point in time.
type Filter struct {
	Conditions []Condition
	VisibleAt  *time.Time
}

// Build keeps the conditions that carry a value, in order
func Build(conds ...Condition) Filter {
	f := Filter{}
	for _, c := range conds {
		if c.Value == "" {
			continue
		}
		f.Conditions = append(f.Conditions, c)
	}
	return f
}

// IsEmpty reports whether no scoping condition is present.
// The visibility restriction does not count as scoping.
func (f Filter) IsEmpty() bool {
	return len(f.Conditions) == 0
}

// Visible returns a copy of f restricted to records whose expiry is unset or after now
func (f Filter) Visible(now time.Time) Filter {
	out := Filter{Conditions: append([]Condition(nil), f.Conditions...)}
	t := now
	out.VisibleAt = &t
	return out
}

// ForDelete validates f for a bulk delete. An empty predicate would match the whole
// table and is rejected with models.ErrInvalidQuery.
func (f Filter) ForDelete() (Filter, error) {
	if f.IsEmpty() {
		return Filter{}, models.ErrInvalidQuery
	}
	return f, nil
}

// RequireAll builds a filter that fails with models.ErrInvalidQuery if any of the
// given conditions is missing its value. Used by the named delete variants.
func RequireAll(conds ...Condition) (Filter, error) {
	for _, c := range conds {
		if c.Value == "" {
			return Filter{}, fmt.Errorf("%w: %s is required", models.ErrInvalidQuery, c.Field)
		}
	}
	return Build(conds...).ForDelete()
}

// SQL renders the WHERE clause body and its positional arguments. expiryColumn names
// the nullable expiry column used when the filter carries a visibility restriction.
// An empty filter renders as TRUE.
func (f Filter) SQL(expiryColumn string) (string, []any) {
	return f.SQLFrom(expiryColumn, 1)
}

// SQLFrom is SQL with placeholders numbered from start
func (f Filter) SQLFrom(expiryColumn string, start int) (string, []any) {
	clauses := make([]string, 0, len(f.Conditions)+1)
	args := make([]any, 0, len(f.Conditions)+1)
	n := start

	for _, c := range f.Conditions {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", c.Field, n))
		args = append(args, c.Value)
		n++
	}

	if f.VisibleAt != nil {
		clauses = append(clauses, fmt.Sprintf("(%s IS NULL OR %s > $%d)", expiryColumn, expiryColumn, n))
		args = append(args, *f.VisibleAt)
	}

	if len(clauses) == 0 {
		return "TRUE", args
	}
	return strings.Join(clauses, " AND "), args
}

// Record exposes a stored record's fields to Match
type Record interface {
	FieldValue(Field) string
	Expiry() *time.Time
}

// Match evaluates f against a record in memory
func (f Filter) Match(r Record) bool {
	for _, c := range f.Conditions {
		if r.FieldValue(c.Field) != c.Value {
			return false
		}
	}
	if f.VisibleAt != nil {
		if exp := r.Expiry(); exp != nil && !exp.After(*f.VisibleAt) {
			return false
		}
	}
	return true
}

// String is used in log attributes
func (f Filter) String() string {
	parts := make([]string, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		parts = append(parts, fmt.Sprintf("%s=%s", c.Field, c.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
