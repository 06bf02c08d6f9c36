// Package filter derives row subsets of a dataset from multiselect choices.
package filter

import (
	"fmt"
	"sort"

	"github.com/dvloznov/payables-dashboard/internal/domain"
)

// Apply returns the rows of ds that satisfy every non-empty constraint in sel,
// in their original order. Columns mapped to no values impose no constraint.
// The result never aliases ds.
func Apply(ds *domain.Dataset, sel domain.Selection) *domain.Dataset {
	if ds == nil {
		return domain.NewDataset(nil)
	}

	allowed := make(map[string]map[string]struct{})
	for col, values := range sel {
		if len(values) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		allowed[col] = set
	}

	out := &domain.Dataset{
		Columns: append([]string(nil), ds.Columns...),
		Rows:    make([]domain.Row, 0, len(ds.Rows)),
	}
	for _, row := range ds.Rows {
		if matches(row, allowed) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func matches(row domain.Row, allowed map[string]map[string]struct{}) bool {
	for col, set := range allowed {
		v, ok := row.Value(col)
		if !ok {
			return false
		}
		if _, hit := set[v]; !hit {
			return false
		}
	}
	return true
}

// Validate checks that every column named in sel exists in the schema of ds.
func Validate(ds *domain.Dataset, sel domain.Selection) error {
	for col := range sel {
		if !ds.HasColumn(col) {
			return fmt.Errorf("Validate: column %q: %w", col, domain.ErrInvalidSelection)
		}
	}
	return nil
}

// Options returns the sorted distinct values of column across ds.
// Null values are skipped.
func Options(ds *domain.Dataset, column string) []string {
	seen := make(map[string]struct{})
	options := []string{}
	if ds == nil {
		return options
	}
	for _, row := range ds.Rows {
		v, ok := row.Value(column)
		if !ok || v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		options = append(options, v)
	}
	sort.Strings(options)
	return options
}

// AllOptions returns Options for every filterable column.
func AllOptions(ds *domain.Dataset) map[string][]string {
	out := make(map[string][]string, len(domain.FilterColumns))
	for _, col := range domain.FilterColumns {
		out[col] = Options(ds, col)
	}
	return out
}
