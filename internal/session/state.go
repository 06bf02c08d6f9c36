// Package session holds the per-session dashboard state and the registry
// that owns session lifecycles.
package session

import (
	"fmt"

	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/dvloznov/payables-dashboard/internal/filter"
)

// State is the mutable state of one interactive session. It is not safe for
// concurrent use; Session serializes access to it.
//
// Datasets handed to or returned from State are treated as immutable.
type State struct {
	dateRange domain.DateRange
	full      *domain.Dataset
	selection domain.Selection
	filtered  *domain.Dataset
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// SetDateRange records the payment-date window for the next fetch.
func (s *State) SetDateRange(r domain.DateRange) {
	s.dateRange = r
}

// DateRange returns the current payment-date window.
func (s *State) DateRange() domain.DateRange {
	return s.dateRange
}

// SetFullDataset replaces the full dataset wholesale. The previous filter
// selection and filtered dataset were derived from superseded data and are
// dropped.
func (s *State) SetFullDataset(ds *domain.Dataset) {
	if ds == nil {
		ds = domain.NewDataset(nil)
	}
	s.full = ds
	s.selection = nil
	s.filtered = nil
}

// FullDataset returns the result of the last successful fetch, or nil.
func (s *State) FullDataset() *domain.Dataset {
	return s.full
}

// HasData reports whether a fetch has completed in this session.
func (s *State) HasData() bool {
	return s.full != nil
}

// SetFilterSelection stores sel after checking its columns against the
// dataset schema. On error the previous selection is kept.
func (s *State) SetFilterSelection(sel domain.Selection) error {
	schema := s.full
	if schema == nil {
		schema = domain.NewDataset(nil)
	}
	if err := filter.Validate(schema, sel); err != nil {
		return fmt.Errorf("SetFilterSelection: %w", err)
	}
	s.selection = sel.Clone()
	return nil
}

// Selection returns a copy of the active filter selection.
func (s *State) Selection() domain.Selection {
	return s.selection.Clone()
}

// RecomputeFiltered re-derives the filtered dataset from the current full
// dataset and selection.
func (s *State) RecomputeFiltered() error {
	if s.full == nil {
		return fmt.Errorf("RecomputeFiltered: %w", domain.ErrNoData)
	}
	s.filtered = filter.Apply(s.full, s.selection)
	return nil
}

// FilteredDataset returns the last filter result, or nil.
func (s *State) FilteredDataset() *domain.Dataset {
	return s.filtered
}

// EffectiveDataset returns the filtered dataset when it has rows and the
// full dataset otherwise. Before any fetch it returns an empty dataset.
func (s *State) EffectiveDataset() *domain.Dataset {
	if !s.filtered.IsEmpty() {
		return s.filtered
	}
	if s.full != nil {
		return s.full
	}
	return domain.NewDataset(nil)
}
