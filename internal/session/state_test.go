package session

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(filiais ...string) *domain.Dataset {
	out := make([]domain.Row, len(filiais))
	for i, f := range filiais {
		out[i] = domain.Row{Codigo: f + "-" + string(rune('a'+i)), Filial: f}
	}
	return domain.NewDataset(out)
}

func TestState_EffectiveDatasetBeforeLoad(t *testing.T) {
	st := NewState()

	assert.False(t, st.HasData())
	eff := st.EffectiveDataset()
	require.NotNil(t, eff)
	assert.Equal(t, 0, eff.Len())
}

func TestState_EffectiveDatasetFallsBackToFull(t *testing.T) {
	st := NewState()
	full := rows("01", "02", "02")
	st.SetFullDataset(full)

	require.NoError(t, st.SetFilterSelection(domain.Selection{domain.ColFilial: {"09"}}))
	require.NoError(t, st.RecomputeFiltered())

	assert.Equal(t, 0, st.FilteredDataset().Len())
	assert.Same(t, full, st.EffectiveDataset())
}

func TestState_EffectiveDatasetPrefersFiltered(t *testing.T) {
	st := NewState()
	st.SetFullDataset(rows("01", "02", "02"))

	require.NoError(t, st.SetFilterSelection(domain.Selection{domain.ColFilial: {"02"}}))
	require.NoError(t, st.RecomputeFiltered())

	eff := st.EffectiveDataset()
	assert.Equal(t, 2, eff.Len())
	assert.Same(t, st.FilteredDataset(), eff)
}

func TestState_NewFetchDropsStaleFilter(t *testing.T) {
	st := NewState()
	st.SetFullDataset(rows("01", "02"))
	require.NoError(t, st.SetFilterSelection(domain.Selection{domain.ColFilial: {"02"}}))
	require.NoError(t, st.RecomputeFiltered())
	require.Equal(t, 1, st.EffectiveDataset().Len())

	next := rows("03", "04", "05")
	st.SetFullDataset(next)

	assert.Nil(t, st.FilteredDataset())
	assert.Empty(t, st.Selection())
	assert.Same(t, next, st.EffectiveDataset())

	// recomputing without a new selection keeps everything
	require.NoError(t, st.RecomputeFiltered())
	assert.Equal(t, next.Rows, st.EffectiveDataset().Rows)
}

func TestState_InvalidSelectionKeepsPrevious(t *testing.T) {
	st := NewState()
	st.SetFullDataset(rows("01"))
	require.NoError(t, st.SetFilterSelection(domain.Selection{domain.ColFilial: {"01"}}))

	err := st.SetFilterSelection(domain.Selection{"NOPE": {"x"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidSelection))
	assert.Equal(t, domain.Selection{domain.ColFilial: {"01"}}, st.Selection())
}

func TestState_RecomputeWithoutData(t *testing.T) {
	st := NewState()
	err := st.RecomputeFiltered()
	assert.True(t, errors.Is(err, domain.ErrNoData))
	assert.Nil(t, st.FilteredDataset())
}

func TestState_SelectionIsCopied(t *testing.T) {
	st := NewState()
	st.SetFullDataset(rows("01"))
	sel := domain.Selection{domain.ColFilial: {"01"}}
	require.NoError(t, st.SetFilterSelection(sel))

	sel[domain.ColFilial][0] = "99"
	assert.Equal(t, []string{"01"}, st.Selection()[domain.ColFilial])
}

func TestState_DateRange(t *testing.T) {
	st := NewState()
	assert.True(t, st.DateRange().IsZero())

	r := domain.DateRange{
		Start: civil.Date{Year: 2024, Month: 1, Day: 1},
		End:   civil.Date{Year: 2024, Month: 1, Day: 31},
	}
	st.SetDateRange(r)
	assert.Equal(t, r, st.DateRange())
}
