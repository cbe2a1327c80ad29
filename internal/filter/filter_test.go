package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/staylens/internal/models"
)

func listing(id, hood, ptype string, price float64, superhost models.TriState) models.Listing {
	return models.Listing{
		ID:            id,
		Neighbourhood: hood,
		PropertyType:  ptype,
		Price:         price,
		Superhost:     superhost,
	}
}

func fixture() []models.Listing {
	return []models.Listing{
		listing("1", "Camden", "Entire home", 100, models.True),
		listing("2", "Camden", "Private room", 250, models.False),
		listing("3", "Hackney", "Entire home", 80, models.Unknown),
		listing("4", "Westminster", "Hotel room", 400, models.True),
		listing("5", "Hackney", "Private room", 120, models.True),
	}
}

func apply(p Predicate, rows []models.Listing) []string {
	var ids []string
	for _, l := range rows {
		if p(l) {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func horizonPtr(h models.Horizon) *models.Horizon { return &h }

func TestBuild(t *testing.T) {
	rows := fixture()

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{
			name:     "no constraints",
			criteria: Criteria{},
			want:     []string{"1", "2", "3", "4", "5"},
		},
		{
			name:     "neighbourhoods",
			criteria: Criteria{Neighbourhoods: []string{"Camden", "Hackney"}},
			want:     []string{"1", "2", "3", "5"},
		},
		{
			name:     "neighbourhoods and price range",
			criteria: Criteria{Neighbourhoods: []string{"Camden", "Hackney"}, PriceRange: &Range{Min: 90, Max: 200}},
			want:     []string{"1", "5"},
		},
		{
			name:     "price bounds are inclusive",
			criteria: Criteria{PriceRange: &Range{Min: 100, Max: 250}},
			want:     []string{"1", "2", "5"},
		},
		{
			name:     "property types",
			criteria: Criteria{PropertyTypes: []string{"Private room"}},
			want:     []string{"2", "5"},
		},
		{
			name:     "superhost excludes unknown",
			criteria: Criteria{HostFlags: []models.HostFlag{models.FlagSuperhost}},
			want:     []string{"1", "4", "5"},
		},
		{
			name:     "horizon places no row constraint",
			criteria: Criteria{Horizon: horizonPtr(models.Horizon30)},
			want:     []string{"1", "2", "3", "4", "5"},
		},
		{
			name:     "unmatched value",
			criteria: Criteria{Neighbourhoods: []string{"Islington"}},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, apply(p, rows))
		})
	}
}

func TestBuild_EmptyEqualsAbsentUnderMatchAll(t *testing.T) {
	rows := fixture()

	absent, err := Build(Criteria{PriceRange: &Range{Min: 0, Max: 300}})
	require.NoError(t, err)
	empty, err := Build(Criteria{
		Neighbourhoods: []string{},
		PropertyTypes:  []string{},
		HostFlags:      []models.HostFlag{},
		PriceRange:     &Range{Min: 0, Max: 300},
	})
	require.NoError(t, err)

	assert.Equal(t, apply(absent, rows), apply(empty, rows))
}

func TestBuilder_MatchNone(t *testing.T) {
	rows := fixture()
	b := Builder{Policy: MatchNone}

	p, err := b.Build(Criteria{Neighbourhoods: []string{}})
	require.NoError(t, err)
	assert.Empty(t, apply(p, rows))

	p, err = b.Build(Criteria{Neighbourhoods: nil})
	require.NoError(t, err)
	assert.Len(t, apply(p, rows), len(rows), "absent axis is still unconstrained")
}

func TestBuild_InvalidRange(t *testing.T) {
	tests := []struct {
		name string
		r    Range
	}{
		{"min above max", Range{Min: 300, Max: 100}},
		{"nan min", Range{Min: math.NaN(), Max: 100}},
		{"nan max", Range{Min: 0, Max: math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(Criteria{PriceRange: &tt.r})
			assert.Nil(t, p)

			var rangeErr *InvalidRangeError
			require.True(t, errors.As(err, &rangeErr))
		})
	}

	p, err := Build(Criteria{PriceRange: &Range{Min: 150, Max: 150}})
	require.NoError(t, err, "degenerate range is valid")
	assert.Empty(t, apply(p, fixture()))
}

func TestBuild_UnknownHorizonAndFlag(t *testing.T) {
	_, err := Build(Criteria{Horizon: horizonPtr(models.Horizon(45))})
	assert.ErrorIs(t, err, models.ErrUnknownHorizon)

	_, err = Build(Criteria{HostFlags: []models.HostFlag{"wizard"}})
	assert.ErrorIs(t, err, models.ErrUnknownHostFlag)
}

func TestBuild_FullNeighbourhoodSetReturnsEverything(t *testing.T) {
	rows := fixture()
	seen := map[string]struct{}{}
	var all []string
	for _, l := range rows {
		if _, ok := seen[l.Neighbourhood]; !ok {
			seen[l.Neighbourhood] = struct{}{}
			all = append(all, l.Neighbourhood)
		}
	}

	p, err := Build(Criteria{Neighbourhoods: all})
	require.NoError(t, err)
	assert.Len(t, apply(p, rows), len(rows))
}

func TestBuild_CriteriaMutationAfterBuild(t *testing.T) {
	hoods := []string{"Camden"}
	p, err := Build(Criteria{Neighbourhoods: hoods})
	require.NoError(t, err)

	hoods[0] = "Hackney"
	assert.Equal(t, []string{"1", "2"}, apply(p, fixture()))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, MatchAll, p)

	p, err = ParsePolicy("none")
	require.NoError(t, err)
	assert.Equal(t, MatchNone, p)

	_, err = ParsePolicy("some")
	assert.Error(t, err)
}
