package inventory

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInventory = `[
  {
    "aphiaId": 105793,
    "speciesCommonName": "bull shark",
    "speciesScientificName": "Carcharhinus leucas",
    "byProject": {
      "_ALL": {"years": [{"year": 2019, "months": [6, 7]}, {"year": 2017, "months": [5, 3, 4, 4]}, {"year": "all", "months": [1]}]},
      "FACT": {"years": [{"year": 2017, "months": [3]}]},
      "BLKTP": {"years": [{"year": 2019, "months": [13, 7]}]}
    }
  },
  {
    "aphiaId": 159353,
    "speciesCommonName": "cobia",
    "speciesScientificName": "Rachycentron canadum",
    "byProject": {
      "_ALL": {"years": [{"year": 2012, "months": []}]}
    }
  }
]`

func decodeSample(t *testing.T) *Inventory {
	t.Helper()
	inv, err := Decode(strings.NewReader(sampleInventory))
	require.NoError(t, err)
	return inv
}

func TestDecode(t *testing.T) {
	inv := decodeSample(t)

	require.Equal(t, 2, inv.Len())
	first, ok := inv.First()
	require.True(t, ok)
	assert.Equal(t, 105793, first.SpeciesID)
	assert.Equal(t, "bull shark", first.CommonName)

	assert.Equal(t, []int{2017, 2019}, inv.YearsFor(105793, AllProjects))
	assert.Equal(t, []int{3, 4, 5}, inv.MonthsFor(105793, AllProjects, 2017))
	assert.Equal(t, []int{7}, inv.MonthsFor(105793, "BLKTP", 2019))
	assert.NoError(t, inv.Validate())
}

func TestLookupsOnUnknown(t *testing.T) {
	inv := decodeSample(t)

	_, ok := inv.FindSpecies(1)
	assert.False(t, ok)
	assert.Nil(t, inv.ProjectsFor(1))
	assert.Empty(t, inv.YearsFor(105793, "NOPE"))
	assert.NotNil(t, inv.YearsFor(105793, "NOPE"))
	assert.Empty(t, inv.MonthsFor(105793, AllProjects, 2018))

	var nilInv *Inventory
	assert.Equal(t, 0, nilInv.Len())
	_, ok = nilInv.FindSpecies(105793)
	assert.False(t, ok)
}

func TestProjectsForAllFirst(t *testing.T) {
	inv := decodeSample(t)
	assert.Equal(t, []string{AllProjects, "BLKTP", "FACT"}, inv.ProjectsFor(105793))
	assert.Equal(t, []string{AllProjects}, inv.ProjectsFor(159353))
}

func TestBuildSynthesizesAll(t *testing.T) {
	inv := Build([]Row{
		{SpeciesID: 7, CommonName: "red drum", Project: "TQCS", Year: 2015, Month: 4},
		{SpeciesID: 7, Project: "TQCS", Year: 2015, Month: 2},
		{SpeciesID: 7, Project: "FSUGG", Year: 2013, Month: 9},
		{SpeciesID: 9, Project: "SCSOFL", Year: 2020, Month: 1},
	})

	require.Equal(t, 2, inv.Len())
	e, ok := inv.FindSpecies(7)
	require.True(t, ok)
	assert.Equal(t, "red drum", e.CommonName)
	assert.Equal(t, "Unknown", e.ScientificName)

	assert.Equal(t, []string{AllProjects, "FSUGG", "TQCS"}, inv.ProjectsFor(7))
	assert.Equal(t, []int{2013, 2015}, inv.YearsFor(7, AllProjects))
	assert.Equal(t, []int{2, 4}, inv.MonthsFor(7, AllProjects, 2015))
	assert.NoError(t, inv.Validate())
}

func TestRowsRoundTrip(t *testing.T) {
	inv := Build([]Row{
		{SpeciesID: 7, CommonName: "red drum", Project: "TQCS", Year: 2015, Month: 4},
		{SpeciesID: 7, Project: "FSUGG", Year: 2013, Month: 9},
		{SpeciesID: 9, CommonName: "snook", Project: "SCSOFL", Year: 2020, Month: 1},
	})
	rows := inv.Rows()
	assert.Equal(t, 6, len(rows), "four rows for species 7, two for species 9")
	assert.Equal(t, 7, rows[0].SpeciesID, "species order is kept")

	again := Build(rows)
	assert.Equal(t, inv.Species(), again.Species())
}

func TestValidateMissingAll(t *testing.T) {
	inv := New([]Entry{{
		SpeciesID: 1,
		ByProject: map[string]ProjectAvailability{"X": {Years: []YearAvailability{{Year: 2010}}}},
	}})
	assert.Error(t, inv.Validate())
}

func TestValidateEmpty(t *testing.T) {
	assert.ErrorIs(t, New(nil).Validate(), ErrEmpty)
	assert.ErrorIs(t, Build(nil).Validate(), ErrEmpty)

	var nilInv *Inventory
	assert.ErrorIs(t, nilInv.Validate(), ErrEmpty)
}

func TestPeriodJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Period
	}{
		{`"all"`, All},
		{`2017`, 2017},
		{`"3"`, 3},
		{`null`, All},
	}
	for _, tt := range tests {
		var p Period
		require.NoError(t, json.Unmarshal([]byte(tt.in), &p), tt.in)
		assert.Equal(t, tt.want, p, tt.in)
	}

	var p Period
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &p))
	assert.Error(t, json.Unmarshal([]byte(`-4`), &p))

	out, err := json.Marshal(struct {
		Year  Period `json:"year"`
		Month Period `json:"month"`
	}{2017, All})
	require.NoError(t, err)
	assert.JSONEq(t, `{"year": 2017, "month": "all"}`, string(out))
}

func TestHolderSwap(t *testing.T) {
	var h Holder
	assert.False(t, h.Loaded())

	inv := decodeSample(t)
	assert.Nil(t, h.Swap(inv))
	assert.True(t, h.Loaded())
	assert.Same(t, inv, h.Get())
}
