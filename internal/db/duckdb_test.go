package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-atp/internal/inventory"
)

func TestReplaceAndLoad(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()
	ctx := t.Context()

	_, err = LoadInventory(ctx, db)
	assert.ErrorIs(t, err, inventory.ErrEmpty)

	n, err := ReplaceRows(ctx, db, []inventory.Row{
		{SpeciesID: 105793, CommonName: "bull shark", Project: "FACT", Year: 2017, Month: 3},
		{SpeciesID: 105793, CommonName: "bull shark", Project: "TQCS", Year: 2019, Month: 6},
		{SpeciesID: 159353, CommonName: "cobia", Project: "FACT", Year: 2012, Month: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	inv, err := LoadInventory(ctx, db)
	require.NoError(t, err)
	first, ok := inv.First()
	require.True(t, ok)
	assert.Equal(t, 105793, first.SpeciesID)
	assert.Equal(t, []int{2017, 2019}, inv.YearsFor(105793, inventory.AllProjects))
	assert.Equal(t, "Unknown", first.ScientificName)

	// Replacing drops the previous rows.
	_, err = ReplaceRows(ctx, db, inv.Rows()[:1])
	require.NoError(t, err)
	rows, err := InventoryRows(ctx, db)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestImportCSV(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()

	path := filepath.Join(t.TempDir(), "inventory.csv")
	csv := "aphia_id,common_name,scientific_name,project,year,month\n" +
		"105793,bull shark,Carcharhinus leucas,FACT,2017,3\n" +
		"105793,bull shark,Carcharhinus leucas,FACT,2017,4\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	n, err := ImportFile(t.Context(), db, path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	inv, err := LoadInventory(t.Context(), db)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, inv.MonthsFor(105793, "FACT", 2017))
}
