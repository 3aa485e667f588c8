package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTiers(t *testing.T) {
	tiers := DefaultTiers()

	assert.Equal(t, 3, tiers.Limit(TierFree, ResourcePlan))
	assert.Equal(t, 5, tiers.Limit(TierFree, ResourceExport))
	for _, id := range []string{TierPro, TierEnterprise} {
		assert.Equal(t, Unlimited, tiers.Limit(id, ResourcePlan), id)
		assert.Equal(t, Unlimited, tiers.Limit(id, ResourceExport), id)
	}
	assert.Len(t, tiers.All(), 3)
}

func TestTierTable_UnknownResolvesToFree(t *testing.T) {
	tiers := DefaultTiers()
	assert.Equal(t, TierFree, tiers.Resolve("platinum").ID)
	assert.Equal(t, 3, tiers.Limit("platinum", ResourcePlan))

	_, ok := tiers.Get("platinum")
	assert.False(t, ok)
}

func TestTierTable_AllReturnsCopy(t *testing.T) {
	tiers := DefaultTiers()
	all := tiers.All()
	all[0].PlanLimit = 999

	assert.Equal(t, 3, tiers.Limit(TierFree, ResourcePlan))
}

func TestParseTiers_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"invalid yaml", "tiers: [\n"},
		{"missing tier", "tiers:\n  - id: free\n    planLimit: 3\n  - id: pro\n    planLimit: -1\n"},
		{"bad limit", "tiers:\n  - id: free\n    planLimit: -2\n  - id: pro\n  - id: enterprise\n"},
		{"duplicate", "tiers:\n  - id: free\n  - id: free\n  - id: pro\n  - id: enterprise\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTiers([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTiers_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	doc := "tiers:\n  - id: free\n    planLimit: 10\n    exportLimit: 20\n  - id: pro\n    price: 100\n    planLimit: -1\n    exportLimit: -1\n  - id: enterprise\n    price: 200\n    planLimit: -1\n    exportLimit: -1\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	tiers, err := LoadTiers(path)
	require.NoError(t, err)
	assert.Equal(t, 10, tiers.Limit(TierFree, ResourcePlan))
	assert.Equal(t, 20, tiers.Limit(TierFree, ResourceExport))

	pro, _ := tiers.Get(TierPro)
	assert.True(t, pro.Paid())
}

func TestLoadTiers_MissingFile(t *testing.T) {
	_, err := LoadTiers(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
