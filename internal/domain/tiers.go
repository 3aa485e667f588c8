package domain

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tier identifiers.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Unlimited is the limit sentinel for resources without a monthly cap.
const Unlimited = -1

// Resource is a metered resource counted against a monthly quota.
type Resource string

const (
	ResourcePlan   Resource = "plans"
	ResourceExport Resource = "exports"
)

//go:embed tiers.yaml
var defaultTiers []byte

// Tier describes a subscription tier and its monthly limits.
type Tier struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Price       int64    `yaml:"price" json:"price"`
	Currency    string   `yaml:"currency" json:"currency"`
	PlanLimit   int      `yaml:"planLimit" json:"monthlyPlansLimit"`
	ExportLimit int      `yaml:"exportLimit" json:"monthlyExportsLimit"`
	Features    []string `yaml:"features" json:"features"`
	Popular     bool     `yaml:"popular" json:"popular"`
}

// Paid reports whether the tier requires a payment.
func (t Tier) Paid() bool {
	return t.Price > 0
}

// Limit returns the monthly cap for a resource, or Unlimited.
func (t Tier) Limit(r Resource) int {
	if r == ResourceExport {
		return t.ExportLimit
	}
	return t.PlanLimit
}

// TierTable is the immutable set of tiers loaded at startup.
type TierTable struct {
	tiers []Tier
	byID  map[string]Tier
}

// LoadTiers reads the tier table from path, or the embedded default when path is empty.
func LoadTiers(path string) (*TierTable, error) {
	if path == "" {
		return ParseTiers(defaultTiers)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tiers file: %w", err)
	}
	return ParseTiers(data)
}

// DefaultTiers returns the embedded tier table. It panics if the embedded file is invalid.
func DefaultTiers() *TierTable {
	t, err := ParseTiers(defaultTiers)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTiers decodes and validates a YAML tier document.
func ParseTiers(data []byte) (*TierTable, error) {
	var doc struct {
		Tiers []Tier `yaml:"tiers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tiers: %w", err)
	}

	t := &TierTable{byID: make(map[string]Tier, len(doc.Tiers))}
	for _, tier := range doc.Tiers {
		if tier.PlanLimit < Unlimited || tier.ExportLimit < Unlimited {
			return nil, fmt.Errorf("tier %q: limits must be >= -1", tier.ID)
		}
		if _, dup := t.byID[tier.ID]; dup {
			return nil, fmt.Errorf("tier %q defined twice", tier.ID)
		}
		t.byID[tier.ID] = tier
		t.tiers = append(t.tiers, tier)
	}
	for _, id := range []string{TierFree, TierPro, TierEnterprise} {
		if _, ok := t.byID[id]; !ok {
			return nil, fmt.Errorf("tier %q is missing", id)
		}
	}
	return t, nil
}

// Get returns the tier with the given id.
func (t *TierTable) Get(id string) (Tier, bool) {
	tier, ok := t.byID[id]
	return tier, ok
}

// Resolve returns the tier with the given id, falling back to free.
func (t *TierTable) Resolve(id string) Tier {
	if tier, ok := t.byID[id]; ok {
		return tier
	}
	return t.byID[TierFree]
}

// Limit returns the monthly cap of resource r for the tier id.
func (t *TierTable) Limit(id string, r Resource) int {
	return t.Resolve(id).Limit(r)
}

// All returns the tiers in declaration order.
func (t *TierTable) All() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}
