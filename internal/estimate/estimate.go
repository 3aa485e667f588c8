// Package estimate computes bulk material quantities for a building.
//
// quantity = area × baseFactor × (locationFactor × featureFactor × roomComplexity)
//
// where roomComplexity = 1 + 0.05×rooms + 0.10×bathrooms. Bricks are rounded to
// whole pieces, every other material to one decimal place.
package estimate

import (
	"math"
	"strings"

	"github.com/planix/backend/internal/domain"
)

// Defaults used when the specification omits a field.
const (
	DefaultArea      = 1000
	DefaultRooms     = 2
	DefaultBathrooms = 1
)

// Base quantities per square foot.
var baseFactors = struct {
	bricks, cement, steel, sand, aggregate float64
}{
	bricks:    45,
	cement:    0.45,
	steel:     4.5,
	sand:      0.6,
	aggregate: 0.4,
}

// Display units.
const (
	UnitBricks    = "pieces"
	UnitCement    = "bags (50kg)"
	UnitSteel     = "kg (Fe415)"
	UnitSand      = "cubic feet"
	UnitAggregate = "cubic feet (20mm)"
)

var locationFactors = map[string]float64{
	"mumbai":    1.2,
	"delhi":     1.15,
	"bangalore": 1.1,
	"chennai":   1.1,
	"hyderabad": 1.05,
	"pune":      1.1,
	"kolkata":   1.0,
	"ahmedabad": 1.0,
}

var featureFactors = map[string]float64{
	"swimming_pool": 1.3,
	"basement":      1.4,
	"garden":        1.1,
	"parking":       1.2,
	"terrace":       1.15,
	"balcony":       1.1,
}

// LocationFactor returns the regional multiplier for a free-text location.
// Only the first comma-separated segment is considered.
func LocationFactor(location string) float64 {
	city, _, _ := strings.Cut(location, ",")
	if f, ok := locationFactors[strings.ToLower(strings.TrimSpace(city))]; ok {
		return f
	}
	return 1.0
}

// FeatureFactor returns the product of the multipliers of known features.
// Unknown features do not change the result.
func FeatureFactor(features []string) float64 {
	f := 1.0
	for _, name := range features {
		if v, ok := featureFactors[strings.ToLower(strings.TrimSpace(name))]; ok {
			f *= v
		}
	}
	return f
}

// RoomComplexity returns the multiplier for the number of rooms and bathrooms.
func RoomComplexity(rooms, bathrooms int) float64 {
	return 1 + 0.05*float64(rooms) + 0.1*float64(bathrooms)
}

// Estimate computes the material estimate for spec. Missing area, rooms and
// bathrooms fall back to the package defaults.
func Estimate(spec domain.PlanSpec) domain.MaterialEstimate {
	area := spec.Area
	if area <= 0 {
		area = DefaultArea
	}
	rooms := spec.Rooms
	if rooms <= 0 {
		rooms = DefaultRooms
	}
	bathrooms := spec.Bathrooms
	if bathrooms <= 0 {
		bathrooms = DefaultBathrooms
	}

	total := LocationFactor(spec.Location) * FeatureFactor(spec.Features) * RoomComplexity(rooms, bathrooms)
	qty := func(base float64) float64 { return area * base * total }

	return domain.MaterialEstimate{
		Bricks:    domain.Material{Quantity: math.Round(qty(baseFactors.bricks)), Unit: UnitBricks},
		Cement:    domain.Material{Quantity: round1(qty(baseFactors.cement)), Unit: UnitCement},
		Steel:     domain.Material{Quantity: round1(qty(baseFactors.steel)), Unit: UnitSteel},
		Sand:      domain.Material{Quantity: round1(qty(baseFactors.sand)), Unit: UnitSand},
		Aggregate: domain.Material{Quantity: round1(qty(baseFactors.aggregate)), Unit: UnitAggregate},
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
