package generation

import (
	"fmt"
	"strings"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/estimate"
)

const architectSystemPrompt = "You are a senior architect with 20+ years of experience in Indian construction. " +
	"You create detailed, buildable floor plans that comply with Indian building standards. " +
	"Always give specific dimensions, materials and construction details."

const inspectorSystemPrompt = "You are a certified building code compliance officer. " +
	"Give a detailed, accurate compliance analysis against Indian building standards."

func planPrompt(spec domain.PlanSpec) string {
	area, rooms, bathrooms, location := specDefaults(spec)
	return fmt.Sprintf(`Create a detailed floor plan for an Indian construction project.

PROJECT DETAILS:
- Description: %s
- Total Area: %g sq ft
- Bedrooms: %d
- Bathrooms: %d
- Location: %s
- Style: %s
- Special Features: %s

REQUIREMENTS:
1. Room-by-room layout with exact dimensions
2. Compliance with IS 875, IS 1893, IS 456 and NBC 2016
3. Structural specifications suitable for the local climate
4. Ventilation and natural lighting strategy
5. Material recommendations and cost-effective construction methods
6. Seismic resistance appropriate for %s
7. Electrical and plumbing layout suggestions`,
		spec.Description, area, rooms, bathrooms, location, orDefault(spec.Style, "Modern"),
		orDefault(strings.Join(spec.Features, ", "), "Standard features"), location)
}

func compliancePrompt(plan string, spec domain.PlanSpec) string {
	area, rooms, bathrooms, location := specDefaults(spec)
	return fmt.Sprintf(`Analyze this floor plan for strict compliance.

FLOOR PLAN:
%s

SPECIFICATIONS:
- Area: %g sq ft
- Rooms: %d
- Bathrooms: %d
- Location: %s

Check IS 875 (design loads), IS 1893 (earthquake resistant design), IS 456 (reinforced concrete),
NBC 2016 and the state building bylaws for %s. List specific violations, recommendations and
critical issues, one per line.`, plan, area, rooms, bathrooms, location, location)
}

// CannedPlan renders a deterministic plan description from spec. It is used
// when no provider credential is configured and as the Fallback result.
func CannedPlan(spec domain.PlanSpec) string {
	area, rooms, bathrooms, location := specDefaults(spec)

	var b strings.Builder
	fmt.Fprintf(&b, "FLOOR PLAN DESIGN - %s\n\n", spec.Description)
	b.WriteString("LAYOUT OVERVIEW:\n")
	fmt.Fprintf(&b, "This %g sq ft floor plan features %d bedrooms and %d bathrooms, designed for %s conditions.\n\n",
		area, rooms, bathrooms, location)

	b.WriteString("ROOM LAYOUT:\n")
	b.WriteString("- Living Room: 12' x 14' with large windows for natural light\n")
	b.WriteString("- Kitchen: 8' x 10' with modern modular design\n")
	b.WriteString("- Master Bedroom: 12' x 10' with attached bathroom\n")
	if rooms > 1 {
		b.WriteString("- Additional Bedroom(s): 10' x 10' each\n")
	}
	b.WriteString("- Bathrooms: Standard 6' x 8' with proper ventilation\n\n")

	b.WriteString("SPECIAL FEATURES:\n")
	if len(spec.Features) == 0 {
		b.WriteString("- Standard fixtures and fittings\n")
	}
	for _, f := range spec.Features {
		fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(f, "_", " "))
	}

	b.WriteString("\nINDIAN STANDARD COMPLIANCE:\n")
	b.WriteString("- IS 875 compliance for structural loads\n")
	b.WriteString("- IS 1893 seismic design considerations\n")
	b.WriteString("- NBC 2016 fire safety provisions\n")
	b.WriteString("- Adequate ventilation as per building codes\n\n")

	b.WriteString("CONSTRUCTION SPECIFICATIONS:\n")
	b.WriteString("- RCC frame structure with brick masonry\n")
	b.WriteString("- Standard 9' ceiling height\n")
	b.WriteString("- Cross-ventilation in all rooms\n")
	b.WriteString("- Anti-termite treatment for foundation\n")
	return b.String()
}

func specDefaults(spec domain.PlanSpec) (float64, int, int, string) {
	area := spec.Area
	if area <= 0 {
		area = estimate.DefaultArea
	}
	rooms := spec.Rooms
	if rooms <= 0 {
		rooms = estimate.DefaultRooms
	}
	bathrooms := spec.Bathrooms
	if bathrooms <= 0 {
		bathrooms = estimate.DefaultBathrooms
	}
	return area, rooms, bathrooms, orDefault(spec.Location, "Indian urban")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
