package compliance

import (
	"strings"
	"testing"

	"github.com/planix/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffline(t *testing.T) {
	specs := []domain.PlanSpec{
		{},
		{Description: "3BHK villa", Area: 5000, Rooms: 8, Bathrooms: 6, Location: "Delhi"},
	}
	e := NewEvaluator(ModeOffline)
	for _, spec := range specs {
		r := e.Evaluate("this text contains a violation", spec)
		assert.True(t, r.OverallCompliance)
		assert.Equal(t, 95, r.ComplianceScore)
		assert.Len(t, r.Checks, 6)
		for name, c := range r.Checks {
			assert.Equal(t, domain.CheckPassed, c.Status, name)
		}
		assert.Len(t, r.Recommendations, 3)
		assert.Empty(t, r.CriticalIssues)
	}
}

func TestFromText_Clean(t *testing.T) {
	text := "The design follows IS 456 and IS 875.\nWe recommend a rainwater harvesting pit.\nNBC 2016 egress is satisfied."
	r := FromText(text)

	assert.True(t, r.OverallCompliance)
	assert.Equal(t, 92, r.ComplianceScore)
	assert.Equal(t, domain.CheckPassed, r.Checks["structuralSafety"].Status)
	assert.Equal(t, domain.CheckWarning, r.Checks["seismicDesign"].Status)
	assert.Equal(t, domain.CheckPassed, r.Checks["buildingLoads"].Status)
	assert.Equal(t, domain.CheckPassed, r.Checks["nationalCode"].Status)
	assert.Equal(t, []string{"We recommend a rainwater harvesting pit."}, r.Recommendations)
	assert.Empty(t, r.CriticalIssues)
}

func TestFromText_Violation(t *testing.T) {
	text := "Critical: stair width below minimum.\nSetback VIOLATION on the north side."
	r := FromText(text)

	assert.False(t, r.OverallCompliance)
	assert.Equal(t, 75, r.ComplianceScore)
	assert.Equal(t, []string{"Critical: stair width below minimum.", "Setback VIOLATION on the north side."}, r.CriticalIssues)
}

func TestFromText_NonCompliantWithoutViolation(t *testing.T) {
	r := FromText("Parking layout is Non-Compliant with local bylaws.")
	assert.False(t, r.OverallCompliance)
	assert.Equal(t, 92, r.ComplianceScore)
}

func TestFromText_CodeMatchIsCaseSensitive(t *testing.T) {
	r := FromText("reviewed against is 1893 and nbc")
	assert.Equal(t, domain.CheckWarning, r.Checks["seismicDesign"].Status)
	assert.Equal(t, domain.CheckWarning, r.Checks["nationalCode"].Status)
}

func TestFromText_Limits(t *testing.T) {
	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, "We suggest item", "critical item")
	}
	r := FromText(strings.Join(lines, "\n"))
	assert.Len(t, r.Recommendations, 5)
	assert.Len(t, r.CriticalIssues, 3)
}

func TestFromText_EmptyIsFailure(t *testing.T) {
	for _, text := range []string{"", "   \n\t"} {
		assert.Equal(t, Failure(), FromText(text))
	}
}

func TestFailure(t *testing.T) {
	r := Failure()
	assert.False(t, r.OverallCompliance)
	assert.Empty(t, r.Checks)
	assert.Equal(t, 0, r.ComplianceScore)
	assert.Len(t, r.Recommendations, 1)
	assert.Len(t, r.CriticalIssues, 1)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("OFFLINE")
	require.NoError(t, err)
	assert.Equal(t, ModeOffline, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeText, m)

	_, err = ParseMode("llm")
	assert.Error(t, err)
}
