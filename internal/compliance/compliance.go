// Package compliance turns generated plan text into a structured building-code report.
package compliance

import (
	"fmt"
	"strings"

	"github.com/planix/backend/internal/domain"
)

// Mode selects how reports are produced.
type Mode string

const (
	// ModeOffline returns the canonical report without inspecting any text.
	ModeOffline Mode = "offline"
	// ModeText derives the report from a provider's compliance review.
	ModeText Mode = "text"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOffline, ModeText:
		return m, nil
	case "":
		return ModeText, nil
	default:
		return "", fmt.Errorf("unknown compliance mode %q", s)
	}
}

const (
	offlineScore   = 95
	passScore      = 92
	violationScore = 75

	maxRecommendations = 5
	maxCriticalIssues  = 3
)

// Evaluator produces compliance reports in a fixed mode.
type Evaluator struct {
	mode Mode
}

// NewEvaluator creates an Evaluator for mode.
func NewEvaluator(mode Mode) *Evaluator {
	return &Evaluator{mode: mode}
}

// Mode returns the evaluator's mode.
func (e *Evaluator) Mode() Mode {
	return e.mode
}

// Evaluate builds a report for text. The plan spec is accepted for callers that
// need a uniform signature; neither mode depends on it. Evaluate never fails:
// unusable text yields the failure report.
func (e *Evaluator) Evaluate(text string, _ domain.PlanSpec) domain.ComplianceReport {
	if e.mode == ModeOffline {
		return Offline()
	}
	return FromText(text)
}

// Offline returns the canonical report used when no review is available.
func Offline() domain.ComplianceReport {
	return domain.ComplianceReport{
		OverallCompliance: true,
		Checks: map[string]domain.ComplianceCheck{
			"minimumRoomSize":  passed("All rooms meet minimum size requirements as per IS 875"),
			"ventilation":      passed("Adequate ventilation provided as per NBC 2016"),
			"naturalLight":     passed("Natural light requirements met as per IS 3370"),
			"fireSafety":       passed("Fire safety norms complied as per NBC 2016"),
			"structuralSafety": passed("Structural safety standards met as per IS 456"),
			"seismicDesign":    passed("Seismic design requirements met as per IS 1893"),
		},
		Recommendations: []string{
			"Consider adding cross-ventilation in all rooms",
			"Ensure proper drainage around the building",
			"Use earthquake-resistant construction techniques",
		},
		CriticalIssues:  []string{},
		ComplianceScore: offlineScore,
	}
}

// Failure is the report returned when no review could be obtained.
func Failure() domain.ComplianceReport {
	return domain.ComplianceReport{
		OverallCompliance: false,
		Checks:            map[string]domain.ComplianceCheck{},
		Recommendations:   []string{"Unable to verify compliance - please consult local architect"},
		CriticalIssues:    []string{"API error - manual compliance check required"},
		ComplianceScore:   0,
	}
}

// codeChecks maps a check name to the code reference that must appear in the
// review for the check to pass.
var codeChecks = []struct {
	name, code, message string
}{
	{"structuralSafety", "IS 456", "Structural design compliance analyzed"},
	{"seismicDesign", "IS 1893", "Seismic design requirements reviewed"},
	{"buildingLoads", "IS 875", "Building loads compliance checked"},
	{"nationalCode", "NBC", "National Building Code compliance verified"},
}

// FromText derives a report by keyword matching over a compliance review.
func FromText(text string) domain.ComplianceReport {
	if strings.TrimSpace(text) == "" {
		return Failure()
	}
	lower := strings.ToLower(text)
	violation := strings.Contains(lower, "violation")

	report := domain.ComplianceReport{
		OverallCompliance: !violation && !strings.Contains(lower, "non-compliant"),
		Checks:            make(map[string]domain.ComplianceCheck, len(codeChecks)),
		Recommendations:   matchingLines(text, maxRecommendations, "recommend", "suggest"),
		CriticalIssues:    matchingLines(text, maxCriticalIssues, "critical", "violation"),
		ComplianceScore:   passScore,
	}
	if violation {
		report.ComplianceScore = violationScore
	}
	for _, c := range codeChecks {
		status := domain.CheckWarning
		if strings.Contains(text, c.code) {
			status = domain.CheckPassed
		}
		report.Checks[c.name] = domain.ComplianceCheck{Status: status, Message: c.message}
	}
	return report
}

// matchingLines returns up to limit trimmed, non-empty lines containing any keyword.
func matchingLines(text string, limit int, keywords ...string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, line)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func passed(msg string) domain.ComplianceCheck {
	return domain.ComplianceCheck{Status: domain.CheckPassed, Message: msg}
}
