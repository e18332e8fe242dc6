package reporting

import (
	"fmt"
	"strings"
	"time"

	"synth-cohort/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Summary

	// Header
	sb.WriteString("# Cohort Report\n\n")
	if !r.GeneratedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	}
	if r.CohortID != "" {
		sb.WriteString(fmt.Sprintf("Cohort: `%s`\n\n", r.CohortID))
	}

	// Population
	sb.WriteString("## Population\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Subjects | %d |\n", s.Total))
	for _, p := range domain.Phases {
		sb.WriteString(fmt.Sprintf("| %s phase | %d (%.1f%%) |\n", titlePhase(p), s.PhaseCounts[p], s.PhasePercentages[p]))
	}
	for _, m := range domain.DeliveryMethods {
		sb.WriteString(fmt.Sprintf("| %s | %d (%.1f%%) |\n", m, s.DeliveryCounts[m], s.DeliveryPercentages[m]))
	}
	sb.WriteString(fmt.Sprintf("| Age range | %d-%d (mean %.1f) |\n", s.Age.Min, s.Age.Max, s.Age.Mean))
	sb.WriteString("\n")

	// Phase statistics
	sb.WriteString("## Phase Statistics\n\n")
	if s.Total > 0 {
		sb.WriteString("| Phase | N | Mean Glucose | Median Glucose | Mean Insulin | Median Insulin |\n")
		sb.WriteString("|-------|---|--------------|----------------|--------------|----------------|\n")
		for _, p := range domain.Phases {
			ps := s.ByPhase[p]
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %.2f | %.2f |\n",
				titlePhase(p), ps.Count, ps.MeanGlucose, ps.MedianGlucose, ps.MeanInsulin, ps.MedianInsulin))
		}
	} else {
		sb.WriteString("No subjects.\n")
	}
	sb.WriteString("\n")

	// Target checks
	sb.WriteString("## Target Checks\n\n")
	sb.WriteString("| Check | Target | Actual | Status |\n")
	sb.WriteString("|-------|--------|--------|--------|\n")
	for _, c := range r.Checks {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Target, c.Actual, status(c.Pass)))
	}
	sb.WriteString("\n")

	if r.AllChecksPassed {
		sb.WriteString("**All checks passed.**\n")
	} else {
		sb.WriteString("**Some checks failed.**\n")
	}

	return sb.String()
}

// RenderText renders report as a plain-text console summary.
func RenderText(r *Report) string {
	var sb strings.Builder
	s := r.Summary
	rule := strings.Repeat("=", 70)
	thin := strings.Repeat("-", 70)

	sb.WriteString(rule + "\n")
	sb.WriteString("COHORT ANALYTICS\n")
	sb.WriteString(rule + "\n\n")

	sb.WriteString(fmt.Sprintf("Total Subjects: %d\n", s.Total))
	for _, p := range domain.Phases {
		sb.WriteString(fmt.Sprintf("  %s phase: %d (%.1f%%)\n", titlePhase(p), s.PhaseCounts[p], s.PhasePercentages[p]))
	}
	for _, m := range domain.DeliveryMethods {
		sb.WriteString(fmt.Sprintf("  %s: %d (%.1f%%)\n", m, s.DeliveryCounts[m], s.DeliveryPercentages[m]))
	}
	sb.WriteString("\n")

	for _, p := range domain.Phases {
		ps := s.ByPhase[p]
		if ps.Count == 0 {
			continue
		}
		sb.WriteString(strings.ToUpper(string(p)) + " PHASE STATISTICS\n")
		sb.WriteString(thin + "\n")
		sb.WriteString(fmt.Sprintf("  Sample size: %d subjects\n", ps.Count))
		sb.WriteString(fmt.Sprintf("  Mean nighttime glucose: %.2f mg/dL\n", ps.MeanGlucose))
		sb.WriteString(fmt.Sprintf("  Mean basal insulin: %.2f units/day\n\n", ps.MeanInsulin))
	}

	fol := s.ByPhase[domain.PhaseFollicular]
	lut := s.ByPhase[domain.PhaseLuteal]
	if fol.Count > 0 && lut.Count > 0 {
		sb.WriteString("PHASE COMPARISON (Luteal - Follicular)\n")
		sb.WriteString(thin + "\n")
		sb.WriteString(fmt.Sprintf("  Nighttime glucose difference: %+.2f mg/dL (%+.1f%%)\n",
			s.GlucoseDelta, pctChange(lut.MeanGlucose, fol.MeanGlucose)))
		sb.WriteString(fmt.Sprintf("  Basal insulin difference: %+.2f units/day (%+.1f%%)\n\n",
			lut.MeanInsulin-fol.MeanInsulin, pctChange(lut.MeanInsulin, fol.MeanInsulin)))
	}

	sb.WriteString("TARGET CHECKS\n")
	sb.WriteString(thin + "\n")
	for _, c := range r.Checks {
		sb.WriteString(fmt.Sprintf("  [%s] %s: %s (target %s)\n", status(c.Pass), c.Name, c.Actual, c.Target))
	}

	return sb.String()
}

func status(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func titlePhase(p domain.Phase) string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func pctChange(after, before float64) float64 {
	if before == 0 {
		return 0
	}
	return (after - before) / before * 100
}
