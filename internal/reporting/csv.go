package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"synth-cohort/internal/domain"
)

// CSVHeader lists the columns written by RenderCSV.
var CSVHeader = []string{
	"subject_id", "age", "delivery_method", "lmp_date", "cycle_length", "cycle_phase",
	"basal_insulin", "nighttime_glucose",
	"cycle_response_id", "cycle_authored", "insulin_response_id", "insulin_authored",
}

// RenderCSV renders subject rows as CSV string, one line per subject in row order.
func RenderCSV(rows []*domain.SubjectRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString(strings.Join(CSVHeader, ","))
	sb.WriteString("\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%d,%s,%s,%s,%s,%s,%s,%s\n",
			r.SubjectID,
			r.Age,
			r.DeliveryMethod,
			r.LMPDate,
			r.CycleLength,
			r.CyclePhase,
			formatFloat(r.BasalInsulin),
			formatFloat(r.NightGlucose),
			r.CycleResponseID,
			r.CycleAuthored,
			r.InsulinResponse,
			r.InsulinAuthored,
		))
	}

	return sb.String()
}

// formatFloat prints the shortest representation, so 15.9 stays 15.9.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
