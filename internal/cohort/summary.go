package cohort

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"synth-cohort/internal/domain"
)

// Summarize computes aggregate statistics over subjects.
// Medians use the empirical quantile. An empty input yields zero statistics.
func Summarize(subjects []domain.Subject) domain.Summary {
	s := domain.Summary{
		Total:               len(subjects),
		PhaseCounts:         make(map[domain.Phase]int, len(domain.Phases)),
		PhasePercentages:    make(map[domain.Phase]float64, len(domain.Phases)),
		DeliveryCounts:      make(map[domain.DeliveryMethod]int, len(domain.DeliveryMethods)),
		DeliveryPercentages: make(map[domain.DeliveryMethod]float64, len(domain.DeliveryMethods)),
		ByPhase:             make(map[domain.Phase]domain.PhaseStats, len(domain.Phases)),
	}

	glucose := make(map[domain.Phase][]float64)
	insulin := make(map[domain.Phase][]float64)
	ages := make([]float64, 0, len(subjects))

	for _, subj := range subjects {
		s.PhaseCounts[subj.Phase]++
		s.DeliveryCounts[subj.DeliveryMethod]++
		glucose[subj.Phase] = append(glucose[subj.Phase], subj.NightGlucose)
		insulin[subj.Phase] = append(insulin[subj.Phase], subj.BasalInsulin)
		ages = append(ages, float64(subj.Age))

		if len(ages) == 1 || subj.Age < s.Age.Min {
			s.Age.Min = subj.Age
		}
		if subj.Age > s.Age.Max {
			s.Age.Max = subj.Age
		}
	}

	for _, p := range domain.Phases {
		s.PhasePercentages[p] = percent(s.PhaseCounts[p], s.Total)
		s.ByPhase[p] = phaseStats(glucose[p], insulin[p])
	}
	for _, m := range domain.DeliveryMethods {
		s.DeliveryPercentages[m] = percent(s.DeliveryCounts[m], s.Total)
	}

	if len(ages) > 0 {
		s.Age.Mean = stat.Mean(ages, nil)
	}

	fol := s.ByPhase[domain.PhaseFollicular]
	lut := s.ByPhase[domain.PhaseLuteal]
	if fol.Count > 0 && lut.Count > 0 {
		s.GlucoseDelta = lut.MeanGlucose - fol.MeanGlucose
		if fol.MeanInsulin > 0 {
			s.InsulinRatio = lut.MeanInsulin / fol.MeanInsulin
		}
	}

	return s
}

func phaseStats(glucose, insulin []float64) domain.PhaseStats {
	if len(glucose) == 0 {
		return domain.PhaseStats{}
	}
	return domain.PhaseStats{
		Count:         len(glucose),
		MeanGlucose:   stat.Mean(glucose, nil),
		MeanInsulin:   stat.Mean(insulin, nil),
		MedianGlucose: median(glucose),
		MedianInsulin: median(insulin),
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}
