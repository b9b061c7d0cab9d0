package joblog

import (
	"math"
	"slices"

	"captioner/internal/job"
)

// Timing summarizes processing time relative to media duration across
// successful jobs.
type Timing struct {
	Jobs                   int
	Mean                   float64
	Median                 float64
	Min                    float64
	Max                    float64
	StdDev                 float64
	TotalVideoSeconds      float64
	TotalProcessingSeconds float64
}

// Conservative returns mean plus one standard deviation.
func (t Timing) Conservative() float64 {
	return t.Mean + t.StdDev
}

// AnalyzeTiming computes multiplier statistics over ok records that carry
// a media duration. The zero Timing is returned when none qualify.
func AnalyzeTiming(records []Record) Timing {
	var out Timing
	multipliers := make([]float64, 0, len(records))
	for _, rec := range records {
		if rec.Status != job.StatusOK || rec.VideoDuration <= 0 {
			continue
		}
		multipliers = append(multipliers, rec.TimeMultiplier)
		out.TotalVideoSeconds += rec.VideoDuration
		out.TotalProcessingSeconds += rec.ProcessingTime
	}
	out.Jobs = len(multipliers)
	if out.Jobs == 0 {
		return out
	}

	slices.Sort(multipliers)
	out.Min = multipliers[0]
	out.Max = multipliers[len(multipliers)-1]
	var sum float64
	for _, m := range multipliers {
		sum += m
	}
	out.Mean = sum / float64(out.Jobs)
	mid := out.Jobs / 2
	if out.Jobs%2 == 1 {
		out.Median = multipliers[mid]
	} else {
		out.Median = (multipliers[mid-1] + multipliers[mid]) / 2
	}
	if out.Jobs > 1 {
		var sq float64
		for _, m := range multipliers {
			sq += (m - out.Mean) * (m - out.Mean)
		}
		// sample standard deviation
		out.StdDev = math.Sqrt(sq / float64(out.Jobs-1))
	}
	return out
}
