package trajectory

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics of a deviation series.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"` // population standard deviation
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	RMS    float64 `json:"rms"`
}

// Mean is the arithmetic mean of the deviations.
func Mean(devs []float64) (float64, error) {
	if len(devs) == 0 {
		return 0, fmt.Errorf("mean: %w", ErrEmptyInput)
	}
	return stat.Mean(devs, nil), nil
}

// PopulationStdDev is sqrt(Σ(dᵢ-mean)² / n). The divisor is n, not n-1.
func PopulationStdDev(devs []float64, mean float64) (float64, error) {
	if len(devs) == 0 {
		return 0, fmt.Errorf("standard deviation: %w", ErrEmptyInput)
	}
	var sum float64
	for _, d := range devs {
		diff := d - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(devs))), nil
}

// Summarize computes Count, Mean, population StdDev, Min, Max, Median and RMS.
func Summarize(devs []float64) (Summary, error) {
	if len(devs) == 0 {
		return Summary{}, fmt.Errorf("summarize: %w", ErrEmptyInput)
	}

	mean, err := Mean(devs)
	if err != nil {
		return Summary{}, err
	}
	std, err := PopulationStdDev(devs, mean)
	if err != nil {
		return Summary{}, err
	}

	sorted := slices.Clone(devs)
	slices.Sort(sorted)

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Summary{
		Count:  n,
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Median: median,
		RMS:    math.Sqrt(floats.Dot(devs, devs) / float64(n)),
	}, nil
}

// Sentence renders the one-line report summary for a prediction source.
func (s Summary) Sentence(source string) string {
	return fmt.Sprintf("The mean deviation in the %s prediction is: %s and the standard deviation is %s",
		source, FormatValue(s.Mean), FormatValue(s.StdDev))
}

// FormatValue formats a deviation with six significant digits.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
