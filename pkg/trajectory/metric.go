package trajectory

import (
	"fmt"
	"math"
	"strings"

	"github.com/unklstewy/flightpath/pkg/coordinates"
)

// Metric selects how the distance between two samples is measured.
type Metric int

const (
	// PlanarDegrees is the Euclidean distance in the latitude/longitude
	// plane, in degrees. Altitude is ignored. This is the default and the
	// metric the published deviation figures use.
	PlanarDegrees Metric = iota

	// HaversineNM is the great-circle ground distance in nautical miles.
	// Altitude is ignored.
	HaversineNM

	// SlantRangeMeters combines great-circle ground distance with the
	// altitude difference. Altitudes must be in meters.
	SlantRangeMeters
)

var metricNames = map[Metric]string{
	PlanarDegrees:    "planar_degrees",
	HaversineNM:      "haversine_nm",
	SlantRangeMeters: "slant_range_m",
}

var metricUnits = map[Metric]string{
	PlanarDegrees:    "degrees",
	HaversineNM:      "nm",
	SlantRangeMeters: "m",
}

// ParseMetric maps a configuration name to a Metric. An empty name selects
// PlanarDegrees.
func ParseMetric(name string) (Metric, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return PlanarDegrees, nil
	}
	for m, n := range metricNames {
		if n == name {
			return m, nil
		}
	}
	return PlanarDegrees, fmt.Errorf("unknown distance metric %q (want planar_degrees, haversine_nm or slant_range_m)", name)
}

func (m Metric) String() string {
	if n, ok := metricNames[m]; ok {
		return n
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// Unit is the unit deviations are reported in.
func (m Metric) Unit() string {
	if u, ok := metricUnits[m]; ok {
		return u
	}
	return ""
}

// Distance measures the distance from a to b with this metric.
func (m Metric) Distance(a, b Sample) float64 {
	switch m {
	case HaversineNM:
		return coordinates.DistanceNauticalMiles(geographic(a), geographic(b))
	case SlantRangeMeters:
		return coordinates.SlantRangeMeters(geographic(a), geographic(b))
	default:
		return Distance(a, b)
	}
}

// Distance is the planar metric: sqrt(dLat² + dLon²) in degrees.
func Distance(a, b Sample) float64 {
	return math.Hypot(b.Latitude-a.Latitude, b.Longitude-a.Longitude)
}

func geographic(s Sample) coordinates.Geographic {
	return coordinates.Geographic{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Altitude:  s.Altitude,
	}
}
