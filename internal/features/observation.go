package features

import (
	"fmt"
	"math"
)

// WildernessArea is a wilderness designation, 1..4, or NoWilderness.
type WildernessArea int

// SoilType is a soil classification, 1..40, or NoSoil.
type SoilType int

const (
	NoWilderness WildernessArea = 0
	NoSoil       SoilType       = 0

	WildernessAreas = 4
	SoilTypes       = 40
)

func (w WildernessArea) Valid() bool { return w >= NoWilderness && int(w) <= WildernessAreas }

func (s SoilType) Valid() bool { return s >= NoSoil && int(s) <= SoilTypes }

// RawObservation is one set of user-supplied measurements.
type RawObservation struct {
	Elevation                      float64        `json:"elevation"`
	Aspect                         float64        `json:"aspect"`
	Slope                          float64        `json:"slope"`
	HorizontalDistanceToHydrology  float64        `json:"horizontal_distance_to_hydrology"`
	VerticalDistanceToHydrology    float64        `json:"vertical_distance_to_hydrology"`
	HorizontalDistanceToRoadways   float64        `json:"horizontal_distance_to_roadways"`
	Hillshade9am                   float64        `json:"hillshade_9am"`
	HillshadeNoon                  float64        `json:"hillshade_noon"`
	Hillshade3pm                   float64        `json:"hillshade_3pm"`
	HorizontalDistanceToFirePoints float64        `json:"horizontal_distance_to_fire_points"`
	Wilderness                     WildernessArea `json:"wilderness_area"`
	Soil                           SoilType       `json:"soil_type"`
}

// Domain describes the accepted range of one continuous field.
type Domain struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
}

// Domains lists the continuous fields in vector order.
var Domains = [ContinuousFields]Domain{
	{Key: "elevation", Label: "Elevation (m)", Min: 2000, Max: 4000, Default: 2600, Step: 1},
	{Key: "aspect", Label: "Aspect (degrees azimuth)", Min: 0, Max: 360, Default: 100, Step: 1},
	{Key: "slope", Label: "Slope (degrees)", Min: 0, Max: 60, Default: 10, Step: 1},
	{Key: "horizontal_distance_to_hydrology", Label: "Horizontal distance to hydrology (m)", Min: 0, Max: 5000, Default: 200, Step: 1},
	{Key: "vertical_distance_to_hydrology", Label: "Vertical distance to hydrology (m)", Min: -100, Max: 500, Default: 20, Step: 1},
	{Key: "horizontal_distance_to_roadways", Label: "Horizontal distance to roadways (m)", Min: 0, Max: 5000, Default: 1000, Step: 1},
	{Key: "hillshade_9am", Label: "Hillshade index at 9am", Min: 0, Max: 255, Default: 210, Step: 1},
	{Key: "hillshade_noon", Label: "Hillshade index at noon", Min: 0, Max: 255, Default: 230, Step: 1},
	{Key: "hillshade_3pm", Label: "Hillshade index at 3pm", Min: 0, Max: 255, Default: 150, Step: 1},
	{Key: "horizontal_distance_to_fire_points", Label: "Horizontal distance to fire points (m)", Min: 0, Max: 7000, Default: 700, Step: 1},
}

// DefaultObservation returns the observation every field of which sits at
// its default, with no wilderness area and no soil type selected.
func DefaultObservation() RawObservation {
	var obs RawObservation
	for i, d := range Domains {
		*obs.field(i) = d.Default
	}
	return obs
}

// Continuous returns the ten continuous fields in vector order.
func (o RawObservation) Continuous() [ContinuousFields]float64 {
	return [ContinuousFields]float64{
		o.Elevation,
		o.Aspect,
		o.Slope,
		o.HorizontalDistanceToHydrology,
		o.VerticalDistanceToHydrology,
		o.HorizontalDistanceToRoadways,
		o.Hillshade9am,
		o.HillshadeNoon,
		o.Hillshade3pm,
		o.HorizontalDistanceToFirePoints,
	}
}

// Set assigns the continuous field identified by its domain key.
func (o *RawObservation) Set(key string, v float64) error {
	for i, d := range Domains {
		if d.Key == key {
			*o.field(i) = v
			return nil
		}
	}
	return fmt.Errorf("unknown field %q", key)
}

func (o *RawObservation) field(i int) *float64 {
	switch i {
	case 0:
		return &o.Elevation
	case 1:
		return &o.Aspect
	case 2:
		return &o.Slope
	case 3:
		return &o.HorizontalDistanceToHydrology
	case 4:
		return &o.VerticalDistanceToHydrology
	case 5:
		return &o.HorizontalDistanceToRoadways
	case 6:
		return &o.Hillshade9am
	case 7:
		return &o.HillshadeNoon
	case 8:
		return &o.Hillshade3pm
	case 9:
		return &o.HorizontalDistanceToFirePoints
	}
	panic(fmt.Sprintf("features: continuous field index %d out of range", i))
}

// FieldError reports a value outside its field domain, or input that could
// not be read as a value at all.
type FieldError struct {
	Field  string
	Value  float64
	Input  string // raw text of an unparsable value
	Reason string

	unparsed bool
}

// ParseError reports raw input for field that is not a number.
func ParseError(field, raw, reason string) *FieldError {
	return &FieldError{Field: field, Input: raw, Reason: reason, unparsed: true}
}

func (e *FieldError) Error() string {
	if e.unparsed {
		return fmt.Sprintf("%s: %q %s", e.Field, e.Input, e.Reason)
	}
	return fmt.Sprintf("%s: %v %s", e.Field, e.Value, e.Reason)
}

// Validate checks every field against its domain.
func (o RawObservation) Validate() error {
	values := o.Continuous()
	for i, d := range Domains {
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &FieldError{Field: d.Key, Value: v, Reason: "is not a finite number"}
		}
		if v < d.Min || v > d.Max {
			return &FieldError{Field: d.Key, Value: v, Reason: fmt.Sprintf("outside [%g, %g]", d.Min, d.Max)}
		}
	}
	if !o.Wilderness.Valid() {
		return &FieldError{Field: "wilderness_area", Value: float64(o.Wilderness), Reason: fmt.Sprintf("outside none or 1..%d", WildernessAreas)}
	}
	if !o.Soil.Valid() {
		return &FieldError{Field: "soil_type", Value: float64(o.Soil), Reason: fmt.Sprintf("outside none or 1..%d", SoilTypes)}
	}
	return nil
}
