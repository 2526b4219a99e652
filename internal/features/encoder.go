// Package features turns raw terrain observations into the fixed, positional
// feature vector the cover type classifier was trained on.
//
// Layout (0-based):
//
//	 0..9   continuous measurements, unmodified
//	10..13  wilderness area one-hot
//	14..53  soil type one-hot
//	54..57  derived scalars
//
// The classifier has no notion of column names at inference time, so the
// order above is the contract.
package features

import (
	"fmt"
	"math"
)

const (
	ContinuousFields = 10
	DerivedFields    = 4

	WildernessOffset = ContinuousFields
	SoilOffset       = WildernessOffset + WildernessAreas
	DerivedOffset    = SoilOffset + SoilTypes
	VectorLen        = DerivedOffset + DerivedFields
)

// FeatureVector is the classifier input.
type FeatureVector [VectorLen]float64

// Columns names every position of a FeatureVector.
var Columns = buildColumns()

func buildColumns() [VectorLen]string {
	var c [VectorLen]string
	copy(c[:], []string{
		"Elevation",
		"Aspect",
		"Slope",
		"Horizontal_Distance_To_Hydrology",
		"Vertical_Distance_To_Hydrology",
		"Horizontal_Distance_To_Roadways",
		"Hillshade_9am",
		"Hillshade_Noon",
		"Hillshade_3pm",
		"Horizontal_Distance_To_Fire_Points",
	})
	for i := 0; i < WildernessAreas; i++ {
		c[WildernessOffset+i] = fmt.Sprintf("Wilderness_Area%d", i+1)
	}
	for i := 0; i < SoilTypes; i++ {
		c[SoilOffset+i] = fmt.Sprintf("Soil_Type%d", i+1)
	}
	c[DerivedOffset+0] = "Mean_Hillshade"
	c[DerivedOffset+1] = "Road_Fire_Diff"
	c[DerivedOffset+2] = "Hydro_Road_Diff"
	c[DerivedOffset+3] = "Elevation_Slope_Ratio"
	return c
}

// Encode builds the feature vector for o. It panics if a categorical index is
// outside its domain; callers are expected to run Validate first.
func Encode(o RawObservation) FeatureVector {
	var v FeatureVector

	cont := o.Continuous()
	copy(v[:ContinuousFields], cont[:])

	if !o.Wilderness.Valid() {
		panic(fmt.Sprintf("features: wilderness area %d out of range", o.Wilderness))
	}
	if o.Wilderness != NoWilderness {
		v[WildernessOffset+int(o.Wilderness)-1] = 1
	}

	if !o.Soil.Valid() {
		panic(fmt.Sprintf("features: soil type %d out of range", o.Soil))
	}
	if o.Soil != NoSoil {
		v[SoilOffset+int(o.Soil)-1] = 1
	}

	v[DerivedOffset+0] = MeanHillshade(o)
	v[DerivedOffset+1] = RoadFireDiff(o)
	v[DerivedOffset+2] = HydroRoadDiff(o)
	v[DerivedOffset+3] = ElevationSlopeRatio(o)
	return v
}

func MeanHillshade(o RawObservation) float64 {
	return (o.Hillshade9am + o.HillshadeNoon + o.Hillshade3pm) / 3
}

func RoadFireDiff(o RawObservation) float64 {
	return math.Abs(o.HorizontalDistanceToRoadways - o.HorizontalDistanceToFirePoints)
}

func HydroRoadDiff(o RawObservation) float64 {
	return math.Abs(o.HorizontalDistanceToHydrology - o.HorizontalDistanceToRoadways)
}

// ElevationSlopeRatio is Elevation / (Slope + 1); the offset keeps flat
// terrain (Slope = 0) defined.
func ElevationSlopeRatio(o RawObservation) float64 {
	return o.Elevation / (o.Slope + 1)
}

// Slice returns a copy of the vector as a slice.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, VectorLen)
	copy(out, v[:])
	return out
}

// Float32 returns the vector narrowed to float32, the input type most exported
// classifiers expect.
func (v FeatureVector) Float32() []float32 {
	out := make([]float32, VectorLen)
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Wilderness returns the wilderness one-hot segment.
func (v FeatureVector) Wilderness() []float64 {
	return v[WildernessOffset:SoilOffset]
}

// Soil returns the soil one-hot segment.
func (v FeatureVector) Soil() []float64 {
	return v[SoilOffset:DerivedOffset]
}

// Derived returns the derived scalar tail.
func (v FeatureVector) Derived() []float64 {
	return v[DerivedOffset:]
}
