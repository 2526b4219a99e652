package features

import (
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(o *RawObservation)
		wantField string
	}{
		{"defaults", func(o *RawObservation) {}, ""},
		{"lower bounds", func(o *RawObservation) {
			for i, d := range Domains {
				*o.field(i) = d.Min
			}
		}, ""},
		{"upper bounds", func(o *RawObservation) {
			for i, d := range Domains {
				*o.field(i) = d.Max
			}
			o.Wilderness, o.Soil = 4, 40
		}, ""},
		{"elevation too low", func(o *RawObservation) { o.Elevation = 1999 }, "elevation"},
		{"aspect too high", func(o *RawObservation) { o.Aspect = 361 }, "aspect"},
		{"negative vertical distance allowed", func(o *RawObservation) { o.VerticalDistanceToHydrology = -100 }, ""},
		{"vertical distance too low", func(o *RawObservation) { o.VerticalDistanceToHydrology = -101 }, "vertical_distance_to_hydrology"},
		{"hillshade over 255", func(o *RawObservation) { o.HillshadeNoon = 256 }, "hillshade_noon"},
		{"fire points too far", func(o *RawObservation) { o.HorizontalDistanceToFirePoints = 7001 }, "horizontal_distance_to_fire_points"},
		{"NaN slope", func(o *RawObservation) { o.Slope = math.NaN() }, "slope"},
		{"infinite roadways", func(o *RawObservation) { o.HorizontalDistanceToRoadways = math.Inf(1) }, "horizontal_distance_to_roadways"},
		{"wilderness out of range", func(o *RawObservation) { o.Wilderness = 5 }, "wilderness_area"},
		{"soil out of range", func(o *RawObservation) { o.Soil = 41 }, "soil_type"},
		{"negative soil", func(o *RawObservation) { o.Soil = -2 }, "soil_type"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := DefaultObservation()
			tc.mutate(&obs)
			err := obs.Validate()

			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FieldError, got %v", err)
			}
			if fe.Field != tc.wantField {
				t.Errorf("expected field %s, got %s", tc.wantField, fe.Field)
			}
		})
	}
}

func TestFieldErrorMessage(t *testing.T) {
	testCases := []struct {
		err  *FieldError
		want string
	}{
		{&FieldError{Field: "slope", Value: 70, Reason: "outside [0, 66]"}, "slope: 70 outside [0, 66]"},
		{ParseError("slope", "steep", "is not a number"), `slope: "steep" is not a number`},
		{ParseError("soil_type", "2.5", "is not a whole number"), `soil_type: "2.5" is not a whole number`},
	}

	for _, tc := range testCases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestDefaultObservation(t *testing.T) {
	obs := DefaultObservation()
	if obs.Wilderness != NoWilderness || obs.Soil != NoSoil {
		t.Errorf("expected no categorical selection, got %d/%d", obs.Wilderness, obs.Soil)
	}
	cont := obs.Continuous()
	for i, d := range Domains {
		if cont[i] != d.Default {
			t.Errorf("%s: expected default %v, got %v", d.Key, d.Default, cont[i])
		}
		if d.Default < d.Min || d.Default > d.Max {
			t.Errorf("%s: default %v outside [%v, %v]", d.Key, d.Default, d.Min, d.Max)
		}
	}
}

func TestSet(t *testing.T) {
	var obs RawObservation
	if err := obs.Set("hillshade_3pm", 99); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Hillshade3pm != 99 {
		t.Errorf("expected Hillshade3pm 99, got %v", obs.Hillshade3pm)
	}
	if err := obs.Set("rainfall", 1); err == nil {
		t.Error("expected error for unknown key")
	}
}
