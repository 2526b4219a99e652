package ml

import "fmt"

// CoverType is a forest cover class code as emitted by the classifier.
type CoverType int

const (
	SpruceFir CoverType = iota + 1
	LodgepolePine
	PonderosaPine
	CottonwoodWillow
	Aspen
	DouglasFir
	Krummholz
)

var coverTypeNames = [...]string{
	SpruceFir:        "Spruce/Fir",
	LodgepolePine:    "Lodgepole Pine",
	PonderosaPine:    "Ponderosa Pine",
	CottonwoodWillow: "Cottonwood/Willow",
	Aspen:            "Aspen",
	DouglasFir:       "Douglas-fir",
	Krummholz:        "Krummholz",
}

func (c CoverType) Valid() bool { return c >= SpruceFir && c <= Krummholz }

func (c CoverType) String() string {
	if !c.Valid() {
		return fmt.Sprintf("CoverType(%d)", int(c))
	}
	return coverTypeNames[c]
}

// ResolveLabel maps a class code to its display name.
func ResolveLabel(code int) (string, error) {
	c := CoverType(code)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedClass, code)
	}
	return coverTypeNames[c], nil
}

// Label pairs a class code with its display name.
type Label struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Labels returns the full label table ordered by code.
func Labels() []Label {
	out := make([]Label, 0, int(Krummholz))
	for c := SpruceFir; c <= Krummholz; c++ {
		out = append(out, Label{Code: int(c), Name: coverTypeNames[c]})
	}
	return out
}
