// Package quantity parses the dimensioned scalars used throughout the forge
// recipe and machine catalogue ("0.1mm", "1500mm/min", "5W", "10000rpm",
// "50%") into canonical internal units, the way the original Rust tool
// leaned on `uom` for unit-carrying quantities (see gcode_generation.rs in
// original_source/). Go has no equivalent in the retrieved pack with a
// verifiable API, so this is a small hand-rolled scanner instead of a
// stdlib-free unit library guess.
package quantity

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which physical dimension a Quantity carries.
type Kind int

const (
	Length Kind = iota
	Velocity
	AngularVelocity
	Power
	Ratio
)

func (k Kind) String() string {
	switch k {
	case Length:
		return "length"
	case Velocity:
		return "velocity"
	case AngularVelocity:
		return "angular velocity"
	case Power:
		return "power"
	case Ratio:
		return "ratio"
	default:
		return "unknown"
	}
}

// Quantity is a dimensioned scalar canonicalised to millimetres (Length),
// millimetres/second (Velocity), revolutions/minute (AngularVelocity),
// watts (Power), or a unitless fraction (Ratio).
type Quantity struct {
	Value float64
	Kind  Kind
}

type unitTable map[string]float64

var (
	lengthUnits = unitTable{
		"mm": 1,
		"cm": 10,
		"m":  1000,
		"in": 25.4,
		"mil": 0.0254,
	}
	velocityUnits = unitTable{
		"mm/s":   1,
		"mm/min": 1.0 / 60.0,
		"m/min":  1000.0 / 60.0,
		"in/s":   25.4,
		"in/min": 25.4 / 60.0,
	}
	angularVelocityUnits = unitTable{
		"rpm": 1,
	}
	powerUnits = unitTable{
		"w":  1,
		"kw": 1000,
	}
)

// Parse reads a quantity string like "12.5mm" against the unit table for
// the requested Kind. Ratio accepts a trailing "%" (divided by 100) or a
// bare fraction.
func Parse(s string, kind Kind) (Quantity, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Quantity{}, fmt.Errorf("quantity: empty value")
	}

	if kind == Ratio {
		return parseRatio(trimmed)
	}

	table := tableFor(kind)
	numEnd := 0
	for numEnd < len(trimmed) && isNumericRune(trimmed[numEnd]) {
		numEnd++
	}
	if numEnd == 0 {
		return Quantity{}, fmt.Errorf("quantity: %q has no numeric prefix", s)
	}

	numPart := trimmed[:numEnd]
	unitPart := strings.ToLower(strings.TrimSpace(trimmed[numEnd:]))

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("quantity: invalid number %q: %w", numPart, err)
	}

	if unitPart == "" {
		return Quantity{}, fmt.Errorf("quantity: %q is missing a unit for %s", s, kind)
	}

	factor, ok := table[unitPart]
	if !ok {
		return Quantity{}, fmt.Errorf("quantity: unrecognized %s unit %q in %q", kind, unitPart, s)
	}

	return Quantity{Value: value * factor, Kind: kind}, nil
}

func parseRatio(s string) (Quantity, error) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return Quantity{}, fmt.Errorf("quantity: invalid ratio %q: %w", s, err)
		}
		return Quantity{Value: v / 100.0, Kind: Ratio}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("quantity: invalid ratio %q: %w", s, err)
	}
	return Quantity{Value: v, Kind: Ratio}, nil
}

func tableFor(kind Kind) unitTable {
	switch kind {
	case Length:
		return lengthUnits
	case Velocity:
		return velocityUnits
	case AngularVelocity:
		return angularVelocityUnits
	case Power:
		return powerUnits
	default:
		return nil
	}
}

func isNumericRune(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.' || b == '-' || b == '+'
}

// MM returns the value in millimetres; it panics if Kind != Length, mirroring
// the "wrong accessor" panics other typed-unit libraries in the ecosystem use
// for a programmer error rather than a data error.
func (q Quantity) MM() float64 {
	if q.Kind != Length {
		panic(fmt.Sprintf("quantity: MM() called on a %s quantity", q.Kind))
	}
	return q.Value
}

// MMPerSecond returns the value in millimetres/second.
func (q Quantity) MMPerSecond() float64 {
	if q.Kind != Velocity {
		panic(fmt.Sprintf("quantity: MMPerSecond() called on a %s quantity", q.Kind))
	}
	return q.Value
}

// RPM returns the value in revolutions/minute.
func (q Quantity) RPM() float64 {
	if q.Kind != AngularVelocity {
		panic(fmt.Sprintf("quantity: RPM() called on a %s quantity", q.Kind))
	}
	return q.Value
}

// Watts returns the value in watts.
func (q Quantity) Watts() float64 {
	if q.Kind != Power {
		panic(fmt.Sprintf("quantity: Watts() called on a %s quantity", q.Kind))
	}
	return q.Value
}

// Fraction returns the unitless ratio value.
func (q Quantity) Fraction() float64 {
	if q.Kind != Ratio {
		panic(fmt.Sprintf("quantity: Fraction() called on a %s quantity", q.Kind))
	}
	return q.Value
}

// UnmarshalString parses a plain scalar string as a Quantity of the given
// Kind; it is equivalent to Parse. The Kind must be known by the caller
// ahead of time.
func UnmarshalString(s string, kind Kind) (Quantity, error) {
	return Parse(s, kind)
}
