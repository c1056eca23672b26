package quantity

import "testing"

func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0.1mm", 0.1},
		{"1cm", 10},
		{"1in", 25.4},
		{"2mil", 0.0508},
	}
	for _, c := range cases {
		q, err := Parse(c.in, Length)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if diff := q.MM() - c.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Parse(%q).MM() = %v, want %v", c.in, q.MM(), c.want)
		}
	}
}

func TestParseVelocity(t *testing.T) {
	q, err := Parse("1500mm/min", Velocity)
	if err != nil {
		t.Fatal(err)
	}
	want := 25.0
	if diff := q.MMPerSecond() - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("got %v, want %v", q.MMPerSecond(), want)
	}
}

func TestParseRatioPercent(t *testing.T) {
	q, err := Parse("50%", Ratio)
	if err != nil {
		t.Fatal(err)
	}
	if q.Fraction() != 0.5 {
		t.Errorf("got %v, want 0.5", q.Fraction())
	}
}

func TestParseRejectsMissingUnit(t *testing.T) {
	if _, err := Parse("5", Length); err == nil {
		t.Fatal("expected error for missing unit")
	}
}

func TestParseRejectsUnknownUnit(t *testing.T) {
	if _, err := Parse("5ft", Length); err == nil {
		t.Fatal("expected error for unknown unit")
	}
}

func TestWrongAccessorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	q, _ := Parse("5W", Power)
	_ = q.MM()
}
