package quant

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse_Canonical(t *testing.T) {
	tests := []struct {
		input string
		raw   int64
	}{
		{"0", 0},
		{"", 0},
		{"1", 100_000_000},
		{"42150.50", 4_215_050_000_000},
		{"0.00000001", 1},
		{"-1.23", -123_000_000},
		{"+1.23", 123_000_000},
		{"0.123456789", 12_345_678}, // 9th digit truncated
		{"100.", 10_000_000_000},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got.Raw() != tt.raw {
			t.Errorf("Parse(%q) = %d; want %d", tt.input, got.Raw(), tt.raw)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"-", ErrInvalidFormat},
		{"+", ErrInvalidFormat},
		{"1.2.3", ErrInvalidFormat},
		{"12a", ErrInvalidFormat},
		{".", ErrInvalidFormat},
		{"1e5", ErrInvalidFormat},
		{"99999999999999999999", ErrOverflow},
	}

	for _, tt := range tests {
		_, err := Parse(tt.input)
		if !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q) error = %v; want %v", tt.input, err, tt.want)
		}
	}
}

func TestString_RoundTrip(t *testing.T) {
	// format(parse(s)) == s for canonical strings.
	canonical := []string{
		"0",
		"1",
		"42150.5",
		"0.00000001",
		"-3.14159265",
		"123456789.987",
		"-0.5",
	}

	for _, s := range canonical {
		d := MustParse(s)
		if got := d.String(); got != s {
			t.Errorf("MustParse(%q).String() = %q; want %q", s, got, s)
		}
	}
}

func TestString_Canonicalizes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.500000", "1.5"},
		{"1.0", "1"},
		{"+7", "7"},
		{"0.10", "0.1"},
	}

	for _, tt := range tests {
		if got := MustParse(tt.input).String(); got != tt.want {
			t.Errorf("MustParse(%q).String() = %q; want %q", tt.input, got, tt.want)
		}
	}
}

func TestOrdering(t *testing.T) {
	// Raw integer ordering must match numeric ordering.
	values := []string{"-10", "-0.00000001", "0", "0.00000001", "1", "42150.5", "42151"}
	for i := 0; i+1 < len(values); i++ {
		a, b := MustParse(values[i]), MustParse(values[i+1])
		if !(a < b) {
			t.Errorf("expected %s < %s", a, b)
		}
	}
}

// Arithmetic cross-checked against shopspring/decimal as the oracle.
func TestArithmetic_AgainstOracle(t *testing.T) {
	pairs := [][2]string{
		{"42150.5", "1.5"},
		{"0.00000003", "7"},
		{"-12.25", "4"},
		{"100", "3"},
		{"99999.99999999", "0.00000001"},
	}

	for _, p := range pairs {
		a, b := MustParse(p[0]), MustParse(p[1])
		oa, _ := decimal.NewFromString(p[0])
		ob, _ := decimal.NewFromString(p[1])

		t.Run(p[0]+"_"+p[1], func(t *testing.T) {
			if got, want := a.Add(b).String(), oa.Add(ob).String(); got != want {
				t.Errorf("Add = %s; want %s", got, want)
			}
			if got, want := a.Sub(b).String(), oa.Sub(ob).String(); got != want {
				t.Errorf("Sub = %s; want %s", got, want)
			}

			// Mul and Div round half away from zero at 8 decimals.
			if got, want := a.Mul(b).String(), oa.Mul(ob).Round(8).String(); got != want {
				t.Errorf("Mul = %s; want %s", got, want)
			}
			if got, want := a.Div(b).String(), oa.DivRound(ob, 8).String(); got != want {
				t.Errorf("Div = %s; want %s", got, want)
			}
		})
	}
}

func TestDiv_ByZero(t *testing.T) {
	d := MustParse("42.5")
	if got := d.Div(0); got != 0 {
		t.Errorf("Div by zero = %s; want 0", got)
	}
	if _, ok := d.DivChecked(0); ok {
		t.Error("DivChecked by zero should report ok=false")
	}
	if q, ok := d.DivChecked(MustParse("2")); !ok || q.String() != "21.25" {
		t.Errorf("DivChecked = %s, %v; want 21.25, true", q, ok)
	}
}

func TestPredicates(t *testing.T) {
	if !Decimal(0).IsZero() || Decimal(1).IsZero() {
		t.Error("IsZero misbehaving")
	}
	if !MustParse("1").IsPositive() || MustParse("-1").IsPositive() {
		t.Error("IsPositive misbehaving")
	}
	if !MustParse("-1").IsNegative() || MustParse("1").IsNegative() {
		t.Error("IsNegative misbehaving")
	}
	if got := MustParse("-42.5").Abs(); got != MustParse("42.5") {
		t.Errorf("Abs = %s; want 42.5", got)
	}
}

// FuzzParse validates that arbitrary input never panics and that anything
// Parse accepts round-trips through String and Parse unchanged.
func FuzzParse(f *testing.F) {
	f.Add("0")
	f.Add("42150.50")
	f.Add("-1.23")
	f.Add("+")
	f.Add("1.2.3")
	f.Add("0.000000001")
	f.Add("92233720368.54775807")

	f.Fuzz(func(t *testing.T, s string) {
		d, err := Parse(s)
		if err != nil {
			return
		}
		back, err := Parse(d.String())
		if err != nil {
			t.Fatalf("Parse(%q).String() = %q did not re-parse: %v", s, d.String(), err)
		}
		if back != d {
			t.Fatalf("round trip changed value: %q -> %d -> %d", s, d.Raw(), back.Raw())
		}
	})
}
