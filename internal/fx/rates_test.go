package fx

import (
	"math"
	"testing"
)

func TestConvertKnownAndUnknown(t *testing.T) {
	tbl, err := New("AED", DefaultRates())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cases := []struct {
		amount float64
		code   string
		want   float64
		known  bool
	}{
		{100, "USD", 367, true},
		{200, "usd", 734, true},
		{150, " USD ", 550.5, true},
		{10, "", 10, true},
		{10, "AED", 10, true},
		{10, "JPY", 10, false},
	}
	for _, c := range cases {
		got, _, known := tbl.Convert(c.amount, c.code)
		if got != c.want || known != c.known {
			t.Errorf("Convert(%v, %q) = %v,%v want %v,%v", c.amount, c.code, got, known, c.want, c.known)
		}
	}
}

func TestNewAddsBaseAndRejectsBadRates(t *testing.T) {
	tbl, err := New("usd", map[string]float64{"EUR": 1.1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if tbl.Base() != "USD" {
		t.Fatalf("base = %s", tbl.Base())
	}
	if r, ok := tbl.Lookup("USD"); !ok || r.String() != "1" {
		t.Fatalf("base rate = %s,%v", r.String(), ok)
	}
	if got := tbl.Codes(); len(got) != 2 || got[0] != "EUR" || got[1] != "USD" {
		t.Fatalf("codes = %v", got)
	}
	if _, err := New("AED", map[string]float64{"USD": 0}); err == nil {
		t.Fatalf("expected error for zero rate")
	}
	if _, err := New("AED", map[string]float64{"AED": 2}); err == nil {
		t.Fatalf("expected error for base rate != 1")
	}
}

func TestRebase(t *testing.T) {
	tbl, err := New("AED", DefaultRates())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	usd, err := tbl.Rebase("usd")
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if usd.Base() != "USD" {
		t.Fatalf("base = %s", usd.Base())
	}
	if got, _, _ := usd.Convert(3.67, "AED"); math.Abs(got-1) > 1e-6 {
		t.Fatalf("AED->USD = %v", got)
	}
	if got, _, _ := usd.Convert(10, "USD"); got != 10 {
		t.Fatalf("USD->USD = %v", got)
	}
	if _, err := tbl.Rebase("JPY"); err == nil {
		t.Fatalf("expected error for unknown base")
	}
}
