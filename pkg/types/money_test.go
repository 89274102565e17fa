package types

import "testing"

func TestMoneyFormat(t *testing.T) {
	cases := map[Money]string{
		0:        "0",
		999:      "999",
		10000:    "10.000",
		250000:   "250.000",
		1234567:  "1.234.567",
		-260000:  "-260.000",
	}
	for amount, want := range cases {
		if got := amount.Format(); got != want {
			t.Fatalf("Format(%d) = %q, want %q", amount, got, want)
		}
	}
	if got := Money(200000).String(); got != "200.000 ₫" {
		t.Fatalf("unexpected String %q", got)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	if got := Money(100000).Times(2).Add(10000); got != 210000 {
		t.Fatalf("unexpected total %d", got)
	}
}

func TestRatingsWithCopies(t *testing.T) {
	base := Ratings{"p1": 4}
	next := base.With("p2", 5)
	if base.Has("p2") {
		t.Fatalf("With must not mutate the receiver")
	}
	if !next.Has("p1") || !next.Has("p2") {
		t.Fatalf("expected both ratings, got %v", next)
	}
	if next.ToMap()["p2"] != int64(5) {
		t.Fatalf("ToMap should emit int64 values")
	}
}
