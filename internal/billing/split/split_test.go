package split

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func mustRates(t *testing.T, fee, donation string) Rates {
	t.Helper()
	r, err := ParseRates(fee, donation)
	if err != nil {
		t.Fatalf("ParseRates(%q, %q): %v", fee, donation, err)
	}
	return r
}

func TestComputeScenario(t *testing.T) {
	got, err := Compute(199, mustRates(t, "0.30", "0.10"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := Split{GrossCents: 199, AppleFeeCents: 60, NetCents: 139, DonationCents: 14, PlatformCents: 125}
	if got != want {
		t.Fatalf("split: want=%+v got=%+v", want, got)
	}
}

func TestComputeRoundsHalfUp(t *testing.T) {
	// 5 * 0.5 = 2.5 -> 3; net 2 * 0.25 = 0.5 -> 1
	got, err := Compute(5, mustRates(t, "0.5", "0.25"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.AppleFeeCents != 3 || got.NetCents != 2 || got.DonationCents != 1 || got.PlatformCents != 1 {
		t.Fatalf("half-up: got=%+v", got)
	}
}

func TestComputeEdges(t *testing.T) {
	zero, err := Compute(0, mustRates(t, "0.30", "0.10"))
	if err != nil {
		t.Fatalf("Compute(0): %v", err)
	}
	if zero != (Split{}) {
		t.Fatalf("zero gross: got=%+v", zero)
	}

	all, err := Compute(999, mustRates(t, "1", "1"))
	if err != nil {
		t.Fatalf("Compute(999): %v", err)
	}
	if all.AppleFeeCents != 999 || all.NetCents != 0 || all.DonationCents != 0 {
		t.Fatalf("full fee: got=%+v", all)
	}

	if _, err := Compute(-1, mustRates(t, "0.30", "0.10")); !errors.Is(err, ErrNegativeGross) {
		t.Fatalf("negative gross: want=%v got=%v", ErrNegativeGross, err)
	}
}

func TestParseRatesRejectsOutOfRange(t *testing.T) {
	for _, tc := range [][2]string{{"1.01", "0.1"}, {"0.3", "-0.1"}, {"abc", "0.1"}} {
		if _, err := ParseRates(tc[0], tc[1]); err == nil {
			t.Fatalf("ParseRates(%q, %q): expected error", tc[0], tc[1])
		}
	}
}

func TestComputeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		gross := rng.Int63n(10_000_000)
		rates := Rates{
			AppleFee: decimal.New(rng.Int63n(10001), -4),
			Donation: decimal.New(rng.Int63n(10001), -4),
		}
		s, err := Compute(gross, rates)
		if err != nil {
			t.Fatalf("Compute(%d, %+v): %v", gross, rates, err)
		}
		if s.AppleFeeCents+s.NetCents != gross {
			t.Fatalf("fee+net: want=%d got=%d (%+v)", gross, s.AppleFeeCents+s.NetCents, s)
		}
		if s.DonationCents+s.PlatformCents != s.NetCents {
			t.Fatalf("donation+platform: want=%d got=%d (%+v)", s.NetCents, s.DonationCents+s.PlatformCents, s)
		}
		if s.AppleFeeCents < 0 || s.NetCents < 0 || s.DonationCents < 0 || s.PlatformCents < 0 {
			t.Fatalf("negative component: %+v", s)
		}
	}
}
