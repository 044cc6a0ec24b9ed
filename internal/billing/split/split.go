// Package split divides a gross purchase amount into the store commission,
// the charity donation and the platform's remainder. All amounts are integer
// minor units (cents); rates are exact decimals so no float drift is possible.
package split

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeGross = errors.New("gross amount must not be negative")
	ErrRateRange     = errors.New("rate must be between 0 and 1")
)

var one = decimal.NewFromInt(1)

type Rates struct {
	AppleFee decimal.Decimal
	Donation decimal.Decimal
}

func (r Rates) Validate() error {
	if r.AppleFee.IsNegative() || r.AppleFee.GreaterThan(one) {
		return fmt.Errorf("apple fee rate %s: %w", r.AppleFee, ErrRateRange)
	}
	if r.Donation.IsNegative() || r.Donation.GreaterThan(one) {
		return fmt.Errorf("donation rate %s: %w", r.Donation, ErrRateRange)
	}
	return nil
}

// ParseRates reads both rates from configuration strings such as "0.30".
func ParseRates(appleFee, donation string) (Rates, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(appleFee))
	if err != nil {
		return Rates{}, fmt.Errorf("parse apple fee rate %q: %w", appleFee, err)
	}
	don, err := decimal.NewFromString(strings.TrimSpace(donation))
	if err != nil {
		return Rates{}, fmt.Errorf("parse donation rate %q: %w", donation, err)
	}
	r := Rates{AppleFee: fee, Donation: don}
	if err := r.Validate(); err != nil {
		return Rates{}, err
	}
	return r, nil
}

type Split struct {
	GrossCents    int64
	AppleFeeCents int64
	NetCents      int64
	DonationCents int64
	PlatformCents int64
}

// Compute applies the commission to the gross, then the donation rate to what
// remains. Rounding is half-up at each step.
//
//	fee + net == gross
//	donation + platform == net
func Compute(grossCents int64, rates Rates) (Split, error) {
	if grossCents < 0 {
		return Split{}, ErrNegativeGross
	}
	if err := rates.Validate(); err != nil {
		return Split{}, err
	}
	fee := roundHalfUp(grossCents, rates.AppleFee)
	net := grossCents - fee
	donation := roundHalfUp(net, rates.Donation)
	return Split{
		GrossCents:    grossCents,
		AppleFeeCents: fee,
		NetCents:      net,
		DonationCents: donation,
		PlatformCents: net - donation,
	}, nil
}

// Decimal.Round rounds half away from zero, which is half-up for the
// non-negative products seen here.
func roundHalfUp(cents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(rate).Round(0).IntPart()
}
