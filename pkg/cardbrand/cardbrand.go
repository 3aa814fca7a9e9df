// Package cardbrand classifies payment card brands from the leading digits
// of a card number (the Issuer Identification Number). It performs no Luhn
// checksum or length validation — classification only.
package cardbrand

import "strconv"

// Brand is a card network identifier.
type Brand string

const (
	BrandUnknown    Brand = ""
	BrandVisa       Brand = "visa"
	BrandMastercard Brand = "mastercard"
	BrandAmex       Brand = "amex"
	BrandDiscover   Brand = "discover"
)

// rule matches a numeric prefix range of a fixed width against the digit
// string. Ranges are kept as a flat ordered table so they stay auditable.
type rule struct {
	width int
	lo    int
	hi    int
	brand Brand
}

// Rules are evaluated in priority order; the first match wins.
var rules = []rule{
	{1, 4, 4, BrandVisa},
	{2, 34, 34, BrandAmex},
	{2, 37, 37, BrandAmex},
	{2, 51, 55, BrandMastercard},
	{6, 222100, 272099, BrandMastercard},
	{4, 6011, 6011, BrandDiscover},
	{3, 644, 649, BrandDiscover},
	{6, 622126, 622925, BrandDiscover},
	{6, 624000, 626999, BrandDiscover},
	{6, 628200, 628899, BrandDiscover},
	{2, 65, 65, BrandDiscover},
}

// Identify returns the brand for a digit-only card number prefix.
// Inputs shorter than 4 digits yield BrandUnknown.
func Identify(digits string) Brand {
	if len(digits) < 4 {
		return BrandUnknown
	}
	for _, r := range rules {
		if len(digits) < r.width {
			continue
		}
		n, err := strconv.Atoi(digits[:r.width])
		if err != nil {
			return BrandUnknown
		}
		if n >= r.lo && n <= r.hi {
			return r.brand
		}
	}
	return BrandUnknown
}

// LastFour returns the final four digits of a digit-only string. Shorter
// inputs are returned unchanged; callers should not rely on exactly four
// characters for malformed input.
func LastFour(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}
