package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Card validation errors.
var (
	ErrCardNumber = errors.New("card number must be 13-19 digits and pass the Luhn check")
	ErrCardExpiry = errors.New("card expiry must be MM/YY and not in the past")
	ErrCardCVV    = errors.New("cvv must be 3 or 4 digits")
)

// Luhn reports whether pan (digits only) passes the Luhn checksum.
func Luhn(pan string) bool {
	sum := 0
	double := false
	for i := len(pan) - 1; i >= 0; i-- {
		c := pan[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ValidateCard checks PAN, "MM/YY" expiry and CVV. Card data is validated in
// memory only; callers must never log or persist it.
func ValidateCard(pan, expiry, cvv string, now time.Time) error {
	pan = strings.ReplaceAll(pan, " ", "")
	if len(pan) < 13 || len(pan) > 19 || !Luhn(pan) {
		return ErrCardNumber
	}
	month, year, ok := parseExpiry(expiry)
	if !ok {
		return ErrCardExpiry
	}
	// A card is good through the last day of its expiry month.
	endOfMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(endOfMonth) {
		return ErrCardExpiry
	}
	if len(cvv) < 3 || len(cvv) > 4 {
		return ErrCardCVV
	}
	for _, c := range cvv {
		if c < '0' || c > '9' {
			return ErrCardCVV
		}
	}
	return nil
}

func parseExpiry(expiry string) (month, year int, ok bool) {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return m, 2000 + y, true
}

// MaskPAN keeps the first six and last four digits: "411111******1111".
func MaskPAN(pan string) string {
	pan = strings.ReplaceAll(pan, " ", "")
	if len(pan) < 13 {
		return strings.Repeat("*", len(pan))
	}
	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}
