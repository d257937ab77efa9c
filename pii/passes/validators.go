package passes

import (
	"regexp"
	"strings"
)

// FormatValidator checks one entity type's structural/checksum rules.
// Invalid values keep a reduced confidence ceiling instead of being
// discarded, so reviewers still see them.
type FormatValidator interface {
	Validate(text string) (valid bool, reason string)
	// ValidBoost multiplies confidence on success (capped at 1.0).
	ValidBoost() float64
	// InvalidCeiling caps confidence on failure.
	InvalidCeiling() float64
}

var (
	nonAlnumRe    = regexp.MustCompile(`[^A-Za-z0-9]`)
	euVATPrefixRe = regexp.MustCompile(`^[A-Z]{2}`)
)

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// mod97 computes ISO 7064 mod 97-10 over a rearranged alphanumeric string,
// processing digit by digit to avoid overflow.
func mod97(s string) int {
	remainder := 0
	for _, r := range s {
		var v int
		switch {
		case r >= '0' && r <= '9':
			remainder = (remainder*10 + int(r-'0')) % 97
			continue
		case r >= 'A' && r <= 'Z':
			v = int(r-'A') + 10
		case r >= 'a' && r <= 'z':
			v = int(r-'a') + 10
		default:
			return -1
		}
		remainder = (remainder*100 + v) % 97
	}
	return remainder
}

// ibanValidator verifies length, country shape and the mod-97 checksum.
type ibanValidator struct{}

func (ibanValidator) Validate(text string) (bool, string) {
	iban := strings.ToUpper(nonAlnumRe.ReplaceAllString(text, ""))
	if len(iban) < 15 || len(iban) > 34 {
		return false, "iban length out of range"
	}
	if iban[0] < 'A' || iban[0] > 'Z' || iban[1] < 'A' || iban[1] > 'Z' {
		return false, "iban missing country code"
	}
	rearranged := iban[4:] + iban[:4]
	if mod97(rearranged) != 1 {
		return false, "iban mod-97 checksum failed"
	}
	return true, "iban checksum ok"
}

func (ibanValidator) ValidBoost() float64     { return 1.15 }
func (ibanValidator) InvalidCeiling() float64 { return 0.3 }

// avsValidator verifies the 13-digit Swiss AVS number: 756 prefix and EAN-13
// check digit.
type avsValidator struct{}

func (avsValidator) Validate(text string) (bool, string) {
	digits := digitsOnly(text)
	if len(digits) != 13 {
		return false, "avs number must have 13 digits"
	}
	if !strings.HasPrefix(digits, "756") {
		return false, "avs number must start with 756"
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(digits[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	if check != int(digits[12]-'0') {
		return false, "avs check digit mismatch"
	}
	return true, "avs check digit ok"
}

func (avsValidator) ValidBoost() float64     { return 1.15 }
func (avsValidator) InvalidCeiling() float64 { return 0.3 }

// vatValidator verifies the Swiss UID (CHE + 9 digits, mod-11 weighted check
// digit); EU VAT numbers only get a shape check.
type vatValidator struct{}

var vatWeights = [8]int{5, 4, 3, 2, 7, 6, 5, 4}

func (vatValidator) Validate(text string) (bool, string) {
	upper := strings.ToUpper(text)
	if strings.HasPrefix(upper, "CHE") {
		digits := digitsOnly(upper)
		if len(digits) != 9 {
			return false, "uid must have 9 digits"
		}
		sum := 0
		for i := 0; i < 8; i++ {
			sum += int(digits[i]-'0') * vatWeights[i]
		}
		check := 11 - sum%11
		if check == 10 {
			return false, "uid check digit undefined"
		}
		if check == 11 {
			check = 0
		}
		if check != int(digits[8]-'0') {
			return false, "uid check digit mismatch"
		}
		return true, "uid check digit ok"
	}
	if euVATPrefixRe.MatchString(upper) {
		return true, "eu vat shape ok"
	}
	return false, "unrecognized vat shape"
}

func (vatValidator) ValidBoost() float64     { return 1.1 }
func (vatValidator) InvalidCeiling() float64 { return 0.35 }

// paymentRefValidator verifies ISO 11649 creditor references (RF mod-97) and
// Swiss QR references (27 digits, recursive mod-10 check digit).
type paymentRefValidator struct{}

var qrMod10Table = [10]int{0, 9, 4, 6, 8, 2, 7, 1, 3, 5}

func (paymentRefValidator) Validate(text string) (bool, string) {
	cleaned := strings.ToUpper(nonAlnumRe.ReplaceAllString(text, ""))
	if strings.HasPrefix(cleaned, "RF") {
		if len(cleaned) < 5 || len(cleaned) > 25 {
			return false, "creditor reference length out of range"
		}
		if mod97(cleaned[4:]+cleaned[:4]) != 1 {
			return false, "creditor reference mod-97 failed"
		}
		return true, "creditor reference ok"
	}
	digits := digitsOnly(cleaned)
	if len(digits) != 27 {
		return false, "qr reference must have 27 digits"
	}
	carry := 0
	for i := 0; i < 26; i++ {
		carry = qrMod10Table[(carry+int(digits[i]-'0'))%10]
	}
	if (10-carry)%10 != int(digits[26]-'0') {
		return false, "qr reference check digit mismatch"
	}
	return true, "qr reference ok"
}

func (paymentRefValidator) ValidBoost() float64     { return 1.15 }
func (paymentRefValidator) InvalidCeiling() float64 { return 0.3 }

// emailValidator is structural only: one @, non-empty local part, dotted
// domain.
type emailValidator struct{}

func (emailValidator) Validate(text string) (bool, string) {
	at := strings.Count(text, "@")
	if at != 1 {
		return false, "email must contain exactly one @"
	}
	parts := strings.SplitN(text, "@", 2)
	if parts[0] == "" || !strings.Contains(parts[1], ".") {
		return false, "email domain malformed"
	}
	if strings.HasPrefix(parts[1], ".") || strings.HasSuffix(parts[1], ".") {
		return false, "email domain malformed"
	}
	return true, "email shape ok"
}

func (emailValidator) ValidBoost() float64     { return 1.05 }
func (emailValidator) InvalidCeiling() float64 { return 0.4 }

// phoneValidator checks digit count for plausible CH/EU numbers.
type phoneValidator struct{}

func (phoneValidator) Validate(text string) (bool, string) {
	digits := digitsOnly(text)
	if len(digits) < 9 || len(digits) > 15 {
		return false, "phone digit count implausible"
	}
	return true, "phone digit count ok"
}

func (phoneValidator) ValidBoost() float64     { return 1.05 }
func (phoneValidator) InvalidCeiling() float64 { return 0.4 }
