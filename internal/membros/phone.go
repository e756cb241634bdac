package membros

import "strings"

// FormatPhone splits a free-form phone string into the
// country/area/subscriber shape the gateway requires. Inputs with fewer
// than 10 digits cannot be split reliably, so a safe placeholder is
// returned instead of an error; the payment document does not depend on
// the phone being real.
func FormatPhone(raw string) Phone {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()

	// Strip the Brazilian country prefix when present.
	if len(s) >= 12 && strings.HasPrefix(s, "55") {
		s = s[2:]
	}

	if len(s) < 10 {
		return Phone{CountryCode: "55", AreaCode: "11", Number: "999999999"}
	}

	return Phone{
		CountryCode: "55",
		AreaCode:    s[:2],
		Number:      s[2:],
	}
}
