package openphone

import (
	"fmt"
	"strings"
)

// NormalizePhone canonicalizes a raw phone value to E.164 so the same
// guest resolves to one identity across every channel lookup. Ten-digit
// numbers are assumed to be NANP and get a +1 prefix.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return "+1" + digits, nil
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits, nil
	case len(digits) >= 11 && len(digits) <= 15 && strings.HasPrefix(raw, "+"):
		return "+" + digits, nil
	default:
		return "", fmt.Errorf("unparseable phone number %q", raw)
	}
}
