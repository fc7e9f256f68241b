package logger

import "strings"

// RedactPhone masks a phone number for safe logging, keeping the country
// code and last two digits. "+19195551234" → "+1*******34"
// Very short values are fully masked.
func RedactPhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' || r == '+' {
			digits.WriteRune(r)
		}
	}
	p := digits.String()
	if len(p) < 6 {
		return "***"
	}
	prefix := 2
	if strings.HasPrefix(p, "+") {
		prefix = 3
	}
	if prefix+2 >= len(p) {
		return "***"
	}
	return p[:prefix] + strings.Repeat("*", len(p)-prefix-2) + p[len(p)-2:]
}
