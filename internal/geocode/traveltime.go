package geocode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var (
	hoursRE   = regexp.MustCompile(`(\d+)\s*hour`)
	minutesRE = regexp.MustCompile(`(\d+)\s*minute`)
	secondsRE = regexp.MustCompile(`(\d+)\s*second`)
)

// ParseTravelTime extracts hour/minute/second components from a provider's
// free-text travel time (e.g. "1 hours, 12 minutes, 49 seconds") and
// returns a compact "1h 12m" display string plus the total driving time in
// minutes, rounded to two decimals. Unparseable or empty input yields
// ("0h 0m", 0).
func ParseTravelTime(text string) (string, float64) {
	hours := extractInt(hoursRE, text)
	minutes := extractInt(minutesRE, text)
	seconds := extractInt(secondsRE, text)

	display := fmt.Sprintf("%dh %dm", hours, minutes)
	total := float64(hours)*60 + float64(minutes) + float64(seconds)/60
	return display, math.Round(total*100) / 100
}

func extractInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
