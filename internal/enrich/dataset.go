// Package enrich implements resumable, chunked enrichment of tabular guest
// datasets. Derived columns are written in place; a job's cursor persists
// between invocations so long-running enrichment advances incrementally.
package enrich

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Input columns expected from the upload layer.
const (
	ColPhone   = "Phone Number"
	ColArrival = "Arrival Date"
	ColAddress = "Address"
	ColCity    = "City"
	ColState   = "State"
	ColZip     = "Zip"
)

// Derived columns written by the enrichers.
const (
	ColLatitude       = "Latitude"
	ColLongitude      = "Longitude"
	ColDistanceMiles  = "Distance in Miles"
	ColTravelTime     = "Travel Time"
	ColDrivingMinutes = "Driving Time (Minutes)"
	ColOriginLat      = "Origin Latitude"
	ColOriginLng      = "Origin Longitude"

	ColCommStatus    = "Communication Status"
	ColLastContact   = "Last Contact Date"
	ColTotalMessages = "Total Messages"
	ColTotalCalls    = "Total Calls"
	ColAnsweredCalls = "Answered Calls"
	ColMissedCalls   = "Missed Calls"
	ColCallAttempts  = "Call Attempts"
	ColPreCalls      = "Pre-Arrival Calls"
	ColPostCalls     = "Post-Arrival Calls"
	ColPreTexts      = "Pre-Arrival Texts"
	ColPostTexts     = "Post-Arrival Texts"
	ColShortCalls    = "Calls < 40s"
)

// Row is one dataset record, column name to value. JSON numbers decode as
// float64.
type Row map[string]any

// Dataset is an ordered table. Enrichment mutates rows in place; only one
// session advances a given dataset's job at a time.
type Dataset struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// EnsureColumns appends any missing column names, preserving order.
func (d *Dataset) EnsureColumns(names ...string) {
	have := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		have[c] = true
	}
	for _, n := range names {
		if !have[n] {
			d.Columns = append(d.Columns, n)
			have[n] = true
		}
	}
}

// Fingerprint identifies a dataset upload. A re-upload with a different
// shape produces a new fingerprint, which resets any job keyed on it.
func Fingerprint(d *Dataset) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s", d.Name, len(d.Rows), strings.Join(d.Columns, ","))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// hasValue reports whether a cell already holds a valid, non-placeholder
// result. Nil, empty strings and zero numbers all count as unset, so
// sentinel-marked rows are re-attempted by a fresh job but never within
// the one that wrote them.
func hasValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != "" && val != "Error"
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}
