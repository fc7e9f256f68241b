package geocode

import "strings"

// AddressFields are the partial address columns of a dataset row.
type AddressFields struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Candidates derives the ordered fallback address strings to try when the
// richest format yields no result. Combinations whose constituents are not
// all present are skipped, and exact duplicates keep only their first
// occurrence. Order is fixed, most specific first:
// street+city+zip, city+zip, street+zip, street+city, city+state.
func Candidates(f AddressFields) []string {
	street := strings.TrimSpace(f.Street)
	city := strings.TrimSpace(f.City)
	state := strings.TrimSpace(f.State)
	zip := strings.TrimSpace(f.Zip)

	combos := [][]string{
		{street, city, zip},
		{city, zip},
		{street, zip},
		{street, city},
		{city, state},
	}

	seen := make(map[string]bool)
	var out []string
	for _, combo := range combos {
		complete := true
		for _, part := range combo {
			if part == "" {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		addr := strings.Join(combo, ", ")
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}
