// Package catalog holds the static appliance_defaults reference data used
// to backfill power ratings the user did not state.
package catalog

import "strings"

// Default is one row of the appliance_defaults reference table.
type Default struct {
	Type       string
	PowerWatts int
	Category   string
}

// Seed returns the fixed reference rows loaded at initialization. The
// content mirrors the seeded appliance_defaults table.
func Seed() []Default {
	return []Default{
		{Type: "Air Conditioner", PowerWatts: 1500, Category: "cooling"},
		{Type: "Ceiling Fan", PowerWatts: 75, Category: "cooling"},
		{Type: "Laptop", PowerWatts: 60, Category: "electronics"},
		{Type: "LED Light", PowerWatts: 10, Category: "lighting"},
		{Type: "Microwave", PowerWatts: 1000, Category: "kitchen"},
		{Type: "Refrigerator", PowerWatts: 150, Category: "kitchen"},
		{Type: "Television", PowerWatts: 100, Category: "entertainment"},
		{Type: "Washing Machine", PowerWatts: 500, Category: "laundry"},
		{Type: "Water Heater", PowerWatts: 2000, Category: "bathroom"},
	}
}

// Static is an in-memory, read-only lookup over the seed rows.
type Static struct {
	byName map[string]Default
}

// NewStatic builds the lookup from Seed().
func NewStatic() *Static {
	return NewStaticFrom(Seed())
}

// NewStaticFrom builds the lookup from the given rows, typically the
// appliance_defaults table as loaded at startup.
func NewStaticFrom(rows []Default) *Static {
	s := &Static{byName: make(map[string]Default, len(rows))}
	for _, d := range rows {
		s.byName[normalize(d.Type)] = d
	}
	return s
}

// Lookup matches an appliance name case-insensitively after trimming and
// collapsing whitespace. Matching is exact; fuzzy variants ("AC" for
// "Air Conditioner") are not resolved here.
func (s *Static) Lookup(name string) (Default, bool) {
	d, ok := s.byName[normalize(name)]
	return d, ok
}

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
