package domain

import "time"

// caracas is the fiscal timezone. Storage stays in UTC; every fiscal-day
// boundary and report grouping is computed in this location.
var caracas *time.Location

func init() {
	loc, err := time.LoadLocation("America/Caracas")
	if err != nil {
		// Fixed offset fallback; Venezuela has no DST (UTC-4 since 2016).
		loc = time.FixedZone("VET", -4*60*60)
	}
	caracas = loc
}

// Caracas returns the fiscal timezone location.
func Caracas() *time.Location { return caracas }

// FiscalDate returns the calendar date of t in the fiscal timezone, in
// YYYY-MM-DD form. This is the grouping key for fiscal days and reports.
func FiscalDate(t time.Time) string {
	return t.In(caracas).Format("2006-01-02")
}
