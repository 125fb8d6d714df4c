package domain

import "time"

const isoDate = "2006-01-02"

// dateFormats are tried in order when normalizing user-supplied dates.
// Year-first formats take priority so "2023-03-15" is never read day-first.
var dateFormats = []string{isoDate, "2006/01/02", "02-01-2006", "02/01/2006"}

// DateRange is an inclusive date window. Values are raw client input until
// normalized by NormalizeDateRange; afterwards both endpoints are ISO-8601.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NormalizeDate parses a date in any accepted format and returns it in
// ISO-8601 form.
func NormalizeDate(s string) (string, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), nil
		}
	}
	return "", Errorf(KindInvalidInput, "validate", "invalid date format: %s", s)
}

// NormalizeDateRange normalizes both endpoints and rejects windows whose
// start falls after their end. ISO dates compare correctly as strings.
func NormalizeDateRange(r DateRange) (DateRange, error) {
	start, err := NormalizeDate(r.Start)
	if err != nil {
		return DateRange{}, err
	}
	end, err := NormalizeDate(r.End)
	if err != nil {
		return DateRange{}, err
	}
	if start > end {
		return DateRange{}, Errorf(KindInvalidInput, "validate", "start date %s is after end date %s", start, end)
	}
	return DateRange{Start: start, End: end}, nil
}
