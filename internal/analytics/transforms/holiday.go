// Package transforms derives feature columns from existing dataset
// columns: holiday calendar features and expanding mean encodings.
// Transforms validate and compute for every segment before mutating the
// dataset, so a failed transform leaves it untouched.
package transforms

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/us"

	"github.com/driftwatch/driftwatch/internal/dataset"
)

// HolidayMode selects how holidays are encoded.
type HolidayMode string

const (
	// HolidayBinary writes 1 when the timestamp's day is a holiday.
	HolidayBinary HolidayMode = "binary"

	// HolidayDaysCount writes the number of holiday days inside the
	// period covered by each timestamp. The period runs to the next
	// timestamp; the last one reuses the preceding period's length.
	HolidayDaysCount HolidayMode = "days_count"
)

// DefaultHolidayColumn is the output column when none is given.
const DefaultHolidayColumn = "holiday"

// HolidayOptions configures the holiday feature transform.
type HolidayOptions struct {
	// Country is the holiday calendar code: us, gb, de or fr.
	Country string

	// Mode selects binary or days_count encoding.
	Mode HolidayMode

	// Column is the output column name.
	Column string
}

func (o *HolidayOptions) setDefaults() {
	if o.Mode == "" {
		o.Mode = HolidayBinary
	}
	if o.Column == "" {
		o.Column = DefaultHolidayColumn
	}
}

// SupportedCountries lists the calendar codes AddHolidayColumn accepts
func SupportedCountries() []string {
	return []string{"us", "gb", "de", "fr"}
}

// calendarFor builds the holiday calendar for a country code.
func calendarFor(country string) (*cal.Calendar, error) {
	c := &cal.Calendar{Name: strings.ToUpper(country)}
	switch strings.ToLower(country) {
	case "us":
		c.AddHoliday(us.Holidays...)
	case "gb":
		c.AddHoliday(gb.Holidays...)
	case "de":
		c.AddHoliday(de.Holidays...)
	case "fr":
		c.AddHoliday(fr.Holidays...)
	default:
		return nil, fmt.Errorf("unsupported holiday country: %s", country)
	}
	return c, nil
}

// AddHolidayColumn appends a holiday feature column to every segment.
func AddHolidayColumn(ds *dataset.Dataset, opts HolidayOptions) error {
	opts.setDefaults()
	if opts.Mode != HolidayBinary && opts.Mode != HolidayDaysCount {
		return fmt.Errorf("unknown holiday mode: %s", opts.Mode)
	}
	calendar, err := calendarFor(opts.Country)
	if err != nil {
		return err
	}

	columns := make(map[string][]float64)
	for _, segment := range ds.Segments() {
		f, err := ds.Frame(segment)
		if err != nil {
			return err
		}
		times := f.Times()

		values := make([]float64, len(times))
		switch opts.Mode {
		case HolidayBinary:
			for i, ts := range times {
				if isHoliday(calendar, ts) {
					values[i] = 1
				}
			}
		case HolidayDaysCount:
			for i, ts := range times {
				end := periodEnd(times, i)
				values[i] = float64(countHolidayDays(calendar, ts, end))
			}
		}
		columns[segment] = values
	}

	for segment, values := range columns {
		if err := ds.AddColumn(segment, opts.Column, values); err != nil {
			return err
		}
	}
	return nil
}

// HolidayNames returns the holiday name for each timestamp, empty for
// ordinary days. Intended for labeling, not as a feature column.
func HolidayNames(times []time.Time, country string) ([]string, error) {
	calendar, err := calendarFor(country)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(times))
	for i, ts := range times {
		actual, observed, holiday := calendar.IsHoliday(ts)
		if (actual || observed) && holiday != nil {
			names[i] = holiday.Name
		}
	}
	return names, nil
}

func isHoliday(calendar *cal.Calendar, ts time.Time) bool {
	actual, observed, _ := calendar.IsHoliday(ts)
	return actual || observed
}

// periodEnd returns the exclusive end of the period timestamp i covers.
// The final timestamp has no successor, so it reuses the previous step;
// a lone timestamp covers a single day.
func periodEnd(times []time.Time, i int) time.Time {
	if i+1 < len(times) {
		return times[i+1]
	}
	if i > 0 {
		return times[i].Add(times[i].Sub(times[i-1]))
	}
	return times[i].AddDate(0, 0, 1)
}

// countHolidayDays counts the distinct holiday days overlapping
// [start, end).
func countHolidayDays(calendar *cal.Calendar, start, end time.Time) int {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	count := 0
	for day.Before(end) {
		if isHoliday(calendar, day) {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}
