package data

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shipspine/node/eerr"
)

// Date is a calendar date with no time-of-day component, wire-formatted as
// ISO 8601 "YYYY-MM-DD".
type Date struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func parseDate(s string) (Date, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: date %q", eerr.ErrParse, s)
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	day, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, fmt.Errorf("%w: date %q", eerr.ErrParse, s)
	}
	if m < 1 || m > 12 || day < 1 || day > 31 {
		return Date{}, fmt.Errorf("%w: date %q out of range", eerr.ErrParse, s)
	}
	return Date{Year: y, Month: m, Day: day}, nil
}

// Time is a time-of-day with no date, wire-formatted as "HH:MM:SS.ssssss"
// (seconds are always printed with six decimal places).
type Time struct {
	Hour   int
	Minute int
	Second float64
}

func (t Time) String() string {
	if t.Second == float64(int(t.Second)) {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, int(t.Second))
	}
	return fmt.Sprintf("%02d:%02d:%09.6f", t.Hour, t.Minute, t.Second)
}

func parseTime(s string) (Time, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Time{}, fmt.Errorf("%w: time %q", eerr.ErrParse, s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Time{}, fmt.Errorf("%w: time %q", eerr.ErrParse, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec >= 61 {
		return Time{}, fmt.Errorf("%w: time %q out of range", eerr.ErrParse, s)
	}
	return Time{Hour: h, Minute: m, Second: sec}, nil
}

// Duration is a signed ISO 8601 duration ("P1DT2H3M4S"), kept as discrete
// calendar fields rather than a single nanosecond count because calendar
// arithmetic (month/day overflow) is not a fixed-width operation: a
// duration of "1 month" means a different number of seconds depending on
// which month it's added to.
type Duration struct {
	Negative bool
	Years    int
	Months   int
	Days     int
	Hours    int
	Minutes  int
	Seconds  float64
}

func (d Duration) String() string {
	var b strings.Builder
	if d.Negative {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if d.Years != 0 {
		fmt.Fprintf(&b, "%dY", d.Years)
	}
	if d.Months != 0 {
		fmt.Fprintf(&b, "%dM", d.Months)
	}
	if d.Days != 0 {
		fmt.Fprintf(&b, "%dD", d.Days)
	}
	if d.Hours != 0 || d.Minutes != 0 || d.Seconds != 0 {
		b.WriteByte('T')
		if d.Hours != 0 {
			fmt.Fprintf(&b, "%dH", d.Hours)
		}
		if d.Minutes != 0 {
			fmt.Fprintf(&b, "%dM", d.Minutes)
		}
		if d.Seconds != 0 {
			fmt.Fprintf(&b, "%gS", d.Seconds)
		}
	}
	s := b.String()
	if s == "P" || s == "-P" {
		return "PT0S"
	}
	return s
}

func parseDuration(s string) (Duration, error) {
	var d Duration
	orig := s
	if strings.HasPrefix(s, "-") {
		d.Negative = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return Duration{}, fmt.Errorf("%w: duration %q", eerr.ErrParse, orig)
	}
	s = s[1:]
	datePart, timePart, hasTime := strings.Cut(s, "T")

	if err := scanDurationFields(datePart, map[byte]*int{
		'Y': &d.Years,
		'M': &d.Months,
		'D': &d.Days,
	}, nil); err != nil {
		return Duration{}, fmt.Errorf("%w: duration %q", eerr.ErrParse, orig)
	}
	if hasTime {
		if err := scanDurationFields(timePart, map[byte]*int{
			'H': &d.Hours,
			'M': &d.Minutes,
		}, &d.Seconds); err != nil {
			return Duration{}, fmt.Errorf("%w: duration %q", eerr.ErrParse, orig)
		}
	}
	return d, nil
}

// scanDurationFields walks a run of <number><unit-letter> tokens, e.g.
// "1Y2M3D"; secOut, when non-nil, receives the fractional value for 'S'
// (the only unit that may carry a decimal point).
func scanDurationFields(s string, units map[byte]*int, secOut *float64) error {
	for len(s) > 0 {
		i := 0
		for i < len(s) && (s[i] == '.' || s[i] == '-' || (s[i] >= '0' && s[i] <= '9')) {
			i++
		}
		if i == 0 || i == len(s) {
			return fmt.Errorf("malformed duration field")
		}
		numStr, unit := s[:i], s[i]
		s = s[i+1:]
		if unit == 'S' && secOut != nil {
			v, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return err
			}
			*secOut = v
			continue
		}
		dst, ok := units[unit]
		if !ok {
			return fmt.Errorf("unexpected duration unit %q", unit)
		}
		v, err := strconv.Atoi(numStr)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

// DateTime is a combined calendar date and time-of-day with an optional UTC
// offset, wire-formatted as ISO 8601 "YYYY-MM-DDTHH:MM:SS[+HH:MM|Z]".
type DateTime struct {
	Date       Date
	Time       Time
	HasOffset  bool
	OffsetMins int // minutes east of UTC
}

func (dt DateTime) String() string {
	s := dt.Date.String() + "T" + dt.Time.String()
	if !dt.HasOffset {
		return s
	}
	if dt.OffsetMins == 0 {
		return s + "Z"
	}
	sign := "+"
	mins := dt.OffsetMins
	if mins < 0 {
		sign = "-"
		mins = -mins
	}
	return fmt.Sprintf("%s%s%02d:%02d", s, sign, mins/60, mins%60)
}

func parseDateTime(s string) (DateTime, error) {
	datePart, rest, ok := strings.Cut(s, "T")
	if !ok {
		return DateTime{}, fmt.Errorf("%w: datetime %q", eerr.ErrParse, s)
	}
	date, err := parseDate(datePart)
	if err != nil {
		return DateTime{}, err
	}
	var dt DateTime
	dt.Date = date

	timePart := rest
	if strings.HasSuffix(rest, "Z") {
		dt.HasOffset = true
		timePart = rest[:len(rest)-1]
	} else if idx := strings.LastIndexAny(rest, "+-"); idx > 0 {
		offStr := rest[idx:]
		timePart = rest[:idx]
		sign := 1
		if offStr[0] == '-' {
			sign = -1
		}
		oh, om := 0, 0
		fmt.Sscanf(offStr[1:], "%d:%d", &oh, &om)
		dt.HasOffset = true
		dt.OffsetMins = sign * (oh*60 + om)
	}
	tm, err := parseTime(timePart)
	if err != nil {
		return DateTime{}, err
	}
	dt.Time = tm
	return dt, nil
}

// AbsoluteOrRelativeTime parses a value starting with "P" or "-P" as a
// Duration and anything else as a DateTime, per §4.1's two-way choice between an absolute point in time and an
// offset from "now". Unlike the generic Choice/ChoiceRoot kinds, this
// distinction is fixed at exactly two well-known shapes, so it gets its
// own Kind with a dedicated try-then-fallback parser instead of going
// through the alternative-table machinery.
type AbsoluteOrRelativeTime struct {
	IsAbsolute bool
	Absolute   DateTime
	Relative   Duration
}

func (a AbsoluteOrRelativeTime) String() string {
	if a.IsAbsolute {
		return a.Absolute.String()
	}
	return a.Relative.String()
}

func parseAbsoluteOrRelativeTime(s string) (AbsoluteOrRelativeTime, error) {
	if strings.HasPrefix(s, "P") || strings.HasPrefix(s, "-P") {
		d, err := parseDuration(s)
		if err != nil {
			return AbsoluteOrRelativeTime{}, err
		}
		return AbsoluteOrRelativeTime{IsAbsolute: false, Relative: d}, nil
	}
	dt, err := parseDateTime(s)
	if err != nil {
		return AbsoluteOrRelativeTime{}, fmt.Errorf("%w: absoluteOrRelativeTime %q", eerr.ErrParse, s)
	}
	return AbsoluteOrRelativeTime{IsAbsolute: true, Absolute: dt}, nil
}

// AddDuration applies d to dt with calendar-aware month/day overflow: adding
// months first clamps the day-of-month into the resulting month's length
// (so Jan 31 + 1 month lands on the last day of February, not March 3rd),
// then days/hours/minutes/seconds are applied as a straight time.Time
// addition so week/day-of-week rollovers fall out of the standard library.
func (dt DateTime) AddDuration(d Duration) DateTime {
	sign := 1
	if d.Negative {
		sign = -1
	}

	y, m, day := dt.Date.Year, dt.Date.Month, dt.Date.Day
	y += sign * d.Years
	m += sign * d.Months
	for m > 12 {
		m -= 12
		y++
	}
	for m < 1 {
		m += 12
		y--
	}
	if dim := daysInMonth(y, m); day > dim {
		day = dim
	}

	off := time.FixedZone("", dt.OffsetMins*60)
	base := time.Date(y, time.Month(m), day, dt.Time.Hour, dt.Time.Minute, int(dt.Time.Second), 0, off)
	base = base.Add(time.Duration(sign*d.Days) * 24 * time.Hour)
	base = base.Add(time.Duration(sign*d.Hours) * time.Hour)
	base = base.Add(time.Duration(sign*d.Minutes) * time.Minute)
	base = base.Add(time.Duration(float64(sign) * d.Seconds * float64(time.Second)))

	return DateTime{
		Date: Date{Year: base.Year(), Month: int(base.Month()), Day: base.Day()},
		Time: Time{
			Hour:   base.Hour(),
			Minute: base.Minute(),
			Second: float64(base.Second()) + (d.Seconds - float64(int(d.Seconds))),
		},
		HasOffset:  dt.HasOffset,
		OffsetMins: dt.OffsetMins,
	}
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
