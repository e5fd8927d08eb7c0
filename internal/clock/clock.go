// Package clock supplies the current instant and the canonical
// UTC-date-string encoding used by every temporal field in the registry.
package clock

import "time"

// utcDateLayout is ISO-8601 zulu with millisecond precision. The encoding is
// strictly lexicographically monotone over time, which is what makes string
// comparison in repository predicates equivalent to temporal comparison.
const utcDateLayout = "2006-01-02T15:04:05.000Z"

// Clock abstracts the current instant so services can be tested with a
// fixed time source.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// UTCDateString encodes t as a canonical UTC-date-string.
func UTCDateString(t time.Time) string {
	return t.UTC().Format(utcDateLayout)
}

// EpochMillisDateString encodes a Unix epoch-millisecond timestamp as a
// canonical UTC-date-string.
func EpochMillisDateString(ms int64) string {
	return UTCDateString(time.UnixMilli(ms))
}

// ParseUTCDate parses a canonical UTC-date-string. It accepts only the
// canonical layout; anything else is a validation failure upstream.
func ParseUTCDate(s string) (time.Time, error) {
	return time.Parse(utcDateLayout, s)
}
