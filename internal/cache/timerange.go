package cache

import "fmt"

// TimeRange is a named time bucket that data keys carry as one of their segments,
// e.g. "timeseries:bonk:hour:24h".
type TimeRange string

const (
	Range1h   TimeRange = "1h"
	Range4h   TimeRange = "4h"
	Range12h  TimeRange = "12h"
	Range24h  TimeRange = "24h"
	Range7d   TimeRange = "7d"
	Range14d  TimeRange = "14d"
	Range30d  TimeRange = "30d"
	Range90d  TimeRange = "90d"
	Range180d TimeRange = "180d"
	Range1y   TimeRange = "1y"
	RangeAll  TimeRange = "all"
)

var timeRanges = []TimeRange{
	Range1h, Range4h, Range12h, Range24h, Range7d, Range14d,
	Range30d, Range90d, Range180d, Range1y, RangeAll,
}

// TimeRanges returns the known vocabulary in ascending order.
func TimeRanges() []TimeRange {
	return append([]TimeRange(nil), timeRanges...)
}

// ParseTimeRange validates s against the known vocabulary.
func ParseTimeRange(s string) (TimeRange, error) {
	for _, tr := range timeRanges {
		if string(tr) == s {
			return tr, nil
		}
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownTimeRange)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTimeRange, s)
}

// Days returns how many days of history the range spans, as upstream chart APIs expect.
// RangeAll maps to "max".
func (tr TimeRange) Days() string {
	switch tr {
	case Range1h, Range4h, Range12h, Range24h:
		return "1"
	case Range7d:
		return "7"
	case Range14d:
		return "14"
	case Range30d:
		return "30"
	case Range90d:
		return "90"
	case Range180d:
		return "180"
	case Range1y:
		return "365"
	default:
		return "max"
	}
}
