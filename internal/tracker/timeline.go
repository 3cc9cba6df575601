package tracker

import "time"

const (
	// DateKeyLayout buckets deltas by UTC calendar day.
	DateKeyLayout = "2006-01-02"

	// DisplayLayout formats a day's last transaction time in the display zone.
	DisplayLayout = "2006-01-02 15:04:05 MST"
)

// BuildTimeline folds timestamp-ordered deltas into one running balance per UTC day.
// Each day carries the running total after its last delta. loc only affects
// LocalDisplayTime; nil means time.Local. The input is not modified.
func BuildTimeline(deltas []TxDelta, loc *time.Location) []DailyBalance {
	if loc == nil {
		loc = time.Local
	}

	ordered := make([]TxDelta, len(deltas))
	copy(ordered, deltas)
	SortDeltas(ordered)

	timeline := make([]DailyBalance, 0)
	var running int64
	for _, d := range ordered {
		running += d.NetSatoshis
		ts := time.Unix(d.Timestamp, 0)
		entry := DailyBalance{
			DateKey:          ts.UTC().Format(DateKeyLayout),
			RunningBalance:   running,
			LastTimestamp:    d.Timestamp,
			LocalDisplayTime: ts.In(loc).Format(DisplayLayout),
		}

		if n := len(timeline); n > 0 && timeline[n-1].DateKey == entry.DateKey {
			timeline[n-1] = entry
			continue
		}
		timeline = append(timeline, entry)
	}

	return timeline
}
