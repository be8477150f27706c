package room

import (
	"strconv"
	"strings"
	"time"
)

// Ended is what TimeLeft returns once the end time has passed.
const Ended = "ended"

// TimeLeft formats the time remaining until end as "1d 2h 3m 4s".
// Zero units are omitted; seconds are always shown.
func TimeLeft(end, now time.Time) string {
	diff := end.Sub(now)
	if diff <= 0 {
		return Ended
	}

	total := int64(diff / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	var b strings.Builder
	for _, part := range []struct {
		n    int64
		unit string
	}{{days, "d"}, {hours, "h"}, {minutes, "m"}} {
		if part.n > 0 {
			b.WriteString(strconv.FormatInt(part.n, 10))
			b.WriteString(part.unit)
			b.WriteByte(' ')
		}
	}
	b.WriteString(strconv.FormatInt(seconds, 10))
	b.WriteByte('s')
	return b.String()
}
