package codec

import "time"

// rippleEpoch is 2000-01-01T00:00:00Z in unix seconds. Validation signing
// times on the wire count seconds from this epoch.
const rippleEpoch = 946684800

// RippleTime converts a wall clock time to ripple epoch seconds.
func RippleTime(t time.Time) uint64 {
	u := t.Unix()
	if u < rippleEpoch {
		return 0
	}
	return uint64(u - rippleEpoch)
}

// RippleTimeToUTC converts ripple epoch seconds to a UTC time.
func RippleTimeToUTC(rt uint64) time.Time {
	return time.Unix(int64(rt)+rippleEpoch, 0).UTC()
}
