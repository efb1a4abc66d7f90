package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRippleTimeRoundTrip(t *testing.T) {
	epoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, uint64(0), RippleTime(epoch))
	require.Equal(t, epoch, RippleTimeToUTC(0))

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, now, RippleTimeToUTC(RippleTime(now)))

	// pre-epoch times clamp to zero
	require.Equal(t, uint64(0), RippleTime(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
}
