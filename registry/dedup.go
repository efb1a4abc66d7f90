package registry

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/xrplwatch/valtrack/stream"
)

// dedupWindow is a rolling set of vote fingerprints bounded by a signing time
// watermark. It is an approximate window: entries outlive the window until the
// next pruning sweep, so a duplicate inside the window is always caught while
// one arriving long after may legitimately be treated as new again.
//
// Callers synchronize access; the registry holds its mutex around every call.
type dedupWindow struct {
	window    uint64
	entries   map[uint64]uint64 // fingerprint -> signing time
	watermark uint64
}

func newDedupWindow(window uint64) *dedupWindow {
	return &dedupWindow{
		window:  window,
		entries: make(map[uint64]uint64),
	}
}

// fingerprint canonically serializes the raw pre-enrichment vote and hashes
// it. Two votes identical in these fields are the same vote, whichever
// connection delivered them.
func fingerprint(msg *stream.ValidationMessage) uint64 {
	canonical := fmt.Sprintf("%s|%s|%d|%s|%s|%d",
		msg.LedgerHash,
		msg.LedgerIndex,
		msg.SigningTime,
		msg.ValidationPublicKey,
		msg.Signature,
		msg.Flags,
	)
	return xxhash.Sum64String(canonical)
}

// observe records the fingerprint if unseen and advances the watermark to the
// maximum signing time either way. Returns true when the vote is new.
func (w *dedupWindow) observe(fp uint64, signingTime uint64) bool {
	if signingTime > w.watermark {
		w.watermark = signingTime
	}
	if _, seen := w.entries[fp]; seen {
		return false
	}
	w.entries[fp] = signingTime
	return true
}

// prune drops fingerprints whose signing time is more than the window behind
// the watermark. Returns the number removed and the current watermark.
func (w *dedupWindow) prune() (int, uint64) {
	if w.watermark <= w.window {
		return 0, w.watermark
	}
	cutoff := w.watermark - w.window
	removed := 0
	for fp, signingTime := range w.entries {
		if signingTime < cutoff {
			delete(w.entries, fp)
			removed++
		}
	}
	return removed, w.watermark
}

func (w *dedupWindow) size() int {
	return len(w.entries)
}
