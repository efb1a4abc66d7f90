package amendments

import (
	"sort"
	"sync"
	"time"
)

// tally accumulates amendment ballots: which on-list identities voted for
// which amendment. Validators broadcast amendment votes ahead of flag
// ledgers, so recent votes are what matters; voters are timestamped and aged
// out of the count after the staleness cutoff.
type tally struct {
	mu     sync.Mutex
	voters map[string]map[string]time.Time // amendment -> master key -> last seen
}

const voterStaleAfter = 20 * time.Minute

func newTally() *tally {
	return &tally{
		voters: make(map[string]map[string]time.Time),
	}
}

func (t *tally) record(amendments []string, masterKey string, at time.Time) {
	if masterKey == "" || len(amendments) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, amendment := range amendments {
		byVoter, ok := t.voters[amendment]
		if !ok {
			byVoter = make(map[string]time.Time)
			t.voters[amendment] = byVoter
		}
		byVoter[masterKey] = at
	}
}

type tallyRow struct {
	amendment string
	votes     int
}

// rows returns per-amendment vote counts with stale voters dropped, sorted by
// votes descending then amendment hash.
func (t *tally) rows(now time.Time) []tallyRow {
	cutoff := now.Add(-voterStaleAfter)
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]tallyRow, 0, len(t.voters))
	for amendment, byVoter := range t.voters {
		for masterKey, seen := range byVoter {
			if seen.Before(cutoff) {
				delete(byVoter, masterKey)
			}
		}
		if len(byVoter) == 0 {
			delete(t.voters, amendment)
			continue
		}
		out = append(out, tallyRow{amendment: amendment, votes: len(byVoter)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].votes != out[j].votes {
			return out[i].votes > out[j].votes
		}
		return out[i].amendment < out[j].amendment
	})
	return out
}
