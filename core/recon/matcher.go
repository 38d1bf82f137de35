package recon

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// candidate is one scored external option for an internal record.
type candidate struct {
	extIdx int
	score  float64
}

// Match pairs internal records against the external collection under the
// given policy. Scoring for different internal records is independent and
// runs on a bounded worker pool; claiming of external records happens
// sequentially afterwards so that no external record is claimed twice.
//
// The function is pure over its inputs: it never mutates the record slices.
func Match(ctx context.Context, internals []InternalRecord, externals []ExternalRecord, policy MatchPolicy) (MatchResult, error) {
	candidates, err := scoreCandidates(ctx, internals, externals, policy)
	if err != nil {
		return MatchResult{}, err
	}

	result := MatchResult{
		Matches:           make([]RecordMatch, 0, len(internals)),
		UnmatchedInternal: []InternalRecord{},
		UnmatchedExternal: []ExternalRecord{},
		PolicyName:        policy.Name(),
	}

	// Greedy claiming over the unconsumed external pool, in internal input
	// order. Candidate lists are already sorted best-first.
	claimed := make([]bool, len(externals))
	for i, in := range internals {
		matched := false
		for _, c := range candidates[i] {
			if claimed[c.extIdx] {
				continue
			}
			claimed[c.extIdx] = true
			result.Matches = append(result.Matches, RecordMatch{
				Internal:   in,
				External:   externals[c.extIdx],
				Confidence: c.score,
			})
			matched = true
			break
		}
		if !matched {
			result.UnmatchedInternal = append(result.UnmatchedInternal, in)
		}
	}

	for j, ex := range externals {
		if !claimed[j] {
			result.UnmatchedExternal = append(result.UnmatchedExternal, ex)
		}
	}

	return result, nil
}

// scoreCandidates computes, for every internal record, its above-threshold
// external candidates sorted by score descending, then earliest settlement
// timestamp, then reference ID. Work fans out over a pool sized to the
// available cores.
func scoreCandidates(ctx context.Context, internals []InternalRecord, externals []ExternalRecord, policy MatchPolicy) ([][]candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([][]candidate, len(internals))
	threshold := policy.Threshold()

	workers := runtime.GOMAXPROCS(0)
	if workers > len(internals) {
		workers = len(internals)
	}
	if workers < 1 {
		workers = 1
	}

	// A scoring fault must fail the run, not crash the process; each job is
	// recovered individually so workers keep draining the channel.
	var scoreMu sync.Mutex
	var scoreErr error
	score := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				scoreMu.Lock()
				if scoreErr == nil {
					scoreErr = fmt.Errorf("scoring internal record %s: %v", internals[i].TransactionID, r)
				}
				scoreMu.Unlock()
			}
		}()
		candidates[i] = scoreOne(internals[i], externals, policy, threshold)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				score(i)
			}
		}()
	}

	var ctxErr error
feed:
	for i := range internals {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if ctxErr != nil {
		return nil, ctxErr
	}
	if scoreErr != nil {
		return nil, scoreErr
	}
	return candidates, nil
}

func scoreOne(in InternalRecord, externals []ExternalRecord, policy MatchPolicy, threshold float64) []candidate {
	var out []candidate
	for j, ex := range externals {
		score := policy.Score(in, ex)
		if score >= threshold {
			out = append(out, candidate{extIdx: j, score: score})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		ca, cb := out[a], out[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}
		ta, tb := externals[ca.extIdx].SettledAt, externals[cb.extIdx].SettledAt
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return externals[ca.extIdx].ReferenceID < externals[cb.extIdx].ReferenceID
	})
	return out
}
