package telemetry

import "sort"

// finalizedBlock implements spec.md's supermajority rule: the height at
// position ⌊2·N/3⌋ of per-peer heights sorted descending, where N is the
// configured peer count (not the number of heights reported) — so a
// network that hasn't heard from enough peers yet correctly reports no
// finalized block rather than a premature one.
func finalizedBlock(configuredPeers int, heights []uint64) *uint64 {
	idx := (2 * configuredPeers) / 3
	if idx >= len(heights) {
		return nil
	}
	sorted := append([]uint64(nil), heights...)
	sort.Sort(sort.Reverse(sortableUint64s(sorted)))
	h := sorted[idx]
	return &h
}

type sortableUint64s []uint64

func (s sortableUint64s) Len() int           { return len(s) }
func (s sortableUint64s) Less(i, j int) bool { return s[i] < s[j] }
func (s sortableUint64s) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// averageCommitTime is the arithmetic mean of each reporting peer's own
// running average (spec.md's avg_commit_time aggregation rule).
func averageCommitTime(perPeerAverages []int64) (int64, bool) {
	if len(perPeerAverages) == 0 {
		return 0, false
	}
	var sum int64
	for _, v := range perPeerAverages {
		sum += v
	}
	return sum / int64(len(perPeerAverages)), true
}

// totalPeers is the cardinality of the union of each peer's own public key
// and each peer's reported connected-peers set.
func totalPeers(records map[string]PeerRecord) int {
	seen := make(map[PublicKey]struct{})
	for _, rec := range records {
		if rec.Config != nil {
			seen[rec.Config.PublicKey] = struct{}{}
		}
		for pk := range rec.ConnectedPeers {
			seen[pk] = struct{}{}
		}
	}
	return len(seen)
}
