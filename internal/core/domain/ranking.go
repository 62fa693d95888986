package domain

import "sort"

// Outranks reports whether a ranks ahead of b: lower price first, then the
// earlier submission, then the lower per-auction sequence.
func Outranks(a, b Bid) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Sequence < b.Sequence
}

// RankLive returns the live bids of bids in canonical ranking order.
// The input slice is not modified.
func RankLive(bids []Bid) []Bid {
	live := make([]Bid, 0, len(bids))
	for _, b := range bids {
		if b.Status.IsLive() {
			live = append(live, b)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return Outranks(live[i], live[j])
	})
	return live
}
