package ledger

// TotalShareBps is the exact sum every allocation must reach.
const TotalShareBps = 10000

// Allocate splits TotalShareBps evenly across contributors using integer
// basis points. The first N-1 contributors get floor(10000/N); the
// remainder (at most N-1 bps) goes to the last contributor, so the sum is
// exact without floating point.
func Allocate(contributorIDs []string) ([]Contributor, error) {
	n := len(contributorIDs)
	if n == 0 {
		return nil, errf(ErrEmptyContributorSet, "allocate requires at least one contributor")
	}

	base := TotalShareBps / n
	out := make([]Contributor, n)
	for i, id := range contributorIDs {
		out[i] = Contributor{ContributorID: id, ShareBps: base}
	}
	out[n-1].ShareBps = TotalShareBps - base*(n-1)
	return out, nil
}

// AllocateWeighted normalizes positive integer weights to basis points
// summing exactly to TotalShareBps, using the largest-remainder method:
// each contributor gets the floor of its proportional share, and the
// leftover bps go to the largest fractional remainders first (ties broken
// by input order, earliest first).
func AllocateWeighted(contributors []string, weights []int64) ([]Contributor, error) {
	n := len(contributors)
	if n == 0 {
		return nil, errf(ErrEmptyContributorSet, "allocate requires at least one contributor")
	}
	if len(weights) != n {
		return nil, errf(ErrEmptyContributorSet, "got %d weights for %d contributors", len(weights), n)
	}

	var total int64
	for _, w := range weights {
		if w <= 0 {
			return nil, errf(ErrEmptyContributorSet, "weights must be positive, got %d", w)
		}
		total += w
	}

	out := make([]Contributor, n)
	remainders := make([]int64, n)
	assigned := 0
	for i, id := range contributors {
		exact := weights[i] * TotalShareBps
		share := int(exact / total)
		out[i] = Contributor{ContributorID: id, ShareBps: share}
		remainders[i] = exact % total
		assigned += share
	}

	// Hand the leftover bps to the largest remainders.
	for leftover := TotalShareBps - assigned; leftover > 0; leftover-- {
		best := 0
		for i := 1; i < n; i++ {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		out[best].ShareBps++
		remainders[best] = -1
	}
	return out, nil
}
