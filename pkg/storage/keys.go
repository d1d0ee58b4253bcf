package storage

// Key schema for Pebble storage:
//
//   act:<action_id>                        → versioned Action envelope
//   ach:<achievement_id>                   → Achievement
//   achby:<action_id>                      → achievement_id (mint claim)
//   pay:<achievement_id>:<contributor_id>  → PayoutReceipt
const (
	prefixAction      = "act:"
	prefixAchievement = "ach:"
	prefixClaim       = "achby:"
	prefixPayout      = "pay:"
)

func actionKey(id string) []byte { return []byte(prefixAction + id) }

func achievementKey(id string) []byte { return []byte(prefixAchievement + id) }

func claimKey(actionID string) []byte { return []byte(prefixClaim + actionID) }

func payoutKey(achievementID, contributorID string) []byte {
	return []byte(prefixPayout + achievementID + ":" + contributorID)
}

func payoutPrefix(achievementID string) []byte {
	return []byte(prefixPayout + achievementID + ":")
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, for bounded iteration.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}
