// Package policy derives the frozen per-request policy snapshot and power mode
package policy

import (
	rwdom "olivebranch/internal/services/rewrite/domain"
)

// Snapshot maps rewrite strength to tone/directness/temperature
// deterministically so re-derivation always yields the same snapshot
func Snapshot(strength rwdom.RewriteStrength) rwdom.PolicySnapshot {
	switch strength {
	case rwdom.StrengthLightTouch:
		return rwdom.PolicySnapshot{
			Tone:                 "warm",
			Directness:           "direct",
			EmotionalTemperature: "neutral",
		}
	default: // full_reframe, and the safe default for anything unknown
		return rwdom.PolicySnapshot{
			Tone:                 "gentle",
			Directness:           "softened",
			EmotionalTemperature: "cool",
		}
	}
}

// PowerMode compares household roles. Roles come from the datastore; anything
// unrecognized is treated as a peer relationship
func PowerMode(senderRole, recipientRole string) rwdom.PowerMode {
	rank := func(role string) int {
		switch role {
		case "guardian", "owner":
			return 2
		case "adult":
			return 1
		default: // member, teen, unknown
			return 0
		}
	}
	s, r := rank(senderRole), rank(recipientRole)
	switch {
	case s > r:
		return rwdom.PowerHigherSender
	case r > s:
		return rwdom.PowerHigherRecipient
	default:
		return rwdom.PowerPeer
	}
}
