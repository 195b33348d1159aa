package domain

// Closed-vocabulary membership checks. The classifier re-validates every
// provider field against these regardless of what the output schema promised

// KnownTopic reports whether t is in the closed topic set
func KnownTopic(t Topic) bool {
	switch t {
	case TopicChores, TopicMoney, TopicParenting, TopicCommunication,
		TopicTime, TopicHabits, TopicRespect, TopicOther:
		return true
	}
	return false
}

// KnownIntent reports whether i is in the closed intent set
func KnownIntent(i Intent) bool {
	switch i {
	case IntentVent, IntentConcern, IntentBoundary, IntentRequest, IntentLogistics:
		return true
	}
	return false
}

// KnownStrength reports whether s is a known rewrite strength
func KnownStrength(s RewriteStrength) bool {
	return s == StrengthLightTouch || s == StrengthFullReframe
}

// KnownSafetyFlag reports whether f is in the closed safety-flag set
func KnownSafetyFlag(f SafetyFlag) bool {
	switch f {
	case SafetyNone, SafetySelfHarm, SafetyViolence, SafetyAbuse, SafetySubstance:
		return true
	}
	return false
}

// KnownSurface reports whether s is an allow-listed surface
func KnownSurface(s Surface) bool {
	switch s {
	case SurfaceJournal, SurfaceNote, SurfaceCheckin:
		return true
	}
	return false
}
