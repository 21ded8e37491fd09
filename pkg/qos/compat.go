package qos

// PolicyId names a QoS policy for RequestedIncompatibleQos /
// OfferedIncompatibleQos status reporting (spec §4.7, §8 scenario 5).
type PolicyId int

const (
	PolicyReliability PolicyId = iota
	PolicyDurability
	PolicyDeadline
	PolicyLatencyBudget
	PolicyLiveliness
	PolicyOwnership
)

// Compatible reports whether requested (reader-side) QoS is satisfied
// by offered (writer-side) QoS, per spec §4.7 point 2. On
// incompatibility it returns the first offending policy id, matching
// OMG DDS's "first failing policy wins" semantics.
func Compatible(offered, requested EndpointQos) (ok bool, offending PolicyId) {
	if !reliabilityCompatible(offered.Reliability, requested.Reliability) {
		return false, PolicyReliability
	}
	if offered.Durability.Kind < requested.Durability.Kind {
		return false, PolicyDurability
	}
	if !offered.Deadline.Period.LessEqual(requested.Deadline.Period) {
		return false, PolicyDeadline
	}
	if !offered.LatencyBudget.Duration.LessEqual(requested.LatencyBudget.Duration) {
		return false, PolicyLatencyBudget
	}
	if !livelinessCompatible(offered.Liveliness, requested.Liveliness) {
		return false, PolicyLiveliness
	}
	if offered.Ownership.Kind != requested.Ownership.Kind {
		return false, PolicyOwnership
	}
	return true, 0
}

func reliabilityCompatible(offered, requested ReliabilityQos) bool {
	// RELIABLE offered satisfies any requested level; BEST_EFFORT
	// offered only satisfies a BEST_EFFORT request (spec §4.7.1).
	if offered.Kind == Reliable {
		return true
	}
	return requested.Kind == BestEffort
}

func livelinessCompatible(offered, requested LivelinessQos) bool {
	if offered.Kind < requested.Kind {
		return false
	}
	return offered.LeaseDuration.LessEqual(requested.LeaseDuration)
}

// PartitionsMatch reports whether two partition sets overlap. Two empty
// sets match; a single empty set stands for the default partition ""
// and matches only a set containing "" (or a pattern matching it). '*'
// and '?' are glob wildcards within each name (spec §4.7 point 3).
func PartitionsMatch(a, b PartitionQos) bool {
	if len(a.Names) == 0 && len(b.Names) == 0 {
		return true
	}
	an, bn := a.Names, b.Names
	if len(an) == 0 {
		an = []string{""}
	}
	if len(bn) == 0 {
		bn = []string{""}
	}
	for _, x := range an {
		for _, y := range bn {
			if globMatch(x, y) || globMatch(y, x) {
				return true
			}
		}
	}
	return false
}

// globMatch reports whether name matches pattern, where pattern may
// contain '*' (any run, including empty) and '?' (exactly one rune).
func globMatch(pattern, name string) bool {
	return globMatchRunes([]rune(pattern), []rune(name))
}

func globMatchRunes(pat, name []rune) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}
	switch pat[0] {
	case '*':
		if globMatchRunes(pat[1:], name) {
			return true
		}
		for i := 0; i < len(name); i++ {
			if globMatchRunes(pat[1:], name[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if len(name) == 0 {
			return false
		}
		return globMatchRunes(pat[1:], name[1:])
	default:
		if len(name) == 0 || name[0] != pat[0] {
			return false
		}
		return globMatchRunes(pat[1:], name[1:])
	}
}
