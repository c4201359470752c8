package debates

// RecomputeVoteTotals rebuilds the cached per-side and total vote counters
// by summing argument tallies grouped by side across the whole argument list.
// The full recomputation keeps the cached totals self-healing after deletes
// or any prior inconsistency; it is deterministic and order-independent.
func RecomputeVoteTotals(debate *Debate) {
	support := 0
	oppose := 0
	for index := range debate.Arguments {
		switch debate.Arguments[index].Side {
		case SideSupport:
			support += debate.Arguments[index].Votes
		case SideOppose:
			oppose += debate.Arguments[index].Votes
		}
	}
	debate.SupportVotes = support
	debate.OpposeVotes = oppose
	debate.TotalVotes = support + oppose
}

// winnerFromTotals derives the winner from the cached vote counters.
// Strictly greater support wins support, strictly greater oppose wins
// oppose, a tie yields nil.
func winnerFromTotals(debate *Debate) *Side {
	switch {
	case debate.SupportVotes > debate.OpposeVotes:
		winner := SideSupport
		return &winner
	case debate.OpposeVotes > debate.SupportVotes:
		winner := SideOppose
		return &winner
	default:
		return nil
	}
}
