package debates

import (
	"context"
	"errors"
	"time"
)

// ErrDebateNotFound is returned by Store.Load when no debate matches the id.
var ErrDebateNotFound = errors.New("debates: debate not found")

// QueryFilter narrows a Store.Query scan. Zero values leave a dimension unbounded.
type QueryFilter struct {
	// ActiveOnly restricts results to debates still marked active.
	ActiveOnly bool
	// ClosedWithWinner restricts results to closed debates with a non-null winner.
	ClosedWithWinner bool
	// CreatedAfter excludes debates created before the instant, when non-zero.
	CreatedAfter time.Time
	// EndedAfter excludes debates whose end time precedes the instant, when non-zero.
	EndedAfter time.Time
	// InvolvedUser restricts results to debates where the handle participated
	// or authored an argument, when non-empty.
	InvolvedUser string
}

// Store is the persistence contract for debate documents. Each operation is
// a whole-document read or write; last-write-wins semantics are accepted.
type Store interface {
	// Load fetches one debate, returning ErrDebateNotFound when absent.
	Load(ctx context.Context, debateID string) (*Debate, error)
	// Save persists the full debate document, inserting or replacing it.
	Save(ctx context.Context, debate *Debate) error
	// Query returns debates matching the filter, newest created first.
	Query(ctx context.Context, filter QueryFilter) ([]Debate, error)
}

// MatchesFilter reports whether the debate satisfies every bound dimension of
// the filter. Store implementations that cannot evaluate a dimension natively
// delegate to this predicate after decoding.
func MatchesFilter(debate *Debate, filter QueryFilter) bool {
	if filter.ActiveOnly && !debate.IsActive {
		return false
	}
	if filter.ClosedWithWinner && (debate.IsActive || debate.Winner == nil) {
		return false
	}
	if !filter.CreatedAfter.IsZero() && debate.CreatedAt.Before(filter.CreatedAfter) {
		return false
	}
	if !filter.EndedAfter.IsZero() && debate.EndTime.Before(filter.EndedAfter) {
		return false
	}
	if filter.InvolvedUser != "" && !involvesUser(debate, filter.InvolvedUser) {
		return false
	}
	return true
}

func involvesUser(debate *Debate, userID string) bool {
	if _, ok := debate.ParticipantFor(userID); ok {
		return true
	}
	for index := range debate.Arguments {
		if debate.Arguments[index].AuthorID == userID {
			return true
		}
	}
	return false
}
