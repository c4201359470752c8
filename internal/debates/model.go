package debates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Side enumerates the two stances a participant can take.
type Side string

const (
	// SideSupport argues in favour of the debate motion.
	SideSupport Side = "support"
	// SideOppose argues against the debate motion.
	SideOppose Side = "oppose"
)

const maxIdentifierLength = 190

// ErrInvalidSide indicates a stance outside support/oppose.
var ErrInvalidSide = errors.New("debates: invalid side")

// ParseSide validates raw input and returns a Side.
func ParseSide(rawInput string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case string(SideSupport):
		return SideSupport, nil
	case string(SideOppose):
		return SideOppose, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, rawInput)
	}
}

// Participant binds one user handle to one side of one debate.
type Participant struct {
	UserID   string    `json:"userId"`
	Side     Side      `json:"side"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Argument is a single user-authored statement with its own vote tally.
type Argument struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Side       Side      `json:"side"`
	Content    string    `json:"content"`
	Votes      int       `json:"votes"`
	VotedBy    []string  `json:"votedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// VotedByUser reports whether the handle already appears in the voter set.
func (a *Argument) VotedByUser(userID string) bool {
	for _, voter := range a.VotedBy {
		if voter == userID {
			return true
		}
	}
	return false
}

// Debate is the unit of persistence: a time-boxed two-sided discussion
// document holding its participants, arguments and cached vote totals.
type Debate struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Tags          []string      `json:"tags"`
	Category      string        `json:"category"`
	Banner        string        `json:"banner"`
	DurationHours int           `json:"duration"`
	EndTime       time.Time     `json:"endTime"`
	CreatedAt     time.Time     `json:"createdAt"`
	CreatedBy     string        `json:"createdBy"`
	Participants  []Participant `json:"participants"`
	Arguments     []Argument    `json:"arguments"`
	SupportVotes  int           `json:"supportVotes"`
	OpposeVotes   int           `json:"opposeVotes"`
	TotalVotes    int           `json:"totalVotes"`
	IsActive      bool          `json:"isActive"`
	Winner        *Side         `json:"winner"`
}

// ParticipantFor returns the participant record for the handle, if any.
func (d *Debate) ParticipantFor(userID string) (*Participant, bool) {
	for index := range d.Participants {
		if d.Participants[index].UserID == userID {
			return &d.Participants[index], true
		}
	}
	return nil, false
}

// ArgumentByID returns the argument with the given identifier, if any.
func (d *Debate) ArgumentByID(argumentID string) (*Argument, bool) {
	for index := range d.Arguments {
		if d.Arguments[index].ID == argumentID {
			return &d.Arguments[index], true
		}
	}
	return nil, false
}

// Expired reports whether the debate's end time has passed at the given instant.
func (d *Debate) Expired(now time.Time) bool {
	return !now.Before(d.EndTime)
}
