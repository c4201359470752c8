// Package scoreboard derives leaderboard, profile and winners views from the
// persisted debate collection. All computation is read-only and recomputed
// from whatever snapshot the store returns.
package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/openagora/agora/backend/internal/debates"
	"go.uber.org/zap"
)

// TimeRange selects the aggregation window for leaderboard and winners views.
type TimeRange string

const (
	// RangeAllTime places no lower bound on the window.
	RangeAllTime TimeRange = "all-time"
	// RangeWeekly bounds the window to the trailing seven days.
	RangeWeekly TimeRange = "weekly"
	// RangeMonthly bounds the window to the trailing thirty days.
	RangeMonthly TimeRange = "monthly"
)

const recentArgumentLimit = 5

var (
	// ErrInvalidTimeRange indicates an unsupported time filter value.
	ErrInvalidTimeRange = errors.New("scoreboard: invalid time range")
	// ErrMissingUser indicates a profile request without a user handle.
	ErrMissingUser = errors.New("scoreboard: user handle is required")

	errMissingStore = errors.New("store is required")
	noOpLogger      = zap.NewNop()
)

const (
	opServiceNew  = "scoreboard.service.new"
	opLeaderboard = "scoreboard.leaderboard"
	opWinners     = "scoreboard.winners"
	opProfile     = "scoreboard.profile"
)

// ServiceError is a typed scoreboard failure with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable error code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ParseTimeRange validates a raw time filter. Blank input selects all-time.
func ParseTimeRange(rawInput string) (TimeRange, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case "", string(RangeAllTime):
		return RangeAllTime, nil
	case string(RangeWeekly):
		return RangeWeekly, nil
	case string(RangeMonthly):
		return RangeMonthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, rawInput)
	}
}

// Cutoff returns the lower time bound of the window at the given instant,
// zero when unbounded.
func (r TimeRange) Cutoff(now time.Time) time.Time {
	switch r {
	case RangeWeekly:
		return now.Add(-7 * 24 * time.Hour)
	case RangeMonthly:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// Entry is one leaderboard row for a user handle.
type Entry struct {
	UserID              string `json:"id"`
	Name                string `json:"name"`
	TotalVotes          int    `json:"totalVotes"`
	DebatesParticipated int    `json:"debatesParticipated"`
	ArgumentsPosted     int    `json:"argumentsPosted"`
	Wins                int    `json:"wins"`
}

// Profile is the derived per-user statistics view.
type Profile struct {
	UserID              string             `json:"id"`
	Name                string             `json:"name"`
	DebatesParticipated int                `json:"debatesParticipated"`
	TotalVotes          int                `json:"totalVotes"`
	ArgumentsPosted     int                `json:"argumentsPosted"`
	DebatesWon          int                `json:"debatesWon"`
	WinRate             int                `json:"winRate"`
	RecentArguments     []debates.Argument `json:"recentArguments"`
	Debates             []debates.Debate   `json:"debates"`
}

// ServiceConfig describes the collaborators of the aggregator.
type ServiceConfig struct {
	Store  debates.Store
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service computes read-only rankings and statistics over all debates.
type Service struct {
	store  debates.Store
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the aggregator.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{store: cfg.Store, clock: clock, logger: logger}, nil
}

// Leaderboard ranks every user seen in the window by total votes received
// across their authored arguments, descending. Ties break by handle for a
// deterministic ordering.
func (s *Service) Leaderboard(ctx context.Context, timeRange TimeRange) ([]Entry, error) {
	all, err := s.store.Query(ctx, debates.QueryFilter{
		CreatedAfter: timeRange.Cutoff(s.clock().UTC()),
	})
	if err != nil {
		s.logger.Error("leaderboard query failed", zap.Error(err))
		return nil, newServiceError(opLeaderboard, "query_failed", err)
	}

	names := collectDisplayNames(all)
	entries := make([]Entry, 0, len(names))
	for userID, name := range names {
		entry := Entry{UserID: userID, Name: name}
		for index := range all {
			debate := &all[index]
			if _, ok := debate.ParticipantFor(userID); ok {
				entry.DebatesParticipated++
			}
			for argIndex := range debate.Arguments {
				if debate.Arguments[argIndex].AuthorID == userID {
					entry.ArgumentsPosted++
					entry.TotalVotes += debate.Arguments[argIndex].Votes
				}
			}
			if wonBy(debate, userID) {
				entry.Wins++
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalVotes != entries[j].TotalVotes {
			return entries[i].TotalVotes > entries[j].TotalVotes
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries, nil
}

// Winners lists closed debates with a non-null winner whose end time falls in
// the window, most recently ended first.
func (s *Service) Winners(ctx context.Context, timeRange TimeRange) ([]debates.Debate, error) {
	closed, err := s.store.Query(ctx, debates.QueryFilter{
		ClosedWithWinner: true,
		EndedAfter:       timeRange.Cutoff(s.clock().UTC()),
	})
	if err != nil {
		s.logger.Error("winners query failed", zap.Error(err))
		return nil, newServiceError(opWinners, "query_failed", err)
	}

	sort.Slice(closed, func(i, j int) bool {
		return closed[i].EndTime.After(closed[j].EndTime)
	})
	return closed, nil
}

// UserProfile derives a user's statistics from the debates they participated
// in or posted to: vote totals, win rate and their most recent arguments.
func (s *Service) UserProfile(ctx context.Context, userID string) (Profile, error) {
	handle := strings.TrimSpace(userID)
	if handle == "" {
		return Profile{}, newServiceError(opProfile, "missing_user", ErrMissingUser)
	}

	involved, err := s.store.Query(ctx, debates.QueryFilter{InvolvedUser: handle})
	if err != nil {
		s.logger.Error("profile query failed", zap.Error(err), zap.String("user_id", handle))
		return Profile{}, newServiceError(opProfile, "query_failed", err)
	}

	profile := Profile{
		UserID:          handle,
		Name:            fallbackName(handle),
		RecentArguments: make([]debates.Argument, 0, recentArgumentLimit),
		Debates:         involved,
	}

	authored := make([]debates.Argument, 0)
	for index := range involved {
		debate := &involved[index]
		if _, ok := debate.ParticipantFor(handle); ok {
			profile.DebatesParticipated++
		}
		if wonBy(debate, handle) {
			profile.DebatesWon++
		}
		for argIndex := range debate.Arguments {
			argument := debate.Arguments[argIndex]
			if argument.AuthorID != handle {
				continue
			}
			authored = append(authored, argument)
			profile.TotalVotes += argument.Votes
			profile.Name = argument.AuthorName
		}
	}
	profile.ArgumentsPosted = len(authored)

	if profile.DebatesParticipated > 0 {
		ratio := float64(profile.DebatesWon) / float64(profile.DebatesParticipated)
		profile.WinRate = int(math.Round(ratio * 100))
	}

	sort.Slice(authored, func(i, j int) bool {
		return authored[i].CreatedAt.After(authored[j].CreatedAt)
	})
	if len(authored) > recentArgumentLimit {
		authored = authored[:recentArgumentLimit]
	}
	profile.RecentArguments = authored

	return profile, nil
}

// collectDisplayNames gathers every handle seen as a participant or author,
// preferring the denormalized author name over the handle-derived fallback.
func collectDisplayNames(all []debates.Debate) map[string]string {
	names := map[string]string{}
	for index := range all {
		debate := &all[index]
		for _, participant := range debate.Participants {
			if _, seen := names[participant.UserID]; !seen {
				names[participant.UserID] = fallbackName(participant.UserID)
			}
		}
		for _, argument := range debate.Arguments {
			names[argument.AuthorID] = argument.AuthorName
		}
	}
	return names
}

// fallbackName derives a display name from an email-like handle.
func fallbackName(userID string) string {
	if at := strings.Index(userID, "@"); at > 0 {
		return userID[:at]
	}
	return userID
}

// wonBy reports whether the debate is decided and the user's side matches the winner.
func wonBy(debate *debates.Debate, userID string) bool {
	if debate.IsActive || debate.Winner == nil {
		return false
	}
	participant, ok := debate.ParticipantFor(userID)
	return ok && participant.Side == *debate.Winner
}
