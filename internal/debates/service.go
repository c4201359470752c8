// Package debates implements the debate lifecycle engine: creation, the
// active window, participation, argument posting with an edit window, vote
// aggregation and lazy closure with winner determination.
package debates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openagora/agora/backend/internal/moderation"
	"go.uber.org/zap"
)

// editWindow bounds author mutations of an argument, measured from its
// creation instant. Independent of the debate duration.
const editWindow = 5 * time.Minute

const (
	minTitleLength       = 10
	maxTitleLength       = 200
	minDescriptionLength = 50
	maxDescriptionLength = 1000
)

var (
	errMissingStore     = errors.New("store is required")
	errMissingModerator = errors.New("moderator is required")
	errMissingProvider  = errors.New("id provider is required")
	noOpLogger          = zap.NewNop()
)

const (
	opServiceNew     = "debates.service.new"
	opCreate         = "debates.create"
	opGet            = "debates.get"
	opList           = "debates.list"
	opJoin           = "debates.join"
	opPostArgument   = "debates.post_argument"
	opEditArgument   = "debates.edit_argument"
	opDeleteArgument = "debates.delete_argument"
	opVote           = "debates.vote"
	opClose          = "debates.close"
)

// IDProvider issues identifiers for new debates and arguments.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the collaborators required by the lifecycle engine.
type ServiceConfig struct {
	Store      Store
	Moderator  *moderation.Checker
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service is the debate lifecycle state machine. Every operation performs a
// read-modify-write of a single debate document; expiry is evaluated lazily
// on each load, never by a background scheduler.
type Service struct {
	store      Store
	moderator  *moderation.Checker
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the lifecycle engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newStorageRejection(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Moderator == nil {
		return nil, newStorageRejection(opServiceNew, "missing_moderator", errMissingModerator)
	}
	if cfg.IDProvider == nil {
		return nil, newStorageRejection(opServiceNew, "missing_id_provider", errMissingProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:      cfg.Store,
		moderator:  cfg.Moderator,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateRequest carries the caller-supplied fields for a new debate.
type CreateRequest struct {
	Title         string
	Description   string
	Tags          []string
	Category      string
	Banner        string
	DurationHours int
	CreatedBy     string
}

// Create opens a new debate in the active state. The end time is fixed at
// creation as createdAt plus the whole-hour duration.
func (s *Service) Create(ctx context.Context, request CreateRequest) (*Debate, error) {
	if err := validateCreateRequest(request); err != nil {
		return nil, err
	}

	debateID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, newStorageRejection(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	debate := &Debate{
		ID:            debateID,
		Title:         strings.TrimSpace(request.Title),
		Description:   strings.TrimSpace(request.Description),
		Tags:          append([]string(nil), request.Tags...),
		Category:      strings.TrimSpace(request.Category),
		Banner:        strings.TrimSpace(request.Banner),
		DurationHours: request.DurationHours,
		EndTime:       now.Add(time.Duration(request.DurationHours) * time.Hour),
		CreatedAt:     now,
		CreatedBy:     strings.TrimSpace(request.CreatedBy),
		Participants:  make([]Participant, 0),
		Arguments:     make([]Argument, 0),
		IsActive:      true,
	}

	if err := s.store.Save(ctx, debate); err != nil {
		s.logError(opCreate, "save_failed", err, zap.String("debate_id", debateID))
		return nil, newStorageRejection(opCreate, "save_failed", err)
	}

	s.loggerOrDefault().Info("debate created",
		zap.String("debate_id", debateID),
		zap.String("created_by", debate.CreatedBy),
		zap.Int("duration_hours", debate.DurationHours))
	return debate, nil
}

func validateCreateRequest(request CreateRequest) error {
	title := strings.TrimSpace(request.Title)
	description := strings.TrimSpace(request.Description)
	category := strings.TrimSpace(request.Category)
	createdBy := strings.TrimSpace(request.CreatedBy)

	if title == "" || description == "" || category == "" || createdBy == "" {
		return newRejection(opCreate, "missing_fields", KindValidation, msgMissingFields)
	}
	if len(title) < minTitleLength {
		return newRejection(opCreate, "title_too_short", KindValidation,
			fmt.Sprintf("Title must be at least %d characters", minTitleLength))
	}
	if len(title) > maxTitleLength {
		return newRejection(opCreate, "title_too_long", KindValidation, "Title too long")
	}
	if len(description) < minDescriptionLength {
		return newRejection(opCreate, "description_too_short", KindValidation,
			fmt.Sprintf("Description must be at least %d characters", minDescriptionLength))
	}
	if len(description) > maxDescriptionLength {
		return newRejection(opCreate, "description_too_long", KindValidation, "Description too long")
	}
	if request.DurationHours < 1 {
		return newRejection(opCreate, "invalid_duration", KindValidation,
			"Duration must be a positive number of hours")
	}
	if len(createdBy) > maxIdentifierLength {
		return newRejection(opCreate, "creator_too_long", KindValidation, msgMissingFields)
	}
	return nil
}

// Get fetches one debate. A debate whose end time has passed is closed and
// persisted before it is returned.
func (s *Service) Get(ctx context.Context, debateID string) (*Debate, error) {
	return s.loadDebate(ctx, opGet, debateID)
}

// List returns debates matching the filter, newest first. Expired debates
// encountered during the scan are closed and persisted before filtering.
func (s *Service) List(ctx context.Context, filter QueryFilter) ([]Debate, error) {
	loaded, err := s.store.Query(ctx, QueryFilter{
		CreatedAfter: filter.CreatedAfter,
		EndedAfter:   filter.EndedAfter,
	})
	if err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newStorageRejection(opList, "query_failed", err)
	}

	now := s.clock().UTC()
	results := make([]Debate, 0, len(loaded))
	for index := range loaded {
		debate := &loaded[index]
		if debate.IsActive && debate.Expired(now) {
			s.closeAtExpiry(debate)
			if err := s.store.Save(ctx, debate); err != nil {
				s.logError(opList, "close_save_failed", err, zap.String("debate_id", debate.ID))
				return nil, newStorageRejection(opList, "close_save_failed", err)
			}
		}
		if MatchesFilter(debate, filter) {
			results = append(results, *debate)
		}
	}
	return results, nil
}

// Join binds a user handle to one side of an active debate. A handle joins a
// debate at most once; side switching is not permitted.
func (s *Service) Join(ctx context.Context, debateID, userID string, side Side) (*Debate, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newRejection(opJoin, "missing_fields", KindValidation, msgMissingFields)
	}
	if side != SideSupport && side != SideOppose {
		return nil, newRejection(opJoin, "invalid_side", KindValidation, msgMissingFields)
	}

	debate, err := s.loadDebate(ctx, opJoin, debateID)
	if err != nil {
		return nil, err
	}
	if !debate.IsActive {
		return nil, newRejection(opJoin, "debate_closed", KindConflict, msgDebateEnded)
	}
	if _, joined := debate.ParticipantFor(userID); joined {
		return nil, newRejection(opJoin, "already_joined", KindConflict, msgAlreadyJoined)
	}

	debate.Participants = append(debate.Participants, Participant{
		UserID:   userID,
		Side:     side,
		JoinedAt: s.clock().UTC(),
	})

	if err := s.store.Save(ctx, debate); err != nil {
		s.logError(opJoin, "save_failed", err, zap.String("debate_id", debate.ID))
		return nil, newStorageRejection(opJoin, "save_failed", err)
	}
	return debate, nil
}

// PostArgument appends a new argument authored by an existing participant.
// The argument's side is taken from the author's participant record, never
// from the caller.
func (s *Service) PostArgument(ctx context.Context, debateID, authorID, authorName, content string) (*Debate, error) {
	if strings.TrimSpace(authorID) == "" || strings.TrimSpace(authorName) == "" || strings.TrimSpace(content) == "" {
		return nil, newRejection(opPostArgument, "missing_fields", KindValidation, msgMissingFields)
	}
	if result := s.moderator.Check(content); !result.Allowed {
		return nil, newModeratedRejection(opPostArgument, result.Term)
	}

	debate, err := s.loadDebate(ctx, opPostArgument, debateID)
	if err != nil {
		return nil, err
	}
	if !debate.IsActive {
		return nil, newRejection(opPostArgument, "debate_closed", KindConflict, msgDebateEnded)
	}

	participant, joined := debate.ParticipantFor(authorID)
	if !joined {
		return nil, newRejection(opPostArgument, "not_a_participant", KindForbidden, msgNotParticipant)
	}

	argumentID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opPostArgument, "id_generation_failed", err, zap.String("debate_id", debate.ID))
		return nil, newStorageRejection(opPostArgument, "id_generation_failed", err)
	}

	debate.Arguments = append(debate.Arguments, Argument{
		ID:         argumentID,
		AuthorID:   authorID,
		AuthorName: strings.TrimSpace(authorName),
		Side:       participant.Side,
		Content:    content,
		VotedBy:    make([]string, 0),
		CreatedAt:  s.clock().UTC(),
	})

	if err := s.store.Save(ctx, debate); err != nil {
		s.logError(opPostArgument, "save_failed", err, zap.String("debate_id", debate.ID))
		return nil, newStorageRejection(opPostArgument, "save_failed", err)
	}
	return debate, nil
}

// EditArgument replaces the content of an argument. Only the author may edit,
// and only within the edit window measured from the argument's creation.
func (s *Service) EditArgument(ctx context.Context, debateID, argumentID, editorID, content string) (*Debate, error) {
	if strings.TrimSpace(argumentID) == "" || strings.TrimSpace(editorID) == "" || strings.TrimSpace(content) == "" {
		return nil, newRejection(opEditArgument, "missing_fields", KindValidation, msgMissingFields)
	}
	if result := s.moderator.Check(content); !result.Allowed {
		return nil, newModeratedRejection(opEditArgument, result.Term)
	}

	debate, err := s.loadDebate(ctx, opEditArgument, debateID)
	if err != nil {
		return nil, err
	}
	if !debate.IsActive {
		return nil, newRejection(opEditArgument, "debate_closed", KindConflict, msgDebateEnded)
	}

	argument, found := debate.ArgumentByID(argumentID)
	if !found {
		return nil, newRejection(opEditArgument, "argument_not_found", KindNotFound, msgArgumentNotFound)
	}
	if argument.AuthorID != editorID {
		return nil, newRejection(opEditArgument, "not_author", KindForbidden, msgNotAuthor)
	}
	if s.clock().UTC().Sub(argument.CreatedAt) > editWindow {
		return nil, newRejection(opEditArgument, "window_expired", KindConflict, msgEditWindowExpired)
	}

	argument.Content = content

	if err := s.store.Save(ctx, debate); err != nil {
		s.logError(opEditArgument, "save_failed", err, zap.String("debate_id", debate.ID))
		return nil, newStorageRejection(opEditArgument, "save_failed", err)
	}
	return debate, nil
}

// DeleteArgument removes an argument. Only the author may delete, within the
// same window as edits. Cached vote totals are recomputed so a removed
// argument's votes are subtracted.
func (s *Service) DeleteArgument(ctx context.Context, debateID, argumentID, requesterID string) (*Debate, error) {
	if strings.TrimSpace(argumentID) == "" || strings.TrimSpace(requesterID) == "" {
		return nil, newRejection(opDeleteArgument, "missing_fields", KindValidation, msgMissingFields)
	}

	debate, err := s.loadDebate(ctx, opDeleteArgument, debateID)
	if err != nil {
		return nil, err
	}
	if !debate.IsActive {
		return nil, newRejection(opDeleteArgument, "debate_closed", KindConflict, msgDebateEnded)
	}

	argument, found := debate.ArgumentByID(argumentID)
	if !found {
		return nil, newRejection(opDeleteArgument, "argument_not_found", KindNotFound, msgArgumentNotFound)
	}
	if argument.AuthorID != requesterID {
		return nil, newRejection(opDeleteArgument, "not_author", KindForbidden, msgNotAuthor)
	}
	if s.clock().UTC().Sub(argument.CreatedAt) > editWindow {
		return nil, newRejection(opDeleteArgument, "window_expired", KindConflict, msgDeleteWindowExpired)
	}

	remaining := make([]Argument, 0, len(debate.Arguments)-1)
	for index := range debate.Arguments {
		if debate.Arguments[index].ID != argumentID {
			remaining = append(remaining, debate.Arguments[index])
		}
	}
	debate.Arguments = remaining
	RecomputeVoteTotals(debate)

	if err := s.store.Save(ctx, debate); err != nil {
		s.logError(opDeleteArgument, "save_failed", err, zap.String("debate_id", debate.ID))
		return nil, newStorageRejection(opDeleteArgument, "save_failed", err)
	}
	return debate, nil
}

// Vote records one vote by the handle on the argument. A handle votes on a
// given argument at most once; votes on distinct arguments are independent.
// Totals are rebuilt from the full argument list after each vote.
func (s *Service) Vote(ctx context.Context, debateID, argumentID, voterID string) (*Debate, error) {
	if strings.TrimSpace(argumentID) == "" || strings.TrimSpace(voterID) == "" {
		return nil, newRejection(opVote, "missing_fields", KindValidation, msgMissingFields)
	}

	debate, err := s.loadDebate(ctx, opVote, debateID)
	if err != nil {
		return nil, err
	}
	if !debate.IsActive {
		return nil, newRejection(opVote, "debate_closed", KindConflict, msgDebateEnded)
	}

	argument, found := debate.ArgumentByID(argumentID)
	if !found {
		return nil, newRejection(opVote, "argument_not_found", KindNotFound, msgArgumentNotFound)
	}
	if argument.VotedByUser(voterID) {
		return nil, newRejection(opVote, "already_voted", KindConflict, msgAlreadyVoted)
	}

	argument.Votes++
	argument.VotedBy = append(argument.VotedBy, voterID)
	RecomputeVoteTotals(debate)

	if err := s.store.Save(ctx, debate); err != nil {
		s.logError(opVote, "save_failed", err, zap.String("debate_id", debate.ID))
		return nil, newStorageRejection(opVote, "save_failed", err)
	}
	return debate, nil
}

// Close ends a debate on explicit request and fixes its winner from the vote
// snapshot. Closing an already-closed debate is reported as a conflict; lazy
// closure at expiry remains a silent no-op for subsequent loads.
func (s *Service) Close(ctx context.Context, debateID string) (*Debate, error) {
	debate, err := s.loadDebate(ctx, opClose, debateID)
	if err != nil {
		return nil, err
	}
	if !debate.IsActive {
		return nil, newRejection(opClose, "already_closed", KindConflict, msgAlreadyClosed)
	}

	s.closeAtExpiry(debate)

	if err := s.store.Save(ctx, debate); err != nil {
		s.logError(opClose, "save_failed", err, zap.String("debate_id", debate.ID))
		return nil, newStorageRejection(opClose, "save_failed", err)
	}
	s.loggerOrDefault().Info("debate closed",
		zap.String("debate_id", debate.ID),
		zap.Int("support_votes", debate.SupportVotes),
		zap.Int("oppose_votes", debate.OpposeVotes))
	return debate, nil
}

// loadDebate fetches the debate and applies lazy closure: an active debate
// whose end time has passed is closed and persisted before being returned.
func (s *Service) loadDebate(ctx context.Context, operation, debateID string) (*Debate, error) {
	if strings.TrimSpace(debateID) == "" {
		return nil, newRejection(operation, "missing_debate_id", KindValidation, msgMissingFields)
	}

	debate, err := s.store.Load(ctx, debateID)
	if errors.Is(err, ErrDebateNotFound) {
		return nil, newRejection(operation, "debate_not_found", KindNotFound, msgDebateNotFound)
	}
	if err != nil {
		s.logError(operation, "load_failed", err, zap.String("debate_id", debateID))
		return nil, newStorageRejection(operation, "load_failed", err)
	}

	if debate.IsActive && debate.Expired(s.clock().UTC()) {
		s.closeAtExpiry(debate)
		if err := s.store.Save(ctx, debate); err != nil {
			s.logError(operation, "close_save_failed", err, zap.String("debate_id", debateID))
			return nil, newStorageRejection(operation, "close_save_failed", err)
		}
		s.loggerOrDefault().Info("debate closed at expiry",
			zap.String("debate_id", debate.ID),
			zap.Int("support_votes", debate.SupportVotes),
			zap.Int("oppose_votes", debate.OpposeVotes))
	}
	return debate, nil
}

// closeAtExpiry transitions the debate to the terminal state and fixes the
// winner from the current vote snapshot. The winner is never recomputed.
func (s *Service) closeAtExpiry(debate *Debate) {
	debate.IsActive = false
	debate.Winner = winnerFromTotals(debate)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("debates service error", attrs...)
}
