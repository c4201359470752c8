// Package database provides the SQLite-backed document store for debates.
// Each debate is persisted as one JSON document alongside the handful of
// columns the query surface filters on.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openagora/agora/backend/internal/debates"
	"gorm.io/gorm"
)

// debateRecord is the row backing one debate document. The payload carries
// the full document; the remaining columns are denormalized for query
// filtering and must be derived from the payload on every save.
type debateRecord struct {
	DebateID         string `gorm:"column:debate_id;primaryKey;size:190;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_debates_created"`
	EndTimeSeconds   int64  `gorm:"column:end_time_s;not null;index:idx_debates_end"`
	IsActive         bool   `gorm:"column:is_active;not null;index:idx_debates_active"`
	Winner           string `gorm:"column:winner;size:16;not null;default:''"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (debateRecord) TableName() string {
	return "debates"
}

var errMissingDatabase = errors.New("database handle is required")

// DebateStore implements debates.Store on top of GORM/SQLite with whole
// document reads and last-write-wins saves.
type DebateStore struct {
	db *gorm.DB
}

// NewDebateStore constructs a store over the provided database handle.
func NewDebateStore(db *gorm.DB) (*DebateStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &DebateStore{db: db}, nil
}

// Load fetches one debate document by id.
func (s *DebateStore) Load(ctx context.Context, debateID string) (*debates.Debate, error) {
	var record debateRecord
	err := s.db.WithContext(ctx).
		Where("debate_id = ?", debateID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, debates.ErrDebateNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDebate(&record)
}

// Save persists the full debate document, inserting or replacing the row.
func (s *DebateStore) Save(ctx context.Context, debate *debates.Debate) error {
	record, err := encodeDebate(debate)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(record).Error
}

// Query returns decoded debates matching the filter, newest created first.
// Column-backed dimensions are pushed into SQL; the participation predicate
// is evaluated per document after decoding.
func (s *DebateStore) Query(ctx context.Context, filter debates.QueryFilter) ([]debates.Debate, error) {
	query := s.db.WithContext(ctx).Model(&debateRecord{})
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.ClosedWithWinner {
		query = query.Where("is_active = ? AND winner <> ''", false)
	}
	if !filter.CreatedAfter.IsZero() {
		query = query.Where("created_at_s >= ?", filter.CreatedAfter.UTC().Unix())
	}
	if !filter.EndedAfter.IsZero() {
		query = query.Where("end_time_s >= ?", filter.EndedAfter.UTC().Unix())
	}

	var records []debateRecord
	if err := query.Order("created_at_s DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	results := make([]debates.Debate, 0, len(records))
	for index := range records {
		debate, err := decodeDebate(&records[index])
		if err != nil {
			return nil, err
		}
		if !debates.MatchesFilter(debate, filter) {
			continue
		}
		results = append(results, *debate)
	}
	return results, nil
}

func encodeDebate(debate *debates.Debate) (*debateRecord, error) {
	payload, err := json.Marshal(debate)
	if err != nil {
		return nil, fmt.Errorf("encode debate %s: %w", debate.ID, err)
	}
	winner := ""
	if debate.Winner != nil {
		winner = string(*debate.Winner)
	}
	return &debateRecord{
		DebateID:         debate.ID,
		CreatedAtSeconds: debate.CreatedAt.UTC().Unix(),
		EndTimeSeconds:   debate.EndTime.UTC().Unix(),
		IsActive:         debate.IsActive,
		Winner:           winner,
		PayloadJSON:      string(payload),
	}, nil
}

func decodeDebate(record *debateRecord) (*debates.Debate, error) {
	debate := &debates.Debate{}
	if err := json.Unmarshal([]byte(record.PayloadJSON), debate); err != nil {
		return nil, fmt.Errorf("decode debate %s: %w", record.DebateID, err)
	}
	return debate, nil
}
