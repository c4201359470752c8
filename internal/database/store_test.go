package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openagora/agora/backend/internal/debates"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *DebateStore {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "store.db")
	db, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store, err := NewDebateStore(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func sampleDebate(id string, createdAt time.Time, active bool, winner *debates.Side) *debates.Debate {
	return &debates.Debate{
		ID:            id,
		Title:         "Should remote work become the default?",
		Description:   "Remote-first companies report higher retention, while critics point to onboarding and collaboration costs that compound over time.",
		Tags:          []string{"work"},
		Category:      "society",
		DurationHours: 24,
		CreatedAt:     createdAt,
		EndTime:       createdAt.Add(24 * time.Hour),
		CreatedBy:     "creator@example.com",
		Participants: []debates.Participant{
			{UserID: "alice@example.com", Side: debates.SideSupport, JoinedAt: createdAt},
		},
		Arguments: []debates.Argument{
			{
				ID:         id + "-arg",
				AuthorID:   "alice@example.com",
				AuthorName: "Alice",
				Side:       debates.SideSupport,
				Content:    "Commutes consume productive hours.",
				Votes:      2,
				VotedBy:    []string{"bob@example.com", "carol@example.com"},
				CreatedAt:  createdAt.Add(time.Minute),
			},
		},
		SupportVotes: 2,
		TotalVotes:   2,
		IsActive:     active,
		Winner:       winner,
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)

	original := sampleDebate("d1", createdAt, true, nil)
	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := store.Load(ctx, "d1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.Title != original.Title || loaded.CreatedBy != original.CreatedBy {
		t.Fatalf("document fields did not survive the round trip: %+v", loaded)
	}
	if len(loaded.Participants) != 1 || loaded.Participants[0].Side != debates.SideSupport {
		t.Fatalf("participants did not survive the round trip")
	}
	if len(loaded.Arguments) != 1 || loaded.Arguments[0].Votes != 2 {
		t.Fatalf("arguments did not survive the round trip")
	}
	if !loaded.EndTime.Equal(original.EndTime) {
		t.Fatalf("end time mismatch: got %v want %v", loaded.EndTime, original.EndTime)
	}
}

func TestSaveReplacesExistingDocument(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)

	debate := sampleDebate("d1", createdAt, true, nil)
	if err := store.Save(ctx, debate); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	winner := debates.SideSupport
	debate.IsActive = false
	debate.Winner = &winner
	if err := store.Save(ctx, debate); err != nil {
		t.Fatalf("unexpected second save error: %v", err)
	}

	loaded, err := store.Load(ctx, "d1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.IsActive {
		t.Fatalf("expected the replacement write to win")
	}
	if loaded.Winner == nil || *loaded.Winner != debates.SideSupport {
		t.Fatalf("expected persisted winner, got %v", loaded.Winner)
	}
}

func TestLoadMissingDebate(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, debates.ErrDebateNotFound) {
		t.Fatalf("expected ErrDebateNotFound, got %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)

	winner := debates.SideOppose
	fixtures := []*debates.Debate{
		sampleDebate("active-new", base.Add(48*time.Hour), true, nil),
		sampleDebate("active-old", base, true, nil),
		sampleDebate("decided", base.Add(24*time.Hour), false, &winner),
		sampleDebate("tied", base.Add(24*time.Hour), false, nil),
	}
	for _, debate := range fixtures {
		if err := store.Save(ctx, debate); err != nil {
			t.Fatalf("unexpected save error: %v", err)
		}
	}

	all, err := store.Query(ctx, debates.QueryFilter{})
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected four debates, got %d", len(all))
	}
	if all[0].ID != "active-new" {
		t.Fatalf("expected newest created first, got %s", all[0].ID)
	}

	active, err := store.Query(ctx, debates.QueryFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected two active debates, got %d", len(active))
	}

	decided, err := store.Query(ctx, debates.QueryFilter{ClosedWithWinner: true})
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(decided) != 1 || decided[0].ID != "decided" {
		t.Fatalf("expected only the decided debate, got %d results", len(decided))
	}

	recent, err := store.Query(ctx, debates.QueryFilter{CreatedAfter: base.Add(12 * time.Hour)})
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected three debates created after the cutoff, got %d", len(recent))
	}

	involved, err := store.Query(ctx, debates.QueryFilter{InvolvedUser: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(involved) != 4 {
		t.Fatalf("expected alice in every fixture, got %d", len(involved))
	}
	uninvolved, err := store.Query(ctx, debates.QueryFilter{InvolvedUser: "stranger@example.com"})
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(uninvolved) != 0 {
		t.Fatalf("expected no debates for a stranger, got %d", len(uninvolved))
	}
}

func TestApplyMigrationsRepairsVoteTotals(t *testing.T) {
	databasePath := filepath.Join(t.TempDir(), "migration.db")
	db, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store, err := NewDebateStore(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}

	ctx := context.Background()
	createdAt := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)
	drifted := sampleDebate("drifted", createdAt, true, nil)
	drifted.SupportVotes = 99
	drifted.TotalVotes = 120
	if err := store.Save(ctx, drifted); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	// Clear the ledger entry so the repair runs again over the drifted row.
	if err := db.Where("name = ?", migrationRepairVoteTotals).Delete(&migrationRecord{}).Error; err != nil {
		t.Fatalf("failed to reset migration ledger: %v", err)
	}
	if err := applyMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	repaired, err := store.Load(ctx, "drifted")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if repaired.SupportVotes != 2 || repaired.OpposeVotes != 0 || repaired.TotalVotes != 2 {
		t.Fatalf("expected repaired totals 2/0/2, got %d/%d/%d",
			repaired.SupportVotes, repaired.OpposeVotes, repaired.TotalVotes)
	}

	var record migrationRecord
	if err := db.Where("name = ?", migrationRepairVoteTotals).Take(&record).Error; err != nil {
		t.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		t.Fatalf("expected migration timestamp to be set")
	}
}

var _ debates.Store = (*DebateStore)(nil)
