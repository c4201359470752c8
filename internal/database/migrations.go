package database

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/openagora/agora/backend/internal/debates"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRepairVoteTotals = "2026-08-20_repair_vote_totals"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRepairVoteTotals, apply: repairVoteTotals},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// repairVoteTotals rebuilds every debate's cached vote counters from its
// argument list, healing rows written before deletes subtracted votes.
func repairVoteTotals(db *gorm.DB) error {
	var records []debateRecord
	if err := db.Find(&records).Error; err != nil {
		return err
	}

	for index := range records {
		record := &records[index]
		debate := &debates.Debate{}
		if err := json.Unmarshal([]byte(record.PayloadJSON), debate); err != nil {
			return err
		}

		before := [3]int{debate.SupportVotes, debate.OpposeVotes, debate.TotalVotes}
		debates.RecomputeVoteTotals(debate)
		if before == [3]int{debate.SupportVotes, debate.OpposeVotes, debate.TotalVotes} {
			continue
		}

		payload, err := json.Marshal(debate)
		if err != nil {
			return err
		}
		record.PayloadJSON = string(payload)
		if err := db.Save(record).Error; err != nil {
			return err
		}
	}
	return nil
}
