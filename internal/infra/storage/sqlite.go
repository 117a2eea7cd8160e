package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tap_talos/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Storage mirrors synced balances and the sync run log into SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.BalanceRow{}, &domain.SyncRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Balance Operations
// ======================================================================================

// UpsertBalance creates or replaces a balance by its natural key.
// CreatedAt survives updates.
func (s *Storage) UpsertBalance(row *domain.BalanceRow) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "natural_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"market", "currency", "account", "last_update_time", "payload", "sync_run_id", "updated_at",
		}),
	}).Create(row).Error
}

// GetBalance retrieves a balance by natural key
func (s *Storage) GetBalance(key string) (*domain.BalanceRow, error) {
	var row domain.BalanceRow
	err := s.db.First(&row, "natural_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListBalances retrieves all balances ordered by natural key
func (s *Storage) ListBalances() ([]domain.BalanceRow, error) {
	var rows []domain.BalanceRow
	err := s.db.Order("natural_key").Find(&rows).Error
	return rows, err
}

// ======================================================================================
// Sync Run Operations
// ======================================================================================

// StartRun opens a sync run for stream.
func (s *Storage) StartRun(stream string) (*domain.SyncRun, error) {
	run := &domain.SyncRun{
		ID:        uuid.NewString(),
		Stream:    stream,
		Status:    domain.SyncStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("start sync run: %w", err)
	}
	return run, nil
}

// FinishRun closes run with its record count and outcome.
func (s *Storage) FinishRun(run *domain.SyncRun, records int, runErr error) error {
	now := time.Now().UTC()
	run.Records = records
	run.FinishedAt = &now
	run.Status = domain.SyncStatusSuccess
	if runErr != nil {
		run.Status = domain.SyncStatusFailed
		run.Error = runErr.Error()
	}
	return s.db.Save(run).Error
}

// GetRun retrieves a sync run by ID
func (s *Storage) GetRun(id string) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := s.db.First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ======================================================================================
// Record Sink
// ======================================================================================

// Mirror adapts Storage to domain.RecordSink for one sync run.
type Mirror struct {
	store *Storage
	run   *domain.SyncRun
	keys  []string
	count int
}

// Mirror returns a sink that upserts every emitted record under run.
// keys are the stream's key properties.
func (s *Storage) Mirror(run *domain.SyncRun, keys []string) *Mirror {
	return &Mirror{store: s, run: run, keys: keys}
}

// Emit implements domain.RecordSink.
func (m *Mirror) Emit(_ string, rec domain.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode balance: %w", err)
	}

	row := &domain.BalanceRow{
		NaturalKey:     rec.NaturalKey(m.keys),
		Market:         rec.String(domain.FieldMarket),
		Currency:       rec.String(domain.FieldCurrency),
		Account:        rec.String(domain.FieldAccount),
		LastUpdateTime: rec.String(domain.FieldLastUpdateTime),
		Payload:        string(payload),
		SyncRunID:      m.run.ID,
	}
	if err := m.store.UpsertBalance(row); err != nil {
		return fmt.Errorf("mirror balance %s: %w", row.NaturalKey, err)
	}
	m.count++
	return nil
}

// Count returns how many records were mirrored.
func (m *Mirror) Count() int {
	return m.count
}

// Close finishes the sync run with the mirrored count and runErr.
func (m *Mirror) Close(runErr error) error {
	return m.store.FinishRun(m.run, m.count, runErr)
}
