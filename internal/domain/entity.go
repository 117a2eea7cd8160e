package domain

import (
	"time"
)

// BalanceRow is the local SQLite mirror of one balance, keyed by its natural key.
type BalanceRow struct {
	NaturalKey     string    `gorm:"primaryKey" json:"natural_key"`
	Market         string    `json:"market" gorm:"index"`
	Currency       string    `json:"currency" gorm:"index"`
	Account        string    `json:"account" gorm:"index"`
	LastUpdateTime string    `json:"last_update_time"`
	Payload        string    `json:"payload"` // record as JSON, decimals kept exact
	SyncRunID      string    `json:"sync_run_id" gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SyncRun records one invocation of a stream sync.
type SyncRun struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	Stream     string     `json:"stream" gorm:"index"`
	Status     string     `json:"status"`
	Records    int        `json:"records"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SyncRun status values
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)
