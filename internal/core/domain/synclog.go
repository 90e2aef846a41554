package domain

import "time"

// SyncLogEntry is the durable record of one integration operation and its
// retry lifecycle. The store owns the row; this subsystem only reads and
// transitions it.
type SyncLogEntry struct {
	ID           string          `json:"id"             db:"id"`
	SystemName   string          `json:"system_name"    db:"system_name"`
	Operation    string          `json:"operation"      db:"operation"`
	Payload      []byte          `json:"payload"        db:"payload"`
	Status       SyncLogStatus   `json:"status"         db:"status"`
	RetryCount   int             `json:"retry_count"    db:"retry_count"`
	MaxRetries   int             `json:"max_retries"    db:"max_retries"`
	NextRetryAt  *time.Time      `json:"next_retry_at"  db:"next_retry_at"`
	ErrorMessage string          `json:"error_message"  db:"error_message"`
	Response     []byte          `json:"response"       db:"response"`
	StartedAt    *time.Time      `json:"started_at"     db:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at"   db:"completed_at"`
	CreatedAt    time.Time       `json:"created_at"     db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"     db:"updated_at"`
}

type SyncLogStatus string

const (
	SyncStatusPending    SyncLogStatus = "pending"
	SyncStatusRetrying   SyncLogStatus = "retrying"
	SyncStatusInProgress SyncLogStatus = "in_progress"
	SyncStatusSuccess    SyncLogStatus = "success"
	SyncStatusFailed     SyncLogStatus = "failed"
	SyncStatusDismissed  SyncLogStatus = "dismissed"
)

// IsDeadLetter reports whether the entry has exhausted its retry budget and
// requires manual intervention.
func (e *SyncLogEntry) IsDeadLetter() bool {
	return e.Status == SyncStatusFailed && e.RetryCount >= e.MaxRetries
}

// MaxErrorHistoryBytes caps the accumulated error_message history. Entries
// that fail for a long time before dead-lettering would otherwise grow the
// column without bound.
const MaxErrorHistoryBytes = 4096

// AppendError appends msg to an accumulated error history, keeping the most
// recent MaxErrorHistoryBytes bytes.
func AppendError(history, msg string) string {
	if msg == "" {
		return history
	}
	if history != "" {
		history = history + "\n" + msg
	} else {
		history = msg
	}
	if len(history) > MaxErrorHistoryBytes {
		history = history[len(history)-MaxErrorHistoryBytes:]
	}
	return history
}
