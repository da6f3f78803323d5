package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is a notification event staged in a producer's database
// transaction, relayed onto the stream by the outbox worker.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id"`
	EventType    string          `db:"event_type"`
	Payload      json.RawMessage `db:"payload"`
	Status       OutboxStatus    `db:"status"`
	ErrorMessage *string         `db:"error_message"`
	RetryCount   int             `db:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at"`
	ProcessedAt  *time.Time      `db:"processed_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}
