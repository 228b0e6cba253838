// Package projectiondom holds the shared record types the projection
// engine (C5), subscription service (C6), and snapshot service (C7)
// operate over.
package projectiondom

import "time"

// SubscriptionStatus is a projection cursor's lifecycle state.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusPaused    SubscriptionStatus = "paused"
	StatusResetting SubscriptionStatus = "resetting"
)

// Subscription is a projection's cursor into the event log.
type Subscription struct {
	ID                    string             `json:"id"`
	ProjectionType        string             `json:"projection_type"`
	SubscriberType        string             `json:"subscriber_type"`
	SubscriberID          string             `json:"subscriber_id"`
	EventTypes            []string           `json:"event_types,omitempty"`
	LastProcessedID       *string            `json:"last_processed_id,omitempty"`
	LastProcessedSequence int64              `json:"last_processed_sequence"`
	Status                SubscriptionStatus `json:"status"`
	BatchSize             int                `json:"batch_size"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Snapshot is a point-in-time capture of a projection table.
type Snapshot struct {
	SnapshotID     string           `json:"snapshot_id"`
	ProjectionType string           `json:"projection_type"`
	SequenceNumber int64            `json:"sequence_number"`
	SnapshotData   []map[string]any `json:"snapshot_data"`
	IsStale        bool             `json:"is_stale"`
	CreatedAt      time.Time        `json:"created_at"`
}

// DeadLetterEntry records a failed handler invocation for out-of-band
// inspection.
type DeadLetterEntry struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id"`
	EventSequence  int64     `json:"event_sequence"`
	ProjectionType string    `json:"projection_type"`
	ErrorMessage   string    `json:"error_message"`
	ErrorStack     string    `json:"error_stack,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableIdentity describes a projection table's shape so the snapshot
// service can operate on it schema-agnostically.
type TableIdentity struct {
	ProjectionType string
	TableName      string
	PrimaryKeyCol  string
}

// RebuildResult is returned by the rebuild operation.
type RebuildResult struct {
	ProjectionType  string `json:"projection_type"`
	EventsProcessed int    `json:"events_processed"`
	DeadLettered    int    `json:"dead_lettered"`
}
