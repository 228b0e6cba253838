package subscriptionsvc

import (
	"database/sql"
	"encoding/json"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
)

const subscriptionColumns = `
	SELECT id, projection_type, subscriber_type, subscriber_id, event_types,
	       last_processed_id, last_processed_sequence, status, batch_size, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*projectiondom.Subscription, error) {
	var (
		sub             projectiondom.Subscription
		eventTypes      []byte
		lastProcessedID sql.NullString
	)

	err := row.Scan(&sub.ID, &sub.ProjectionType, &sub.SubscriberType, &sub.SubscriberID, &eventTypes,
		&lastProcessedID, &sub.LastProcessedSequence, &sub.Status, &sub.BatchSize, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastProcessedID.Valid {
		sub.LastProcessedID = &lastProcessedID.String
	}

	if len(eventTypes) > 0 {
		if err := json.Unmarshal(eventTypes, &sub.EventTypes); err != nil {
			return nil, err
		}
	}

	return &sub, nil
}
