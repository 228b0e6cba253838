// Package projections implements C5's registered projection handlers: the
// read-side tables rebuilt from the event log — vendor/item/PO lists, the
// AP invoice list and aging buckets, vendor balances, and GL postings.
// Every handler is idempotent under re-delivery per §7: upserts and
// conditional inserts, never blind appends that would double-count a
// replayed event.
package projections

import (
	"context"
	"time"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
)

// Querier is the shared-transaction seam, aliased to C1's.
type Querier = eventstore.Querier

const (
	bucketCurrent = "current"
	bucket1to30   = "1-30"
	bucket31to60  = "31-60"
	bucket61to90  = "61-90"
	bucket91plus  = "91+"
)

// agingBucket classifies daysOverdue (asOf - dueDate) into §4.10's fixed
// aging buckets.
func agingBucket(dueDate string, asOf time.Time) string {
	due, err := time.Parse("2006-01-02", dueDate)
	if err != nil {
		return bucketCurrent
	}

	daysOverdue := int(asOf.Sub(due).Hours() / 24)

	switch {
	case daysOverdue <= 0:
		return bucketCurrent
	case daysOverdue <= 30:
		return bucket1to30
	case daysOverdue <= 60:
		return bucket31to60
	case daysOverdue <= 90:
		return bucket61to90
	default:
		return bucket91plus
	}
}

func str(p eventdom.Payload, key string) string { return p.String(key) }

func num(p eventdom.Payload, key string) float64 { return p.Float64(key) }

func execCtx(ctx context.Context, q Querier, query string, args ...any) error {
	_, err := q.ExecContext(ctx, query, args...)
	return err
}
