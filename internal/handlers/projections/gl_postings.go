package projections

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// GLPostings materializes the GL entry lines carried on posted/paid
// invoice events into a flat ledger table — one row per gl_entries line
// (entries that are not objects are skipped). Idempotent under redelivery via a unique
// (event_id, line_no) key rather than an upsert, since postings are
// append-only lines, not a row keyed by entity id.
type GLPostings struct{}

func NewGLPostings() GLPostings { return GLPostings{} }

func (GLPostings) ProjectionType() string { return "gl_postings" }

func (GLPostings) EventTypes() []string {
	return []string{"ap.invoice.posted", "ap.invoice.paid"}
}

func (h GLPostings) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	entries, _ := event.Data["gl_entries"].([]any)

	for lineNo, raw := range entries {
		line, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		account, _ := line["account"].(string)
		side, _ := line["side"].(string)
		amount, _ := line["amount"].(float64)

		const query = `
			INSERT INTO gl_postings (event_id, line_no, legal_entity, invoice_id, account, side, amount, posted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (event_id, line_no) DO NOTHING`

		if err := execCtx(ctx, q, query, event.ID, lineNo, event.Scope.LegalEntity,
			str(event.Data, "invoice_id"), account, side, amount, event.RecordedAt); err != nil {
			return err
		}
	}

	return nil
}

func (GLPostings) Reset(ctx context.Context, q Querier) error {
	return execCtx(ctx, q, `TRUNCATE TABLE gl_postings`)
}
