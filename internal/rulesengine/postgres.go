package rulesengine

import (
	"context"
	"encoding/json"

	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Store persists rules in Postgres, for operators who manage rules
// through the API rather than redeploying rule files.
type Store struct {
	db *platform.PostgresConnection
}

// NewStore builds a Postgres-backed rule Store.
func NewStore(db *platform.PostgresConnection) *Store {
	return &Store{db: db}
}

// LoadAll returns every rule row, used to seed the engine's in-memory
// rule set at startup and after an admin edit.
func (s *Store) LoadAll(ctx context.Context) ([]ruledom.Rule, error) {
	db, err := s.db.GetDB(ctx)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, priority, intent_type, phase, conditions,
		       action, rejection_message, approver_role, enrich_fields, effective_from, effective_to
		FROM rules ORDER BY priority ASC`)
	if err != nil {
		return nil, platform.WrapInternal("load rules", err)
	}
	defer rows.Close()

	var rules []ruledom.Rule

	for rows.Next() {
		var (
			r                   ruledom.Rule
			conditions, enrich  []byte
		)

		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Priority, &r.IntentType, &r.Phase,
			&conditions, &r.Action, &r.RejectionMessage, &r.ApproverRole, &enrich, &r.EffectiveFrom, &r.EffectiveTo); err != nil {
			return nil, platform.WrapInternal("scan rule row", err)
		}

		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
				return nil, platform.WrapInternal("unmarshal rule conditions", err)
			}
		}

		if len(enrich) > 0 {
			if err := json.Unmarshal(enrich, &r.EnrichFields); err != nil {
				return nil, platform.WrapInternal("unmarshal rule enrich fields", err)
			}
		}

		rules = append(rules, r)
	}

	return rules, rows.Err()
}

// Upsert inserts or replaces a rule row, used by the rule admin surface.
func (s *Store) Upsert(ctx context.Context, r ruledom.Rule) error {
	db, err := s.db.GetDB(ctx)
	if err != nil {
		return platform.WrapInternal("get database connection", err)
	}

	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return err
	}

	enrich, err := json.Marshal(r.EnrichFields)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO rules (id, name, description, priority, intent_type, phase, conditions,
		                    action, rejection_message, approver_role, enrich_fields, effective_from, effective_to)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, priority = EXCLUDED.priority,
			intent_type = EXCLUDED.intent_type, phase = EXCLUDED.phase, conditions = EXCLUDED.conditions,
			action = EXCLUDED.action, rejection_message = EXCLUDED.rejection_message,
			approver_role = EXCLUDED.approver_role, enrich_fields = EXCLUDED.enrich_fields,
			effective_from = EXCLUDED.effective_from, effective_to = EXCLUDED.effective_to`

	_, err = db.ExecContext(ctx, query, r.ID, r.Name, r.Description, r.Priority, r.IntentType, r.Phase,
		conditions, r.Action, r.RejectionMessage, r.ApproverRole, enrich, r.EffectiveFrom, r.EffectiveTo)
	if err != nil {
		return platform.WrapInternal("upsert rule", err)
	}

	return nil
}
