package manifest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// AuditRecords flattens a document outcome into audit records. Outcomes
// without comparison results still produce one record carrying the status.
func AuditRecords(runID string, engine domain.EngineIdentity, o domain.DocumentOutcome) []AuditRecord {
	base := AuditRecord{
		RunID:      runID,
		DocumentID: o.DocumentID,
		Engine:     engine.String(),
		Status:     o.Status,
		Page:       domain.DocumentLevel,
		Tier:       domain.TierNone,
	}
	if len(o.Results) == 0 {
		rec := base
		rec.Detail = o.Error
		return []AuditRecord{rec}
	}

	out := make([]AuditRecord, 0, len(o.Results))
	for _, r := range o.Results {
		rec := base
		rec.Artifact = r.Artifact
		rec.Page = r.Page
		rec.Tier = r.Tier
		rec.Verdict = r.Verdict
		rec.Similarity = r.Similarity
		rec.Locator = r.Locator.String()
		rec.Detail = r.Detail
		out = append(out, rec)
	}
	return out
}

// AppendAudit appends records to the audit log. Records are never updated.
func (s *Store) AppendAudit(ctx context.Context, records []AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `
		INSERT INTO audit_results (id, run_id, document_id, engine, status, artifact, page,
			tier, verdict, similarity, locator, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for i := range records {
		rec := &records[i]
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, query,
			rec.ID.String(), rec.RunID, rec.DocumentID, rec.Engine, string(rec.Status),
			string(rec.Artifact), rec.Page, string(rec.Tier), string(rec.Verdict),
			rec.Similarity, rec.Locator, rec.Detail, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert audit record: %w", err)
		}
	}
	return tx.Commit()
}

// AuditByRun returns the records of one run in insertion order
func (s *Store) AuditByRun(ctx context.Context, runID string) ([]AuditRecord, error) {
	query := `
		SELECT id, run_id, document_id, engine, status, artifact, page,
			tier, verdict, similarity, locator, detail, created_at
		FROM audit_results WHERE run_id = $1
		ORDER BY created_at, document_id, artifact, page
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var id, status, artifact, tier, verdict string
		err := rows.Scan(&id, &rec.RunID, &rec.DocumentID, &rec.Engine, &status, &artifact, &rec.Page,
			&tier, &verdict, &rec.Similarity, &rec.Locator, &rec.Detail, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse audit id: %w", err)
		}
		rec.Status = domain.Status(status)
		rec.Artifact = domain.ArtifactKind(artifact)
		rec.Tier = domain.MatchTier(tier)
		rec.Verdict = domain.Verdict(verdict)
		out = append(out, rec)
	}
	return out, rows.Err()
}
