package db

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// OutboxDraftRow is an unsent draft joined with its target.
type OutboxDraftRow struct {
	ID          int64
	TargetID    int64
	Subject     string
	Body        string
	Sent        bool
	CreatedAt   time.Time
	TargetName  string
	TargetEmail string
}

// UpsertReferralTarget inserts or overwrites a target keyed by email.
func (p *Pool) UpsertReferralTarget(ctx context.Context, t ReferralTarget, now time.Time) (int64, bool, error) {
	const q = `
INSERT INTO referral_targets (email, first_name, last_name, firm, city, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (email) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	firm = EXCLUDED.firm,
	city = EXCLUDED.city
RETURNING id, (xmax = 0) AS inserted
`
	var (
		id       int64
		inserted bool
	)
	if err := p.QueryRow(ctx, q, t.Email, t.FirstName, t.LastName, t.Firm, t.City, now.UTC()).Scan(&id, &inserted); err != nil {
		return 0, false, fmt.Errorf("upsert referral target: %w", err)
	}
	return id, inserted, nil
}

func (p *Pool) ListReferralTargets(ctx context.Context) ([]ReferralTarget, error) {
	b := psql.Select("id", "email", "first_name", "last_name", "firm", "city", "created_at").
		From("referral_targets").
		OrderBy("id ASC")

	rows, err := p.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query referral targets: %w", err)
	}
	defer rows.Close()

	out := make([]ReferralTarget, 0, 16)
	for rows.Next() {
		var row ReferralTarget
		if err := rows.Scan(&row.ID, &row.Email, &row.FirstName, &row.LastName, &row.Firm, &row.City, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral target: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referral targets: %w", err)
	}
	return out, nil
}

// InsertReferralDraft adds an unsent draft. It returns ErrNoRows when the target does not exist.
func (p *Pool) InsertReferralDraft(ctx context.Context, d ReferralOutbox, now time.Time) (int64, error) {
	const q = `
INSERT INTO referral_outbox (target_id, subject, body, sent, created_at)
SELECT t.id, $2, $3, FALSE, $4
FROM referral_targets t
WHERE t.id = $1
RETURNING id
`
	var id int64
	if err := p.QueryRow(ctx, q, d.TargetID, d.Subject, d.Body, now.UTC()).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert referral draft: %w", err)
	}
	return id, nil
}

// ListUnsentDrafts returns unsent drafts newest first with target contact fields.
func (p *Pool) ListUnsentDrafts(ctx context.Context) ([]OutboxDraftRow, error) {
	b := psql.Select(
		"o.id",
		"o.target_id",
		"o.subject",
		"o.body",
		"o.sent",
		"o.created_at",
		"t.first_name || ' ' || t.last_name",
		"t.email",
	).
		From("referral_outbox o").
		Join("referral_targets t ON t.id = o.target_id").
		Where(sq.Eq{"o.sent": false}).
		OrderBy("o.created_at DESC", "o.id DESC")

	rows, err := p.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query referral outbox: %w", err)
	}
	defer rows.Close()

	out := make([]OutboxDraftRow, 0, 16)
	for rows.Next() {
		var row OutboxDraftRow
		if err := rows.Scan(
			&row.ID,
			&row.TargetID,
			&row.Subject,
			&row.Body,
			&row.Sent,
			&row.CreatedAt,
			&row.TargetName,
			&row.TargetEmail,
		); err != nil {
			return nil, fmt.Errorf("scan referral draft: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referral outbox: %w", err)
	}
	return out, nil
}

// MarkReferralDraftSent flags a draft as sent and reports how many rows changed.
func (p *Pool) MarkReferralDraftSent(ctx context.Context, id int64) (int64, error) {
	tag, err := p.Exec(ctx, `UPDATE referral_outbox SET sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("mark referral draft sent: %w", err)
	}
	return tag.RowsAffected(), nil
}
