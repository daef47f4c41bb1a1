package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

type AuditLogRepo struct {
	DB DBTX
}

const createAuditRecord = `-- name: CreateAuditRecord
INSERT INTO audit_logs (id, request_id, user_id, method, path, status_code, duration_ms, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, request_id, user_id, NULL::varchar, method, path, status_code, duration_ms, ip, user_agent, created_at
`

func (r *AuditLogRepo) Create(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createAuditRecord,
		record.ID, record.RequestID, record.UserID, record.Method, record.Path,
		record.StatusCode, record.DurationMS, record.IP, record.UserAgent,
	)
	created, err := pgx.CollectOneRow(rows, rowToAuditRecord)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const listAuditRecords = `-- name: ListAuditRecords
SELECT a.id, a.request_id, a.user_id, u.email, a.method, a.path, a.status_code, a.duration_ms, a.ip, a.user_agent, a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.user_id
`

const countAuditRecords = `-- name: CountAuditRecords
SELECT count(*)
FROM audit_logs a
LEFT JOIN users u ON u.id = a.user_id
`

func (r *AuditLogRepo) List(ctx context.Context, opts repository.ListAuditOpts) ([]models.AuditRecord, int64, error) {
	where, args := buildAuditFilter(opts)

	rows, _ := r.DB.Query(ctx, countAuditRecords+where, args...)
	total, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	paged := fmt.Sprintf("%s%s\nORDER BY a.created_at DESC\nOFFSET $%d LIMIT $%d",
		listAuditRecords, where, len(args)+1, len(args)+2)
	rows, _ = r.DB.Query(ctx, paged, append(args, opts.Offset, opts.Limit)...)
	records, err := pgx.CollectRows(rows, rowToAuditRecord)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return records, total, nil
}

const listAuditRecordsByUser = `-- name: ListAuditRecordsByUser
SELECT a.id, a.request_id, a.user_id, u.email, a.method, a.path, a.status_code, a.duration_ms, a.ip, a.user_agent, a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.user_id
WHERE a.user_id = $1
ORDER BY a.created_at DESC
LIMIT $2
`

func (r *AuditLogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditRecord, error) {
	rows, _ := r.DB.Query(ctx, listAuditRecordsByUser, userID, limit)
	records, err := pgx.CollectRows(rows, rowToAuditRecord)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return records, nil
}

const anonymizeAuditRecords = `-- name: AnonymizeAuditRecords
UPDATE audit_logs
SET user_id = NULL
WHERE user_id = $1
`

// AnonymizeUser nulls the actor reference on the user's records.
// The records themselves are kept: erasure anonymizes the audit trail,
// it never rewrites history.
func (r *AuditLogRepo) AnonymizeUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, anonymizeAuditRecords, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildAuditFilter renders the AND-combined WHERE clause for List
func buildAuditFilter(opts repository.ListAuditOpts) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if opts.ActorEmail != "" {
		add("u.email ILIKE '%%' || $%d || '%%'", opts.ActorEmail)
	}
	if opts.Method != "" {
		add("a.method = $%d", opts.Method)
	}
	if opts.Path != "" {
		add("a.path ILIKE '%%' || $%d || '%%'", opts.Path)
	}
	if opts.From != nil {
		add("a.created_at >= $%d", *opts.From)
	}
	if opts.To != nil {
		add("a.created_at <= $%d", *opts.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func rowToAuditRecord(row pgx.CollectableRow) (models.AuditRecord, error) {
	var rec models.AuditRecord
	err := row.Scan(
		&rec.ID, &rec.RequestID, &rec.UserID, &rec.UserEmail, &rec.Method, &rec.Path,
		&rec.StatusCode, &rec.DurationMS, &rec.IP, &rec.UserAgent, &rec.CreatedAt,
	)
	return rec, err
}
