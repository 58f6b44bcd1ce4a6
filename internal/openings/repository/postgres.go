package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zelosify/zelosify/server/internal/database"
	"github.com/zelosify/zelosify/server/internal/openings"
	"github.com/zelosify/zelosify/server/pkg/logger"
)

const uniqueViolation = "23505"

// PostgresRepo implements Repository on the relational store.
type PostgresRepo struct {
	db database.PgxIface
}

func NewPostgresRepo(db database.PgxIface) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const openingColumns = `id, tenant_id, title, description, location, contract_type,
	experience_min, experience_max, posted_date, expected_completion_date, status, hiring_manager_id`

func scanOpening(row pgx.Row) (*openings.Opening, error) {
	var (
		o                               openings.Opening
		description, location, contract *string
		status                          string
	)
	err := row.Scan(&o.ID, &o.TenantID, &o.Title, &description, &location, &contract,
		&o.ExperienceMin, &o.ExperienceMax, &o.PostedDate, &o.ExpectedCompletionDate, &status, &o.HiringManagerID)
	if err != nil {
		return nil, err
	}
	o.Description = deref(description)
	o.Location = deref(location)
	o.ContractType = deref(contract)
	o.Status = openings.Status(status)
	return &o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *PostgresRepo) CreateOpening(ctx context.Context, o *openings.Opening) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.PostedDate.IsZero() {
		o.PostedDate = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO openings (`+openingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.TenantID, o.Title, o.Description, o.Location, o.ContractType,
		o.ExperienceMin, o.ExperienceMax, o.PostedDate, o.ExpectedCompletionDate, string(o.Status), o.HiringManagerID)
	if err != nil {
		return fmt.Errorf("insert opening: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListOpenings(ctx context.Context, tenantID string) ([]*openings.Opening, error) {
	rows, err := r.db.Query(ctx, `SELECT `+openingColumns+`
		FROM openings WHERE tenant_id = $1 ORDER BY posted_date DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list openings: %w", err)
	}
	defer rows.Close()
	out := make([]*openings.Opening, 0)
	for rows.Next() {
		o, err := scanOpening(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opening: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetOpening(ctx context.Context, tenantID, id string) (*openings.Opening, error) {
	o, err := scanOpening(r.db.QueryRow(ctx, `SELECT `+openingColumns+`
		FROM openings WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, openings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opening: %w", err)
	}
	return o, nil
}

func (r *PostgresRepo) ListProfiles(ctx context.Context, openingID string) ([]*openings.HiringProfile, error) {
	rows, err := r.db.Query(ctx, `SELECT id, opening_id, object_key, uploaded_by, is_draft, is_deleted, created_at, updated_at
		FROM hiring_profiles WHERE opening_id = $1 AND is_deleted = FALSE ORDER BY created_at, object_key`, openingID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	out := make([]*openings.HiringProfile, 0)
	for rows.Next() {
		var p openings.HiringProfile
		if err := rows.Scan(&p.ID, &p.OpeningID, &p.ObjectKey, &p.UploadedBy, &p.IsDraft, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// inTx runs fn in one transaction; fn's error rolls the batch back.
func (r *PostgresRepo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logger.Warnf("openings: rollback failed: %v", rbErr)
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepo) SubmitProfiles(ctx context.Context, openingID, uploadedBy string, keys []string) error {
	now := time.Now().UTC()
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, k := range keys {
			_, err := tx.Exec(ctx, `INSERT INTO hiring_profiles
				(id, opening_id, object_key, uploaded_by, is_draft, is_deleted, created_at, updated_at)
				VALUES ($1, $2, $3, $4, FALSE, FALSE, $5, $5)
				ON CONFLICT (object_key) DO UPDATE SET is_draft = FALSE, updated_at = EXCLUDED.updated_at`,
				uuid.NewString(), openingID, k, uploadedBy, now)
			if err != nil {
				return fmt.Errorf("submit profile: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) DraftProfiles(ctx context.Context, openingID, uploadedBy string, keys []string) error {
	now := time.Now().UTC()
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, k := range keys {
			_, err := tx.Exec(ctx, `INSERT INTO hiring_profiles
				(id, opening_id, object_key, uploaded_by, is_draft, is_deleted, created_at, updated_at)
				VALUES ($1, $2, $3, $4, TRUE, FALSE, $5, $5)`,
				uuid.NewString(), openingID, k, uploadedBy, now)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
					return openings.ErrDuplicateKey
				}
				return fmt.Errorf("draft profile: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) GetProfile(ctx context.Context, id string) (*openings.HiringProfile, string, error) {
	var (
		p      openings.HiringProfile
		tenant string
	)
	err := r.db.QueryRow(ctx, `SELECT p.id, p.opening_id, p.object_key, p.uploaded_by, p.is_draft, p.is_deleted,
			p.created_at, p.updated_at, o.tenant_id
		FROM hiring_profiles p JOIN openings o ON o.id = p.opening_id
		WHERE p.id = $1`, id).
		Scan(&p.ID, &p.OpeningID, &p.ObjectKey, &p.UploadedBy, &p.IsDraft, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt, &tenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", openings.ErrProfileNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("get profile: %w", err)
	}
	return &p, tenant, nil
}

func (r *PostgresRepo) SoftDeleteProfile(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE hiring_profiles SET is_deleted = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return openings.ErrProfileNotFound
	}
	return nil
}
