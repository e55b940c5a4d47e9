package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
)

const purchaseColumns = `id, student_id, school_id, lessons_total, lessons_used, status, purchase_date, expires_at, created_at, updated_at`

type purchaseRow struct {
	ID           string           `db:"id"`
	StudentID    string           `db:"student_id"`
	SchoolID     string           `db:"school_id"`
	LessonsTotal int              `db:"lessons_total"`
	LessonsUsed  int              `db:"lessons_used"`
	Status       lessonpkg.Status `db:"status"`
	PurchaseDate time.Time        `db:"purchase_date"`
	ExpiresAt    null.Time        `db:"expires_at"`
	CreatedAt    time.Time        `db:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at"`
}

func (row purchaseRow) toPurchase() lessonpkg.Purchase {
	p := lessonpkg.Purchase{
		ID:           row.ID,
		StudentID:    row.StudentID,
		SchoolID:     row.SchoolID,
		LessonsTotal: row.LessonsTotal,
		LessonsUsed:  row.LessonsUsed,
		Status:       row.Status,
		PurchaseDate: row.PurchaseDate.UTC(),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.ExpiresAt.Valid {
		exp := row.ExpiresAt.Time.UTC()
		p.ExpiresAt = &exp
	}
	return p
}

type packageRepository struct {
	db *DB
}

var _ lessonpkg.Repository = (*packageRepository)(nil)

func NewPackageRepository(db *DB) lessonpkg.Repository {
	return &packageRepository{db: db}
}

func (repo *packageRepository) get(ctx context.Context, query string, args ...interface{}) (lessonpkg.Purchase, error) {
	var row purchaseRow
	if err := repo.db.conn(ctx).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lessonpkg.Purchase{}, lessonpkg.ErrNotFound
		}
		return lessonpkg.Purchase{}, translateErr(err)
	}
	return row.toPurchase(), nil
}

func (repo *packageRepository) selectAll(ctx context.Context, query string, args ...interface{}) ([]lessonpkg.Purchase, error) {
	var rows []purchaseRow
	if err := repo.db.conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translateErr(err)
	}
	ps := make([]lessonpkg.Purchase, 0, len(rows))
	for _, row := range rows {
		ps = append(ps, row.toPurchase())
	}
	return ps, nil
}

func (repo *packageRepository) CreatePurchase(ctx context.Context, p lessonpkg.Purchase) (lessonpkg.Purchase, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return repo.get(ctx, `
		INSERT INTO package_purchases (`+purchaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+purchaseColumns,
		p.ID, p.StudentID, p.SchoolID, p.LessonsTotal, p.LessonsUsed, p.Status,
		p.PurchaseDate, null.TimeFromPtr(p.ExpiresAt), p.CreatedAt, p.UpdatedAt,
	)
}

func (repo *packageRepository) GetPurchase(ctx context.Context, id string) (lessonpkg.Purchase, error) {
	if _, err := uuid.Parse(id); err != nil {
		return lessonpkg.Purchase{}, lessonpkg.ErrNotFound
	}
	return repo.get(ctx, `SELECT `+purchaseColumns+` FROM package_purchases WHERE id = $1`, id)
}

func (repo *packageRepository) GetPurchaseForUpdate(ctx context.Context, id string) (lessonpkg.Purchase, error) {
	if _, err := uuid.Parse(id); err != nil {
		return lessonpkg.Purchase{}, lessonpkg.ErrNotFound
	}
	return repo.get(ctx, `SELECT `+purchaseColumns+` FROM package_purchases WHERE id = $1 FOR UPDATE`, id)
}

func (repo *packageRepository) QueryPurchases(ctx context.Context, filter lessonpkg.QueryFilter) ([]lessonpkg.Purchase, error) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conds = append(conds, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conds = append(conds, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + purchaseColumns + ` FROM package_purchases`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY purchase_date, id`
	return repo.selectAll(ctx, query, args...)
}

func (repo *packageRepository) OldestAvailable(ctx context.Context, studentID string, at time.Time) (lessonpkg.Purchase, error) {
	// no row lock: the usage update is guarded instead
	return repo.get(ctx, `
		SELECT `+purchaseColumns+` FROM package_purchases
		WHERE student_id = $1
		  AND status = 'active'
		  AND lessons_used < lessons_total
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY purchase_date, id
		LIMIT 1`,
		studentID, at,
	)
}

func (repo *packageRepository) CompareAndSwapUsage(ctx context.Context, prev, next lessonpkg.Purchase) (lessonpkg.Purchase, error) {
	p, err := repo.get(ctx, `
		UPDATE package_purchases
		SET lessons_used = $2, status = $3, updated_at = $4
		WHERE id = $1 AND lessons_used = $5 AND status = $6
		RETURNING `+purchaseColumns,
		prev.ID, next.LessonsUsed, next.Status, next.UpdatedAt, prev.LessonsUsed, prev.Status,
	)
	if errors.Cause(err) != lessonpkg.ErrNotFound {
		return p, err
	}
	if _, err = repo.GetPurchase(ctx, prev.ID); err != nil {
		return lessonpkg.Purchase{}, err
	}
	return lessonpkg.Purchase{}, core.ErrConflict
}

func (repo *packageRepository) UpdatePurchase(ctx context.Context, p lessonpkg.Purchase) (lessonpkg.Purchase, error) {
	return repo.get(ctx, `
		UPDATE package_purchases
		SET lessons_total = $2, lessons_used = $3, status = $4, expires_at = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+purchaseColumns,
		p.ID, p.LessonsTotal, p.LessonsUsed, p.Status, null.TimeFromPtr(p.ExpiresAt), p.UpdatedAt,
	)
}

func (repo *packageRepository) DeletePurchase(ctx context.Context, id string) error {
	n, err := rowsAffected(repo.db.conn(ctx).ExecContext(ctx, `DELETE FROM package_purchases WHERE id = $1`, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return lessonpkg.ErrNotFound
	}
	return nil
}

func (repo *packageRepository) ExpirePurchases(ctx context.Context, at time.Time) (int, error) {
	return rowsAffected(repo.db.conn(ctx).ExecContext(ctx, `
		UPDATE package_purchases SET status = 'expired', updated_at = $1
		WHERE status IN ('active', 'exhausted') AND expires_at IS NOT NULL AND expires_at <= $1`,
		at,
	))
}

func (repo *packageRepository) ExpireIdleExhausted(ctx context.Context, schoolID string, idleSince time.Time) (int, error) {
	return rowsAffected(repo.db.conn(ctx).ExecContext(ctx, `
		UPDATE package_purchases SET status = 'expired', updated_at = $3
		WHERE school_id = $1 AND status = 'exhausted' AND updated_at < $2`,
		schoolID, idleSince, core.NowFunc(),
	))
}

func (repo *packageRepository) SchoolsWithExhausted(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := repo.db.conn(ctx).SelectContext(ctx, &ids, `
		SELECT DISTINCT school_id FROM package_purchases WHERE status = 'exhausted' ORDER BY school_id`)
	return ids, translateErr(err)
}
