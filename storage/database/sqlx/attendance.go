package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
)

const recordColumns = `id, lesson_id, student_id, attended, comment, package_purchase_id, created_at, updated_at`

type recordRow struct {
	ID                string      `db:"id"`
	LessonID          string      `db:"lesson_id"`
	StudentID         string      `db:"student_id"`
	Attended          bool        `db:"attended"`
	Comment           null.String `db:"comment"`
	PackagePurchaseID null.String `db:"package_purchase_id"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func (row recordRow) toRecord() attendance.Record {
	return attendance.Record{
		ID:                row.ID,
		LessonID:          row.LessonID,
		StudentID:         row.StudentID,
		Attended:          row.Attended,
		Comment:           row.Comment.Ptr(),
		PackagePurchaseID: row.PackagePurchaseID.Ptr(),
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) get(ctx context.Context, query string, args ...interface{}) (attendance.Record, error) {
	var row recordRow
	if err := repo.db.conn(ctx).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, translateErr(err)
	}
	return row.toRecord(), nil
}

func (repo *attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	return repo.get(ctx, `
		INSERT INTO attendance_records (id, lesson_id, student_id, attended, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lesson_id, student_id) DO UPDATE
		SET attended = EXCLUDED.attended, comment = COALESCE(EXCLUDED.comment, attendance_records.comment),
		    updated_at = EXCLUDED.updated_at
		RETURNING `+recordColumns,
		uuid.NewString(), rec.LessonID, rec.StudentID, rec.Attended, null.StringFromPtr(rec.Comment), rec.CreatedAt, rec.UpdatedAt,
	)
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	created, err := repo.get(ctx, `
		INSERT INTO attendance_records (id, lesson_id, student_id, attended, comment, package_purchase_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (lesson_id, student_id) DO NOTHING
		RETURNING `+recordColumns,
		uuid.NewString(), rec.LessonID, rec.StudentID, rec.Attended, null.StringFromPtr(rec.Comment),
		null.StringFromPtr(rec.PackagePurchaseID), rec.CreatedAt, rec.UpdatedAt,
	)
	if errors.Cause(err) == attendance.ErrNotFound {
		return attendance.Record{}, attendance.ErrExists
	}
	return created, err
}

func (repo *attendanceRepository) GetRecordByID(ctx context.Context, id string) (attendance.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return repo.get(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
}

func (repo *attendanceRepository) GetRecordForUpdate(ctx context.Context, lessonID, studentID string) (attendance.Record, error) {
	return repo.get(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE lesson_id = $1 AND student_id = $2
		FOR UPDATE`,
		lessonID, studentID,
	)
}

func (repo *attendanceRepository) ListRecordsByLesson(ctx context.Context, lessonID string) ([]attendance.Record, error) {
	if _, err := uuid.Parse(lessonID); err != nil {
		return []attendance.Record{}, nil
	}
	var rows []recordRow
	err := repo.db.conn(ctx).SelectContext(ctx, &rows, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE lesson_id = $1
		ORDER BY created_at, id`,
		lessonID,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.toRecord())
	}
	return recs, nil
}

func (repo *attendanceRepository) SwapPackage(ctx context.Context, id string, old, new *string) (attendance.Record, error) {
	rec, err := repo.get(ctx, `
		UPDATE attendance_records
		SET package_purchase_id = $3, updated_at = $4
		WHERE id = $1 AND package_purchase_id IS NOT DISTINCT FROM $2
		RETURNING `+recordColumns,
		id, null.StringFromPtr(old), null.StringFromPtr(new), core.NowFunc(),
	)
	if errors.Cause(err) != attendance.ErrNotFound {
		return rec, err
	}
	// the guard failed: tell a missing record from a changed link
	if _, err = repo.GetRecordByID(ctx, id); err != nil {
		return attendance.Record{}, err
	}
	return attendance.Record{}, core.ErrConflict
}

func (repo *attendanceRepository) DetachPackage(ctx context.Context, packageID string) (int, error) {
	return rowsAffected(repo.db.conn(ctx).ExecContext(ctx, `
		UPDATE attendance_records SET package_purchase_id = NULL, updated_at = $2
		WHERE package_purchase_id = $1`,
		packageID, core.NowFunc(),
	))
}

func (repo *attendanceRepository) DeleteRecordsByLesson(ctx context.Context, lessonID string) (int, error) {
	if _, err := uuid.Parse(lessonID); err != nil {
		return 0, nil
	}
	return rowsAffected(repo.db.conn(ctx).ExecContext(ctx, `DELETE FROM attendance_records WHERE lesson_id = $1`, lessonID))
}
