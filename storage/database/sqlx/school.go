package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core/school"
)

const settingsColumns = `school_id, package_validity_days, single_lesson_validity_days, exhausted_idle_days, updated_at`

type settingsRow struct {
	SchoolID                 string    `db:"school_id"`
	PackageValidityDays      int       `db:"package_validity_days"`
	SingleLessonValidityDays int       `db:"single_lesson_validity_days"`
	ExhaustedIdleDays        int       `db:"exhausted_idle_days"`
	UpdatedAt                time.Time `db:"updated_at"`
}

func (row settingsRow) toSettings() school.Settings {
	return school.Settings{
		SchoolID:                 row.SchoolID,
		PackageValidityDays:      row.PackageValidityDays,
		SingleLessonValidityDays: row.SingleLessonValidityDays,
		ExhaustedIdleDays:        row.ExhaustedIdleDays,
		UpdatedAt:                row.UpdatedAt.UTC(),
	}
}

type settingsRepository struct {
	db *DB
}

var _ school.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db *DB) school.Repository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) UpsertSettingsDefaults(ctx context.Context, defaults school.Settings) (school.Settings, error) {
	var row settingsRow
	// the no-op update makes RETURNING yield the stored row when one exists
	err := repo.db.conn(ctx).GetContext(ctx, &row, `
		INSERT INTO school_settings (`+settingsColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (school_id) DO UPDATE SET school_id = EXCLUDED.school_id
		RETURNING `+settingsColumns,
		defaults.SchoolID, defaults.PackageValidityDays, defaults.SingleLessonValidityDays,
		defaults.ExhaustedIdleDays, defaults.UpdatedAt,
	)
	if err != nil {
		return school.Settings{}, translateErr(err)
	}
	return row.toSettings(), nil
}

func (repo *settingsRepository) UpdateSettings(ctx context.Context, s school.Settings) (school.Settings, error) {
	var row settingsRow
	err := repo.db.conn(ctx).GetContext(ctx, &row, `
		UPDATE school_settings
		SET package_validity_days = $2, single_lesson_validity_days = $3, exhausted_idle_days = $4, updated_at = $5
		WHERE school_id = $1
		RETURNING `+settingsColumns,
		s.SchoolID, s.PackageValidityDays, s.SingleLessonValidityDays, s.ExhaustedIdleDays, s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return school.Settings{}, errors.Errorf("no settings for school %s", s.SchoolID)
		}
		return school.Settings{}, translateErr(err)
	}
	return row.toSettings(), nil
}
