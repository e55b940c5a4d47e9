package inmemdb

import (
	"context"

	"github.com/mrdawstar/LinguaLab-sub000/core/school"
)

type settingsRepository struct {
	db *DB
}

var _ school.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db *DB) school.Repository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) UpsertSettingsDefaults(ctx context.Context, defaults school.Settings) (school.Settings, error) {
	defer repo.db.lock(ctx)()

	if s, ok := repo.db.settings[defaults.SchoolID]; ok {
		return s, nil
	}
	repo.db.settings[defaults.SchoolID] = defaults
	return defaults, nil
}

func (repo *settingsRepository) UpdateSettings(ctx context.Context, s school.Settings) (school.Settings, error) {
	defer repo.db.lock(ctx)()

	repo.db.settings[s.SchoolID] = s
	return s, nil
}
