package school

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

type (
	Repository interface {
		// UpsertSettingsDefaults stores `defaults` unless the school already has settings,
		// then returns the stored settings. It must not race with a concurrent first read.
		UpsertSettingsDefaults(ctx context.Context, defaults Settings) (Settings, error)
		UpdateSettings(ctx context.Context, s Settings) (Settings, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		validate *validator.Validate
	}
)

func NewService(repo Repository, tx core.Transactor, validate *validator.Validate) *Service {
	return &Service{repo: repo, tx: tx, validate: validate}
}

// Settings returns the school's settings, creating the defaults on first access.
func (svc *Service) Settings(ctx context.Context, schoolID string) (Settings, error) {
	s, err := svc.repo.UpsertSettingsDefaults(ctx, DefaultSettings(schoolID, core.NowFunc()))
	return s, errors.Wrap(err, "upserting default settings")
}

func (svc *Service) Update(ctx context.Context, schoolID string, us UpdateSettings) (Settings, error) {
	if err := us.Validate(svc.validate); err != nil {
		return Settings{}, err
	}

	var updated Settings
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		s, err := svc.Settings(ctx, schoolID)
		if err != nil {
			return err
		}
		s = us.apply(s)
		s.UpdatedAt = core.NowFunc()
		updated, err = svc.repo.UpdateSettings(ctx, s)
		return errors.Wrap(err, "updating settings")
	})
	return updated, err
}
