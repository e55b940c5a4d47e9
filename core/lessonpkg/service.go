package lessonpkg

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/school"
)

var (
	// errors
	ErrNotFound = errors.New("package purchase not found")
)

type (
	Repository interface {
		CreatePurchase(ctx context.Context, p Purchase) (Purchase, error)
		GetPurchase(ctx context.Context, id string) (Purchase, error)
		// GetPurchaseForUpdate locks the purchase until the surrounding transaction ends.
		GetPurchaseForUpdate(ctx context.Context, id string) (Purchase, error)
		// QueryPurchases orders by purchase_date then id, ascending.
		QueryPurchases(ctx context.Context, filter QueryFilter) ([]Purchase, error)
		// OldestAvailable returns the student's active, non-expired purchase with credits left
		// with the earliest purchase_date; ties go to the smallest id. ErrNotFound if none.
		OldestAvailable(ctx context.Context, studentID string, at time.Time) (Purchase, error)
		// CompareAndSwapUsage stores next.LessonsUsed & next.Status only if the stored purchase
		// still has prev's; core.ErrConflict otherwise.
		CompareAndSwapUsage(ctx context.Context, prev, next Purchase) (Purchase, error)
		UpdatePurchase(ctx context.Context, p Purchase) (Purchase, error)
		DeletePurchase(ctx context.Context, id string) error
		// ExpirePurchases marks expired every active or exhausted purchase past its expiry date.
		ExpirePurchases(ctx context.Context, at time.Time) (int, error)
		// ExpireIdleExhausted marks expired the school's exhausted purchases untouched since idleSince.
		ExpireIdleExhausted(ctx context.Context, schoolID string, idleSince time.Time) (int, error)
		// SchoolsWithExhausted lists the schools having at least one exhausted purchase.
		SchoolsWithExhausted(ctx context.Context) ([]string, error)
	}

	// Detacher clears attendance links to a deleted package.
	Detacher interface {
		DetachPackage(ctx context.Context, packageID string) (int, error)
	}

	SettingsProvider interface {
		Settings(ctx context.Context, schoolID string) (school.Settings, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		detacher Detacher
		settings SettingsProvider
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	detacher Detacher,
	settings SettingsProvider,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		detacher: detacher,
		settings: settings,
		validate: validate,
	}
}

// Purchase records a new package for a student.
// Without an explicit expiry date, the school's validity settings apply.
func (svc *Service) Purchase(ctx context.Context, np NewPurchase) (Purchase, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Purchase{}, err
	}

	now := core.NowFunc()
	purchaseDate := now
	if np.PurchaseDate != nil {
		purchaseDate = np.PurchaseDate.UTC()
	}

	var expiresAt *time.Time
	if np.ExpiresAt != nil {
		exp := np.ExpiresAt.UTC()
		expiresAt = &exp
	} else {
		settings, err := svc.settings.Settings(ctx, np.SchoolID)
		if err != nil {
			return Purchase{}, errors.Wrap(err, "getting school settings")
		}
		if validity := settings.ValidityFor(np.LessonsTotal); validity > 0 {
			exp := purchaseDate.Add(validity)
			expiresAt = &exp
		}
	}

	p, err := svc.repo.CreatePurchase(ctx, Purchase{
		StudentID:    np.StudentID,
		SchoolID:     np.SchoolID,
		LessonsTotal: np.LessonsTotal,
		Status:       StatusActive,
		PurchaseDate: purchaseDate,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return p, errors.Wrap(err, "creating purchase")
}

// PurchaseSingleLesson records a one-lesson package.
func (svc *Service) PurchaseSingleLesson(ctx context.Context, studentID, schoolID string) (Purchase, error) {
	return svc.Purchase(ctx, NewPurchase{StudentID: studentID, SchoolID: schoolID, LessonsTotal: 1})
}

func (svc *Service) Get(ctx context.Context, id string) (Purchase, error) {
	return svc.repo.GetPurchase(ctx, id)
}

func (svc *Service) ListByStudent(ctx context.Context, filter QueryFilter) ([]Purchase, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
		}
	}
	return svc.repo.QueryPurchases(ctx, filter)
}

// Edit applies an administrator's correction to a purchase.
func (svc *Service) Edit(ctx context.Context, id string, ep EditPurchase) (Purchase, error) {
	if err := ep.Validate(svc.validate); err != nil {
		return Purchase{}, err
	}

	var updated Purchase
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		orig, err := svc.repo.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p, err := ep.apply(orig, core.NowFunc())
		if err != nil {
			return err
		}
		updated, err = svc.repo.UpdatePurchase(ctx, p)
		return errors.Wrap(err, "updating purchase")
	})
	return updated, err
}

// Delete removes a purchase. Attendance records that consumed from it are detached, not deleted.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetPurchaseForUpdate(ctx, id); err != nil {
			return err
		}
		if _, err := svc.detacher.DetachPackage(ctx, id); err != nil {
			return errors.Wrap(err, "detaching attendance records")
		}
		return errors.Wrap(svc.repo.DeletePurchase(ctx, id), "deleting purchase")
	})
}

// ExpireDue marks expired the packages past their expiry date, and the exhausted ones idle for
// longer than their school allows. It returns the number of expired packages.
func (svc *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	total, err := svc.repo.ExpirePurchases(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "expiring purchases")
	}

	schoolIDs, err := svc.repo.SchoolsWithExhausted(ctx)
	if err != nil {
		return total, errors.Wrap(err, "listing schools")
	}
	for _, schoolID := range schoolIDs {
		settings, err := svc.settings.Settings(ctx, schoolID)
		if err != nil {
			return total, errors.Wrap(err, "getting school settings")
		}
		if settings.ExhaustedIdleDays <= 0 {
			continue
		}
		idleSince := now.Add(-time.Duration(settings.ExhaustedIdleDays) * 24 * time.Hour)
		n, err := svc.repo.ExpireIdleExhausted(ctx, schoolID, idleSince)
		if err != nil {
			return total, errors.Wrap(err, "expiring idle purchases")
		}
		total += n
	}
	return total, nil
}
