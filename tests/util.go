package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
)

func NewValidator() *validator.Validate {
	return core.NewValidator(core.NewTranslator())
}

// NewID returns a random lowercase UUID.
func NewID() string {
	return uuid.NewString()
}

// FreezeTime sets core.NowFunc to a fixed time for the duration of the test.
func FreezeTime(t *testing.T, now time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

type PurchaseOpt func(p *lessonpkg.Purchase)

func WithUsed(n int) PurchaseOpt {
	return func(p *lessonpkg.Purchase) { p.LessonsUsed = n }
}

func WithStatus(st lessonpkg.Status) PurchaseOpt {
	return func(p *lessonpkg.Purchase) { p.Status = st }
}

func WithExpiresAt(exp time.Time) PurchaseOpt {
	return func(p *lessonpkg.Purchase) {
		exp = exp.UTC()
		p.ExpiresAt = &exp
	}
}

func WithSchool(schoolID string) PurchaseOpt {
	return func(p *lessonpkg.Purchase) { p.SchoolID = schoolID }
}

func WithUpdatedAt(ts time.Time) PurchaseOpt {
	return func(p *lessonpkg.Purchase) { p.UpdatedAt = ts.UTC() }
}

// CreatePurchase stores an active package of `total` credits bought by the student at purchaseDate.
func CreatePurchase(
	t *testing.T,
	repo lessonpkg.Repository,
	studentID string,
	total int,
	purchaseDate time.Time,
	opts ...PurchaseOpt,
) lessonpkg.Purchase {
	t.Helper()

	p := lessonpkg.Purchase{
		StudentID:    studentID,
		SchoolID:     "00000000-0000-0000-0000-00000000000a",
		LessonsTotal: total,
		Status:       lessonpkg.StatusActive,
		PurchaseDate: purchaseDate.UTC(),
		CreatedAt:    purchaseDate.UTC(),
		UpdatedAt:    purchaseDate.UTC(),
	}
	for _, opt := range opts {
		opt(&p)
	}
	p, err := repo.CreatePurchase(context.Background(), p)
	if err != nil {
		t.Fatalf("CreatePurchase() failed: %v", err)
	}
	return p
}

// CreateRecord stores an attendance record, optionally linked to a package.
func CreateRecord(
	t *testing.T,
	repo attendance.Repository,
	lessonID, studentID string,
	attended bool,
	packageID *string,
) attendance.Record {
	t.Helper()

	now := core.NowFunc()
	rec, err := repo.CreateRecord(context.Background(), attendance.Record{
		LessonID:          lessonID,
		StudentID:         studentID,
		Attended:          attended,
		PackagePurchaseID: packageID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}
