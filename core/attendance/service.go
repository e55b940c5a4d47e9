package attendance

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

var (
	// errors
	ErrNotFound = errors.New("attendance record not found")
	ErrExists   = errors.New("attendance record already exists")
)

type (
	Repository interface {
		// UpsertRecord creates the record keyed by (LessonID, StudentID) or updates its
		// Attended & Comment in place. A nil Comment keeps the stored one. PackagePurchaseID
		// is never written by it.
		UpsertRecord(ctx context.Context, rec Record) (Record, error)
		// CreateRecord inserts a new record; ErrExists if the (lesson, student) pair is taken.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		GetRecordByID(ctx context.Context, id string) (Record, error)
		// GetRecordForUpdate returns the record of the (lesson, student) pair, locking it until
		// the surrounding transaction ends.
		GetRecordForUpdate(ctx context.Context, lessonID, studentID string) (Record, error)
		ListRecordsByLesson(ctx context.Context, lessonID string) ([]Record, error)
		// SwapPackage sets the record's package link to `new` only if it is still `old`;
		// core.ErrConflict otherwise.
		SwapPackage(ctx context.Context, id string, old, new *string) (Record, error)
		// DetachPackage clears every link pointing at packageID.
		DetachPackage(ctx context.Context, packageID string) (int, error)
		DeleteRecordsByLesson(ctx context.Context, lessonID string) (int, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// Mark creates or updates the attendance of a student at a lesson.
func (svc *Service) Mark(ctx context.Context, ma MarkAttendance) (Record, error) {
	if err := ma.Validate(svc.validate); err != nil {
		return Record{}, err
	}
	now := core.NowFunc()
	rec, err := svc.repo.UpsertRecord(ctx, Record{
		LessonID:  ma.LessonID,
		StudentID: ma.StudentID,
		Attended:  *ma.Attended,
		Comment:   ma.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return rec, errors.Wrap(err, "upserting attendance record")
}

func (svc *Service) Get(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecordByID(ctx, id)
}

func (svc *Service) ListByLesson(ctx context.Context, lessonID string) ([]Record, error) {
	return svc.repo.ListRecordsByLesson(ctx, core.CleanString(lessonID, true /* lower */))
}

// DeleteByLesson removes the records of a deleted lesson.
func (svc *Service) DeleteByLesson(ctx context.Context, lessonID string) (int, error) {
	return svc.repo.DeleteRecordsByLesson(ctx, core.CleanString(lessonID, true /* lower */))
}
