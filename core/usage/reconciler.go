// Package usage keeps the lesson credits of students' packages consistent with their
// attendance records.
//
// Every decision is recomputed from the stored state of the attendance record, read under a
// row lock inside a transaction, so replaying an event or toggling attendance back and forth
// never consumes or restores a credit twice.
package usage

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
)

type Action string

// Actions
const (
	ActionConsumed Action = "consumed"
	ActionRestored Action = "restored"
	ActionNoop     Action = "noop"
)

var errForeignPackage = errors.New("attendance record linked to another student's package")

// Event is a change of attendance state to reconcile package usage with.
type Event struct {
	LessonID           string `json:"lesson_id" validate:"required,uuid"`
	StudentID          string `json:"student_id" validate:"required,uuid"`
	Attended           *bool  `json:"attended" validate:"required"`
	AttendanceRecordID string `json:"attendance_record_id,omitempty" validate:"omitempty,uuid"`
}

func NewEvent(lessonID, studentID string, attended bool, recordID string) Event {
	return Event{
		LessonID:           lessonID,
		StudentID:          studentID,
		Attended:           &attended,
		AttendanceRecordID: recordID,
	}
}

func (ev *Event) Validate(validate *validator.Validate) error {
	ev.LessonID = core.CleanString(ev.LessonID, true /* lower */)
	ev.StudentID = core.CleanString(ev.StudentID, true /* lower */)
	ev.AttendanceRecordID = core.CleanString(ev.AttendanceRecordID, true /* lower */)
	return validate.Struct(ev)
}

// Result of a reconciliation.
// MissingPackage is set when the student was marked present but had no credit left;
// the attendance mark stands regardless.
type Result struct {
	OK                 bool    `json:"ok"`
	MissingPackage     bool    `json:"missing_package,omitempty"`
	Action             Action  `json:"action"`
	AttendanceRecordID string  `json:"attendance_record_id"`
	PackagePurchaseID  *string `json:"package_purchase_id"`
}

type (
	AttendanceRepository interface {
		GetRecordForUpdate(ctx context.Context, lessonID, studentID string) (attendance.Record, error)
		CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error)
		SwapPackage(ctx context.Context, id string, old, new *string) (attendance.Record, error)
	}

	PackageRepository interface {
		GetPurchaseForUpdate(ctx context.Context, id string) (lessonpkg.Purchase, error)
		OldestAvailable(ctx context.Context, studentID string, at time.Time) (lessonpkg.Purchase, error)
		CompareAndSwapUsage(ctx context.Context, prev, next lessonpkg.Purchase) (lessonpkg.Purchase, error)
	}

	Reconciler struct {
		attendance AttendanceRepository
		packages   PackageRepository
		tx         core.Transactor
		validate   *validator.Validate
		logger     core.Logger
	}
)

func NewReconciler(
	attRepo AttendanceRepository,
	pkgRepo PackageRepository,
	tx core.Transactor,
	validate *validator.Validate,
	logger core.Logger,
) *Reconciler {
	return &Reconciler{
		attendance: attRepo,
		packages:   pkgRepo,
		tx:         tx,
		validate:   validate,
		logger:     logger,
	}
}

// Reconcile consumes, restores or leaves unchanged one package credit so that the attendance
// record of (ev.LessonID, ev.StudentID) is consistent with its stored attended flag.
// ev.Attended only initializes a record that does not exist yet; an event disagreeing with
// an existing record is reconciled toward the record.
// A lost concurrent update is retried once on freshly read state; a second one is returned
// as core.ErrConflict.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (Result, error) {
	if err := ev.Validate(r.validate); err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := r.reconcile(ctx, ev)
	if core.IsConflict(err) {
		reconcileConflicts.Inc()
		r.logger.Debug("reconcile conflict, retrying", map[string]interface{}{
			"lesson_id":  ev.LessonID,
			"student_id": ev.StudentID,
		})
		res, err = r.reconcile(ctx, ev)
	}
	observe(res, err, time.Since(start))

	if err != nil {
		return Result{}, err
	}
	if res.MissingPackage {
		r.logger.Warn("no package credit available", map[string]interface{}{
			"lesson_id":            ev.LessonID,
			"student_id":           ev.StudentID,
			"attendance_record_id": res.AttendanceRecordID,
		})
	}
	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context, ev Event) (Result, error) {
	var res Result
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		rec, err := r.lockRecord(ctx, ev)
		if err != nil {
			return err
		}
		// the stored flag wins over a stale or out-of-order event
		if rec.Attended != *ev.Attended {
			r.logger.Debug("event disagrees with stored attendance", map[string]interface{}{
				"lesson_id":     ev.LessonID,
				"student_id":    ev.StudentID,
				"event":         *ev.Attended,
				"stored":        rec.Attended,
				"attendance_id": rec.ID,
			})
		}
		if rec.Attended {
			res, err = r.consume(ctx, rec)
		} else {
			res, err = r.restore(ctx, rec)
		}
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// lockRecord reads the attendance record under lock, creating it if the pair was never marked.
func (r *Reconciler) lockRecord(ctx context.Context, ev Event) (attendance.Record, error) {
	rec, err := r.attendance.GetRecordForUpdate(ctx, ev.LessonID, ev.StudentID)
	switch errors.Cause(err) {
	case nil:
		if ev.AttendanceRecordID != "" && ev.AttendanceRecordID != rec.ID {
			return attendance.Record{}, core.NewValidationError(nil, core.FieldError{
				Field: "attendance_record_id",
				Error: "does not match lesson_id and student_id",
			})
		}
		return rec, nil
	case attendance.ErrNotFound:
		if ev.AttendanceRecordID != "" {
			return attendance.Record{}, err
		}
	default:
		return attendance.Record{}, errors.Wrap(err, "locking attendance record")
	}

	now := core.NowFunc()
	rec, err = r.attendance.CreateRecord(ctx, attendance.Record{
		LessonID:  ev.LessonID,
		StudentID: ev.StudentID,
		Attended:  *ev.Attended,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Cause(err) == attendance.ErrExists {
		// created concurrently: start over on the stored record
		return attendance.Record{}, core.ErrConflict
	}
	return rec, errors.Wrap(err, "creating attendance record")
}

func (r *Reconciler) consume(ctx context.Context, rec attendance.Record) (Result, error) {
	res := Result{OK: true, Action: ActionNoop, AttendanceRecordID: rec.ID, PackagePurchaseID: rec.PackagePurchaseID}
	if rec.HasPackage() {
		return res, nil // credit already consumed
	}

	now := core.NowFunc()
	pkg, err := r.packages.OldestAvailable(ctx, rec.StudentID, now)
	if err != nil {
		if errors.Cause(err) == lessonpkg.ErrNotFound {
			res.MissingPackage = true
			return res, nil
		}
		return Result{}, errors.Wrap(err, "selecting package")
	}

	next := pkg.Consume()
	next.UpdatedAt = now
	if _, err = r.packages.CompareAndSwapUsage(ctx, pkg, next); err != nil {
		return Result{}, errors.Wrap(err, "consuming credit")
	}
	if _, err = r.attendance.SwapPackage(ctx, rec.ID, nil, &pkg.ID); err != nil {
		return Result{}, errors.Wrap(err, "linking package")
	}

	res.Action = ActionConsumed
	res.PackagePurchaseID = &pkg.ID
	return res, nil
}

func (r *Reconciler) restore(ctx context.Context, rec attendance.Record) (Result, error) {
	res := Result{OK: true, Action: ActionNoop, AttendanceRecordID: rec.ID}
	if !rec.HasPackage() {
		return res, nil
	}

	pkg, err := r.packages.GetPurchaseForUpdate(ctx, *rec.PackagePurchaseID)
	switch {
	case errors.Cause(err) == lessonpkg.ErrNotFound:
		// dangling link: nothing to give back
		_, err = r.attendance.SwapPackage(ctx, rec.ID, rec.PackagePurchaseID, nil)
		return res, errors.Wrap(err, "unlinking package")
	case err != nil:
		return Result{}, errors.Wrap(err, "locking package")
	case pkg.StudentID != rec.StudentID:
		return Result{}, errors.Wrapf(errForeignPackage, "record %s, package %s", rec.ID, pkg.ID)
	}

	next := pkg.Restore()
	next.UpdatedAt = core.NowFunc()
	if _, err = r.packages.CompareAndSwapUsage(ctx, pkg, next); err != nil {
		return Result{}, errors.Wrap(err, "restoring credit")
	}
	if _, err = r.attendance.SwapPackage(ctx, rec.ID, rec.PackagePurchaseID, nil); err != nil {
		return Result{}, errors.Wrap(err, "unlinking package")
	}

	res.Action = ActionRestored
	res.PackagePurchaseID = &pkg.ID
	return res, nil
}
