package attendancectl

import (
	"context"

	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/usage"
)

// Local runs the controller's collaborators in process, against the core services.
type Local struct {
	Attendance *attendance.Service
	Reconciler *usage.Reconciler
}

var (
	_ AttendanceStore = Local{}
	_ Reconciler      = Local{}
)

func (l Local) ListAttendance(ctx context.Context, lessonID string) ([]attendance.Record, error) {
	return l.Attendance.ListByLesson(ctx, lessonID)
}

func (l Local) MarkAttendance(ctx context.Context, ma attendance.MarkAttendance) (attendance.Record, error) {
	return l.Attendance.Mark(ctx, ma)
}

func (l Local) Reconcile(ctx context.Context, ev usage.Event) (usage.Result, error) {
	return l.Reconciler.Reconcile(ctx, ev)
}
