// Package attendancectl keeps a lesson's attendance view responsive: toggles are applied
// to the view at once and persisted in the background, with rollback on failure.
package attendancectl

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/usage"
)

type (
	AttendanceStore interface {
		ListAttendance(ctx context.Context, lessonID string) ([]attendance.Record, error)
		MarkAttendance(ctx context.Context, ma attendance.MarkAttendance) (attendance.Record, error)
	}

	Reconciler interface {
		Reconcile(ctx context.Context, ev usage.Event) (usage.Result, error)
	}
)

type key struct {
	lessonID  string
	studentID string
}

type entry struct {
	view      State // what the user sees
	confirmed State // last persisted state
	recordID  string
	gen       uint64 // bumped by every toggle
	inflight  int

	lock sync.Mutex // serializes persistence of the key
}

type Controller struct {
	store      AttendanceStore
	reconciler Reconciler
	notifier   Notifier
	logger     core.Logger

	mu      sync.Mutex // guards entries and their fields, except entry.lock
	entries map[key]*entry
	wg      sync.WaitGroup
}

func New(store AttendanceStore, reconciler Reconciler, notifier Notifier, logger core.Logger) *Controller {
	return &Controller{
		store:      store,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logger,
		entries:    make(map[key]*entry),
	}
}

// entry must be called with c.mu held.
func (c *Controller) entry(k key) *entry {
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	return e
}

// Load seeds the view with the persisted attendance of a lesson.
// Students with a toggle in flight keep their optimistic state.
func (c *Controller) Load(ctx context.Context, lessonID string) error {
	recs, err := c.store.ListAttendance(ctx, lessonID)
	if err != nil {
		return errors.Wrap(err, "loading attendance")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range recs {
		e := c.entry(key{lessonID, rec.StudentID})
		if e.inflight > 0 {
			continue
		}
		e.view = stateOf(rec.Attended)
		e.confirmed = e.view
		e.recordID = rec.ID
	}
	return nil
}

// State returns what the user currently sees for the student.
func (c *Controller) State(lessonID, studentID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key{lessonID, studentID}]; ok {
		return e.view
	}
	return Unmarked
}

// RecordID returns the id of the student's persisted attendance record, if known.
func (c *Controller) RecordID(lessonID, studentID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key{lessonID, studentID}]; ok {
		return e.recordID
	}
	return ""
}

// Pending reports whether a toggle of the student is not persisted yet.
func (c *Controller) Pending(lessonID, studentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key{lessonID, studentID}]; ok {
		return e.inflight > 0
	}
	return false
}

// Toggle moves the student to the next state and returns it. The view changes right away;
// the record is persisted and package usage reconciled in the background.
func (c *Controller) Toggle(ctx context.Context, lessonID, studentID string) State {
	k := key{lessonID, studentID}

	c.mu.Lock()
	e := c.entry(k)
	e.view = e.view.Next()
	e.gen++
	e.inflight++
	state, gen := e.view, e.gen
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.persist(ctx, k, e, state, gen)
	}()
	return state
}

// Wait blocks until every toggle has been processed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) persist(ctx context.Context, k key, e *entry, state State, gen uint64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	defer func() {
		c.mu.Lock()
		e.inflight--
		c.mu.Unlock()
	}()

	// a newer toggle owns the key
	c.mu.Lock()
	superseded := gen != e.gen
	c.mu.Unlock()
	if superseded {
		return
	}

	attended := state == Present
	rec, err := c.store.MarkAttendance(ctx, attendance.MarkAttendance{
		LessonID:  k.lessonID,
		StudentID: k.studentID,
		Attended:  &attended,
	})
	if err != nil {
		c.mu.Lock()
		if gen == e.gen {
			e.view = e.confirmed
		}
		c.mu.Unlock()
		c.logger.Error("persisting attendance", err, fields(k))
		c.notify(LevelError, k, "attendance could not be saved", err)
		return
	}

	c.mu.Lock()
	e.confirmed = state
	e.recordID = rec.ID
	c.mu.Unlock()

	// attendance stands whatever happens to the package accounting
	res, err := c.reconciler.Reconcile(ctx, usage.NewEvent(k.lessonID, k.studentID, attended, rec.ID))
	switch {
	case err != nil:
		c.logger.Warn("reconciling package usage", err, fields(k))
		c.notify(LevelWarning, k, "package usage could not be updated", err)
	case res.MissingPackage:
		c.notify(LevelWarning, k, "no package available", nil)
	}
}

func (c *Controller) notify(lvl Level, k key, msg string, err error) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notice{
		Level:     lvl,
		LessonID:  k.lessonID,
		StudentID: k.studentID,
		Message:   msg,
		Err:       err,
	})
}

func fields(k key) map[string]interface{} {
	return map[string]interface{}{"lesson_id": k.lessonID, "student_id": k.studentID}
}
