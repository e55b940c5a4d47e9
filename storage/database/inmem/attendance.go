package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) findByPair(lessonID, studentID string) (attendance.Record, bool) {
	for _, rec := range repo.db.records {
		if rec.LessonID == lessonID && rec.StudentID == studentID {
			return rec, true
		}
	}
	return attendance.Record{}, false
}

func (repo *attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	defer repo.db.lock(ctx)()

	if orig, ok := repo.findByPair(rec.LessonID, rec.StudentID); ok {
		orig.Attended = rec.Attended
		if rec.Comment != nil {
			orig.Comment = rec.Comment
		}
		orig.UpdatedAt = rec.UpdatedAt
		repo.db.records[orig.ID] = orig
		return orig, nil
	}
	rec.ID = uuid.NewString()
	rec.PackagePurchaseID = nil
	repo.db.records[rec.ID] = rec
	return rec, nil
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.findByPair(rec.LessonID, rec.StudentID); ok {
		return attendance.Record{}, attendance.ErrExists
	}
	rec.ID = uuid.NewString()
	repo.db.records[rec.ID] = rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecordByID(ctx context.Context, id string) (attendance.Record, error) {
	defer repo.db.lock(ctx)()

	if rec, ok := repo.db.records[id]; ok {
		return rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) GetRecordForUpdate(ctx context.Context, lessonID, studentID string) (attendance.Record, error) {
	defer repo.db.lock(ctx)()

	if rec, ok := repo.findByPair(lessonID, studentID); ok {
		return rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) ListRecordsByLesson(ctx context.Context, lessonID string) ([]attendance.Record, error) {
	defer repo.db.lock(ctx)()

	recs := make([]attendance.Record, 0)
	for _, rec := range repo.db.records {
		if rec.LessonID == lessonID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
	return recs, nil
}

func (repo *attendanceRepository) SwapPackage(ctx context.Context, id string, old, new *string) (attendance.Record, error) {
	defer repo.db.lock(ctx)()

	rec, ok := repo.db.records[id]
	if !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	if core.StringValue(rec.PackagePurchaseID) != core.StringValue(old) {
		return attendance.Record{}, core.ErrConflict
	}
	rec.PackagePurchaseID = core.StringPtr(core.StringValue(new))
	rec.UpdatedAt = core.NowFunc()
	repo.db.records[id] = rec
	return rec, nil
}

func (repo *attendanceRepository) DetachPackage(ctx context.Context, packageID string) (int, error) {
	defer repo.db.lock(ctx)()

	var n int
	for id, rec := range repo.db.records {
		if core.StringValue(rec.PackagePurchaseID) == packageID {
			rec.PackagePurchaseID = nil
			repo.db.records[id] = rec
			n++
		}
	}
	return n, nil
}

func (repo *attendanceRepository) DeleteRecordsByLesson(ctx context.Context, lessonID string) (int, error) {
	defer repo.db.lock(ctx)()

	var n int
	for id, rec := range repo.db.records {
		if rec.LessonID == lessonID {
			delete(repo.db.records, id)
			n++
		}
	}
	return n, nil
}
