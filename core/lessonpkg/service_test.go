package lessonpkg_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
	"github.com/mrdawstar/LinguaLab-sub000/core/school"
	inmemdb "github.com/mrdawstar/LinguaLab-sub000/storage/database/inmem"
	"github.com/mrdawstar/LinguaLab-sub000/tests"
)

var (
	ctx = context.Background()
	day = 24 * time.Hour
	now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	attRepo  attendance.Repository
	pkgRepo  lessonpkg.Repository
	settings *school.Service
	svc      *lessonpkg.Service
}

func setup(t *testing.T) *fixture {
	testutil.FreezeTime(t, now)
	db := inmemdb.Open()
	validate := testutil.NewValidator()
	f := &fixture{
		attRepo:  inmemdb.NewAttendanceRepository(db),
		pkgRepo:  inmemdb.NewPackageRepository(db),
		settings: school.NewService(inmemdb.NewSettingsRepository(db), db, validate),
	}
	f.svc = lessonpkg.NewService(f.pkgRepo, db, f.attRepo, f.settings, validate)
	return f
}

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

func TestService_Purchase(t *testing.T) {
	f := setup(t)
	student, schoolID := testutil.NewID(), testutil.NewID()
	bought := now.Add(-2 * day)

	tests := []struct {
		name        string
		np          lessonpkg.NewPurchase
		wantExpires *time.Time
		wantErr     bool
	}{
		{name: "no lessons", np: lessonpkg.NewPurchase{StudentID: student, SchoolID: schoolID}, wantErr: true},
		{name: "bad school", np: lessonpkg.NewPurchase{StudentID: student, SchoolID: "lol", LessonsTotal: 5}, wantErr: true},
		{
			name:    "expiry before purchase",
			np:      lessonpkg.NewPurchase{StudentID: student, SchoolID: schoolID, LessonsTotal: 5, PurchaseDate: &bought, ExpiresAt: timePtr(bought.Add(-day))},
			wantErr: true,
		},
		{
			name:        "default validity",
			np:          lessonpkg.NewPurchase{StudentID: student, SchoolID: schoolID, LessonsTotal: 10, PurchaseDate: &bought},
			wantExpires: timePtr(bought.Add(180 * day)),
		},
		{
			name:        "single lesson validity",
			np:          lessonpkg.NewPurchase{StudentID: student, SchoolID: schoolID, LessonsTotal: 1},
			wantExpires: timePtr(now.Add(30 * day)),
		},
		{
			name:        "explicit expiry",
			np:          lessonpkg.NewPurchase{StudentID: student, SchoolID: schoolID, LessonsTotal: 4, ExpiresAt: timePtr(now.Add(7 * day))},
			wantExpires: timePtr(now.Add(7 * day)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.Purchase(ctx, tt.np)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, lessonpkg.StatusActive, p.Status)
			assert.Equal(t, 0, p.LessonsUsed)
			if assert.NotNil(t, p.ExpiresAt) {
				assert.True(t, tt.wantExpires.Equal(*p.ExpiresAt), "expires_at = %v, want %v", p.ExpiresAt, tt.wantExpires)
			}
		})
	}
}

func TestService_PurchaseWithoutExpiry(t *testing.T) {
	f := setup(t)
	schoolID := testutil.NewID()
	_, err := f.settings.Update(ctx, schoolID, school.UpdateSettings{PackageValidityDays: intPtr(0)})
	require.NoError(t, err)

	p, err := f.svc.Purchase(ctx, lessonpkg.NewPurchase{StudentID: testutil.NewID(), SchoolID: schoolID, LessonsTotal: 8})
	require.NoError(t, err)
	assert.Nil(t, p.ExpiresAt)

	p, err = f.svc.PurchaseSingleLesson(ctx, testutil.NewID(), schoolID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.LessonsTotal)
	assert.NotNil(t, p.ExpiresAt)
}

func TestService_ListByStudent(t *testing.T) {
	f := setup(t)
	student := testutil.NewID()
	second := testutil.CreatePurchase(t, f.pkgRepo, student, 5, now.Add(-day))
	first := testutil.CreatePurchase(t, f.pkgRepo, student, 5, now.Add(-9*day), testutil.WithUsed(5), testutil.WithStatus(lessonpkg.StatusExhausted))
	testutil.CreatePurchase(t, f.pkgRepo, testutil.NewID(), 5, now)

	ps, err := f.svc.ListByStudent(ctx, lessonpkg.QueryFilter{StudentID: student})
	require.NoError(t, err)
	if assert.Len(t, ps, 2) {
		assert.Equal(t, first.ID, ps[0].ID)
		assert.Equal(t, second.ID, ps[1].ID)
	}

	ps, err = f.svc.ListByStudent(ctx, lessonpkg.QueryFilter{StudentID: student, Statuses: []lessonpkg.Status{lessonpkg.StatusActive}})
	require.NoError(t, err)
	if assert.Len(t, ps, 1) {
		assert.Equal(t, second.ID, ps[0].ID)
	}

	_, err = f.svc.ListByStudent(ctx, lessonpkg.QueryFilter{StudentID: student, Statuses: []lessonpkg.Status{"lol"}})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestService_Edit(t *testing.T) {
	tests := []struct {
		name       string
		opts       []testutil.PurchaseOpt
		ep         lessonpkg.EditPurchase
		wantUsed   int
		wantStatus lessonpkg.Status
		wantErr    bool
	}{
		{name: "used above total", ep: lessonpkg.EditPurchase{LessonsUsed: intPtr(6)}, wantErr: true},
		{name: "negative used", ep: lessonpkg.EditPurchase{LessonsUsed: intPtr(-1)}, wantErr: true},
		{name: "use up", ep: lessonpkg.EditPurchase{LessonsUsed: intPtr(5)}, wantUsed: 5, wantStatus: lessonpkg.StatusExhausted},
		{
			name:       "top up exhausted",
			opts:       []testutil.PurchaseOpt{testutil.WithUsed(5), testutil.WithStatus(lessonpkg.StatusExhausted)},
			ep:         lessonpkg.EditPurchase{LessonsTotal: intPtr(10)},
			wantUsed:   5,
			wantStatus: lessonpkg.StatusActive,
		},
		{
			name:       "expired stays expired",
			opts:       []testutil.PurchaseOpt{testutil.WithStatus(lessonpkg.StatusExpired)},
			ep:         lessonpkg.EditPurchase{LessonsTotal: intPtr(10)},
			wantStatus: lessonpkg.StatusExpired,
		},
		{
			name:       "expiry moved into the past",
			opts:       []testutil.PurchaseOpt{testutil.WithStatus(lessonpkg.StatusExpired)},
			ep:         lessonpkg.EditPurchase{ExpiresAt: timePtr(now.Add(-day))},
			wantStatus: lessonpkg.StatusExpired,
		},
		{
			name:       "expiry extended",
			opts:       []testutil.PurchaseOpt{testutil.WithStatus(lessonpkg.StatusExpired), testutil.WithExpiresAt(now.Add(-day))},
			ep:         lessonpkg.EditPurchase{ExpiresAt: timePtr(now.Add(30 * day))},
			wantStatus: lessonpkg.StatusActive,
		},
		{
			name:       "expiry cleared",
			opts:       []testutil.PurchaseOpt{testutil.WithStatus(lessonpkg.StatusExpired), testutil.WithExpiresAt(now.Add(-day))},
			ep:         lessonpkg.EditPurchase{ClearExpiresAt: true},
			wantStatus: lessonpkg.StatusActive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			p := testutil.CreatePurchase(t, f.pkgRepo, testutil.NewID(), 5, now.Add(-10*day), tt.opts...)

			got, err := f.svc.Edit(ctx, p.ID, tt.ep)
			if tt.wantErr {
				assert.Error(t, err)
				stored, err := f.svc.Get(ctx, p.ID)
				require.NoError(t, err)
				assert.Equal(t, p, stored)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsed, got.LessonsUsed)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.True(t, now.Equal(got.UpdatedAt))
		})
	}

	f := setup(t)
	_, err := f.svc.Edit(ctx, testutil.NewID(), lessonpkg.EditPurchase{LessonsTotal: intPtr(3)})
	assert.Equal(t, lessonpkg.ErrNotFound, errors.Cause(err))
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	student := testutil.NewID()
	p := testutil.CreatePurchase(t, f.pkgRepo, student, 5, now.Add(-day), testutil.WithUsed(1))
	rec := testutil.CreateRecord(t, f.attRepo, testutil.NewID(), student, true, &p.ID)

	require.NoError(t, f.svc.Delete(ctx, p.ID))

	_, err := f.svc.Get(ctx, p.ID)
	assert.Equal(t, lessonpkg.ErrNotFound, errors.Cause(err))

	rec, err = f.attRepo.GetRecordByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, rec.Attended)
	assert.Nil(t, rec.PackagePurchaseID)

	assert.Equal(t, lessonpkg.ErrNotFound, errors.Cause(f.svc.Delete(ctx, p.ID)))
}

func TestService_ExpireDue(t *testing.T) {
	f := setup(t)
	schoolA, schoolB := testutil.NewID(), testutil.NewID()
	_, err := f.settings.Update(ctx, schoolB, school.UpdateSettings{ExhaustedIdleDays: intPtr(0)})
	require.NoError(t, err)

	exhausted := []testutil.PurchaseOpt{testutil.WithUsed(5), testutil.WithStatus(lessonpkg.StatusExhausted)}
	pastDue := testutil.CreatePurchase(t, f.pkgRepo, testutil.NewID(), 5, now.Add(-40*day), testutil.WithSchool(schoolA), testutil.WithExpiresAt(now.Add(-day)))
	current := testutil.CreatePurchase(t, f.pkgRepo, testutil.NewID(), 5, now.Add(-40*day), testutil.WithSchool(schoolA), testutil.WithExpiresAt(now.Add(day)))
	idle := testutil.CreatePurchase(t, f.pkgRepo, testutil.NewID(), 5, now.Add(-90*day), append(exhausted, testutil.WithSchool(schoolA), testutil.WithUpdatedAt(now.Add(-61*day)))...)
	recent := testutil.CreatePurchase(t, f.pkgRepo, testutil.NewID(), 5, now.Add(-90*day), append(exhausted, testutil.WithSchool(schoolA), testutil.WithUpdatedAt(now.Add(-10*day)))...)
	idleNoLimit := testutil.CreatePurchase(t, f.pkgRepo, testutil.NewID(), 5, now.Add(-900*day), append(exhausted, testutil.WithSchool(schoolB), testutil.WithUpdatedAt(now.Add(-800*day)))...)

	n, err := f.svc.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[string]lessonpkg.Status{
		pastDue.ID:     lessonpkg.StatusExpired,
		current.ID:     lessonpkg.StatusActive,
		idle.ID:        lessonpkg.StatusExpired,
		recent.ID:      lessonpkg.StatusExhausted,
		idleNoLimit.ID: lessonpkg.StatusExhausted,
	} {
		p, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, p.Status, id)
	}

	// idempotent
	n, err = f.svc.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}
