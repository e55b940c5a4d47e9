package echoapi_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mrdawstar/LinguaLab-sub000/apps/api/echo"
	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
	"github.com/mrdawstar/LinguaLab-sub000/core/usage"
	"github.com/mrdawstar/LinguaLab-sub000/tests"
)

var errMissingToken = `{"error": "missing or malformed jwt"}`

func TestHealth(t *testing.T) {
	runHttpTests(t, []httpTest{
		{name: "healthz", method: http.MethodGet, path: "/healthz", wantCode: http.StatusOK, wantData: `{"status": "ok"}`},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantCode: http.StatusOK},
	})
}

func TestAttendanceAPI(t *testing.T) {
	lesson, student := testutil.NewID(), testutil.NewID()
	path := fmt.Sprintf("/v1/lessons/%s/attendance", lesson)
	markPath := path + "/" + student

	runHttpTests(t, []httpTest{
		{name: "no token", method: http.MethodGet, path: path, wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{name: "bad token", method: http.MethodGet, path: path, token: "lol", wantCode: http.StatusUnauthorized},
		{name: "student", method: http.MethodGet, path: path, token: studentToken, wantCode: http.StatusForbidden, wantData: `{"error": "permission denied"}`},
		{name: "empty", method: http.MethodGet, path: path, token: teacherToken, wantCode: http.StatusOK, wantData: `[]`},
		{
			name: "missing attended", method: http.MethodPut, path: markPath, token: teacherToken, body: echoMap{},
			wantCode: http.StatusBadRequest, wantData: `{"attended": "this field is required"}`,
		},
		{
			name: "bad student", method: http.MethodPut, path: path + "/lol", token: teacherToken, body: echoMap{"attended": true},
			wantCode: http.StatusBadRequest,
		},
		{name: "malformed body", method: http.MethodPut, path: markPath, token: teacherToken, body: "{lol", wantCode: http.StatusBadRequest},
		{name: "mark", method: http.MethodPut, path: markPath, token: teacherToken, body: echoMap{"attended": true}, wantCode: http.StatusOK},
		{name: "remark", method: http.MethodPut, path: markPath, token: adminToken, body: echoMap{"attended": false, "comment": "late"}, wantCode: http.StatusOK},
	})

	rec := httpTest{method: http.MethodGet, path: path, token: teacherToken}.do(t)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []attendance.Record
	decode(t, rec, &recs)
	if assert.Len(t, recs, 1) {
		assert.Equal(t, student, recs[0].StudentID)
		assert.False(t, recs[0].Attended)
		assert.Equal(t, "late", core.StringValue(recs[0].Comment))
	}
}

type echoMap map[string]interface{}

func TestReconcileAPI(t *testing.T) {
	lesson, student := testutil.NewID(), testutil.NewID()
	pkg := testutil.CreatePurchase(t, pkgRepo, student, 10, time.Now().Add(-time.Hour), testutil.WithUsed(9))
	orphan := testutil.NewID()
	path := "/v1/usage/reconcile"
	present := echoMap{"lesson_id": lesson, "student_id": student, "attended": true}

	runHttpTests(t, []httpTest{
		{name: "no token", method: http.MethodPost, path: path, apiKey: serviceKey, body: present, wantCode: http.StatusUnauthorized},
		{name: "no api key", method: http.MethodPost, path: path, token: teacherToken, body: present, wantCode: http.StatusUnauthorized, wantData: `{"error": "invalid api key"}`},
		{name: "wrong api key", method: http.MethodPost, path: path, token: teacherToken, apiKey: "lol", body: present, wantCode: http.StatusUnauthorized},
		{name: "student", method: http.MethodPost, path: path, token: studentToken, apiKey: serviceKey, body: present, wantCode: http.StatusForbidden},
		{
			name: "invalid event", method: http.MethodPost, path: path, token: teacherToken, apiKey: serviceKey,
			body: echoMap{"lesson_id": "lol", "student_id": student}, wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown record", method: http.MethodPost, path: path, token: teacherToken, apiKey: serviceKey,
			body:     echoMap{"lesson_id": lesson, "student_id": student, "attended": true, "attendance_record_id": testutil.NewID()},
			wantCode: http.StatusNotFound,
		},
		{
			name: "consume", method: http.MethodPost, path: path, token: teacherToken, apiKey: serviceKey, body: present,
			wantCode: http.StatusOK,
		},
		{
			name: "replay", method: http.MethodPost, path: path, token: teacherToken, apiKey: serviceKey, body: present,
			wantCode: http.StatusOK,
		},
		{
			name: "missing package", method: http.MethodPost, path: path, token: teacherToken, apiKey: serviceKey,
			body:     echoMap{"lesson_id": lesson, "student_id": orphan, "attended": true},
			wantCode: http.StatusOK,
		},
	})

	p, err := pkgRepo.GetPurchase(ctx(), pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.LessonsUsed)
	assert.Equal(t, lessonpkg.StatusExhausted, p.Status)

	rec := httpTest{method: http.MethodPost, path: path, token: teacherToken, apiKey: serviceKey,
		body: echoMap{"lesson_id": testutil.NewID(), "student_id": orphan, "attended": true}}.do(t)
	require.Equal(t, http.StatusOK, rec.Code)
	var res usage.Result
	decode(t, rec, &res)
	assert.True(t, res.OK)
	assert.True(t, res.MissingPackage)

	// a stale event does not move credits against the stored attendance
	rec = httpTest{method: http.MethodPost, path: path, token: teacherToken, apiKey: serviceKey,
		body: echoMap{"lesson_id": lesson, "student_id": student, "attended": false}}.do(t)
	require.Equal(t, http.StatusOK, rec.Code)
	var stale usage.Result
	decode(t, rec, &stale)
	assert.Equal(t, usage.ActionNoop, stale.Action)

	markPath := fmt.Sprintf("/v1/lessons/%s/attendance/%s", lesson, student)
	rec = httpTest{method: http.MethodPut, path: markPath, token: teacherToken, body: echoMap{"attended": false}}.do(t)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httpTest{method: http.MethodPost, path: path, token: teacherToken, apiKey: serviceKey,
		body: echoMap{"lesson_id": lesson, "student_id": student, "attended": false}}.do(t)
	require.Equal(t, http.StatusOK, rec.Code)
	var restored usage.Result
	decode(t, rec, &restored)
	assert.Equal(t, usage.ActionRestored, restored.Action)
	assert.False(t, restored.MissingPackage)
	assert.False(t, strings.Contains(rec.Body.String(), "missing_package"))
}

func TestPackageAPI(t *testing.T) {
	student := testutil.NewID()
	path := fmt.Sprintf("/v1/students/%s/packages", student)

	runHttpTests(t, []httpTest{
		{name: "teacher cannot sell", method: http.MethodPost, path: path, token: teacherToken, body: echoMap{"lessons_total": 10}, wantCode: http.StatusForbidden},
		{name: "invalid total", method: http.MethodPost, path: path, token: adminToken, body: echoMap{"lessons_total": 0}, wantCode: http.StatusBadRequest},
		{name: "create", method: http.MethodPost, path: path, token: adminToken, body: echoMap{"lessons_total": 10}, wantCode: http.StatusCreated},
		{name: "create single", method: http.MethodPost, path: path, token: adminToken, body: echoMap{"lessons_total": 1}, wantCode: http.StatusCreated},
		{name: "bad status filter", method: http.MethodGet, path: path + "?status=lol", token: teacherToken, wantCode: http.StatusBadRequest},
		{name: "unknown package", method: http.MethodPatch, path: "/v1/packages/" + testutil.NewID(), token: adminToken, body: echoMap{"lessons_total": 3}, wantCode: http.StatusNotFound},
	})

	rec := httpTest{method: http.MethodGet, path: path + "?status=active", token: teacherToken}.do(t)
	require.Equal(t, http.StatusOK, rec.Code)
	var ps []lessonpkg.Purchase
	decode(t, rec, &ps)
	require.Len(t, ps, 2)
	var bundle lessonpkg.Purchase
	for _, p := range ps {
		assert.Equal(t, schoolID, p.SchoolID)
		assert.NotNil(t, p.ExpiresAt)
		if p.LessonsTotal == 10 {
			bundle = p
		}
	}
	require.NotEmpty(t, bundle.ID)

	pkgPath := "/v1/packages/" + bundle.ID
	runHttpTests(t, []httpTest{
		{name: "teacher cannot edit", method: http.MethodPatch, path: pkgPath, token: teacherToken, body: echoMap{"lessons_used": 1}, wantCode: http.StatusForbidden},
		{
			name: "used above total", method: http.MethodPatch, path: pkgPath, token: adminToken, body: echoMap{"lessons_used": 20},
			wantCode: http.StatusBadRequest, wantData: `{"lessons_used": "cannot exceed lessons_total"}`,
		},
		{name: "edit", method: http.MethodPatch, path: pkgPath, token: adminToken, body: echoMap{"lessons_used": 3}, wantCode: http.StatusOK},
		{name: "delete", method: http.MethodDelete, path: pkgPath, token: adminToken, wantCode: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: pkgPath, token: adminToken, wantCode: http.StatusNotFound},
	})
}

func TestSchoolAPI(t *testing.T) {
	path := "/v1/school/settings"
	unbound := mustToken(RoleAdmin, "")

	runHttpTests(t, []httpTest{
		{name: "teacher", method: http.MethodGet, path: path, token: teacherToken, wantCode: http.StatusForbidden},
		{name: "no school", method: http.MethodGet, path: path, token: unbound, wantCode: http.StatusForbidden},
		{name: "negative days", method: http.MethodPut, path: path, token: adminToken, body: echoMap{"exhausted_idle_days": -1}, wantCode: http.StatusBadRequest},
		{name: "update", method: http.MethodPut, path: path, token: adminToken, body: echoMap{"package_validity_days": 90}, wantCode: http.StatusOK},
	})

	rec := httpTest{method: http.MethodGet, path: path, token: adminToken}.do(t)
	require.Equal(t, http.StatusOK, rec.Code)
	var s struct {
		SchoolID                 string `json:"school_id"`
		PackageValidityDays      int    `json:"package_validity_days"`
		SingleLessonValidityDays int    `json:"single_lesson_validity_days"`
	}
	decode(t, rec, &s)
	assert.Equal(t, schoolID, s.SchoolID)
	assert.Equal(t, 90, s.PackageValidityDays)
	assert.Equal(t, 30, s.SingleLessonValidityDays)
}
