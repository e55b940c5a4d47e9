package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, staff echo.MiddlewareFunc, deps *Deps) {
	api := attendanceApi{svc: deps.AttendanceSvc}

	lg := g.Group("/lessons/:lesson_id/attendance", staff)
	lg.GET("", api.list)
	lg.PUT("/:student_id", api.mark)
}

// Handlers

func (api *attendanceApi) list(ctx echo.Context) error {
	recs, err := api.svc.ListByLesson(ctx.Request().Context(), ctx.Param("lesson_id"))
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.MarkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}
	data.LessonID = ctx.Param("lesson_id")
	data.StudentID = ctx.Param("student_id")

	rec, err := api.svc.Mark(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}
