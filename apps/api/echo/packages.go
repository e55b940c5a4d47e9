package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
)

type packageApi struct {
	svc *lessonpkg.Service
}

func registerPackageAPI(g *echo.Group, staff, admin echo.MiddlewareFunc, deps *Deps) {
	api := packageApi{svc: deps.PackageSvc}

	sg := g.Group("/students/:student_id/packages")
	sg.GET("", api.query, staff)
	sg.POST("", api.create, admin)

	pg := g.Group("/packages/:id", admin)
	pg.PATCH("", api.update)
	pg.DELETE("", api.destroy)
}

// Handlers

func (api *packageApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := lessonpkg.QueryFilter{StudentID: ctx.Param("student_id"), SchoolID: claims.SchoolID}
	for _, st := range ctx.QueryParams()["status"] {
		filter.Statuses = append(filter.Statuses, lessonpkg.Status(st))
	}

	ps, err := api.svc.ListByStudent(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying packages")
	}
	return ctx.JSON(http.StatusOK, ps)
}

func (api *packageApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data lessonpkg.NewPurchase
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPurchase")
	}
	data.StudentID = ctx.Param("student_id")
	if data.SchoolID == "" {
		data.SchoolID = claims.SchoolID
	}

	p, err := api.svc.Purchase(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating package")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *packageApi) update(ctx echo.Context) error {
	var data lessonpkg.EditPurchase
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditPurchase")
	}

	p, err := api.svc.Edit(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating package")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *packageApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting package")
	}
	return ctx.NoContent(http.StatusNoContent)
}
