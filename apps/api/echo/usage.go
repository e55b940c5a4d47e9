package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/usage"
)

type usageApi struct {
	reconciler *usage.Reconciler
	logger     core.Logger
}

func registerUsageAPI(g *echo.Group, staff, apiKey echo.MiddlewareFunc, deps *Deps) {
	api := usageApi{reconciler: deps.Reconciler, logger: deps.Logger}

	g.POST("/usage/reconcile", api.reconcile, staff, apiKey)
}

// Handlers

func (api *usageApi) reconcile(ctx echo.Context) error {
	var ev usage.Event
	if err := ctx.Bind(&ev); err != nil {
		return errors.Wrap(err, "binding to Event")
	}

	res, err := api.reconciler.Reconcile(ctx.Request().Context(), ev)
	if err != nil {
		return errors.Wrap(err, "reconciling usage")
	}
	if res.MissingPackage {
		api.logger.Info("attendance marked without package", contextPerson(ctx), map[string]interface{}{
			"lesson_id":  ev.LessonID,
			"student_id": ev.StudentID,
		})
	}
	return ctx.JSON(http.StatusOK, res)
}
