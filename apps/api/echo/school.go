package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core/school"
)

type schoolApi struct {
	svc *school.Service
}

func registerSchoolAPI(g *echo.Group, admin echo.MiddlewareFunc, deps *Deps) {
	api := schoolApi{svc: deps.SchoolSvc}

	sg := g.Group("/school/settings", admin, schoolMiddleware)
	sg.GET("", api.retrieve)
	sg.PUT("", api.update)
}

// schoolMiddleware rejects tokens not bound to a school.
func schoolMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.SchoolID == "" {
			return errNoSchoolClaim
		}
		return next(ctx)
	}
}

// Handlers

func (api *schoolApi) retrieve(ctx echo.Context) error {
	claims, _ := getContextClaims(ctx)
	s, err := api.svc.Settings(ctx.Request().Context(), claims.SchoolID)
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) update(ctx echo.Context) error {
	claims, _ := getContextClaims(ctx)

	var data school.UpdateSettings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSettings")
	}

	s, err := api.svc.Update(ctx.Request().Context(), claims.SchoolID, data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, s)
}
