package shared

import (
	"github.com/go-playground/validator/v10"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
	"github.com/mrdawstar/LinguaLab-sub000/core/school"
	"github.com/mrdawstar/LinguaLab-sub000/core/usage"
)

// Services are the domain services built on top of Stores.
type Services struct {
	Attendance *attendance.Service
	Packages   *lessonpkg.Service
	School     *school.Service
	Reconciler *usage.Reconciler
}

func NewServices(stores *Stores, validate *validator.Validate, logger core.Logger) *Services {
	schoolSvc := school.NewService(stores.Settings, stores.Tx, validate)
	return &Services{
		Attendance: attendance.NewService(stores.Attendance, validate),
		Packages:   lessonpkg.NewService(stores.Packages, stores.Tx, stores.Attendance, schoolSvc, validate),
		School:     schoolSvc,
		Reconciler: usage.NewReconciler(stores.Attendance, stores.Packages, stores.Tx, validate, logger),
	}
}
