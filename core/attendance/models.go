package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

// Record is the attendance of one student at one lesson.
// A (lesson, student) pair without a Record is "not yet marked".
type Record struct {
	ID                string    `json:"id"`
	LessonID          string    `json:"lesson_id"`
	StudentID         string    `json:"student_id"`
	Attended          bool      `json:"attended"`
	Comment           *string   `json:"comment"`
	PackagePurchaseID *string   `json:"package_purchase_id"` // package credit consumed by this record
	CreatedAt         time.Time `json:"created_at"`          // UTC
	UpdatedAt         time.Time `json:"updated_at"`          // UTC
}

// HasPackage reports whether the record currently holds a package credit.
func (r Record) HasPackage() bool {
	return r.PackagePurchaseID != nil && *r.PackagePurchaseID != ""
}

// MarkAttendance contains the information needed to create or update a Record.
type MarkAttendance struct {
	LessonID  string  `json:"lesson_id" validate:"required,uuid"`
	StudentID string  `json:"student_id" validate:"required,uuid"`
	Attended  *bool   `json:"attended" validate:"required"`
	Comment   *string `json:"comment" validate:"omitempty,max=2000"`
}

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	ma.LessonID = core.CleanString(ma.LessonID, true /* lower */)
	ma.StudentID = core.CleanString(ma.StudentID, true /* lower */)
	if ma.Comment != nil {
		ma.Comment = core.StringPtr(core.CleanString(*ma.Comment))
	}
	return validate.Struct(ma)
}
