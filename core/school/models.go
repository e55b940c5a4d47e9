package school

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied when a school has no stored settings yet.
const (
	DefaultPackageValidityDays      = 180
	DefaultSingleLessonValidityDays = 30
	DefaultExhaustedIdleDays        = 60
)

// Settings are the per-school package accounting settings.
// A zero number of days disables the corresponding expiry.
type Settings struct {
	SchoolID                 string    `json:"school_id"`
	PackageValidityDays      int       `json:"package_validity_days"`
	SingleLessonValidityDays int       `json:"single_lesson_validity_days"`
	ExhaustedIdleDays        int       `json:"exhausted_idle_days"`
	UpdatedAt                time.Time `json:"updated_at"` // UTC
}

// DefaultSettings returns the settings a new school starts with.
func DefaultSettings(schoolID string, now time.Time) Settings {
	return Settings{
		SchoolID:                 schoolID,
		PackageValidityDays:      DefaultPackageValidityDays,
		SingleLessonValidityDays: DefaultSingleLessonValidityDays,
		ExhaustedIdleDays:        DefaultExhaustedIdleDays,
		UpdatedAt:                now,
	}
}

// ValidityFor returns how long a package of `lessons` credits stays valid, 0 meaning forever.
func (s Settings) ValidityFor(lessons int) time.Duration {
	days := s.PackageValidityDays
	if lessons == 1 {
		days = s.SingleLessonValidityDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// UpdateSettings defines what may be changed on a school's Settings.
type UpdateSettings struct {
	PackageValidityDays      *int `json:"package_validity_days" validate:"omitempty,min=0,max=3650"`
	SingleLessonValidityDays *int `json:"single_lesson_validity_days" validate:"omitempty,min=0,max=3650"`
	ExhaustedIdleDays        *int `json:"exhausted_idle_days" validate:"omitempty,min=0,max=3650"`
}

func (us *UpdateSettings) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

func (us UpdateSettings) apply(s Settings) Settings {
	if us.PackageValidityDays != nil {
		s.PackageValidityDays = *us.PackageValidityDays
	}
	if us.SingleLessonValidityDays != nil {
		s.SingleLessonValidityDays = *us.SingleLessonValidityDays
	}
	if us.ExhaustedIdleDays != nil {
		s.ExhaustedIdleDays = *us.ExhaustedIdleDays
	}
	return s
}
