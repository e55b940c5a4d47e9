package lessonpkg

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

type Status string

// Statuses
const (
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
	StatusExpired   Status = "expired"
)

var AllStatuses = []Status{StatusActive, StatusExhausted, StatusExpired}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Purchase is a prepaid bundle of lesson credits belonging to a student.
// Invariant: 0 <= LessonsUsed <= LessonsTotal.
type Purchase struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"student_id"`
	SchoolID     string     `json:"school_id"`
	LessonsTotal int        `json:"lessons_total"`
	LessonsUsed  int        `json:"lessons_used"`
	Status       Status     `json:"status"`
	PurchaseDate time.Time  `json:"purchase_date"` // UTC
	ExpiresAt    *time.Time `json:"expires_at"`    // UTC
	CreatedAt    time.Time  `json:"created_at"`    // UTC
	UpdatedAt    time.Time  `json:"updated_at"`    // UTC; last activity
}

// Remaining is the number of unused credits.
func (p Purchase) Remaining() int {
	return p.LessonsTotal - p.LessonsUsed
}

// IsExpiredAt reports whether the package is past its expiry date at t.
func (p Purchase) IsExpiredAt(t time.Time) bool {
	return p.ExpiresAt != nil && !t.Before(*p.ExpiresAt)
}

// Available reports whether a credit can be consumed from the package at t.
func (p Purchase) Available(t time.Time) bool {
	return p.Status == StatusActive && p.Remaining() > 0 && !p.IsExpiredAt(t)
}

// Consume returns the package with one more credit used.
func (p Purchase) Consume() Purchase {
	p.LessonsUsed++
	if p.Remaining() <= 0 {
		p.LessonsUsed = p.LessonsTotal
		p.Status = StatusExhausted
	}
	return p
}

// Restore returns the package with one credit given back. Used never drops below 0.
// An exhausted package becomes active again; an expired one stays expired.
func (p Purchase) Restore() Purchase {
	if p.LessonsUsed > 0 {
		p.LessonsUsed--
	}
	if p.Status == StatusExhausted && p.Remaining() > 0 {
		p.Status = StatusActive
	}
	return p
}

// statusFor derives the status of a package after an admin edit.
// An expired package is revived only when its expiry date was moved past `now`.
func statusFor(p Purchase, now time.Time, expiryEdited bool) Status {
	if p.Status == StatusExpired && !(expiryEdited && !p.IsExpiredAt(now)) {
		return StatusExpired
	}
	if p.Remaining() <= 0 {
		return StatusExhausted
	}
	return StatusActive
}

// NewPurchase contains information needed to create a new Purchase.
type NewPurchase struct {
	StudentID    string     `json:"student_id" validate:"required,uuid"`
	SchoolID     string     `json:"school_id" validate:"required,uuid"`
	LessonsTotal int        `json:"lessons_total" validate:"required,min=1,max=1000"`
	PurchaseDate *time.Time `json:"purchase_date"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

func (np *NewPurchase) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID, true /* lower */)
	np.SchoolID = core.CleanString(np.SchoolID, true /* lower */)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.PurchaseDate != nil && np.ExpiresAt != nil && !np.ExpiresAt.After(*np.PurchaseDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "expires_at", Error: "must be after purchase_date"})
	}
	return nil
}

// EditPurchase defines what an administrator may change on an existing Purchase.
type EditPurchase struct {
	LessonsTotal   *int       `json:"lessons_total" validate:"omitempty,min=1,max=1000"`
	LessonsUsed    *int       `json:"lessons_used" validate:"omitempty,min=0"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiresAt bool       `json:"clear_expires_at"`
}

func (ep *EditPurchase) Validate(validate *validator.Validate) error {
	return validate.Struct(ep)
}

// apply returns orig with the edit applied, checking the usage invariant.
func (ep EditPurchase) apply(orig Purchase, now time.Time) (Purchase, error) {
	p := orig
	if ep.LessonsTotal != nil {
		p.LessonsTotal = *ep.LessonsTotal
	}
	if ep.LessonsUsed != nil {
		p.LessonsUsed = *ep.LessonsUsed
	}
	if ep.ClearExpiresAt {
		p.ExpiresAt = nil
	} else if ep.ExpiresAt != nil {
		exp := ep.ExpiresAt.UTC()
		p.ExpiresAt = &exp
	}
	if p.LessonsUsed > p.LessonsTotal {
		return Purchase{}, core.NewValidationError(nil, core.FieldError{
			Field: "lessons_used",
			Error: "cannot exceed lessons_total",
		})
	}
	p.Status = statusFor(p, now, ep.ClearExpiresAt || ep.ExpiresAt != nil)
	p.UpdatedAt = now
	return p, nil
}

type QueryFilter struct {
	StudentID string   `query:"-"`
	SchoolID  string   `query:"-"`
	Statuses  []Status `query:"status"`
}
