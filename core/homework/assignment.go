// Package homework decides when an assignment accepts submissions and keeps one submission per
// student and assignment.
package homework

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ibca/academic/core"
)

type Status string

const (
	StatusUpcoming  Status = "UPCOMING"
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusSuspended Status = "SUSPENDED"
)

type Assignment struct {
	ID          int       `json:"id"`
	CourseID    int       `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"start_date"`
	DueDate     time.Time `json:"due_date"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// AssignmentWithStatus is an Assignment with its status computed at request time.
type AssignmentWithStatus struct {
	Assignment
	Status Status `json:"status"`
}

// Classify returns the submission window status of a at now. Both window bounds are inclusive and
// the checks run in this order: before start, after due, then the is_active flag.
func Classify(a Assignment, now time.Time) Status {
	switch {
	case now.Before(a.StartDate):
		return StatusUpcoming
	case now.After(a.DueDate):
		return StatusExpired
	case a.IsActive:
		return StatusActive
	default:
		return StatusSuspended
	}
}

func (a Assignment) Status(now time.Time) Status {
	return Classify(a, now)
}

func (a Assignment) WithStatus(now time.Time) AssignmentWithStatus {
	return AssignmentWithStatus{Assignment: a, Status: Classify(a, now)}
}

// WithStatuses computes the status of every assignment at the same instant.
func WithStatuses(assignments []Assignment, now time.Time) []AssignmentWithStatus {
	out := make([]AssignmentWithStatus, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, a.WithStatus(now))
	}
	return out
}

// ListEligibleAssignments returns the assignments of courseID a student may submit to at now,
// latest due date first.
func ListEligibleAssignments(assignments []Assignment, courseID int, now time.Time) []Assignment {
	eligible := make([]Assignment, 0)
	for _, a := range assignments {
		if a.CourseID == courseID && Classify(a, now) == StatusActive {
			eligible = append(eligible, a)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].DueDate.After(eligible[j].DueDate) })
	return eligible
}

// AggregateActiveCounts counts the ACTIVE assignments per course. Courses without any are absent.
func AggregateActiveCounts(assignments []Assignment, now time.Time) map[int]int {
	counts := make(map[int]int)
	for _, a := range assignments {
		if Classify(a, now) == StatusActive {
			counts[a.CourseID]++
		}
	}
	return counts
}

// NotActiveError is returned when a submission targets an assignment outside of its ACTIVE window.
type NotActiveError struct {
	AssignmentID int
	Status       Status
	StartDate    time.Time
	DueDate      time.Time
}

func (e *NotActiveError) Error() string {
	switch e.Status {
	case StatusUpcoming:
		return fmt.Sprintf("assignment has not started yet; submissions open at %s", e.StartDate.UTC().Format(time.RFC3339))
	case StatusExpired:
		return fmt.Sprintf("assignment deadline has passed; submissions closed at %s", e.DueDate.UTC().Format(time.RFC3339))
	case StatusSuspended:
		return "assignment is not active; submissions are suspended"
	}
	return "assignment does not accept submissions"
}

// Code is the stable machine readable reason, e.g. "ASSIGNMENT_EXPIRED".
func (e *NotActiveError) Code() string {
	return "ASSIGNMENT_" + string(e.Status)
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	CourseID    int       `json:"course_id" validate:"required,gt=0"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	IsActive    *bool     `json:"is_active"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
// The submission window is checked again over the merged values.
type UpdateAssignment struct {
	CourseID    *int       `json:"course_id" validate:"omitempty,gt=0"`
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
	IsActive    *bool      `json:"is_active"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		title := core.CleanString(*ua.Title)
		ua.Title = &title
	}
	return validate.Struct(ua)
}

func (ua UpdateAssignment) apply(a Assignment) Assignment {
	if ua.CourseID != nil {
		a.CourseID = *ua.CourseID
	}
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = core.CleanString(*ua.Description)
	}
	if ua.StartDate != nil {
		a.StartDate = ua.StartDate.UTC()
	}
	if ua.DueDate != nil {
		a.DueDate = ua.DueDate.UTC()
	}
	if ua.IsActive != nil {
		a.IsActive = *ua.IsActive
	}
	return a
}

type AssignmentFilter struct {
	CourseID int   `query:"course_id"`
	IsActive *bool `query:"-"` // parsed by the handler
	// CourseIDs restricts the result to these courses when not nil.
	CourseIDs []int `query:"-"`
}

// checkWindow rejects windows where the due date is not strictly after the start date.
func checkWindow(start, due time.Time) error {
	if !due.After(start) {
		return core.NewValidationError(nil, core.FieldError{Field: "due_date", Error: errWindowText})
	}
	return nil
}
