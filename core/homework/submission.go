package homework

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/upload"
)

// Submission is the uploaded homework of one student for one assignment.
type Submission struct {
	ID            int       `json:"id"`
	AssignmentID  int       `json:"assignment_id"`
	StudentID     int       `json:"student_id"`
	CourseID      int       `json:"course_id"`
	StudentNumber string    `json:"student_number"`
	StudentName   string    `json:"student_name"`
	CourseCode    string    `json:"course_code"`
	CourseName    string    `json:"course_name"`
	FileKey       string    `json:"-"`
	FileURL       string    `json:"file_url"`
	Notes         string    `json:"notes,omitempty"`
	UploadDate    time.Time `json:"upload_date"` // UTC
}

// NewSubmission is a homework upload request.
type NewSubmission struct {
	StudentNumber string      `form:"student_number" validate:"required"`
	StudentName   string      `form:"student_name" validate:"required,max=100"`
	CourseID      int         `form:"course_id" validate:"required,gt=0"`
	AssignmentID  int         `form:"assignment_id" validate:"required,gt=0"`
	Notes         string      `form:"notes" validate:"max=2000"`
	File          upload.File `form:"-" validate:"-"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.StudentNumber = core.CleanString(ns.StudentNumber)
	ns.StudentName = core.CleanString(ns.StudentName)
	ns.Notes = core.CleanString(ns.Notes)
	return validate.Struct(ns)
}

type SubmissionFilter struct {
	StudentNumber string `query:"student_number"`
	CourseID      int    `query:"course_id"`
	AssignmentID  int    `query:"assignment_id"`
	Orderings     []core.DBOrdering
	core.Pagination
}

// SubmissionOrderingFields are the fields submissions may be ordered by.
var SubmissionOrderingFields = []string{"upload_date", "student_number", "course_code", "assignment_id"}

type receiptData struct {
	StudentName     string
	AssignmentTitle string
	CourseCode      string
	UploadDate      string
	FileURL         string
	Replaced        bool
}
