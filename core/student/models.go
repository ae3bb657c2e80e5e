package student

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ibca/academic/core"
)

type Student struct {
	ID              int       `json:"id"`
	StudentNumber   string    `json:"student_number"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	PasswordHash    []byte    `json:"-"`
	Department      string    `json:"department,omitempty"`
	Year            int       `json:"year"`
	Semester        string    `json:"semester,omitempty"`
	AcademicYear    string    `json:"academic_year,omitempty"`
	EnrolledCourses []int     `json:"enrolled_courses"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	LastLogin       time.Time `json:"last_login"` // UTC
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s Student) IsEnrolledIn(courseID int) bool {
	for _, id := range s.EnrolledCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

// SelfRegistration is what a student fills in to open their own account.
type SelfRegistration struct {
	StudentNumber   string `json:"student_number" validate:"required,student_number"`
	FullName        string `json:"full_name" validate:"required,max=100"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	CourseIDs       []int  `json:"course_ids" validate:"required,min=1,dive,gt=0"`
}

func (sr *SelfRegistration) Validate(validate *validator.Validate) error {
	sr.StudentNumber = core.CleanString(sr.StudentNumber)
	sr.FullName = core.CleanString(sr.FullName)
	sr.CourseIDs = uniqueIDs(sr.CourseIDs)
	return validate.Struct(sr)
}

// NewStudent contains information needed to register a Student with explicit details.
type NewStudent struct {
	StudentNumber string `json:"student_number" validate:"required,student_number"`
	FullName      string `json:"full_name" validate:"required,max=100"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required"`
	Department    string `json:"department" validate:"max=100"`
	Year          int    `json:"year" validate:"omitempty,min=1,max=4"`
	Semester      string `json:"semester" validate:"max=20"`
	AcademicYear  string `json:"academic_year" validate:"max=20"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.StudentNumber = core.CleanString(ns.StudentNumber)
	ns.FullName = core.CleanString(ns.FullName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// BulkCreate describes a batch of generated student accounts.
type BulkCreate struct {
	Count          int    `json:"count" validate:"required,min=1,max=5000"`
	PasswordPrefix string `json:"password_prefix" validate:"required,max=50"`
	Department     string `json:"department" validate:"max=100"`
	Year           int    `json:"year" validate:"omitempty,min=1,max=4"`
	Semester       string `json:"semester" validate:"max=20"`
	AcademicYear   string `json:"academic_year" validate:"max=20"`
}

func (bc *BulkCreate) Validate(validate *validator.Validate) error {
	bc.PasswordPrefix = core.CleanString(bc.PasswordPrefix)
	return validate.Struct(bc)
}

// BulkNumber is the generated student number of the i-th (1 based) bulk created account.
func BulkNumber(year, i int) string {
	return fmt.Sprintf("%d%06d", year, i)
}

// BulkPassword is the generated initial password of the i-th (1 based) bulk created account.
func BulkPassword(prefix string, i int) string {
	return fmt.Sprintf("%s%03d", prefix, i)
}

type (
	BulkResult struct {
		Success      bool              `json:"success"`
		CreatedCount int               `json:"created_count"`
		ErrorCount   int               `json:"error_count"`
		Students     []BulkCredentials `json:"students"` // first 10
		Errors       []string          `json:"errors"`   // first 10
	}

	// BulkCredentials are shown once, right after the accounts were created.
	BulkCredentials struct {
		StudentNumber string `json:"student_number"`
		Password      string `json:"password"`
		Email         string `json:"email"`
		FullName      string `json:"full_name"`
	}

	DeleteResult struct {
		Success      bool   `json:"success"`
		DeletedCount int    `json:"deleted_count"`
		Semester     string `json:"semester"`
		AcademicYear string `json:"academic_year"`
	}
)

type LoginRequest struct {
	StudentNumber string `json:"student_number" validate:"required"`
	Password      string `json:"password" validate:"required"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.StudentNumber = core.CleanString(lr.StudentNumber)
	return validate.Struct(lr)
}

type Enrollment struct {
	CourseIDs []int `json:"course_ids" validate:"omitempty,dive,gt=0"`
}

func (e *Enrollment) Validate(validate *validator.Validate) error {
	e.CourseIDs = uniqueIDs(e.CourseIDs)
	return validate.Struct(e)
}

type QueryFilter struct {
	Semester     string `query:"semester"`
	AcademicYear string `query:"academic_year"`
	CourseID     int    `query:"course_id"`
	core.Pagination
}

func uniqueIDs(ids []int) []int {
	if ids == nil {
		return nil
	}
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
