package student

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("student")
	ErrNumberExists       = errors.New("this student number is already registered")
	ErrEmailExists        = errors.New("this email is already registered")
	ErrInvalidCredentials = errors.New("incorrect student number or password")
	ErrInactive           = core.NewPermissionError("student account is not active")

	bulkPreviewLen = 10
	bulkHashers    = 8
)

type (
	Repository interface {
		// CheckUniqueness returns ErrNumberExists or ErrEmailExists when either is taken.
		CheckUniqueness(ctx context.Context, number, email string, exec ...core.DBExecutor) error
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Student, error)
		GetStudentByID(ctx context.Context, id int, exec ...core.DBExecutor) (Student, error)
		GetStudentByNumber(ctx context.Context, number string, exec ...core.DBExecutor) (Student, error)
		// ExistingNumbers returns the subset of numbers already registered.
		ExistingNumbers(ctx context.Context, numbers []string, exec ...core.DBExecutor) ([]string, error)
		SetLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error
		SetEnrollment(ctx context.Context, id int, courseIDs []int, exec ...core.DBExecutor) (Student, error)
		DeleteStudent(ctx context.Context, id int, exec ...core.DBExecutor) error
		DeleteStudentsBySemester(ctx context.Context, semester, academicYear string, exec ...core.DBExecutor) (int, error)
		CountStudents(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) (int, error)
	}

	// CourseChecker reports which of the given course ids do not exist.
	CourseChecker interface {
		FindMissing(ctx context.Context, ids []int) ([]int, error)
	}

	Service struct {
		tx          core.Transactor
		repo        Repository
		courses     CourseChecker
		defaults    core.StudentConfig
		emailDomain string
	}
)

func NewService(tx core.Transactor, repo Repository, courses CourseChecker, conf *core.Config) *Service {
	return &Service{
		tx:          tx,
		repo:        repo,
		courses:     courses,
		defaults:    conf.Student,
		emailDomain: conf.StudentEmailDomain,
	}
}

// EmailFor derives the institutional email of a student number.
func (svc *Service) EmailFor(number string) string {
	return number + "@" + svc.emailDomain
}

func (svc *Service) checkUniqueness(ctx context.Context, number, email string) error {
	if err := svc.repo.CheckUniqueness(ctx, number, email); err != nil {
		var field string
		switch err {
		case ErrNumberExists:
			field = "student_number"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking student uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) checkCourses(ctx context.Context, ids []int) error {
	missing, err := svc.courses.FindMissing(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "checking courses")
	}
	if len(missing) > 0 {
		return core.NewNotFoundError(fmt.Sprintf("course %d", missing[0]))
	}
	return nil
}

// SelfRegister opens an account enrolled in the chosen courses, with the institutional email and default term.
func (svc *Service) SelfRegister(ctx context.Context, sr SelfRegistration) (Student, error) {
	email := svc.EmailFor(sr.StudentNumber)
	if err := svc.checkUniqueness(ctx, sr.StudentNumber, email); err != nil {
		return Student{}, err
	}
	if err := svc.checkCourses(ctx, sr.CourseIDs); err != nil {
		return Student{}, err
	}

	s := Student{
		StudentNumber:   sr.StudentNumber,
		FullName:        sr.FullName,
		Email:           email,
		Department:      svc.defaults.DefaultDepartment,
		Year:            1,
		Semester:        svc.defaults.DefaultSemester,
		AcademicYear:    svc.defaults.DefaultAcademicYear,
		EnrolledCourses: sr.CourseIDs,
		IsActive:        true,
		CreatedAt:       NowFunc().UTC(),
	}
	if err := s.SetPassword(sr.Password); err != nil {
		return Student{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateStudent(ctx, s)
}

func (svc *Service) Register(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.checkUniqueness(ctx, ns.StudentNumber, ns.Email); err != nil {
		return Student{}, err
	}
	s := Student{
		StudentNumber:   ns.StudentNumber,
		FullName:        ns.FullName,
		Email:           ns.Email,
		Department:      orDefault(ns.Department, svc.defaults.DefaultDepartment),
		Year:            ns.Year,
		Semester:        orDefault(ns.Semester, svc.defaults.DefaultSemester),
		AcademicYear:    orDefault(ns.AcademicYear, svc.defaults.DefaultAcademicYear),
		EnrolledCourses: []int{},
		IsActive:        true,
		CreatedAt:       NowFunc().UTC(),
	}
	if s.Year == 0 {
		s.Year = 1
	}
	if err := s.SetPassword(ns.Password); err != nil {
		return Student{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateStudent(ctx, s)
}

// Authenticate checks the credentials of an active student and records the login time.
func (svc *Service) Authenticate(ctx context.Context, number, pwd string) (Student, error) {
	s, err := svc.repo.GetStudentByNumber(ctx, core.CleanString(number))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Student{}, ErrInvalidCredentials
		}
		return Student{}, errors.Wrap(err, "getting student by number")
	}
	if err := s.CheckPassword(pwd); err != nil {
		return Student{}, ErrInvalidCredentials
	}
	if !s.IsActive {
		return Student{}, ErrInactive
	}
	s.LastLogin = NowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, s.ID, s.LastLogin); err != nil {
		return Student{}, errors.Wrap(err, "setting last login")
	}
	return s, nil
}

// BulkCreate generates bc.Count accounts numbered "<year><i:06>" with password "<prefix><i:03>".
// Numbers already registered are reported as errors and skipped; the rest are created in one transaction.
func (svc *Service) BulkCreate(ctx context.Context, bc BulkCreate) (BulkResult, error) {
	year := NowFunc().Year()
	numbers := make([]string, 0, bc.Count)
	for i := 1; i <= bc.Count; i++ {
		numbers = append(numbers, BulkNumber(year, i))
	}
	existing, err := svc.repo.ExistingNumbers(ctx, numbers)
	if err != nil {
		return BulkResult{}, errors.Wrap(err, "getting existing numbers")
	}
	taken := make(map[string]bool, len(existing))
	for _, n := range existing {
		taken[n] = true
	}

	now := NowFunc().UTC()
	result := BulkResult{Students: []BulkCredentials{}, Errors: []string{}}
	var errs []string
	students := make([]Student, 0, bc.Count)
	creds := make([]BulkCredentials, 0, bc.Count)
	for i, number := range numbers {
		if taken[number] {
			errs = append(errs, fmt.Sprintf("student %s is already registered", number))
			continue
		}
		c := BulkCredentials{
			StudentNumber: number,
			Password:      BulkPassword(bc.PasswordPrefix, i+1),
			Email:         svc.EmailFor(number),
			FullName:      fmt.Sprintf("Öğrenci %d", i+1),
		}
		creds = append(creds, c)
		students = append(students, Student{
			StudentNumber:   c.StudentNumber,
			FullName:        c.FullName,
			Email:           c.Email,
			Department:      orDefault(bc.Department, svc.defaults.DefaultDepartment),
			Year:            bc.Year,
			Semester:        orDefault(bc.Semester, svc.defaults.DefaultSemester),
			AcademicYear:    orDefault(bc.AcademicYear, svc.defaults.DefaultAcademicYear),
			EnrolledCourses: []int{},
			IsActive:        true,
			CreatedAt:       now,
		})
		if students[len(students)-1].Year == 0 {
			students[len(students)-1].Year = 1
		}
	}

	if err := hashPasswords(students, creds); err != nil {
		return BulkResult{}, errors.Wrap(err, "hashing passwords")
	}

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		for _, s := range students {
			if _, err := svc.repo.CreateStudent(ctx, s, exec); err != nil {
				return errors.Wrapf(err, "creating student %s", s.StudentNumber)
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}

	result.Success = true
	result.CreatedCount = len(students)
	result.ErrorCount = len(errs)
	result.Students = firstCreds(creds, bulkPreviewLen)
	result.Errors = firstStrings(errs, bulkPreviewLen)
	return result, nil
}

// hashPasswords fills students[i].PasswordHash from creds[i].Password using a few workers.
func hashPasswords(students []Student, creds []BulkCredentials) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	jobs := make(chan int)
	for w := 0; w < bulkHashers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := students[i].SetPassword(creds[i].Password); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	for i := range students {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) GetByNumber(ctx context.Context, number string) (Student, error) {
	return svc.repo.GetStudentByNumber(ctx, core.CleanString(number))
}

// SetEnrollment replaces the courses a student is enrolled in.
func (svc *Service) SetEnrollment(ctx context.Context, id int, e Enrollment) (Student, error) {
	if len(e.CourseIDs) > 0 {
		if err := svc.checkCourses(ctx, e.CourseIDs); err != nil {
			return Student{}, err
		}
	}
	ids := e.CourseIDs
	if ids == nil {
		ids = []int{}
	}
	return svc.repo.SetEnrollment(ctx, id, ids)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteStudent(ctx, id)
}

// DeleteBySemester is the end-of-term cleanup of every student of a semester.
func (svc *Service) DeleteBySemester(ctx context.Context, semester, academicYear string) (DeleteResult, error) {
	semester = core.CleanString(semester)
	academicYear = core.CleanString(academicYear)
	if semester == "" || academicYear == "" {
		var flds []core.FieldError
		if semester == "" {
			flds = append(flds, core.FieldError{Field: "semester", Error: "this field is required"})
		}
		if academicYear == "" {
			flds = append(flds, core.FieldError{Field: "academic_year", Error: "this field is required"})
		}
		return DeleteResult{}, core.NewValidationError(nil, flds...)
	}
	n, err := svc.repo.DeleteStudentsBySemester(ctx, semester, academicYear)
	if err != nil {
		return DeleteResult{}, errors.Wrap(err, "deleting students by semester")
	}
	return DeleteResult{Success: true, DeletedCount: n, Semester: semester, AcademicYear: academicYear}, nil
}

func (svc *Service) Count(ctx context.Context, activeOnly bool) (int, error) {
	return svc.repo.CountStudents(ctx, activeOnly)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func firstCreds(cs []BulkCredentials, n int) []BulkCredentials {
	if len(cs) > n {
		return cs[:n]
	}
	return cs
}

func firstStrings(ss []string, n int) []string {
	if ss == nil {
		return []string{}
	}
	if len(ss) > n {
		return ss[:n]
	}
	return ss
}
