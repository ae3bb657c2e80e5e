package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/student"
)

const studentColumns = "id, student_number, full_name, email, password_hash, department, year, semester, academic_year, enrolled_courses, is_active, created_at, last_login"

type studentRow struct {
	ID              int           `db:"id"`
	StudentNumber   string        `db:"student_number"`
	FullName        string        `db:"full_name"`
	Email           string        `db:"email"`
	PasswordHash    []byte        `db:"password_hash"`
	Department      null.String   `db:"department"`
	Year            int           `db:"year"`
	Semester        null.String   `db:"semester"`
	AcademicYear    null.String   `db:"academic_year"`
	EnrolledCourses pq.Int64Array `db:"enrolled_courses"`
	IsActive        bool          `db:"is_active"`
	CreatedAt       time.Time     `db:"created_at"`
	LastLogin       null.Time     `db:"last_login"`
}

func (r studentRow) student() student.Student {
	enrolled := make([]int, 0, len(r.EnrolledCourses))
	for _, id := range r.EnrolledCourses {
		enrolled = append(enrolled, int(id))
	}
	return student.Student{
		ID:              r.ID,
		StudentNumber:   r.StudentNumber,
		FullName:        r.FullName,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash,
		Department:      r.Department.String,
		Year:            r.Year,
		Semester:        r.Semester.String,
		AcademicYear:    r.AcademicYear.String,
		EnrolledCourses: enrolled,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt.UTC(),
		LastLogin:       r.LastLogin.Time.UTC(),
	}
}

func intArray(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{repository{exec: exec}}
}

func (repo studentRepository) CheckUniqueness(ctx context.Context, number, email string, exec ...core.DBExecutor) error {
	var taken struct {
		Number bool `db:"number"`
		Email  bool `db:"email"`
	}
	e := repo.getExec(exec)
	q := e.Rebind(`SELECT COALESCE(bool_or(student_number = ?), false) AS number, COALESCE(bool_or(email = ?), false) AS email
		FROM students WHERE student_number = ? OR email = ?`)
	if err := e.GetContext(ctx, &taken, q, number, email, number, email); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	switch {
	case taken.Number:
		return student.ErrNumberExists
	case taken.Email:
		return student.ErrEmailExists
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`INSERT INTO students
		(student_number, full_name, email, password_hash, department, year, semester, academic_year, enrolled_courses, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := e.QueryRowxContext(ctx, q,
		s.StudentNumber, s.FullName, s.Email, s.PasswordHash, nullString(s.Department), s.Year,
		nullString(s.Semester), nullString(s.AcademicYear), intArray(s.EnrolledCourses), s.IsActive, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, exec ...core.DBExecutor) ([]student.Student, error) {
	var w where
	if filter.Semester != "" {
		w.add("semester = ?", filter.Semester)
	}
	if filter.AcademicYear != "" {
		w.add("academic_year = ?", filter.AcademicYear)
	}
	if filter.CourseID != 0 {
		w.add("? = ANY(enrolled_courses)", filter.CourseID)
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + studentColumns + " FROM students" + w.String() + " ORDER BY student_number" + paginate(filter.Pagination))

	var rows []studentRow
	if err := e.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo studentRepository) getOne(ctx context.Context, exec []core.DBExecutor, cond string, arg interface{}) (student.Student, error) {
	e := repo.getExec(exec)
	var r studentRow
	if err := e.GetContext(ctx, &r, e.Rebind("SELECT "+studentColumns+" FROM students WHERE "+cond), arg); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "selecting student")
	}
	return r.student(), nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id int, exec ...core.DBExecutor) (student.Student, error) {
	return repo.getOne(ctx, exec, "id = ?", id)
}

func (repo studentRepository) GetStudentByNumber(ctx context.Context, number string, exec ...core.DBExecutor) (student.Student, error) {
	return repo.getOne(ctx, exec, "student_number = ?", number)
}

func (repo studentRepository) ExistingNumbers(ctx context.Context, numbers []string, exec ...core.DBExecutor) ([]string, error) {
	existing := make([]string, 0)
	if len(numbers) == 0 {
		return existing, nil
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT student_number FROM students WHERE student_number = ANY(?)")
	if err := e.SelectContext(ctx, &existing, q, pq.Array(numbers)); err != nil {
		return nil, errors.Wrap(err, "selecting existing student numbers")
	}
	return existing, nil
}

func (repo studentRepository) SetLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	if _, err := e.ExecContext(ctx, e.Rebind("UPDATE students SET last_login = ? WHERE id = ?"), at, id); err != nil {
		return errors.Wrap(err, "updating student last login")
	}
	return nil
}

func (repo studentRepository) SetEnrollment(ctx context.Context, id int, courseIDs []int, exec ...core.DBExecutor) (student.Student, error) {
	e := repo.getExec(exec)
	var r studentRow
	q := e.Rebind("UPDATE students SET enrolled_courses = ? WHERE id = ? RETURNING " + studentColumns)
	if err := e.GetContext(ctx, &r, q, intArray(courseIDs), id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "updating student enrollment")
	}
	return r.student(), nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id int, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, e.Rebind("DELETE FROM students WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return checkAffected(res, student.ErrNotFound, "deleting student")
}

func (repo studentRepository) DeleteStudentsBySemester(ctx context.Context, semester, academicYear string, exec ...core.DBExecutor) (int, error) {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, e.Rebind("DELETE FROM students WHERE semester = ? AND academic_year = ?"), semester, academicYear)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return int(n), nil
}

func (repo studentRepository) CountStudents(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) (int, error) {
	q := "SELECT COUNT(*) FROM students"
	if activeOnly {
		q += " WHERE is_active"
	}
	var n int
	if err := repo.getExec(exec).GetContext(ctx, &n, q); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return n, nil
}
