package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
)

const courseColumns = "id, code, name, level, semester, credits, description, syllabus_url, materials_url, content, is_active, created_at, updated_at"

type courseRow struct {
	ID           int            `db:"id"`
	Code         string         `db:"code"`
	Name         string         `db:"name"`
	Level        null.String    `db:"level"`
	Semester     null.String    `db:"semester"`
	Credits      null.Int       `db:"credits"`
	Description  null.String    `db:"description"`
	SyllabusURL  null.String    `db:"syllabus_url"`
	MaterialsURL null.String    `db:"materials_url"`
	Content      course.Content `db:"content"`
	IsActive     bool           `db:"is_active"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:           r.ID,
		Code:         r.Code,
		Name:         r.Name,
		Level:        r.Level.String,
		Semester:     r.Semester.String,
		Credits:      r.Credits.Int,
		Description:  r.Description.String,
		SyllabusURL:  r.SyllabusURL.String,
		MaterialsURL: r.MaterialsURL.String,
		Content:      r.Content,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func courseArgs(c course.Course) []interface{} {
	return []interface{}{
		c.Code,
		c.Name,
		nullString(c.Level),
		nullString(c.Semester),
		null.NewInt(c.Credits, c.Credits != 0),
		nullString(c.Description),
		nullString(c.SyllabusURL),
		nullString(c.MaterialsURL),
		c.Content,
		c.IsActive,
	}
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{repository{exec: exec}}
}

func (repo courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedID int, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	var exists bool
	q := e.Rebind("SELECT EXISTS (SELECT 1 FROM courses WHERE code = ? AND id <> ?)")
	if err := e.GetContext(ctx, &exists, q, code, excludedID); err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	if exists {
		return course.ErrCodeExists
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`INSERT INTO courses
		(code, name, level, semester, credits, description, syllabus_url, materials_url, content, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	args := append(courseArgs(c), c.CreatedAt, c.UpdatedAt)
	if err := e.QueryRowxContext(ctx, q, args...).Scan(&c.ID); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	var w where
	if filter.ActiveOnly {
		w.add("is_active")
	}
	if filter.Level != "" {
		w.add("level = ?", filter.Level)
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + courseColumns + " FROM courses" + w.String() + " ORDER BY code" + paginate(filter.Pagination))
	return repo.selectCourses(ctx, e, q, w.args...)
}

func (repo courseRepository) selectCourses(ctx context.Context, e core.DBExecutor, q string, args ...interface{}) ([]course.Course, error) {
	var rows []courseRow
	if err := e.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id int, exec ...core.DBExecutor) (course.Course, error) {
	e := repo.getExec(exec)
	var r courseRow
	if err := e.GetContext(ctx, &r, e.Rebind("SELECT "+courseColumns+" FROM courses WHERE id = ?"), id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "selecting course")
	}
	return r.course(), nil
}

func (repo courseRepository) GetCoursesByID(ctx context.Context, ids []int, exec ...core.DBExecutor) ([]course.Course, error) {
	if len(ids) == 0 {
		return []course.Course{}, nil
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + courseColumns + " FROM courses WHERE id = ANY(?)")
	return repo.selectCourses(ctx, e, q, pq.Array(ids))
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`UPDATE courses SET
		code = ?, name = ?, level = ?, semester = ?, credits = ?, description = ?,
		syllabus_url = ?, materials_url = ?, content = ?, is_active = ?, updated_at = ?
		WHERE id = ?`)
	args := append(courseArgs(c), c.UpdatedAt, c.ID)
	res, err := e.ExecContext(ctx, q, args...)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err := checkAffected(res, course.ErrNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id int, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, e.Rebind("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return checkAffected(res, course.ErrNotFound, "deleting course")
}

func (repo courseRepository) CountCourses(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := repo.getExec(exec).GetContext(ctx, &n, "SELECT COUNT(*) FROM courses"); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return n, nil
}
