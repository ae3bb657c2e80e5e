package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/homework"
)

const (
	assignmentColumns = "id, course_id, title, description, start_date, due_date, is_active, created_at, updated_at"
	submissionColumns = "id, assignment_id, course_id, student_id, student_number, student_name, course_code, course_name, file_key, file_url, notes, upload_date"
)

type assignmentRow struct {
	ID          int         `db:"id"`
	CourseID    int         `db:"course_id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	StartDate   time.Time   `db:"start_date"`
	DueDate     time.Time   `db:"due_date"`
	IsActive    bool        `db:"is_active"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r assignmentRow) assignment() homework.Assignment {
	return homework.Assignment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description.String,
		StartDate:   r.StartDate.UTC(),
		DueDate:     r.DueDate.UTC(),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID            int         `db:"id"`
	AssignmentID  int         `db:"assignment_id"`
	CourseID      int         `db:"course_id"`
	StudentID     int         `db:"student_id"`
	StudentNumber string      `db:"student_number"`
	StudentName   string      `db:"student_name"`
	CourseCode    string      `db:"course_code"`
	CourseName    string      `db:"course_name"`
	FileKey       string      `db:"file_key"`
	FileURL       string      `db:"file_url"`
	Notes         null.String `db:"notes"`
	UploadDate    time.Time   `db:"upload_date"`
}

func (r submissionRow) submission() homework.Submission {
	return homework.Submission{
		ID:            r.ID,
		AssignmentID:  r.AssignmentID,
		StudentID:     r.StudentID,
		CourseID:      r.CourseID,
		StudentNumber: r.StudentNumber,
		StudentName:   r.StudentName,
		CourseCode:    r.CourseCode,
		CourseName:    r.CourseName,
		FileKey:       r.FileKey,
		FileURL:       r.FileURL,
		Notes:         r.Notes.String,
		UploadDate:    r.UploadDate.UTC(),
	}
}

type homeworkRepository struct {
	repository
}

var _ homework.Repository = (*homeworkRepository)(nil) // interface compliance check

func NewHomeworkRepository(exec core.DBExecutor) *homeworkRepository {
	return &homeworkRepository{repository{exec: exec}}
}

func (repo homeworkRepository) CreateAssignment(ctx context.Context, a homework.Assignment, exec ...core.DBExecutor) (homework.Assignment, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`INSERT INTO homework_assignments
		(course_id, title, description, start_date, due_date, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := e.QueryRowxContext(ctx, q,
		a.CourseID, a.Title, nullString(a.Description), a.StartDate, a.DueDate, a.IsActive, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return homework.Assignment{}, errors.Wrap(err, "inserting homework assignment")
	}
	return a, nil
}

func (repo homeworkRepository) QueryAssignments(ctx context.Context, filter homework.AssignmentFilter, exec ...core.DBExecutor) ([]homework.Assignment, error) {
	var w where
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if filter.CourseIDs != nil {
		w.add("course_id = ANY(?)", intArray(filter.CourseIDs))
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + assignmentColumns + " FROM homework_assignments" + w.String() + " ORDER BY due_date DESC, id DESC")

	var rows []assignmentRow
	if err := e.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting homework assignments")
	}
	as := make([]homework.Assignment, 0, len(rows))
	for _, r := range rows {
		as = append(as, r.assignment())
	}
	return as, nil
}

func (repo homeworkRepository) GetAssignment(ctx context.Context, id int, exec ...core.DBExecutor) (homework.Assignment, error) {
	e := repo.getExec(exec)
	var r assignmentRow
	if err := e.GetContext(ctx, &r, e.Rebind("SELECT "+assignmentColumns+" FROM homework_assignments WHERE id = ?"), id); err != nil {
		return homework.Assignment{}, trapNoRowsErr(err, homework.ErrAssignmentNotFound, "selecting homework assignment")
	}
	return r.assignment(), nil
}

func (repo homeworkRepository) UpdateAssignment(ctx context.Context, a homework.Assignment, exec ...core.DBExecutor) (homework.Assignment, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`UPDATE homework_assignments SET
		course_id = ?, title = ?, description = ?, start_date = ?, due_date = ?, is_active = ?, updated_at = ?
		WHERE id = ?`)
	res, err := e.ExecContext(ctx, q, a.CourseID, a.Title, nullString(a.Description), a.StartDate, a.DueDate, a.IsActive, a.UpdatedAt, a.ID)
	if err != nil {
		return homework.Assignment{}, errors.Wrap(err, "updating homework assignment")
	}
	if err := checkAffected(res, homework.ErrAssignmentNotFound, "updating homework assignment"); err != nil {
		return homework.Assignment{}, err
	}
	return a, nil
}

func (repo homeworkRepository) DeleteAssignment(ctx context.Context, id int, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, e.Rebind("DELETE FROM homework_assignments WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting homework assignment")
	}
	return checkAffected(res, homework.ErrAssignmentNotFound, "deleting homework assignment")
}

// ReplaceSubmission takes a transaction scoped advisory lock on the (student, assignment) pair so that
// concurrent uploads from several API instances run one after the other; the unique index backs it up.
func (repo homeworkRepository) ReplaceSubmission(
	ctx context.Context,
	sub homework.Submission,
	exec ...core.DBExecutor,
) (homework.Submission, *homework.Submission, error) {
	e := repo.getExec(exec)

	if _, err := e.ExecContext(ctx, e.Rebind("SELECT pg_advisory_xact_lock(?::int, ?::int)"), sub.StudentID, sub.AssignmentID); err != nil {
		return homework.Submission{}, nil, errors.Wrap(err, "locking submission")
	}

	var (
		old      submissionRow
		replaced *homework.Submission
	)
	q := e.Rebind("DELETE FROM homeworks WHERE student_id = ? AND assignment_id = ? RETURNING " + submissionColumns)
	err := e.GetContext(ctx, &old, q, sub.StudentID, sub.AssignmentID)
	switch {
	case err == nil:
		prev := old.submission()
		replaced = &prev
	case errors.Cause(err) == sql.ErrNoRows:
		// first submission of the pair
	default:
		return homework.Submission{}, nil, errors.Wrap(err, "deleting previous submission")
	}

	q = e.Rebind(`INSERT INTO homeworks
		(assignment_id, course_id, student_id, student_number, student_name, course_code, course_name, file_key, file_url, notes, upload_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err = e.QueryRowxContext(ctx, q,
		sub.AssignmentID, sub.CourseID, sub.StudentID, sub.StudentNumber, sub.StudentName, sub.CourseCode,
		sub.CourseName, sub.FileKey, sub.FileURL, nullString(sub.Notes), sub.UploadDate,
	).Scan(&sub.ID)
	if err != nil {
		return homework.Submission{}, nil, errors.Wrap(err, "inserting submission")
	}
	return sub, replaced, nil
}

func (repo homeworkRepository) QuerySubmissions(ctx context.Context, filter homework.SubmissionFilter, exec ...core.DBExecutor) ([]homework.Submission, error) {
	var w where
	if filter.StudentNumber != "" {
		w.add("student_number = ?", filter.StudentNumber)
	}
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.AssignmentID != 0 {
		w.add("assignment_id = ?", filter.AssignmentID)
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + submissionColumns + " FROM homeworks" + w.String() +
		orderBy(filter.Orderings, homework.SubmissionOrderingFields, "upload_date DESC") + ", id DESC" +
		paginate(filter.Pagination))

	var rows []submissionRow
	if err := e.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]homework.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}

func (repo homeworkRepository) GetSubmission(ctx context.Context, id int, exec ...core.DBExecutor) (homework.Submission, error) {
	e := repo.getExec(exec)
	var r submissionRow
	if err := e.GetContext(ctx, &r, e.Rebind("SELECT "+submissionColumns+" FROM homeworks WHERE id = ?"), id); err != nil {
		return homework.Submission{}, trapNoRowsErr(err, homework.ErrSubmissionNotFound, "selecting submission")
	}
	return r.submission(), nil
}

func (repo homeworkRepository) DeleteSubmission(ctx context.Context, id int, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, e.Rebind("DELETE FROM homeworks WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	return checkAffected(res, homework.ErrSubmissionNotFound, "deleting submission")
}
