package homework

import (
	"context"
	"fmt"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/upload"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrAssignmentNotFound = core.NewNotFoundError("homework assignment")
	ErrSubmissionNotFound = core.NewNotFoundError("homework")
	ErrNotEnrolled        = core.NewPermissionError("student is not enrolled in this course")

	receiptTemplate = "homework_receipt"
	fileKeyPrefix   = "pdf"
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		// QueryAssignments orders by due date, latest first.
		QueryAssignments(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) ([]Assignment, error)
		GetAssignment(ctx context.Context, id int, exec ...core.DBExecutor) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		DeleteAssignment(ctx context.Context, id int, exec ...core.DBExecutor) error

		// ReplaceSubmission makes sub the only submission of its (student, assignment) pair and returns the
		// stored row plus the one it replaced, if any. exec must be a transaction.
		ReplaceSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, *Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter, exec ...core.DBExecutor) ([]Submission, error)
		GetSubmission(ctx context.Context, id int, exec ...core.DBExecutor) (Submission, error)
		DeleteSubmission(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	CourseGetter interface {
		GetByID(ctx context.Context, id int) (course.Course, error)
	}

	StudentGetter interface {
		GetByNumber(ctx context.Context, number string) (student.Student, error)
	}

	Service struct {
		tx                 core.Transactor
		repo               Repository
		courses            CourseGetter
		students           StudentGetter
		files              core.FileStore
		mailSvc            core.EmailService
		logger             core.Logger
		policy             upload.Policy
		restrictEnrollment bool
		locks              *pairLocks
	}

	ServiceDeps struct {
		Tx       core.Transactor
		Repo     Repository
		Courses  CourseGetter
		Students StudentGetter
		Files    core.FileStore
		MailSvc  core.EmailService
		Logger   core.Logger
		Policy   upload.Policy
		Conf     *core.Config
	}
)

func NewService(deps ServiceDeps) *Service {
	svc := &Service{
		tx:       deps.Tx,
		repo:     deps.Repo,
		courses:  deps.Courses,
		students: deps.Students,
		files:    deps.Files,
		mailSvc:  deps.MailSvc,
		logger:   deps.Logger,
		policy:   deps.Policy,
		locks:    newPairLocks(),
	}
	if deps.Conf != nil {
		svc.restrictEnrollment = deps.Conf.Homework.RestrictEnrollment
	}
	if svc.policy.MaxBytes == 0 {
		svc.policy = upload.DefaultHomeworkPolicy
	}
	return svc
}

// Policy is the upload policy submissions are checked against.
func (svc *Service) Policy() upload.Policy { return svc.policy }

// RestrictsEnrollment tells whether students only see and submit to their enrolled courses.
func (svc *Service) RestrictsEnrollment() bool { return svc.restrictEnrollment }

// Assignments

func (svc *Service) CreateAssignment(ctx context.Context, na NewAssignment) (Assignment, error) {
	if err := checkWindow(na.StartDate, na.DueDate); err != nil {
		return Assignment{}, err
	}
	if _, err := svc.courses.GetByID(ctx, na.CourseID); err != nil {
		return Assignment{}, err
	}
	now := NowFunc().UTC()
	a := Assignment{
		CourseID:    na.CourseID,
		Title:       na.Title,
		Description: na.Description,
		StartDate:   na.StartDate.UTC(),
		DueDate:     na.DueDate.UTC(),
		IsActive:    na.IsActive == nil || *na.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateAssignment(ctx, a)
}

func (svc *Service) QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter)
}

func (svc *Service) GetAssignment(ctx context.Context, id int) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *Service) UpdateAssignment(ctx context.Context, id int, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	a = ua.apply(a)
	if err := checkWindow(a.StartDate, a.DueDate); err != nil {
		return Assignment{}, err
	}
	if ua.CourseID != nil {
		if _, err := svc.courses.GetByID(ctx, a.CourseID); err != nil {
			return Assignment{}, err
		}
	}
	a.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAssignment(ctx, a)
}

func (svc *Service) DeleteAssignment(ctx context.Context, id int) error {
	return svc.repo.DeleteAssignment(ctx, id)
}

// ListEligible returns the assignments of a course that accept submissions at now.
func (svc *Service) ListEligible(ctx context.Context, courseID int, now time.Time) ([]Assignment, error) {
	if _, err := svc.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	as, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	return ListEligibleAssignments(as, courseID, now), nil
}

// ListEligibleFor is ListEligible for a signed in student: nothing is eligible in a course the
// student is not enrolled in when enrollment is restricted.
func (svc *Service) ListEligibleFor(ctx context.Context, studentNumber string, courseID int, now time.Time) ([]Assignment, error) {
	if svc.restrictEnrollment {
		std, err := svc.students.GetByNumber(ctx, studentNumber)
		if err != nil {
			return nil, err
		}
		if !std.IsEnrolledIn(courseID) {
			return []Assignment{}, nil
		}
	}
	return svc.ListEligible(ctx, courseID, now)
}

// ActiveCounts counts the ACTIVE assignments per course at now, optionally restricted to courseIDs.
func (svc *Service) ActiveCounts(ctx context.Context, courseIDs []int, now time.Time) (map[int]int, error) {
	as, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{CourseIDs: courseIDs})
	if err != nil {
		return nil, err
	}
	return AggregateActiveCounts(as, now), nil
}

// Overview lists assignments with their status at now, for the admin dashboard.
func (svc *Service) Overview(ctx context.Context, filter AssignmentFilter, now time.Time) ([]AssignmentWithStatus, error) {
	as, err := svc.repo.QueryAssignments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return WithStatuses(as, now), nil
}

// Submissions

// AcceptSubmission stores ns as the only submission of the student for the assignment.
//
// The assignment must be ACTIVE at now, the file must satisfy the upload policy and the student must exist
// (and be enrolled in the course when enrollment is restricted). The new file is stored first; the record
// replacement then runs in one transaction serialised per (student, assignment). The previous file is only
// removed after commit, so a failure at any step leaves the previous submission intact.
func (svc *Service) AcceptSubmission(ctx context.Context, ns NewSubmission, now time.Time) (Submission, error) {
	crs, err := svc.courses.GetByID(ctx, ns.CourseID)
	if err != nil {
		return Submission{}, err
	}
	a, err := svc.repo.GetAssignment(ctx, ns.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if a.CourseID != crs.ID {
		return Submission{}, core.NewValidationError(nil, core.FieldError{
			Field: "assignment_id",
			Error: "assignment does not belong to this course",
		})
	}
	if status := Classify(a, now); status != StatusActive {
		return Submission{}, &NotActiveError{AssignmentID: a.ID, Status: status, StartDate: a.StartDate, DueDate: a.DueDate}
	}
	if err := upload.Validate(ns.File.FileInfo, svc.policy); err != nil {
		return Submission{}, err
	}
	std, err := svc.students.GetByNumber(ctx, ns.StudentNumber)
	if err != nil {
		return Submission{}, err
	}
	if svc.restrictEnrollment && !std.IsEnrolledIn(crs.ID) {
		return Submission{}, ErrNotEnrolled
	}

	unlock := svc.locks.lock(std.ID, a.ID)
	defer unlock()

	key := svc.newFileKey(std.StudentNumber, ns.File)
	url, err := svc.files.Save(ctx, key, ns.File.Reader, ns.File.DeclaredType())
	if err != nil {
		if _, ok := err.(*core.StorageError); ok {
			return Submission{}, err
		}
		return Submission{}, core.NewStorageError("save", err)
	}

	sub := Submission{
		AssignmentID:  a.ID,
		StudentID:     std.ID,
		CourseID:      crs.ID,
		StudentNumber: std.StudentNumber,
		StudentName:   ns.StudentName,
		CourseCode:    crs.Code,
		CourseName:    crs.Name,
		FileKey:       key,
		FileURL:       url,
		Notes:         ns.Notes,
		UploadDate:    now.UTC(),
	}
	var replaced *Submission
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		sub, replaced, err = svc.repo.ReplaceSubmission(ctx, sub, exec)
		return err
	})
	if err != nil {
		svc.deleteFile(ctx, key)
		return Submission{}, errors.Wrap(err, "replacing submission")
	}

	if replaced != nil && replaced.FileKey != "" && replaced.FileKey != key {
		svc.deleteFile(ctx, replaced.FileKey)
	}
	svc.sendReceipt(std, a, crs, sub, replaced != nil)
	return sub, nil
}

// MySubmissions lists the submissions of a student, newest first.
func (svc *Service) MySubmissions(ctx context.Context, studentNumber string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{
		StudentNumber: core.CleanString(studentNumber),
		Orderings:     []core.DBOrdering{{Field: "upload_date"}},
	})
}

func (svc *Service) QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error) {
	if len(filter.Orderings) == 0 {
		filter.Orderings = []core.DBOrdering{{Field: "upload_date"}}
	}
	return svc.repo.QuerySubmissions(ctx, filter)
}

func (svc *Service) GetSubmission(ctx context.Context, id int) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

// DeleteSubmission removes the record, then its file.
func (svc *Service) DeleteSubmission(ctx context.Context, id int) error {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	unlock := svc.locks.lock(sub.StudentID, sub.AssignmentID)
	defer unlock()

	if err := svc.repo.DeleteSubmission(ctx, id); err != nil {
		return err
	}
	svc.deleteFile(ctx, sub.FileKey)
	return nil
}

func (svc *Service) newFileKey(studentNumber string, f upload.File) string {
	ext := svc.policy.Extension(f.DeclaredType())
	if ext == "" {
		ext = strings.ToLower(path.Ext(f.Name))
	}
	clean := core.SanitizeFilename(f.Name)
	stem := strings.TrimSuffix(clean, path.Ext(clean))
	name := fmt.Sprintf("%s_%s_%s%s", core.SanitizeFilename(studentNumber), stem, uuid.New().String()[:8], ext)
	return path.Join(fileKeyPrefix, name)
}

// deleteFile is best effort: an orphaned file is logged, never surfaced.
func (svc *Service) deleteFile(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := svc.files.Delete(ctx, key); err != nil && !core.IsNotFound(err) {
		svc.logger.Warn(fmt.Sprintf("deleting homework file %q: %v", key, err), err)
	}
}

func (svc *Service) sendReceipt(std student.Student, a Assignment, crs course.Course, sub Submission, replaced bool) {
	if svc.mailSvc == nil || std.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: std.FullName, Address: std.Email}},
		Subject:      "Homework received: " + a.Title,
		TemplateName: receiptTemplate,
		TemplateData: receiptData{
			StudentName:     sub.StudentName,
			AssignmentTitle: a.Title,
			CourseCode:      crs.Code,
			UploadDate:      sub.UploadDate.Format("2006-01-02 15:04 MST"),
			FileURL:         sub.FileURL,
			Replaced:        replaced,
		},
	})
}
