package homework

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/upload"
)

// fakes

type fakeRepo struct {
	mu          sync.Mutex
	assignments map[int]Assignment
	subs        map[int]Submission
	nextID      int
	replaceErr  error
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo(as ...Assignment) *fakeRepo {
	r := &fakeRepo{assignments: make(map[int]Assignment), subs: make(map[int]Submission), nextID: 1}
	for _, a := range as {
		r.assignments[a.ID] = a
	}
	return r
}

func (r *fakeRepo) CreateAssignment(_ context.Context, a Assignment, _ ...core.DBExecutor) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = 100 + len(r.assignments)
	r.assignments[a.ID] = a
	return a, nil
}

func (r *fakeRepo) QueryAssignments(_ context.Context, f AssignmentFilter, _ ...core.DBExecutor) ([]Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	as := make([]Assignment, 0)
	for _, a := range r.assignments {
		if f.CourseID != 0 && a.CourseID != f.CourseID {
			continue
		}
		as = append(as, a)
	}
	sort.Slice(as, func(i, j int) bool { return as[i].DueDate.After(as[j].DueDate) })
	return as, nil
}

func (r *fakeRepo) GetAssignment(_ context.Context, id int, _ ...core.DBExecutor) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, nil
}

func (r *fakeRepo) UpdateAssignment(_ context.Context, a Assignment, _ ...core.DBExecutor) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[a.ID] = a
	return a, nil
}

func (r *fakeRepo) DeleteAssignment(_ context.Context, id int, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assignments, id)
	return nil
}

func (r *fakeRepo) ReplaceSubmission(_ context.Context, sub Submission, _ ...core.DBExecutor) (Submission, *Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return Submission{}, nil, r.replaceErr
	}
	var replaced *Submission
	for id, s := range r.subs {
		if s.StudentID == sub.StudentID && s.AssignmentID == sub.AssignmentID {
			old := s
			replaced = &old
			delete(r.subs, id)
		}
	}
	sub.ID = r.nextID
	r.nextID++
	r.subs[sub.ID] = sub
	return sub, replaced, nil
}

func (r *fakeRepo) QuerySubmissions(_ context.Context, f SubmissionFilter, _ ...core.DBExecutor) ([]Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := make([]Submission, 0)
	for _, s := range r.subs {
		if f.StudentNumber != "" && s.StudentNumber != f.StudentNumber {
			continue
		}
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID > subs[j].ID })
	return subs, nil
}

func (r *fakeRepo) GetSubmission(_ context.Context, id int, _ ...core.DBExecutor) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return s, nil
}

func (r *fakeRepo) DeleteSubmission(_ context.Context, id int, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	return nil
}

type fakeTx struct{}

func (fakeTx) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error { return fn(nil) }

type fakeFiles struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

var _ core.FileStore = (*fakeFiles)(nil)

func newFakeFiles() *fakeFiles { return &fakeFiles{files: make(map[string][]byte)} }

func (f *fakeFiles) Save(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = b
	return "http://files.test/" + key, nil
}

func (f *fakeFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[key]
	if !ok {
		return nil, core.ErrFileNotFound
	}
	return ioutil.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[key]; !ok {
		return core.ErrFileNotFound
	}
	delete(f.files, key)
	return nil
}

func (f *fakeFiles) KeyFromURL(url string) (string, bool) {
	return strings.TrimPrefix(url, "http://files.test/"), strings.HasPrefix(url, "http://files.test/")
}

func (f *fakeFiles) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.files))
	for k := range f.files {
		keys = append(keys, k)
	}
	return keys
}

type fakeCourses map[int]course.Course

func (fc fakeCourses) GetByID(_ context.Context, id int) (course.Course, error) {
	c, ok := fc[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

type fakeStudents map[string]student.Student

func (fs fakeStudents) GetByNumber(_ context.Context, number string) (student.Student, error) {
	s, ok := fs[number]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	return s, nil
}

type fakeMail struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *fakeMail) SendMessages(msgs ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgs...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// fixtures

type fixture struct {
	svc   *Service
	repo  *fakeRepo
	files *fakeFiles
	mail  *fakeMail
}

var (
	window = Assignment{
		ID:        1,
		CourseID:  1,
		Title:     "HW1",
		StartDate: date("2025-01-01T00:00:00Z"),
		DueDate:   date("2025-01-08T00:00:00Z"),
		IsActive:  true,
	}
	midWindow = date("2025-01-04T12:00:00Z")
)

func newFixture(restrict bool) fixture {
	repo := newFakeRepo(window, Assignment{
		ID: 2, CourseID: 2, Title: "Other", StartDate: window.StartDate, DueDate: window.DueDate, IsActive: true,
	})
	files := newFakeFiles()
	mail := new(fakeMail)
	conf := &core.Config{Homework: core.HomeworkConfig{RestrictEnrollment: restrict}}
	svc := NewService(ServiceDeps{
		Tx:   fakeTx{},
		Repo: repo,
		Courses: fakeCourses{
			1: {ID: 1, Code: "MEK101", Name: "Statics"},
			2: {ID: 2, Code: "MEK102", Name: "Dynamics"},
		},
		Students: fakeStudents{
			"20231234": {ID: 7, StudentNumber: "20231234", FullName: "Ada L", Email: "20231234@ogrenci.test", EnrolledCourses: []int{1}},
		},
		Files:   files,
		MailSvc: mail,
		Logger:  nopLogger{},
		Policy:  upload.DefaultHomeworkPolicy,
		Conf:    conf,
	})
	return fixture{svc: svc, repo: repo, files: files, mail: mail}
}

func pdf(name string, size int) upload.File {
	return upload.File{
		FileInfo: upload.FileInfo{Name: name, ContentType: "application/pdf", Size: int64(size)},
		Reader:   bytes.NewReader(make([]byte, size)),
	}
}

func newSub(assignmentID int, f upload.File) NewSubmission {
	return NewSubmission{
		StudentNumber: "20231234",
		StudentName:   "Ada L",
		CourseID:      1,
		AssignmentID:  assignmentID,
		File:          f,
	}
}

func TestService_AcceptSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("window scenario", func(t *testing.T) {
		fx := newFixture(true)

		_, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("hw.pdf", 1<<20)), date("2024-12-31T23:59:00Z"))
		var nae *NotActiveError
		require.True(t, errors.As(err, &nae))
		assert.Equal(t, StatusUpcoming, nae.Status)

		sub, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("hw.pdf", 1<<20)), midWindow)
		require.NoError(t, err)
		assert.Equal(t, 1, sub.AssignmentID)
		assert.Equal(t, "MEK101", sub.CourseCode)
		assert.Equal(t, midWindow, sub.UploadDate)

		_, err = fx.svc.AcceptSubmission(ctx, newSub(1, pdf("hw.pdf", 1<<20)), date("2025-01-08T00:01:00Z"))
		require.True(t, errors.As(err, &nae))
		assert.Equal(t, "ASSIGNMENT_EXPIRED", nae.Code())

		subs, _ := fx.repo.QuerySubmissions(ctx, SubmissionFilter{})
		assert.Len(t, subs, 1)
	})

	t.Run("suspended", func(t *testing.T) {
		fx := newFixture(true)
		fx.repo.assignments[1] = func() Assignment { a := window; a.IsActive = false; return a }()

		_, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("hw.pdf", 10)), midWindow)
		var nae *NotActiveError
		require.True(t, errors.As(err, &nae))
		assert.Equal(t, StatusSuspended, nae.Status)
	})

	t.Run("rejected files", func(t *testing.T) {
		fx := newFixture(true)
		tests := []struct {
			name     string
			file     upload.File
			wantCode upload.Code
		}{
			{name: "too large", file: pdf("hw.pdf", 4<<20), wantCode: upload.CodeTooLarge},
			{
				name: "wrong type",
				file: upload.File{
					FileInfo: upload.FileInfo{Name: "hw.docx", ContentType: "application/msword", Size: 10},
					Reader:   bytes.NewReader(make([]byte, 10)),
				},
				wantCode: upload.CodeWrongType,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := fx.svc.AcceptSubmission(ctx, newSub(1, tt.file), midWindow)
				var re *upload.RejectionError
				require.True(t, errors.As(err, &re))
				assert.Equal(t, tt.wantCode, re.Code)
				assert.Empty(t, fx.files.keys())
			})
		}
	})

	t.Run("exactly at the limit", func(t *testing.T) {
		fx := newFixture(true)
		_, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("hw.pdf", 3<<20)), midWindow)
		assert.NoError(t, err)
	})

	t.Run("unknown course and assignment", func(t *testing.T) {
		fx := newFixture(true)
		ns := newSub(1, pdf("hw.pdf", 10))
		ns.CourseID = 99
		_, err := fx.svc.AcceptSubmission(ctx, ns, midWindow)
		assert.True(t, core.IsNotFound(err))

		_, err = fx.svc.AcceptSubmission(ctx, newSub(99, pdf("hw.pdf", 10)), midWindow)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("assignment of another course", func(t *testing.T) {
		fx := newFixture(true)
		_, err := fx.svc.AcceptSubmission(ctx, newSub(2, pdf("hw.pdf", 10)), midWindow)
		var ve *core.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "assignment_id", ve.Fields[0].Field)
	})

	t.Run("not enrolled", func(t *testing.T) {
		fx := newFixture(true)
		ns := newSub(2, pdf("hw.pdf", 10))
		ns.CourseID = 2
		_, err := fx.svc.AcceptSubmission(ctx, ns, midWindow)
		assert.Equal(t, ErrNotEnrolled, err)

		fx = newFixture(false)
		_, err = fx.svc.AcceptSubmission(ctx, ns, midWindow)
		assert.NoError(t, err)
	})

	t.Run("overwrite keeps one submission", func(t *testing.T) {
		fx := newFixture(true)
		first, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("first.pdf", 10)), midWindow)
		require.NoError(t, err)

		later := midWindow.Add(time.Hour)
		ns := newSub(1, pdf("second.pdf", 20))
		ns.Notes = "v2"
		second, err := fx.svc.AcceptSubmission(ctx, ns, later)
		require.NoError(t, err)

		subs, _ := fx.repo.QuerySubmissions(ctx, SubmissionFilter{})
		require.Len(t, subs, 1)
		assert.Equal(t, second.ID, subs[0].ID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, later, subs[0].UploadDate)
		assert.Equal(t, "v2", subs[0].Notes)
		assert.Equal(t, []string{second.FileKey}, fx.files.keys(), "previous file removed")
		assert.Len(t, fx.mail.sent, 2)
	})

	t.Run("storage failure keeps previous submission", func(t *testing.T) {
		fx := newFixture(true)
		first, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("first.pdf", 10)), midWindow)
		require.NoError(t, err)

		fx.files.saveErr = errors.New("disk full")
		_, err = fx.svc.AcceptSubmission(ctx, newSub(1, pdf("second.pdf", 10)), midWindow)
		var se *core.StorageError
		require.True(t, errors.As(err, &se))

		subs, _ := fx.repo.QuerySubmissions(ctx, SubmissionFilter{})
		require.Len(t, subs, 1)
		assert.Equal(t, first.ID, subs[0].ID)
		assert.Equal(t, []string{first.FileKey}, fx.files.keys())
	})

	t.Run("database failure removes the new file", func(t *testing.T) {
		fx := newFixture(true)
		first, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("first.pdf", 10)), midWindow)
		require.NoError(t, err)

		fx.repo.replaceErr = errors.New("connection reset")
		_, err = fx.svc.AcceptSubmission(ctx, newSub(1, pdf("second.pdf", 10)), midWindow)
		require.Error(t, err)

		subs, _ := fx.repo.QuerySubmissions(ctx, SubmissionFilter{})
		require.Len(t, subs, 1)
		assert.Equal(t, first.ID, subs[0].ID)
		assert.Equal(t, []string{first.FileKey}, fx.files.keys())
	})

	t.Run("concurrent submissions", func(t *testing.T) {
		fx := newFixture(true)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("hw.pdf", 10)), midWindow)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		subs, _ := fx.repo.QuerySubmissions(ctx, SubmissionFilter{})
		require.Len(t, subs, 1)
		assert.Equal(t, []string{subs[0].FileKey}, fx.files.keys())
		assert.Equal(t, 0, fx.svc.locks.len())
	})
}

func TestService_newFileKey(t *testing.T) {
	fx := newFixture(true)
	key := fx.svc.newFileKey("20231234", pdf("../My Homework.PDF", 1))
	assert.True(t, strings.HasPrefix(key, "pdf/20231234_My_Homework_"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)
	assert.NotEqual(t, key, fx.svc.newFileKey("20231234", pdf("../My Homework.PDF", 1)))
}

func TestService_Assignments(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(true)

	_, err := fx.svc.CreateAssignment(ctx, NewAssignment{CourseID: 1, Title: "HW2", StartDate: window.DueDate, DueDate: window.StartDate})
	assert.Error(t, err, "due before start")

	_, err = fx.svc.CreateAssignment(ctx, NewAssignment{CourseID: 99, Title: "HW2", StartDate: window.StartDate, DueDate: window.DueDate})
	assert.True(t, core.IsNotFound(err))

	a, err := fx.svc.CreateAssignment(ctx, NewAssignment{CourseID: 1, Title: "HW2", StartDate: window.StartDate, DueDate: window.DueDate.Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, a.IsActive, "active by default")

	start := window.DueDate.Add(2 * time.Hour)
	_, err = fx.svc.UpdateAssignment(ctx, a.ID, UpdateAssignment{StartDate: &start})
	assert.Error(t, err, "merged window is empty")

	eligible, err := fx.svc.ListEligible(ctx, 1, midWindow)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, a.ID, eligible[0].ID)

	counts, err := fx.svc.ActiveCounts(ctx, nil, midWindow)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, counts)

	none, err := fx.svc.ListEligibleFor(ctx, "20231234", 2, midWindow)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_DeleteSubmission(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(true)
	sub, err := fx.svc.AcceptSubmission(ctx, newSub(1, pdf("hw.pdf", 10)), midWindow)
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteSubmission(ctx, sub.ID))
	assert.Empty(t, fx.files.keys())
	assert.True(t, core.IsNotFound(fx.svc.DeleteSubmission(ctx, sub.ID)))
}
