package echoapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ibca/academic/core/homework"
	"github.com/ibca/academic/core/upload"
)

var (
	windowStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windowDue   = time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	windowMid   = time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
)

func mockHomeworkNow(now time.Time) func() {
	orig := homework.NowFunc
	homework.NowFunc = func() time.Time { return now }
	return func() { homework.NowFunc = orig }
}

func (env *testEnv) createAssignment(t *testing.T, courseID int, title string, start, due time.Time, active bool) homework.Assignment {
	a, err := env.homework.CreateAssignment(context.Background(), homework.NewAssignment{
		CourseID:  courseID,
		Title:     title,
		StartDate: start,
		DueDate:   due,
		IsActive:  &active,
	})
	if err != nil {
		t.Fatalf("CreateAssignment(): %v", err)
	}
	return a
}

func submissionFields(number string, courseID, assignmentID int, notes string) map[string]string {
	return map[string]string{
		"student_number": number,
		"student_name":   "Student " + number,
		"course_id":      strconv.Itoa(courseID),
		"assignment_id":  strconv.Itoa(assignmentID),
		"notes":          notes,
	}
}

func pdfFile(name string, size int) *multipartFile {
	content := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), size)...)
	return &multipartFile{name: name, contentType: "application/pdf", content: content[:size]}
}

func TestSubmitHomework(t *testing.T) {
	env := setup(t)
	defer mockHomeworkNow(windowMid)()

	crs := env.createCourse(t, "MEK101")
	other := env.createCourse(t, "MEK102")
	std := env.createStudent(t, "20210001", "secret1", crs.ID)
	outsider := env.createStudent(t, "20210002", "secret2", other.ID)
	admin := env.createAdmin(t, "admin", "Passw0rd!", true)

	asg := env.createAssignment(t, crs.ID, "Kinematics", windowStart, windowDue, true)
	suspended := env.createAssignment(t, crs.ID, "Dynamics", windowStart, windowDue, false)
	otherAsg := env.createAssignment(t, other.ID, "Statics", windowStart, windowDue, true)

	stdToken := env.studentToken(t, std)
	outsiderToken := env.studentToken(t, outsider)
	adminToken := env.adminToken(t, admin)

	ok := submissionFields(std.StudentNumber, crs.ID, asg.ID, "")
	pdf := pdfFile("odev.pdf", 2048)
	maxBytes := int(upload.DefaultHomeworkPolicy.MaxBytes)

	tests := []struct {
		name        string
		now         time.Time
		token       string
		fields      map[string]string
		file        *multipartFile
		wantCode    int
		wantErrCode string
	}{
		{name: "no token", token: "", fields: ok, file: pdf, wantCode: http.StatusUnauthorized},
		{name: "admin token", token: adminToken, fields: ok, file: pdf, wantCode: http.StatusForbidden},
		{
			name:     "student number of someone else",
			token:    stdToken,
			fields:   submissionFields(outsider.StudentNumber, crs.ID, asg.ID, ""),
			file:     pdf,
			wantCode: http.StatusForbidden,
		},
		{name: "missing fields", token: stdToken, fields: map[string]string{}, file: pdf, wantCode: http.StatusBadRequest},
		{name: "missing file", token: stdToken, fields: ok, wantCode: http.StatusBadRequest},
		{
			name:     "unknown course",
			token:    stdToken,
			fields:   submissionFields(std.StudentNumber, 9999, asg.ID, ""),
			file:     pdf,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown assignment",
			token:    stdToken,
			fields:   submissionFields(std.StudentNumber, crs.ID, 9999, ""),
			file:     pdf,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "assignment of another course",
			token:    stdToken,
			fields:   submissionFields(std.StudentNumber, crs.ID, otherAsg.ID, ""),
			file:     pdf,
			wantCode: http.StatusBadRequest,
		},
		{
			name:        "before start",
			now:         windowStart.Add(-time.Minute),
			token:       stdToken,
			fields:      ok,
			file:        pdf,
			wantCode:    http.StatusBadRequest,
			wantErrCode: "ASSIGNMENT_UPCOMING",
		},
		{
			name:        "after due date",
			now:         windowDue.Add(time.Minute),
			token:       stdToken,
			fields:      ok,
			file:        pdf,
			wantCode:    http.StatusBadRequest,
			wantErrCode: "ASSIGNMENT_EXPIRED",
		},
		{
			name:        "suspended",
			token:       stdToken,
			fields:      submissionFields(std.StudentNumber, crs.ID, suspended.ID, ""),
			file:        pdf,
			wantCode:    http.StatusBadRequest,
			wantErrCode: "ASSIGNMENT_SUSPENDED",
		},
		{
			name:        "wrong type",
			token:       stdToken,
			fields:      ok,
			file:        &multipartFile{name: "odev.docx", contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", content: []byte("doc")},
			wantCode:    http.StatusBadRequest,
			wantErrCode: string(upload.CodeWrongType),
		},
		{
			name:        "too large",
			token:       stdToken,
			fields:      ok,
			file:        pdfFile("big.pdf", maxBytes+1),
			wantCode:    http.StatusBadRequest,
			wantErrCode: string(upload.CodeTooLarge),
		},
		{
			name:     "not enrolled",
			token:    outsiderToken,
			fields:   submissionFields(outsider.StudentNumber, crs.ID, asg.ID, ""),
			file:     pdf,
			wantCode: http.StatusForbidden,
		},
		{name: "accepted", token: stdToken, fields: ok, file: pdf, wantCode: http.StatusCreated},
		{name: "exactly at the size limit", token: stdToken, fields: ok, file: pdfFile("max.pdf", maxBytes), wantCode: http.StatusCreated},
		{name: "at the start instant", now: windowStart, token: stdToken, fields: ok, file: pdf, wantCode: http.StatusCreated},
		{name: "at the due instant", now: windowDue, token: stdToken, fields: ok, file: pdf, wantCode: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			if now.IsZero() {
				now = windowMid
			}
			homework.NowFunc = func() time.Time { return now }

			req, rec := newMultipartRequest(t, "/api/homeworks", tt.token, tt.fields, tt.file)
			env.app.ServeHTTP(rec, req)

			if !assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String()) {
				return
			}
			if tt.wantErrCode != "" {
				var body httpErr
				unmarshall(t, rec, &body)
				assert.Equal(t, tt.wantErrCode, body.Code)
				assert.NotEmpty(t, body.Error)
			}
			if tt.wantCode == http.StatusCreated {
				var sub homework.Submission
				unmarshall(t, rec, &sub)
				assert.Equal(t, asg.ID, sub.AssignmentID)
				assert.Equal(t, std.StudentNumber, sub.StudentNumber)
				assert.Equal(t, crs.Code, sub.CourseCode)
				assert.True(t, strings.HasPrefix(sub.FileURL, env.conf.Upload.BaseURL+"/pdf/"), sub.FileURL)
				assert.True(t, sub.UploadDate.Equal(now))
			}
		})
	}

	// every accepted upload replaced the previous one
	assert.Len(t, env.files.Keys(), 1)
}

func TestSubmitHomeworkOverwrite(t *testing.T) {
	env := setup(t)
	defer mockHomeworkNow(windowMid)()

	crs := env.createCourse(t, "MEK201")
	std := env.createStudent(t, "20220001", "secret1", crs.ID)
	asg := env.createAssignment(t, crs.ID, "Gears", windowStart, windowDue, true)
	token := env.studentToken(t, std)

	submit := func(notes string, file *multipartFile) homework.Submission {
		req, rec := newMultipartRequest(t, "/api/homeworks", token, submissionFields(std.StudentNumber, crs.ID, asg.ID, notes), file)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit() code = %d; body %s", rec.Code, rec.Body.String())
		}
		var sub homework.Submission
		unmarshall(t, rec, &sub)
		return sub
	}

	first := submit("first try", pdfFile("v1.pdf", 100))
	homework.NowFunc = func() time.Time { return windowMid.Add(time.Hour) }
	second := submit("second try", pdfFile("v2.pdf", 200))

	assert.NotEqual(t, first.FileURL, second.FileURL)

	req, rec := newAuthRequest(http.MethodGet, "/api/homeworks/my-homeworks/"+std.StudentNumber, token)
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var subs []homework.Submission
	unmarshall(t, rec, &subs)
	if assert.Len(t, subs, 1) {
		assert.Equal(t, "second try", subs[0].Notes)
		assert.Equal(t, second.FileURL, subs[0].FileURL)
		assert.True(t, subs[0].UploadDate.Equal(windowMid.Add(time.Hour)))
	}

	// the old file is gone, the new one is served
	keys := env.files.Keys()
	if assert.Len(t, keys, 1) {
		assert.True(t, strings.HasSuffix(second.FileURL, keys[0]))
	}
	req, rec = newRequest(http.MethodGet, strings.TrimPrefix(first.FileURL, "http://localhost:8000"))
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, rec = newRequest(http.MethodGet, strings.TrimPrefix(second.FileURL, "http://localhost:8000"))
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	body, _ := io.ReadAll(rec.Body)
	assert.Len(t, body, 200)

	sent := env.mail.SentMessages()
	if assert.Len(t, sent, 2) {
		assert.Equal(t, "Homework received: Gears", sent[1].Subject)
		assert.Equal(t, std.Email, sent[1].To[0].Address)
	}
}

func TestMySubmissionsAccess(t *testing.T) {
	env := setup(t)
	crs := env.createCourse(t, "MEK301")
	std := env.createStudent(t, "20230001", "secret1", crs.ID)
	other := env.createStudent(t, "20230002", "secret2", crs.ID)
	admin := env.createAdmin(t, "admin", "Passw0rd!", true)

	path := "/api/homeworks/my-homeworks/" + std.StudentNumber
	tests := []httpTest{
		{name: "anonymous", path: path, wantCode: http.StatusUnauthorized},
		{name: "other student", path: path, token: env.studentToken(t, other), wantCode: http.StatusForbidden},
		{name: "self", path: path, token: env.studentToken(t, std), wantData: []byte(`[]`)},
		{name: "admin", path: path, token: env.adminToken(t, admin), wantData: []byte(`[]`)},
	}
	runHTTPTests(t, env.app, tests)
}

func TestAssignmentQueries(t *testing.T) {
	env := setup(t)
	defer mockHomeworkNow(windowMid)()

	crs1 := env.createCourse(t, "MEK401")
	crs2 := env.createCourse(t, "MEK402")
	std := env.createStudent(t, "20240001", "secret1", crs1.ID)
	admin := env.createAdmin(t, "admin", "Passw0rd!", true)

	active1 := env.createAssignment(t, crs1.ID, "A1", windowStart, windowDue, true)
	active2 := env.createAssignment(t, crs1.ID, "A2", windowStart, windowDue.Add(24*time.Hour), true)
	env.createAssignment(t, crs1.ID, "upcoming", windowDue, windowDue.Add(time.Hour), true)
	env.createAssignment(t, crs1.ID, "suspended", windowStart, windowDue, false)
	env.createAssignment(t, crs2.ID, "B1", windowStart, windowDue, true)

	t.Run("eligible requires course", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/homework-assignments/eligible")
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("eligible lists ACTIVE assignments latest due first", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/api/homework-assignments/eligible?course_id=%d", crs1.ID), env.studentToken(t, std))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var as []homework.Assignment
		unmarshall(t, rec, &as)
		if assert.Len(t, as, 2) {
			assert.Equal(t, active2.ID, as[0].ID)
			assert.Equal(t, active1.ID, as[1].ID)
		}
	})

	t.Run("eligible for a course the student is not enrolled in", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/api/homework-assignments/eligible?course_id=%d", crs2.ID), env.studentToken(t, std))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("active counts", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, fmt.Sprintf("/api/homework-assignments/active-counts?course_id=%d&course_id=%d", crs1.ID, crs2.ID))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"%d":2,"%d":1}`, crs1.ID, crs2.ID), rec.Body.String())
	})

	t.Run("student overview is limited to enrolled courses", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/homework-assignments", env.studentToken(t, std))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var as []homework.AssignmentWithStatus
		unmarshall(t, rec, &as)
		assert.Len(t, as, 4)
		statuses := map[string]homework.Status{}
		for _, a := range as {
			assert.Equal(t, crs1.ID, a.CourseID)
			statuses[a.Title] = a.Status
		}
		assert.Equal(t, map[string]homework.Status{
			"A1":        homework.StatusActive,
			"A2":        homework.StatusActive,
			"upcoming":  homework.StatusUpcoming,
			"suspended": homework.StatusSuspended,
		}, statuses)
	})

	t.Run("admin overview sees every course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/homework-assignments", env.adminToken(t, admin))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var as []homework.AssignmentWithStatus
		unmarshall(t, rec, &as)
		assert.Len(t, as, 5)
	})

	t.Run("expired once the due date passes", func(t *testing.T) {
		homework.NowFunc = func() time.Time { return windowDue.Add(25 * time.Hour) }
		defer func() { homework.NowFunc = func() time.Time { return windowMid } }()

		req, rec := newRequest(http.MethodGet, fmt.Sprintf("/api/homework-assignments/%d", active1.ID))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var a homework.AssignmentWithStatus
		unmarshall(t, rec, &a)
		assert.Equal(t, homework.StatusExpired, a.Status)
	})
}

func TestAssignmentAdminRoutes(t *testing.T) {
	env := setup(t)
	defer mockHomeworkNow(windowMid)()

	crs := env.createCourse(t, "MEK501")
	std := env.createStudent(t, "20250001", "secret1", crs.ID)
	admin := env.createAdmin(t, "admin", "Passw0rd!", true)
	adminToken := env.adminToken(t, admin)

	body := []byte(fmt.Sprintf(`{"course_id":%d,"title":"Project","start_date":"2025-01-01T00:00:00Z","due_date":"2025-01-08T00:00:00Z"}`, crs.ID))
	reversed := []byte(fmt.Sprintf(`{"course_id":%d,"title":"Project","start_date":"2025-01-08T00:00:00Z","due_date":"2025-01-01T00:00:00Z"}`, crs.ID))

	tests := []httpTest{
		{name: "anonymous", method: http.MethodPost, path: "/api/homework-assignments", body: body, wantCode: http.StatusUnauthorized},
		{name: "student", method: http.MethodPost, path: "/api/homework-assignments", body: body, token: env.studentToken(t, std), wantCode: http.StatusForbidden},
		{name: "due before start", method: http.MethodPost, path: "/api/homework-assignments", body: reversed, token: adminToken, wantCode: http.StatusBadRequest},
		{name: "admin", method: http.MethodPost, path: "/api/homework-assignments", body: body, token: adminToken, wantCode: http.StatusCreated},
		{name: "student cannot list submissions", path: "/api/homeworks", token: env.studentToken(t, std), wantCode: http.StatusForbidden},
		{name: "admin lists submissions", path: "/api/homeworks", token: adminToken, wantData: []byte(`[]`)},
		{name: "unknown submission", path: "/api/homeworks/42", token: adminToken, wantCode: http.StatusNotFound},
		{name: "unknown assignment", method: http.MethodDelete, path: "/api/homework-assignments/42", token: adminToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, env.app, tests)
}

func TestUploadPolicy(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/api/upload-policy")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var policies upload.Policies
	unmarshall(t, rec, &policies)
	assert.Equal(t, int64(3<<20), policies.Homework.MaxBytes)
	assert.Equal(t, []string{"application/pdf"}, policies.Homework.AllowedTypes)
}
