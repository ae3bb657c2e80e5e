package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/ibca/academic/client"
	"github.com/ibca/academic/core/homework"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/upload"
	"github.com/ibca/academic/core/user"
)

var (
	start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	due   = time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
)

type testEnv struct {
	cli         *commandLine
	out         *bytes.Buffer
	submissions int
}

func setup(t *testing.T) *testEnv {
	env := &testEnv{out: new(bytes.Buffer)}

	e := echo.New()
	api := e.Group("/api")
	api.POST("/auth/login", func(ctx echo.Context) error {
		var req user.LoginRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, echo.Map{
			"access_token": "admin-token",
			"user":         user.User{ID: 1, Username: req.Username, Name: "Ayşe Hoca", IsAdmin: true},
		})
	})
	api.POST("/students/login", func(ctx echo.Context) error {
		var req student.LoginRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if req.Password != "secret" {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "authentication failed"})
		}
		return ctx.JSON(http.StatusOK, echo.Map{
			"access_token": "student-token",
			"student":      student.Student{ID: 7, StudentNumber: req.StudentNumber, FullName: "Ali Veli", EnrolledCourses: []int{3}},
		})
	})
	api.GET("/upload-policy", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, upload.Policies{Homework: upload.DefaultHomeworkPolicy})
	})
	api.GET("/homework-assignments", func(ctx echo.Context) error {
		a := homework.Assignment{ID: 5, CourseID: 3, Title: "Gears", StartDate: start, DueDate: due, IsActive: true}
		return ctx.JSON(http.StatusOK, []homework.AssignmentWithStatus{a.WithStatus(start.Add(time.Hour))})
	})
	api.GET("/homework-assignments/eligible", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, []homework.Assignment{{ID: 6, CourseID: 3, Title: "Cams", StartDate: start, DueDate: due}})
	})
	api.GET("/homework-assignments/active-counts", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]int{"4": 1, "3": 2})
	})
	api.POST("/homeworks", func(ctx echo.Context) error {
		env.submissions++
		return ctx.JSON(http.StatusCreated, homework.Submission{ID: 1, StudentNumber: ctx.FormValue("student_number"), FileURL: "http://files/pdf/x.pdf", UploadDate: start})
	})
	api.GET("/homeworks/my-homeworks/:number", func(ctx echo.Context) error {
		if ctx.Request().Header.Get(echo.HeaderAuthorization) != "Bearer student-token" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		return ctx.JSON(http.StatusOK, []homework.Submission{{ID: 1, CourseCode: "MEK101", AssignmentID: 5, FileURL: "http://files/pdf/x.pdf", UploadDate: start}})
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	env.cli = &commandLine{
		out: env.out,
		api: client.New(srv.URL+"/api", client.NewSession(client.NewMemoryStore()), srv.Client()),
	}
	return env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    []string
}

func runCLITests(t *testing.T, env *testEnv, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"portal"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			env.out.Reset()
			err := env.cli.run(args)
			switch {
			case err == nil:
				if tt.wantErr != nil || tt.wantErrStr != "" {
					t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
				}
			case tt.wantErr != nil:
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
				}
			default:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(env.out.String(), want) {
					t.Errorf("output %q does not contain %q", env.out.String(), want)
				}
			}
		})
	}
}

func mockPassword(pwd string) func() {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	return func() { readPasswordFunc = orig }
}

func writeFile(t *testing.T, name string, size int) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, bytes.Repeat([]byte("a"), size), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func Test_commandLine_usage(t *testing.T) {
	env := setup(t)
	runCLITests(t, env, []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: []string{"Usage:"}},
		{name: "unknown command", args: []string{"grades"}, wantErr: errHelp},
		{name: "login without namespace", args: []string{"login", "-id", "x"}, wantErr: errHelp},
		{name: "login with unknown namespace", args: []string{"login", "-as", "guest", "-id", "x"}, wantErr: errHelp},
		{name: "login without id", args: []string{"login", "-as", "student"}, wantErr: errHelp},
		{name: "logout without namespace", args: []string{"logout"}, wantErr: errHelp},
		{name: "eligible without course", args: []string{"assignments", "-eligible"}, wantErr: errHelp},
		{name: "submit without file", args: []string{"submit", "-course", "3", "-assignment", "5"}, wantErr: errHelp},
	})

	restore := mockPassword("")
	defer restore()
	runCLITests(t, env, []cliTest{
		{name: "empty password", args: []string{"login", "-as", "admin", "-id", "hoca"}, wantErr: errHelp},
	})
}

func Test_commandLine_sessions(t *testing.T) {
	env := setup(t)

	restore := mockPassword("secret")
	defer restore()

	runCLITests(t, env, []cliTest{
		{name: "signed out", args: []string{"whoami"}, wantOut: []string{"admin:   signed out", "student: signed out"}},
		{name: "admin login", args: []string{"login", "-as", "admin", "-id", "hoca"}, wantOut: []string{"Signed in as admin hoca"}},
		{name: "student login", args: []string{"login", "-as", "student", "-id", "2012345678"}, wantOut: []string{"Signed in as student 2012345678 (Ali Veli)"}},
		{
			name:    "both sessions",
			args:    []string{"whoami"},
			wantOut: []string{"admin:   hoca (Ayşe Hoca)", "student: 2012345678 (Ali Veli)", "requests are sent as: student"},
		},
		{name: "student logout", args: []string{"logout", "-as", "student"}, wantOut: []string{"Signed out of the student session"}},
		{name: "admin left", args: []string{"whoami"}, wantOut: []string{"student: signed out", "requests are sent as: admin"}},
	})

	restore = mockPassword("wrong")
	defer restore()
	runCLITests(t, env, []cliTest{
		{name: "bad credentials", args: []string{"login", "-as", "student", "-id", "2012345678"}, wantErrStr: "400: authentication failed"},
	})
	assert.True(t, env.cli.api.Session().LoggedIn(client.NamespaceAdmin))
}

func Test_commandLine_homework(t *testing.T) {
	env := setup(t)
	pdf := writeFile(t, "odev.pdf", 100)
	docx := writeFile(t, "odev.docx", 100)
	big := writeFile(t, "big.pdf", int(upload.DefaultHomeworkPolicy.MaxBytes)+1)

	runCLITests(t, env, []cliTest{
		{name: "submit signed out", args: []string{"submit", "-course", "3", "-assignment", "5", "-file", pdf}, wantErr: errNotStudent},
		{name: "my homeworks signed out", args: []string{"my-homeworks"}, wantErr: errNotStudent},
		{name: "assignments", args: []string{"assignments"}, wantOut: []string{"Gears", "ACTIVE"}},
		{name: "eligible", args: []string{"assignments", "-course", "3", "-eligible"}, wantOut: []string{"Cams"}},
		{name: "active counts", args: []string{"active-counts", "-course", "3", "-course", "4"}, wantOut: []string{"3       2", "4       1"}},
	})

	restore := mockPassword("secret")
	defer restore()
	if err := env.cli.run([]string{"portal", "login", "-as", "student", "-id", "2012345678"}); err != nil {
		t.Fatal(err)
	}

	runCLITests(t, env, []cliTest{
		{name: "wrong type", args: []string{"submit", "-course", "3", "-assignment", "5", "-file", docx}, wantErrStr: wrongTypeMsg(docx)},
		{name: "too large", args: []string{"submit", "-course", "3", "-assignment", "5", "-file", big}, wantErrStr: "file is 3.0 MiB; the limit is 3.0 MiB"},
		{name: "missing file", args: []string{"submit", "-course", "3", "-assignment", "5", "-file", pdf + ".gone"}, wantErrStr: "opening file: open " + pdf + ".gone: no such file or directory"},
		{name: "submitted", args: []string{"submit", "-course", "3", "-assignment", "5", "-file", pdf}, wantOut: []string{"Homework received", "http://files/pdf/x.pdf"}},
		{name: "my homeworks", args: []string{"my-homeworks"}, wantOut: []string{"MEK101"}},
	})
	assert.Equal(t, 1, env.submissions)
}

func wrongTypeMsg(path string) string {
	f, closer, err := client.FileFromPath(path)
	if err != nil {
		return err.Error()
	}
	defer closer.Close()
	return upload.Validate(f.FileInfo, upload.DefaultHomeworkPolicy).Error()
}

func Test_commandLine_expiredSession(t *testing.T) {
	env := setup(t)
	s := env.cli.api.Session()
	if err := s.SetToken(client.NamespaceAdmin, "admin-token", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetToken(client.NamespaceStudent, "expired", &client.Identity{Number: "2012345678"}); err != nil {
		t.Fatal(err)
	}

	env.out.Reset()
	err := env.cli.run([]string{"portal", "my-homeworks"})
	var unauth *client.UnauthorizedError
	if assert.True(t, errors.As(err, &unauth)) {
		assert.Equal(t, client.StudentLoginPath, unauth.Redirect)
	}
	assert.Contains(t, env.out.String(), "portal login -as student")
	assert.False(t, s.LoggedIn(client.NamespaceStudent))
	assert.True(t, s.LoggedIn(client.NamespaceAdmin))
}
