package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ibca/academic/core/student"
)

func TestAdminLogin(t *testing.T) {
	env := setup(t)
	env.createAdmin(t, "admin", "Passw0rd!", true)
	env.createAdmin(t, "retired", "Passw0rd!", false)

	authFailed := marshallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{name: "empty body", method: http.MethodPost, path: "/api/auth/login", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     []byte(`{"username":"admin","password":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: authFailed,
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     []byte(`{"username":"ghost","password":"Passw0rd!"}`),
			wantCode: http.StatusBadRequest,
			wantData: authFailed,
		},
		{
			name:     "deactivated",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     []byte(`{"username":"retired","password":"Passw0rd!"}`),
			wantCode: http.StatusForbidden,
		},
	}
	runHTTPTests(t, env.app, tests)

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/auth/login", []byte(`{"username":"admin","password":"Passw0rd!"}`))
		env.app.ServeHTTP(rec, req)
		if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			return
		}

		var resp struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			User        struct {
				Username string `json:"username"`
			} `json:"user"`
		}
		unmarshall(t, rec, &resp)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.Equal(t, "admin", resp.User.Username)

		req, rec = newAuthRequest(http.MethodGet, "/api/auth/me", resp.AccessToken)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStudentLogin(t *testing.T) {
	env := setup(t)
	crs := env.createCourse(t, "MEK101")
	std := env.createStudent(t, "20210001", "secret1", crs.ID)

	tests := []httpTest{
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/students/login",
			body:     []byte(`{"student_number":"20210001","password":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{name: "missing password", method: http.MethodPost, path: "/api/students/login", body: []byte(`{"student_number":"20210001"}`), wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, env.app, tests)

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/students/login", []byte(`{"student_number":"20210001","password":"secret1"}`))
		env.app.ServeHTTP(rec, req)
		if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			return
		}

		var resp StudentLoginResponse
		unmarshall(t, rec, &resp)
		assert.Equal(t, std.StudentNumber, resp.Student.StudentNumber)
		assert.Equal(t, []int{crs.ID}, resp.Student.EnrolledCourses)

		req, rec = newAuthRequest(http.MethodGet, "/api/students/me", resp.AccessToken)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		// a student token is not an admin token
		req, rec = newAuthRequest(http.MethodGet, "/api/auth/me", resp.AccessToken)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestTokenChecks(t *testing.T) {
	env := setup(t)
	admin := env.createAdmin(t, "admin", "Passw0rd!", true)
	std := env.createStudent(t, "20210001", "secret1")

	tests := []httpTest{
		{name: "missing token", path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "garbage token", path: "/api/auth/me", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
		{name: "admin token on student route", path: "/api/students/me", token: env.adminToken(t, admin), wantCode: http.StatusForbidden},
		{name: "student token on admin route", path: "/api/users", token: env.studentToken(t, std), wantCode: http.StatusForbidden},
	}
	runHTTPTests(t, env.app, tests)

	t.Run("deleted student", func(t *testing.T) {
		gone := env.createStudent(t, "20210099", "secret1")
		token := env.studentToken(t, gone)
		if err := env.students.Delete(context.Background(), gone.ID); err != nil {
			t.Fatalf("Delete(): %v", err)
		}

		req, rec := newAuthRequest(http.MethodGet, "/api/students/me", token)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRefreshToken(t *testing.T) {
	env := setup(t)
	admin := env.createAdmin(t, "admin", "Passw0rd!", true)
	std := env.createStudent(t, "20210001", "secret1")

	for name, token := range map[string]string{
		"admin":   env.adminToken(t, admin),
		"student": env.studentToken(t, std),
	} {
		t.Run(name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/auth/token-refresh", token)
			env.app.ServeHTTP(rec, req)
			if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
				return
			}
			var resp LoginResponse
			unmarshall(t, rec, &resp)
			assert.NotEmpty(t, resp.AccessToken)
		})
	}

	t.Run("refresh window elapsed", func(t *testing.T) {
		token := env.adminToken(t, admin)
		defer func(f func() time.Time) { NowFunc = f }(NowFunc)
		NowFunc = func() time.Time { return time.Now().Add(env.conf.Server.JWTRefreshExpirationDelta + time.Hour) }

		req, rec := newAuthRequest(http.MethodPost, "/api/auth/token-refresh", token)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestStudentRegistration(t *testing.T) {
	env := setup(t)
	crs := env.createCourse(t, "MEK101")
	admin := env.createAdmin(t, "admin", "Passw0rd!", true)
	adminToken := env.adminToken(t, admin)

	selfReg := marshallObj(t, student.SelfRegistration{
		StudentNumber:   "20240042",
		FullName:        "Ayşe Yılmaz",
		Password:        "secret1",
		PasswordConfirm: "secret1",
		CourseIDs:       []int{crs.ID},
	})

	t.Run("self register", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/students/self-register", selfReg)
		env.app.ServeHTTP(rec, req)
		if !assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
			return
		}
		var std student.Student
		unmarshall(t, rec, &std)
		assert.Equal(t, "20240042@"+env.conf.StudentEmailDomain, std.Email)
		assert.Equal(t, []int{crs.ID}, std.EnrolledCourses)
	})

	tests := []httpTest{
		{name: "duplicate", method: http.MethodPost, path: "/api/students/self-register", body: selfReg, wantCode: http.StatusBadRequest},
		{
			name:     "short password",
			method:   http.MethodPost,
			path:     "/api/students/self-register",
			body:     []byte(`{"student_number":"20240043","full_name":"X","password":"abc","password_confirm":"abc","course_ids":[1]}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no course",
			method:   http.MethodPost,
			path:     "/api/students/self-register",
			body:     []byte(`{"student_number":"20240044","full_name":"X","password":"secret1","password_confirm":"secret1","course_ids":[]}`),
			wantCode: http.StatusBadRequest,
		},
		{name: "list needs admin", path: "/api/students", wantCode: http.StatusUnauthorized},
		{name: "unknown student", path: "/api/students/999", token: adminToken, wantCode: http.StatusNotFound},
		{name: "malformed id", path: "/api/students/abc", token: adminToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, env.app, tests)

	t.Run("bulk create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/students/bulk-create", adminToken,
			[]byte(`{"count":3,"password_prefix":"pw","semester":"Bahar","academic_year":"2024-2025"}`))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/api/students", adminToken)
		env.app.ServeHTTP(rec, req)
		var students []student.Student
		unmarshall(t, rec, &students)
		assert.Len(t, students, 4)

		req, rec = newAuthRequest(http.MethodDelete, "/api/students/bulk-delete-by-semester?semester=Bahar&academic_year=2024-2025", adminToken)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/api/students", adminToken)
		env.app.ServeHTTP(rec, req)
		students = nil
		unmarshall(t, rec, &students)
		assert.Len(t, students, 1)
	})
}
