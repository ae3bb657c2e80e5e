package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/ibca/academic/core/course"
	"github.com/ibca/academic/core/homework"
	"github.com/ibca/academic/core/site"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/upload"
	"github.com/ibca/academic/core/user"
)

type (
	adminLoginResponse struct {
		AccessToken string    `json:"access_token"`
		User        user.User `json:"user"`
	}

	studentLoginResponse struct {
		AccessToken string          `json:"access_token"`
		Student     student.Student `json:"student"`
	}
)

func adminIdentity(usr user.User) *Identity {
	role := "staff"
	perms := []string{}
	if usr.IsAdmin {
		role = "admin"
		perms = append(perms, "manage")
	}
	return &Identity{Role: role, ID: usr.ID, Username: usr.Username, Name: usr.Name, Email: usr.Email, Permissions: perms}
}

func studentIdentity(std student.Student) *Identity {
	return &Identity{
		Role:        "student",
		ID:          std.ID,
		Number:      std.StudentNumber,
		Name:        std.FullName,
		Email:       std.Email,
		Permissions: []string{"submit_homework"},
		CourseIDs:   std.EnrolledCourses,
	}
}

// AdminLogin signs in to the admin namespace. The student namespace is left untouched.
func (c *Client) AdminLogin(ctx context.Context, username, password string) (user.User, error) {
	var resp adminLoginResponse
	body := user.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, request{method: rest.Post, path: "/auth/login", body: body}, &resp); err != nil {
		return user.User{}, err
	}
	if err := c.session.SetToken(NamespaceAdmin, resp.AccessToken, adminIdentity(resp.User)); err != nil {
		return user.User{}, err
	}
	return resp.User, nil
}

// StudentLogin signs in to the student namespace. The admin namespace is left untouched.
func (c *Client) StudentLogin(ctx context.Context, studentNumber, password string) (student.Student, error) {
	var resp studentLoginResponse
	body := student.LoginRequest{StudentNumber: studentNumber, Password: password}
	if err := c.do(ctx, request{method: rest.Post, path: "/students/login", body: body}, &resp); err != nil {
		return student.Student{}, err
	}
	if err := c.session.SetToken(NamespaceStudent, resp.AccessToken, studentIdentity(resp.Student)); err != nil {
		return student.Student{}, err
	}
	return resp.Student, nil
}

// Logout clears one namespace. Tokens are stateless so the API is not called.
func (c *Client) Logout(ns Namespace) error {
	return c.session.ClearToken(ns)
}

func (c *Client) Me(ctx context.Context) (user.User, error) {
	var usr user.User
	err := c.do(ctx, request{method: rest.Get, path: "/auth/me"}, &usr)
	return usr, err
}

func (c *Client) StudentMe(ctx context.Context) (student.Student, error) {
	var std student.Student
	err := c.do(ctx, request{method: rest.Get, path: "/students/me"}, &std)
	return std, err
}

func (c *Client) UploadPolicy(ctx context.Context) (upload.Policies, error) {
	var p upload.Policies
	err := c.do(ctx, request{method: rest.Get, path: "/upload-policy"}, &p)
	return p, err
}

func (c *Client) Courses(ctx context.Context) ([]course.Course, error) {
	var cs []course.Course
	err := c.do(ctx, request{method: rest.Get, path: "/courses"}, &cs)
	return cs, err
}

func (c *Client) Announcements(ctx context.Context) ([]site.Announcement, error) {
	var as []site.Announcement
	err := c.do(ctx, request{method: rest.Get, path: "/announcements"}, &as)
	return as, err
}

// Assignments lists assignments with their status, optionally of a single course (courseID > 0).
func (c *Client) Assignments(ctx context.Context, courseID int) ([]homework.AssignmentWithStatus, error) {
	q := url.Values{}
	if courseID > 0 {
		q.Set("course_id", strconv.Itoa(courseID))
	}
	var as []homework.AssignmentWithStatus
	err := c.do(ctx, request{method: rest.Get, path: "/homework-assignments", query: q}, &as)
	return as, err
}

// EligibleAssignments lists the assignments of courseID currently accepting submissions, latest due date first.
func (c *Client) EligibleAssignments(ctx context.Context, courseID int) ([]homework.Assignment, error) {
	q := url.Values{"course_id": {strconv.Itoa(courseID)}}
	var as []homework.Assignment
	err := c.do(ctx, request{method: rest.Get, path: "/homework-assignments/eligible", query: q}, &as)
	return as, err
}

// ActiveCounts maps course ids to their number of ACTIVE assignments. No ids means every course.
func (c *Client) ActiveCounts(ctx context.Context, courseIDs ...int) (map[int]int, error) {
	q := url.Values{}
	for _, id := range courseIDs {
		q.Add("course_id", strconv.Itoa(id))
	}
	var raw map[string]int
	if err := c.do(ctx, request{method: rest.Get, path: "/homework-assignments/active-counts", query: q}, &raw); err != nil {
		return nil, err
	}
	counts := make(map[int]int, len(raw))
	for k, n := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing course id %q", k)
		}
		counts[id] = n
	}
	return counts, nil
}

// MyHomeworks lists the submissions of studentNumber.
func (c *Client) MyHomeworks(ctx context.Context, studentNumber string) ([]homework.Submission, error) {
	var subs []homework.Submission
	path := "/homeworks/my-homeworks/" + url.PathEscape(studentNumber)
	err := c.do(ctx, request{method: rest.Get, path: path}, &subs)
	return subs, err
}

func (c *Client) DeleteHomework(ctx context.Context, id int) error {
	return c.do(ctx, request{method: rest.Delete, path: "/homeworks/" + strconv.Itoa(id)}, nil)
}
