package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/homework"
	"github.com/ibca/academic/core/upload"
)

type homeworkApi struct {
	svc      *homework.Service
	auth     *authenticator
	validate *validator.Validate
	policies upload.Policies
}

func registerHomeworkAPI(g *echo.Group, jwt echo.MiddlewareFunc, optAuth echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := homeworkApi{
		svc:      deps.HomeworkSvc,
		auth:     auth,
		validate: deps.Validate,
		policies: deps.Policies,
	}
	admin := adminMiddleware()

	g.GET("/upload-policy", api.uploadPolicy)

	ag := g.Group("/homework-assignments")
	ag.GET("", api.queryAssignments, optAuth)
	ag.GET("/eligible", api.eligibleAssignments, optAuth)
	ag.GET("/active-counts", api.activeCounts)
	ag.GET("/:id", api.retrieveAssignment)
	ag.POST("", api.createAssignment, jwt, admin)
	ag.PUT("/:id", api.updateAssignment, jwt, admin)
	ag.DELETE("/:id", api.destroyAssignment, jwt, admin)

	hg := g.Group("/homeworks", jwt)
	hg.POST("", api.submit, studentMiddleware())
	hg.GET("/my-homeworks/:student_number", api.mySubmissions, studentSelfOrAdminMiddleware())
	hg.GET("", api.querySubmissions, admin)
	hg.GET("/:id", api.retrieveSubmission, admin)
	hg.DELETE("/:id", api.destroySubmission, admin)
}

// Handlers

func (api *homeworkApi) uploadPolicy(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.policies)
}

// queryAssignments lists assignments with their current status. A signed in student only sees the
// courses they are enrolled in when enrollment is restricted.
func (api *homeworkApi) queryAssignments(ctx echo.Context) error {
	var filter homework.AssignmentFilter
	var err error
	if filter.CourseID, err = queryInt(ctx, "course_id"); err != nil {
		return err
	}
	if filter.IsActive, err = queryBool(ctx, "is_active"); err != nil {
		return err
	}

	if claims, cErr := getContextClaims(ctx); cErr == nil && claims.IsStudent() && api.svc.RestrictsEnrollment() {
		std, err := api.auth.contextStudent(ctx)
		if err != nil {
			return err
		}
		filter.CourseIDs = append([]int{}, std.EnrolledCourses...)
	}

	as, err := api.svc.Overview(requestContext(ctx), filter, homework.NowFunc())
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, as)
}

func (api *homeworkApi) eligibleAssignments(ctx echo.Context) error {
	courseID, err := queryInt(ctx, "course_id")
	if err != nil {
		return err
	}
	if courseID <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "this field is required"})
	}

	now := homework.NowFunc()
	var as []homework.Assignment
	if claims, cErr := getContextClaims(ctx); cErr == nil && claims.IsStudent() {
		as, err = api.svc.ListEligibleFor(requestContext(ctx), claims.Subject, courseID, now)
	} else {
		as, err = api.svc.ListEligible(requestContext(ctx), courseID, now)
	}
	if err != nil {
		return errors.Wrap(err, "listing eligible assignments")
	}
	if as == nil {
		as = []homework.Assignment{}
	}
	return ctx.JSON(http.StatusOK, as)
}

// activeCounts maps course ids to their number of ACTIVE assignments, e.g. {"3": 2}.
func (api *homeworkApi) activeCounts(ctx echo.Context) error {
	var ids []int
	for _, raw := range ctx.QueryParams()["course_id"] {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "must be an integer"})
		}
		ids = append(ids, id)
	}

	counts, err := api.svc.ActiveCounts(requestContext(ctx), ids, homework.NowFunc())
	if err != nil {
		return errors.Wrap(err, "counting active assignments")
	}
	return ctx.JSON(http.StatusOK, counts)
}

func (api *homeworkApi) retrieveAssignment(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.GetAssignment(requestContext(ctx), id)
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, a.WithStatus(homework.NowFunc()))
}

func (api *homeworkApi) createAssignment(ctx echo.Context) error {
	var data homework.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.CreateAssignment(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a.WithStatus(homework.NowFunc()))
}

func (api *homeworkApi) updateAssignment(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data homework.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.UpdateAssignment(requestContext(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a.WithStatus(homework.NowFunc()))
}

func (api *homeworkApi) destroyAssignment(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAssignment(requestContext(ctx), id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// submit accepts a homework upload (multipart form) from the signed in student.
func (api *homeworkApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data homework.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if data.StudentNumber != claims.Subject {
		return errHttpForbidden
	}

	file, closer, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()
	data.File = file

	sub, err := api.svc.AcceptSubmission(requestContext(ctx), data, homework.NowFunc())
	if err != nil {
		return errors.Wrap(err, "accepting submission")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *homeworkApi) mySubmissions(ctx echo.Context) error {
	subs, err := api.svc.MySubmissions(requestContext(ctx), ctx.Param("student_number"))
	if err != nil {
		return errors.Wrap(err, "querying student submissions")
	}
	if subs == nil {
		subs = []homework.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *homeworkApi) querySubmissions(ctx echo.Context) error {
	var filter homework.SubmissionFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to SubmissionFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Orderings = ordering.Orderings
	filter.Clamp(1000)

	subs, err := api.svc.QuerySubmissions(requestContext(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []homework.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *homeworkApi) retrieveSubmission(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetSubmission(requestContext(ctx), id)
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *homeworkApi) destroySubmission(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSubmission(requestContext(ctx), id); err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	return ctx.NoContent(http.StatusNoContent)
}
