package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core/student"
)

type studentApi struct {
	svc      *student.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := studentApi{
		svc:      deps.StudentSvc,
		auth:     auth,
		validate: deps.Validate,
	}

	sg := g.Group("/students")

	// un-authed endpoints
	sg.POST("/self-register", api.selfRegister)
	sg.POST("/login", api.login)

	// student endpoints
	sg.GET("/me", api.me, jwt, studentMiddleware())

	// admin endpoints
	admin := adminMiddleware()
	sg.GET("", api.query, jwt, admin)
	sg.POST("/register", api.register, jwt, admin)
	sg.POST("/bulk-create", api.bulkCreate, jwt, admin)
	sg.DELETE("/bulk-delete-by-semester", api.deleteBySemester, jwt, admin)
	sg.GET("/:id", api.retrieve, jwt, admin)
	sg.PUT("/:id/courses", api.setEnrollment, jwt, admin)
	sg.DELETE("/:id", api.destroy, jwt, admin)
}

// Handlers

func (api *studentApi) selfRegister(ctx echo.Context) error {
	var data student.SelfRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelfRegistration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.SelfRegister(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) login(ctx echo.Context) error {
	var data student.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.Authenticate(requestContext(ctx), data.StudentNumber, data.Password)
	if err != nil {
		if errors.Cause(err) == student.ErrInvalidCredentials {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "authenticating student")
	}
	token, err := api.auth.GenerateToken(api.auth.StudentClaims(std))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, StudentLoginResponse{AccessToken: token, TokenType: tokenType, Student: std})
}

func (api *studentApi) me(ctx echo.Context) error {
	std, err := api.auth.contextStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) register(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.Register(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) bulkCreate(ctx echo.Context) error {
	var data student.BulkCreate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkCreate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.BulkCreate(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "bulk creating students")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *studentApi) query(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clamp(1000)

	students, err := api.svc.Query(requestContext(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	std, err := api.svc.GetByID(requestContext(ctx), id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) setEnrollment(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data student.Enrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrollment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.SetEnrollment(requestContext(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "setting enrollment")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(requestContext(ctx), id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) deleteBySemester(ctx echo.Context) error {
	res, err := api.svc.DeleteBySemester(requestContext(ctx), ctx.QueryParam("semester"), ctx.QueryParam("academic_year"))
	if err != nil {
		return errors.Wrap(err, "deleting students by semester")
	}
	return ctx.JSON(http.StatusOK, res)
}

type StudentLoginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	Student     student.Student `json:"student"`
}
