package echoapi

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/user"
)

// Token types
const (
	TypeAdmin   = "admin"
	TypeStudent = "student"
)

var (
	NowFunc = time.Now // mockable

	contextTokenKey = "userToken"
	tokenAudience   = "Academic"
)

// Claims represents the authorization claims transmitted via a JWT.
// Subject is the user ID for admins and the student number for students.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Type         string `json:"type"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	FullName     string `json:"full_name,omitempty"`
}

func (c Claims) IsAdmin() bool   { return c.Type == TypeAdmin }
func (c Claims) IsStudent() bool { return c.Type == TypeStudent }

// person identifies the caller in error reports.
func (c Claims) person() core.Person {
	return core.Person{ID: c.Type + ":" + c.Subject, Username: c.Username, Email: c.Email}
}

type authenticator struct {
	jwtConfig      middleware.JWTConfig
	issuer         string
	expiration     time.Duration
	refreshTimeout time.Duration
	users          *user.Service
	students       *student.Service
}

func newAuthenticator(conf *core.Config, users *user.Service, students *student.Service) *authenticator {
	return &authenticator{
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
		issuer:         conf.AppName,
		expiration:     conf.Server.JWTExpirationDelta,
		refreshTimeout: conf.Server.JWTRefreshExpirationDelta,
		users:          users,
		students:       students,
	}
}

func (a *authenticator) claims(typ, subject string, origIat ...int64) *Claims {
	now := NowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Type:         typ,
	}
}

func (a *authenticator) AdminClaims(usr user.User, origIat ...int64) *Claims {
	c := a.claims(TypeAdmin, strconv.Itoa(usr.ID), origIat...)
	c.Username = usr.Username
	c.Email = usr.Email
	c.FullName = usr.Name
	return c
}

func (a *authenticator) StudentClaims(std student.Student, origIat ...int64) *Claims {
	c := a.claims(TypeStudent, std.StudentNumber, origIat...)
	c.Username = std.StudentNumber
	c.Email = std.Email
	c.FullName = std.FullName
	return c
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (a *authenticator) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken validates a bearer token outside of the JWT middleware.
func (a *authenticator) parseToken(raw string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(raw, new(Claims), func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != a.jwtConfig.SigningMethod {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return a.jwtConfig.SigningKey, nil
	})
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	const scheme = "Bearer "
	if len(auth) > len(scheme) && strings.EqualFold(auth[:len(scheme)], scheme) {
		return auth[len(scheme):]
	}
	return ""
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func (a *authenticator) contextUser(ctx echo.Context) (user.User, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	if !claims.IsAdmin() {
		return user.User{}, errHttpForbidden
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return user.User{}, errUnauthorized
	}
	usr, err := a.users.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

func (a *authenticator) contextStudent(ctx echo.Context) (student.Student, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return student.Student{}, err
	}
	if !claims.IsStudent() {
		return student.Student{}, errHttpForbidden
	}
	std, err := a.students.GetByNumber(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return student.Student{}, errUnauthorized
		}
		return student.Student{}, errors.Wrap(err, "finding student by number")
	}
	return std, nil
}

// refreshToken issues a new token for the context claims as long as the account is still active and
// the first token of the session is younger than the refresh timeout.
func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshTimeout)
	if NowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	var newClaims *Claims
	switch claims.Type {
	case TypeAdmin:
		usr, err := a.contextUser(ctx)
		if err != nil {
			return "", err
		}
		if !usr.IsActive || !usr.IsAdmin {
			return "", errAccountDeactivated
		}
		newClaims = a.AdminClaims(usr, claims.OrigIssuedAt)
	case TypeStudent:
		std, err := a.contextStudent(ctx)
		if err != nil {
			return "", err
		}
		if !std.IsActive {
			return "", errAccountDeactivated
		}
		newClaims = a.StudentClaims(std, claims.OrigIssuedAt)
	default:
		return "", errUnauthorized
	}
	return a.GenerateToken(newClaims)
}

// requestContext is a shorthand for the request context.
func requestContext(ctx echo.Context) context.Context {
	return ctx.Request().Context()
}
