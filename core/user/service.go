package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = core.NewPermissionError("this account is disabled")
	ErrWrongPassword      = core.NewValidationError(nil, core.FieldError{Field: "old_password", Error: "wrong password"})
	ErrInvalidResetLink   = core.NewValidationError(nil, core.FieldError{Field: "token", Error: "invalid or expired reset link"})

	passwordResetTemplate = "password_reset"
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user than excludedID
		// holds username or email.
		CheckUniqueness(ctx context.Context, username, email string, excludedID int, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]User, error)
		GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string, exec ...core.DBExecutor) (User, error)
		SetPassword(ctx context.Context, id int, hash []byte, updatedAt time.Time, exec ...core.DBExecutor) error
		SetLastLogin(ctx context.Context, id int, lastLogin time.Time, exec ...core.DBExecutor) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.Server.PasswordResetTimeoutDelta),
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludedID int) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedID); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, 0); err != nil {
		return User{}, err
	}
	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		IsAdmin:   nu.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Authenticate checks the credentials of an admin and records the login.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive || !usr.IsAdmin {
		return User{}, ErrInactive
	}

	usr.LastLogin = NowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, usr.LastLogin); err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return ErrWrongPassword
	}
	return svc.setPassword(ctx, usr, cp.Password)
}

// SetPassword replaces the password of a user without any check. Used by the admin CLI.
func (svc *Service) SetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	return svc.setPassword(ctx, usr, pwd)
}

func (svc *Service) setPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.SetPassword(ctx, usr.ID, usr.PasswordHash, NowFunc().UTC())
}

// RequestPasswordReset mails a reset link to the user owning email. Unknown emails are not reported.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !usr.IsActive {
		return nil
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: passwordResetTemplate,
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return ErrInvalidResetLink
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return ErrInvalidResetLink
		}
		return err
	}
	if err := svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return ErrInvalidResetLink
	}
	return svc.setPassword(ctx, usr, rp.Password)
}
