package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/user"
)

const userColumns = "id, username, email, full_name, password_hash, is_active, is_admin, created_at, updated_at, last_login"

type userRow struct {
	ID           int         `db:"id"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	FullName     null.String `db:"full_name"`
	PasswordHash []byte      `db:"password_hash"`
	IsActive     bool        `db:"is_active"`
	IsAdmin      bool        `db:"is_admin"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.FullName.String,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		IsAdmin:      r.IsAdmin,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedID int, exec ...core.DBExecutor) error {
	var taken struct {
		Username bool `db:"username"`
		Email    bool `db:"email"`
	}
	e := repo.getExec(exec)
	q := e.Rebind(`SELECT COALESCE(bool_or(username = ?), false) AS username, COALESCE(bool_or(email = ?), false) AS email
		FROM users WHERE (username = ? OR email = ?) AND id <> ?`)
	if err := e.GetContext(ctx, &taken, q, username, email, username, email, excludedID); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	switch {
	case taken.Username:
		return user.ErrUsernameExists
	case taken.Email:
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`INSERT INTO users (username, email, full_name, password_hash, is_active, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := e.QueryRowxContext(ctx, q,
		usr.Username, usr.Email, null.NewString(usr.Name, usr.Name != ""), usr.PasswordHash,
		usr.IsActive, usr.IsAdmin, usr.CreatedAt, usr.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, exec ...core.DBExecutor) ([]user.User, error) {
	var w where
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		w.add("(full_name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + userColumns + " FROM users" + w.String() + " ORDER BY id" + paginate(filter.Pagination))
	var rows []userRow
	if err := e.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) getOne(ctx context.Context, exec []core.DBExecutor, cond string, args ...interface{}) (user.User, error) {
	e := repo.getExec(exec)
	var r userRow
	if err := e.GetContext(ctx, &r, e.Rebind("SELECT "+userColumns+" FROM users WHERE "+cond+" LIMIT 1"), args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return r.user(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (user.User, error) {
	return repo.getOne(ctx, exec, "id = ?", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getOne(ctx, exec, "email = ?", email)
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getOne(ctx, exec, "(username = ? OR email = ?)", username, username)
}

func (repo userRepository) SetPassword(ctx context.Context, id int, hash []byte, updatedAt time.Time, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?"), hash, updatedAt, id)
	if err != nil {
		return errors.Wrap(err, "updating user password")
	}
	return checkAffected(res, user.ErrNotFound, "updating user password")
}

func (repo userRepository) SetLastLogin(ctx context.Context, id int, lastLogin time.Time, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	if _, err := e.ExecContext(ctx, e.Rebind("UPDATE users SET last_login = ? WHERE id = ?"), lastLogin, id); err != nil {
		return errors.Wrap(err, "updating user last login")
	}
	return nil
}
