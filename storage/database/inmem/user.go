package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedID int, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.ID == excludedID {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr.ID = repo.db.nextPK()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(usr.Username, search) &&
			!strings.Contains(usr.Email, search) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	start, end := filter.Window(len(users))
	return users[start:end], nil
}

func (repo *userRepository) find(match func(user.User) bool) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if match(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByID(_ context.Context, id int, _ ...core.DBExecutor) (user.User, error) {
	return repo.find(func(u user.User) bool { return u.ID == id })
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string, _ ...core.DBExecutor) (user.User, error) {
	return repo.find(func(u user.User) bool { return u.Email == email })
}

func (repo *userRepository) GetUserByUsernameOrEmail(_ context.Context, username string, _ ...core.DBExecutor) (user.User, error) {
	return repo.find(func(u user.User) bool { return u.Username == username || u.Email == username })
}

func (repo *userRepository) update(id int, fn func(*user.User)) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(&usr)
	repo.db.users[id] = usr
	return nil
}

func (repo *userRepository) SetPassword(_ context.Context, id int, hash []byte, updatedAt time.Time, _ ...core.DBExecutor) error {
	return repo.update(id, func(u *user.User) {
		u.PasswordHash = hash
		u.UpdatedAt = updatedAt
	})
}

func (repo *userRepository) SetLastLogin(_ context.Context, id int, lastLogin time.Time, _ ...core.DBExecutor) error {
	return repo.update(id, func(u *user.User) { u.LastLogin = lastLogin })
}
