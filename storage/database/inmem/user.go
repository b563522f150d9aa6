package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.user.table))
	for _, u := range repo.db.user.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.user.table {
		if usr.Email == email && !excluded[usr.ID] {
			return user.ErrUserExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	for _, u := range repo.db.user.table {
		if u.Email == usr.Email {
			return user.User{}, user.ErrUserExists
		}
	}
	usr.ID = uuid.New().String()
	repo.db.user.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.query() {
		if matches(usr, filter) {
			users = append(users, usr)
		}
	}
	sortUsers(users, ordering)
	return users, nil
}

func matches(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return !usr.IsDeleted()
	}
	if usr.IsDeleted() && !filter.IncludeDeleted {
		return false
	}
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), s) && !strings.Contains(strings.ToLower(usr.Email), s) {
			return false
		}
	}
	if len(filter.Roles) > 0 && !contains(filter.Roles, usr.Role) {
		return false
	}
	if len(filter.Statuses) > 0 && !contains(filter.Statuses, usr.Status) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}

// sortUsers supports ordering by name, email & created_at; it defaults to the creation date.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(users[i].Name, users[j].Name)
			case "email":
				cmp = strings.Compare(users[i].Email, users[j].Email)
			case "created_at":
				switch {
				case users[i].CreatedAt.Before(users[j].CreatedAt):
					cmp = -1
				case users[i].CreatedAt.After(users[j].CreatedAt):
					cmp = 1
				}
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return false
	})
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	var found *user.User
	if filter.ID != "" {
		found = repo.db.user.table[filter.ID]
	} else if filter.Email != "" {
		for _, usr := range repo.db.user.table {
			if usr.Email == filter.Email {
				found = usr
				break
			}
		}
	}
	if found == nil || (found.IsDeleted() && !filter.IncludeDeleted) {
		return user.User{}, user.ErrNotFound
	}
	return *found, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	if _, ok := repo.db.user.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.user.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.user.Lock()
	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := repo.db.user.table[id]; ok {
			delete(repo.db.user.table, id)
			deleted[id] = true
		}
	}
	repo.db.user.Unlock()

	repo.db.deleteUserRows(deleted)
	return len(deleted), nil
}
