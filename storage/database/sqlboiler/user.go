package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/user"
)

const userColumns = `id, name, email, role, status, password_hash, first_name, last_name, phone, age,
	street_address, city, state, zip_code, highest_education, created_at, updated_at, last_login, deleted_at`

// orderable user columns
var userOrderings = map[string]bool{"name": true, "email": true, "role": true, "status": true, "created_at": true}

type userRow struct {
	ID               string    `boil:"id"`
	Name             string    `boil:"name"`
	Email            string    `boil:"email"`
	Role             string    `boil:"role"`
	Status           string    `boil:"status"`
	PasswordHash     []byte    `boil:"password_hash"`
	FirstName        string    `boil:"first_name"`
	LastName         string    `boil:"last_name"`
	Phone            string    `boil:"phone"`
	Age              int       `boil:"age"`
	StreetAddress    string    `boil:"street_address"`
	City             string    `boil:"city"`
	State            string    `boil:"state"`
	ZipCode          string    `boil:"zip_code"`
	HighestEducation string    `boil:"highest_education"`
	CreatedAt        time.Time `boil:"created_at"`
	UpdatedAt        time.Time `boil:"updated_at"`
	LastLogin        null.Time `boil:"last_login"`
	DeletedAt        null.Time `boil:"deleted_at"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:               usr.ID,
		Name:             usr.Name,
		Email:            usr.Email,
		Role:             usr.Role,
		Status:           usr.Status,
		PasswordHash:     usr.PasswordHash,
		FirstName:        usr.Profile.FirstName,
		LastName:         usr.Profile.LastName,
		Phone:            usr.Profile.Phone,
		Age:              usr.Profile.Age,
		StreetAddress:    usr.Profile.StreetAddress,
		City:             usr.Profile.City,
		State:            usr.Profile.State,
		ZipCode:          usr.Profile.ZipCode,
		HighestEducation: usr.Profile.HighestEducation,
		CreatedAt:        usr.CreatedAt.UTC(),
		UpdatedAt:        usr.UpdatedAt.UTC(),
		LastLogin:        null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
		DeletedAt:        null.TimeFromPtr(usr.DeletedAt),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Role:         row.Role,
		Status:       row.Status,
		PasswordHash: row.PasswordHash,
		Profile: user.Profile{
			FirstName:        row.FirstName,
			LastName:         row.LastName,
			Phone:            row.Phone,
			Age:              row.Age,
			StreetAddress:    row.StreetAddress,
			City:             row.City,
			State:            row.State,
			ZipCode:          row.ZipCode,
			HighestEducation: row.HighestEducation,
		},
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
		LastLogin: row.LastLogin.Time.UTC(),
	}
	if !row.LastLogin.Valid {
		usr.LastLogin = time.Time{}
	}
	if row.DeletedAt.Valid {
		t := row.DeletedAt.Time.UTC()
		usr.DeletedAt = &t
	}
	return usr
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}

	var res struct {
		Exists bool `boil:"exists"`
	}
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND NOT (id::text = ANY($2))) AS "exists"`
	if err := queries.Raw(q, email, pq.Array(ids)).Bind(ctx, repo.getExec(exec), &res); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if res.Exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	r := repo.boil(usr)
	q := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := queries.Raw(q,
		r.ID, r.Name, r.Email, r.Role, r.Status, r.PasswordHash, r.FirstName, r.LastName, r.Phone, r.Age,
		r.StreetAddress, r.City, r.State, r.ZipCode, r.HighestEducation, r.CreatedAt, r.UpdatedAt, r.LastLogin, r.DeletedAt,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter == nil || !filter.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if filter != nil {
		// users with Name or Email matching the search keyword
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
		}
		if len(filter.Roles) > 0 {
			where = append(where, "role = ANY("+arg(pq.Array(filter.Roles))+")")
		}
		if len(filter.Statuses) > 0 {
			where = append(where, "status = ANY("+arg(pq.Array(filter.Statuses))+")")
		}
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, userOrderings, "created_at ASC")

	var rows []userRow
	if err := queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unboil(r))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		q   = "SELECT " + userColumns + " FROM users WHERE "
		arg string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q += "id = $1"
		arg = filter.ID
	case filter.Email != "":
		q += "email = $1"
		arg = filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}
	if !filter.IncludeDeleted {
		q += " AND deleted_at IS NULL"
	}

	var row userRow
	if err := queries.Raw(q, arg).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	r := repo.boil(usr)
	q := `UPDATE users SET name = $2, email = $3, role = $4, status = $5, password_hash = $6, first_name = $7,
		last_name = $8, phone = $9, age = $10, street_address = $11, city = $12, state = $13, zip_code = $14,
		highest_education = $15, updated_at = $16, last_login = $17, deleted_at = $18
		WHERE id = $1`
	res, err := queries.Raw(q,
		r.ID, r.Name, r.Email, r.Role, r.Status, r.PasswordHash, r.FirstName, r.LastName, r.Phone, r.Age,
		r.StreetAddress, r.City, r.State, r.ZipCode, r.HighestEducation, r.UpdatedAt, r.LastLogin, r.DeletedAt,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := queries.Raw("DELETE FROM users WHERE id::text = ANY($1)", pq.Array(ids)).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}
