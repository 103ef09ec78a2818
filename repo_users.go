package booksurf

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByUniversityID(ctx context.Context, universityID int64) (*User, error)
	GetByUniversityIDTx(ctx context.Context, tx bun.IDB, universityID int64) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	TouchActivity(ctx context.Context, id uuid.UUID, day time.Time) error
	TouchActivityTx(ctx context.Context, tx bun.IDB, id uuid.UUID, day time.Time) error
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersClock injects a custom clock (useful for tests)
func WithUsersClock(clock func() time.Time) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) GetByUniversityID(ctx context.Context, universityID int64) (*User, error) {
	return a.GetByUniversityIDTx(ctx, a.db, universityID)
}

func (a *users) GetByUniversityIDTx(ctx context.Context, tx bun.IDB, universityID int64) (*User, error) {
	record := &User{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.university_id = ?", universityID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"university_id": universityID})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	user.EnsureDefaults(a.now())
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) TouchActivity(ctx context.Context, id uuid.UUID, day time.Time) error {
	return a.TouchActivityTx(ctx, a.db, id, day)
}

// TouchActivityTx advances last_activity_date to the given calendar day.
// The WHERE clause keeps the write idempotent and monotonic even when
// concurrent requests race: a row already on that day (or later) is left
// alone.
func (a *users) TouchActivityTx(ctx context.Context, tx bun.IDB, id uuid.UUID, day time.Time) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"last_activity_date" = ?,
			"updated_at" = ?
		WHERE
			("usr".id = ?)
			AND ("usr"."last_activity_date" IS NULL OR "usr"."last_activity_date" < ?)
			AND "usr"."deleted_at" IS NULL;
	`, DayOf(day), a.now(), id, DayOf(day)).Exec(ctx)

	return err
}
