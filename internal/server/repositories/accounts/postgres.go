package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/dbx"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
)

// DB is the handle the Postgres repository needs: plain queries plus
// transactions. *sql.DB satisfies it.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
}

const accountColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url,
		 refresh_token, created_at, updated_at,
		 COALESCE((SELECT string_agg(w.video_id::text, ',' ORDER BY w.position)
		           FROM watch_history w WHERE w.user_id = users.id), '')`

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a       models.Account
		refresh sql.NullString
		history string
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FullName, &a.PasswordHash, &a.AvatarURL,
		&a.CoverImageURL, &refresh, &a.CreatedAt, &a.UpdatedAt, &history)
	if err != nil {
		return nil, err
	}
	if refresh.Valid {
		v := refresh.String
		a.RefreshToken = &v
	}
	if history != "" {
		a.WatchHistory = strings.Split(history, ",")
	}
	return &a, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows), dbx.IsInvalidTextRepresentation(err):
		return common.ErrorNotFound
	case dbx.IsUniqueViolation(err):
		return common.ErrDuplicateIdentifier
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		 FROM users
		 WHERE id = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) FindByIdentifier(ctx context.Context, username, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		 FROM users
		 WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		 LIMIT 1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, username, email))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) ExistsByIdentifier(ctx context.Context, username, email string) (bool, error) {
	return existsByIdentifier(ctx, r.db, username, email)
}

func existsByIdentifier(ctx context.Context, db dbx.DBTX, username, email string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM users
		   WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		 )`

	var exists bool
	if err := db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Create checks for an existing username or email and inserts the row in
// the same transaction. A concurrent insert that slips past the check is
// still rejected by the unique indexes.
func (r *PostgresRepository) Create(ctx context.Context, acc *models.NewAccount) (*models.Account, error) {
	query :=
		`INSERT INTO users (username, email, full_name, password_hash, avatar_url, cover_image_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ` + accountColumns

	var created *models.Account
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		exists, err := existsByIdentifier(ctx, tx, acc.Username, acc.Email)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrDuplicateIdentifier
		}

		a, err := scanAccount(tx.QueryRowContext(ctx, query,
			acc.Username, acc.Email, acc.FullName, acc.PasswordHash, acc.AvatarURL, acc.CoverImageURL))
		if err != nil {
			return mapError(err)
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	query :=
		`UPDATE users SET refresh_token = $2, updated_at = now()
		 WHERE id = $1`

	var value sql.NullString
	if token != nil {
		value = sql.NullString{String: *token, Valid: true}
	}

	n, err := r.exec(ctx, query, id, value)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	query :=
		`UPDATE users SET refresh_token = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2`

	n, err := r.exec(ctx, query, id, expected, next)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query :=
		`UPDATE users SET password_hash = $2, refresh_token = NULL, updated_at = now()
		 WHERE id = $1`

	n, err := r.exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) updateReturning(ctx context.Context, set string, args ...any) (*models.Account, error) {
	query := `UPDATE users SET ` + set + `, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error) {
	return r.updateReturning(ctx, `full_name = $2, email = $3`, id, fullName, email)
}

func (r *PostgresRepository) SetAvatar(ctx context.Context, id, url string) (*models.Account, error) {
	return r.updateReturning(ctx, `avatar_url = $2`, id, url)
}

func (r *PostgresRepository) SetCoverImage(ctx context.Context, id, url string) (*models.Account, error) {
	return r.updateReturning(ctx, `cover_image_url = $2`, id, url)
}
