package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"identity_service/internal/config"
	"identity_service/internal/models"
	"identity_service/internal/storage"
	"identity_service/internal/storage/postgres/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	if err := runMigrations(ctx, dsn); err != nil {
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (id, email, email_confirmed)
		VALUES ($1, $2, FALSE)
		RETURNING created_at;
	`

	u := models.User{
		ID:    uuid.New(),
		Email: email,
	}

	err := r.pool.QueryRow(ctx, query, u.ID, email).Scan(&u.CreatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT id, email, email_confirmed, created_at
		FROM users
		WHERE email = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	query := `
		SELECT id, email, email_confirmed, created_at
		FROM users
		WHERE id = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) SetEmailConfirmed(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE users SET email_confirmed = TRUE WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, userID)

	return err
}

func (r *PostgresRepo) SaveAccessCode(ctx context.Context, req models.AccessCodeRequest) error {
	const op = "storage.postgres.SaveAccessCode"

	query := `
		INSERT INTO access_codes (id, email, quick_access_code, login_code, expires_at, device_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.Email, req.QuickAccessCode, req.LoginCode, req.ExpiresAt, req.DeviceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ConsumeAccessCode atomically removes the access code matching (code, device)
// and returns it. The match has to be exact: zero matches and multiple matches
// both fail without deleting anything. The row lock keeps concurrent callers
// linearized, so at most one of them ever gets the record.
func (r *PostgresRepo) ConsumeAccessCode(ctx context.Context, code string, deviceID uuid.UUID) (models.AccessCodeRequest, error) {
	const op = "storage.postgres.ConsumeAccessCode"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.AccessCodeRequest{}, fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, email, quick_access_code, login_code, expires_at, device_id
		FROM access_codes
		WHERE quick_access_code = $1 AND device_id = $2
		FOR UPDATE;
	`

	rows, err := tx.Query(ctx, query, code, deviceID)
	if err != nil {
		return models.AccessCodeRequest{}, fmt.Errorf("%s: %w", op, err)
	}

	var matches []models.AccessCodeRequest

	for rows.Next() {
		var req models.AccessCodeRequest

		err := rows.Scan(&req.ID, &req.Email, &req.QuickAccessCode, &req.LoginCode, &req.ExpiresAt, &req.DeviceID)
		if err != nil {
			rows.Close()
			return models.AccessCodeRequest{}, fmt.Errorf("%s: %w", op, err)
		}

		matches = append(matches, req)
	}
	rows.Close()

	if rows.Err() != nil {
		return models.AccessCodeRequest{}, fmt.Errorf("%s: %w", op, rows.Err())
	}

	if len(matches) != 1 {
		return models.AccessCodeRequest{}, storage.ErrAccessCodeInvalid
	}

	if _, err := tx.Exec(ctx, `DELETE FROM access_codes WHERE id = $1`, matches[0].ID); err != nil {
		return models.AccessCodeRequest{}, fmt.Errorf("%s: failed to delete code: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.AccessCodeRequest{}, fmt.Errorf("%s: failed to commit: %w", op, err)
	}

	return matches[0], nil
}

func (r *PostgresRepo) SaveRefreshToken(ctx context.Context, rt models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
		INSERT INTO refresh_tokens (id, user_id, device_id, original_hash, secret_hash)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, rt.ID, rt.UserID, rt.DeviceID, rt.OriginalHash, rt.SecretHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// FindRefreshToken matches on the full triple. A miss on any of the three
// fields is reported identically.
func (r *PostgresRepo) FindRefreshToken(ctx context.Context, originalHash, secretHash string, deviceID uuid.UUID) (models.RefreshToken, error) {
	query := `
		SELECT id, user_id, device_id, original_hash, secret_hash
		FROM refresh_tokens
		WHERE device_id = $1 AND original_hash = $2 AND secret_hash = $3;
	`

	var rt models.RefreshToken

	err := r.pool.QueryRow(ctx, query, deviceID, originalHash, secretHash).
		Scan(&rt.ID, &rt.UserID, &rt.DeviceID, &rt.OriginalHash, &rt.SecretHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}

	return rt, err
}

// DeleteRefreshToken removes the grant keyed by the refresh secret digest and
// returns it. DELETE ... RETURNING is a single atomic statement, so when two
// rotations race on one secret only one of them sees the row.
func (r *PostgresRepo) DeleteRefreshToken(ctx context.Context, secretHash string) (models.RefreshToken, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE secret_hash = $1
		RETURNING id, user_id, device_id, original_hash, secret_hash;
	`

	var rt models.RefreshToken

	err := r.pool.QueryRow(ctx, query, secretHash).
		Scan(&rt.ID, &rt.UserID, &rt.DeviceID, &rt.OriginalHash, &rt.SecretHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}

	return rt, err
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(&u.ID, &u.Email, &u.EmailConfirmed, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
