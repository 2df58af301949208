package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog_service/internal/config"
	"blog_service/internal/models"
	"blog_service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Postgres) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
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

const userColumns = `
	id, email, password_hash, is_admin, is_verified, forgot_token,
	firstname, lastname, birth_day, gender, address, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PassHash,
		&u.IsAdmin,
		&u.IsVerified,
		&u.ForgotToken,
		&u.Profile.Firstname,
		&u.Profile.Lastname,
		&u.Profile.BirthDay,
		&u.Profile.Gender,
		&u.Profile.Address,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, err
}

func (r *PostgresRepo) SaveUser(ctx context.Context, email string, passHash []byte) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, email, passHash))
	if err != nil {
		if isPgCode(err, codeUniqueViolation) {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.User"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, err
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, err
}

func (r *PostgresRepo) SetEmailVerified(ctx context.Context, userID string) error {
	const op = "storage.postgres.SetEmailVerified"

	query := `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`

	return r.execOne(ctx, op, query, storage.ErrUserNotFound, userID)
}

func (r *PostgresRepo) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	const op = "storage.postgres.SetAdmin"

	query := `UPDATE users SET is_admin = $2, updated_at = NOW() WHERE id = $1`

	return r.execOne(ctx, op, query, storage.ErrUserNotFound, userID, isAdmin)
}

func (r *PostgresRepo) SetForgotToken(ctx context.Context, userID string, token string) error {
	const op = "storage.postgres.SetForgotToken"

	query := `UPDATE users SET forgot_token = $2, updated_at = NOW() WHERE id = $1`

	return r.execOne(ctx, op, query, storage.ErrUserNotFound, userID, token)
}

// ResetPassword sets a new hash only while forgot_token still equals
// forgotToken, clears it and revokes every refresh token of the user.
func (r *PostgresRepo) ResetPassword(ctx context.Context, userID string, passHash []byte, forgotToken string) error {
	const op = "storage.postgres.ResetPassword"

	return r.withTx(ctx, op, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET password_hash = $2, forgot_token = NULL, updated_at = NOW()
			WHERE id = $1 AND forgot_token = $3`,
			userID, passHash, forgotToken,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrForgotTokenMismatch
		}

		_, err = tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
		return err
	})
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, userID string, passHash []byte) error {
	const op = "storage.postgres.UpdatePassword"

	return r.withTx(ctx, op, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			userID, passHash,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrUserNotFound
		}

		_, err = tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
		return err
	})
}

// UpdateProfile overwrites only the fields set in p.
func (r *PostgresRepo) UpdateProfile(ctx context.Context, userID string, p models.Profile) error {
	const op = "storage.postgres.UpdateProfile"

	query := `
		UPDATE users SET
			firstname  = COALESCE($2, firstname),
			lastname   = COALESCE($3, lastname),
			birth_day  = COALESCE($4, birth_day),
			gender     = COALESCE($5, gender),
			address    = COALESCE($6, address),
			updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, op, query, storage.ErrUserNotFound,
		userID, p.Firstname, p.Lastname, p.BirthDay, p.Gender, p.Address,
	)
}

func (r *PostgresRepo) SaveRefreshToken(ctx context.Context, rt models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	const query = `
		INSERT INTO refresh_tokens (token, user_id, expires_at, ip_address)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, rt.Token, rt.UserID, rt.ExpiresAt, rt.IPAddress)
	if err != nil {
		if isPgCode(err, codeUniqueViolation) {
			return storage.ErrRefreshTokenExists
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) RefreshToken(ctx context.Context, token string) (models.RefreshToken, error) {
	const op = "storage.postgres.RefreshToken"

	const query = `
		SELECT token, user_id, expires_at, ip_address, created_at
		FROM refresh_tokens
		WHERE token = $1
	`

	var rt models.RefreshToken

	err := r.pool.QueryRow(ctx, query, token).Scan(
		&rt.Token,
		&rt.UserID,
		&rt.ExpiresAt,
		&rt.IPAddress,
		&rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
		}

		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return rt, nil
}

// RotateRefreshToken deletes oldToken and inserts next in one transaction.
// The delete only matches a live row owned by next.UserID, so of two
// concurrent rotations of the same token exactly one succeeds.
func (r *PostgresRepo) RotateRefreshToken(ctx context.Context, oldToken string, next models.RefreshToken, now time.Time) error {
	const op = "storage.postgres.RotateRefreshToken"

	return r.withTx(ctx, op, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM refresh_tokens
			WHERE token = $1 AND user_id = $2 AND expires_at > $3`,
			oldToken, next.UserID, now,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrRefreshTokenNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO refresh_tokens (token, user_id, expires_at, ip_address)
			VALUES ($1, $2, $3, $4)`,
			next.Token, next.UserID, next.ExpiresAt, next.IPAddress,
		)
		if isPgCode(err, codeUniqueViolation) {
			return storage.ErrRefreshTokenExists
		}

		return err
	})
}

func (r *PostgresRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	const op = "storage.postgres.DeleteRefreshToken"

	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredRefreshTokens"

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) SaveCategory(ctx context.Context, name string) (models.Category, error) {
	const op = "storage.postgres.SaveCategory"

	query := `
		INSERT INTO categories (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at
	`

	var c models.Category

	err := r.pool.QueryRow(ctx, query, name).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isPgCode(err, codeUniqueViolation) {
			return models.Category{}, storage.ErrCategoryExists
		}

		return models.Category{}, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

func (r *PostgresRepo) Category(ctx context.Context, id string) (models.Category, error) {
	const op = "storage.postgres.Category"

	query := `SELECT id, name, created_at, updated_at FROM categories WHERE id = $1`

	var c models.Category

	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Category{}, storage.ErrCategoryNotFound
		}

		return models.Category{}, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

func (r *PostgresRepo) Categories(ctx context.Context, q storage.CategoryQuery) ([]models.Category, error) {
	const op = "storage.postgres.Categories"

	query := `
		SELECT id, name, created_at, updated_at
		FROM categories
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY created_at, name
		OFFSET $2
		LIMIT NULLIF($3, 0)
	`

	rows, err := r.pool.Query(ctx, query, q.Search, q.Skip, q.Take)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Category, error) {
		var c models.Category
		err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (r *PostgresRepo) UpdateCategory(ctx context.Context, id string, name string) error {
	const op = "storage.postgres.UpdateCategory"

	query := `UPDATE categories SET name = $2, updated_at = NOW() WHERE id = $1`

	err := r.execOne(ctx, op, query, storage.ErrCategoryNotFound, id, name)
	if isPgCode(err, codeUniqueViolation) {
		return storage.ErrCategoryExists
	}

	return err
}

// DeleteCategory relies on posts.category_id being ON DELETE SET NULL.
func (r *PostgresRepo) DeleteCategory(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteCategory"

	return r.execOne(ctx, op, `DELETE FROM categories WHERE id = $1`, storage.ErrCategoryNotFound, id)
}

const postColumns = `id, title, content, status, author_id, category_id, created_at, updated_at`

func scanPost(row pgx.Row) (models.Post, error) {
	var p models.Post

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Content,
		&p.Status,
		&p.AuthorID,
		&p.CategoryID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}

func (r *PostgresRepo) SavePost(ctx context.Context, p models.Post) (models.Post, error) {
	const op = "storage.postgres.SavePost"

	query := `
		INSERT INTO posts (title, content, status, author_id, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + postColumns

	saved, err := scanPost(r.pool.QueryRow(ctx, query, p.Title, p.Content, p.Status, p.AuthorID, p.CategoryID))
	if err != nil {
		if isPgCode(err, codeForeignKeyViolation) {
			return models.Post{}, storage.ErrCategoryNotFound
		}

		return models.Post{}, fmt.Errorf("%s: %w", op, err)
	}

	return saved, nil
}

func (r *PostgresRepo) Post(ctx context.Context, id string) (models.Post, error) {
	const op = "storage.postgres.Post"

	p, err := scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, storage.ErrPostNotFound
		}

		return models.Post{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

var postSortColumns = map[storage.PostSortField]string{
	storage.SortByCreatedAt: "created_at",
	storage.SortByTitle:     "title",
}

// Posts returns one page of posts matching q together with the total count
// of matching rows.
func (r *PostgresRepo) Posts(ctx context.Context, q storage.PostQuery) ([]models.Post, int, error) {
	const op = "storage.postgres.Posts"

	var (
		where []string
		args  []any
	)

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.AuthorID != "" {
		add("author_id = $%d", q.AuthorID)
	}
	if q.CategoryID != "" {
		add("category_id = $%d", q.CategoryID)
	}
	if q.Status != "" {
		add("status = $%d", q.Status)
	}
	if q.SearchTerm != "" {
		args = append(args, "%"+q.SearchTerm+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d)", n, n))
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	column, ok := postSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "ASC"
	if q.SortOrder == storage.SortDesc {
		order = "DESC"
	}

	args = append(args, q.Skip, q.Take)
	query := fmt.Sprintf(`SELECT %s FROM posts%s ORDER BY %s %s, id OFFSET $%d LIMIT NULLIF($%d, 0)`,
		postColumns, filter, column, order, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	posts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Post, error) {
		return scanPost(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return posts, total, nil
}

func (r *PostgresRepo) UpdatePost(ctx context.Context, p models.Post) error {
	const op = "storage.postgres.UpdatePost"

	query := `
		UPDATE posts
		SET title = $3, content = $4, status = $5, category_id = $6, updated_at = NOW()
		WHERE id = $1 AND author_id = $2`

	err := r.execOne(ctx, op, query, storage.ErrPostNotFound,
		p.ID, p.AuthorID, p.Title, p.Content, p.Status, p.CategoryID,
	)
	if isPgCode(err, codeForeignKeyViolation) {
		return storage.ErrCategoryNotFound
	}

	return err
}

func (r *PostgresRepo) DeletePost(ctx context.Context, id string, authorID string) error {
	const op = "storage.postgres.DeletePost"

	return r.execOne(ctx, op, `DELETE FROM posts WHERE id = $1 AND author_id = $2`, storage.ErrPostNotFound, id, authorID)
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

// execOne runs a statement that must touch exactly one row and returns
// notFound when it touched none. Database errors keep their *pgconn.PgError
// so callers can still inspect the code.
func (r *PostgresRepo) execOne(ctx context.Context, op, query string, notFound error, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}

	return nil
}

func (r *PostgresRepo) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		if isSentinel(err) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}

func isSentinel(err error) bool {
	return errors.Is(err, storage.ErrUserNotFound) ||
		errors.Is(err, storage.ErrForgotTokenMismatch) ||
		errors.Is(err, storage.ErrRefreshTokenNotFound) ||
		errors.Is(err, storage.ErrRefreshTokenExists)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func dsn(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}
