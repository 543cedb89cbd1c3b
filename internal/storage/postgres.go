// internal/storage/postgres.go
// Package storage provides PostgreSQL implementation of the Store interface.
// This implementation is intended for production use against the externally
// owned dataset tables; it only creates the tables the service itself owns.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgres stores resources in the tables named by their descriptors.
type postgres struct {
	db  *pgxpool.Pool // Connection pool to PostgreSQL database
	now func() time.Time
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the
// tables owned by the service (users and the API error log).
// Parameters:
//   - dsn: Database connection string in PostgreSQL format
//
// Returns:
//   - Store: Implementation of the storage interface
//   - error: Any error that occurred during initialization
func NewPostgres(dsn string) (Store, error) {
	// Parse the database connection string
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	// Establish connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// initSchema creates the tables the service owns if they don't already
// exist. Dataset tables are never created or migrated here.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		-- Accounts allowed to call the API
		CREATE TABLE IF NOT EXISTS app_users (
		    id BIGSERIAL PRIMARY KEY,
		    username VARCHAR(150) NOT NULL UNIQUE,
		    email VARCHAR(254) NOT NULL DEFAULT '',
		    password_hash TEXT NOT NULL,
		    is_staff BOOLEAN NOT NULL DEFAULT FALSE,
		    date_joined TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		-- API error events recorded by the error handler
		CREATE TABLE IF NOT EXISTS api_error (
		    id BIGSERIAL PRIMARY KEY,
		    code VARCHAR(100),
		    detail TEXT NOT NULL DEFAULT 'null',
		    attr VARCHAR(100) NOT NULL DEFAULT 'null',
		    error_type VARCHAR(50) NOT NULL DEFAULT 'client_error',
		    path VARCHAR(255),
		    method VARCHAR(10),
		    "user" VARCHAR(255),
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_api_error_created_at ON api_error(created_at DESC);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the connection pool
func (p *postgres) Close() {
	p.db.Close()
}

func (p *postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// selectList renders the column list of res. Decimal and UUID columns are
// read as text so they scan into strings.
func selectList(res *model.Resource) string {
	cols := make([]string, len(res.Fields))
	for i, f := range res.Fields {
		switch f.Kind {
		case model.KindDecimal, model.KindUUID:
			cols[i] = fmt.Sprintf("%s::text AS %s", ident(f.Name), ident(f.Name))
		default:
			cols[i] = ident(f.Name)
		}
	}
	return strings.Join(cols, ", ")
}

// placeholder renders the n-th bind parameter for a column. Decimal and
// UUID values are sent as text and converted by the server.
func placeholder(f model.Field, n int) string {
	switch f.Kind {
	case model.KindDecimal:
		return fmt.Sprintf("$%d::text::numeric", n)
	case model.KindUUID:
		return fmt.Sprintf("$%d::text::uuid", n)
	}
	return fmt.Sprintf("$%d", n)
}

// scanRow reads one row of res. Every destination is a pointer to pointer
// so NULL columns come back as nil.
func scanRow(res *model.Resource, rows pgx.Row) (*model.Row, error) {
	dest := make([]any, len(res.Fields))
	for i, f := range res.Fields {
		switch f.Kind {
		case model.KindInt:
			dest[i] = new(*int64)
		case model.KindBool:
			dest[i] = new(*bool)
		case model.KindTime:
			dest[i] = new(*time.Time)
		default:
			dest[i] = new(*string)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	row := model.NewRow()
	for i, f := range res.Fields {
		var v any
		switch d := dest[i].(type) {
		case **int64:
			if *d != nil {
				v = **d
			}
		case **bool:
			if *d != nil {
				v = **d
			}
		case **time.Time:
			if *d != nil {
				v = (**d).UTC()
			}
		case **string:
			if *d != nil {
				v = **d
			}
		}
		row.Set(f.Name, v)
	}
	return row, nil
}

// mapError translates driver errors into the storage sentinels.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.ConstraintName)
		case pgerrcode.NotNullViolation, pgerrcode.CheckViolation,
			pgerrcode.InvalidTextRepresentation, pgerrcode.NumericValueOutOfRange,
			pgerrcode.StringDataRightTruncation, pgerrcode.InvalidDatetimeFormat:
			return fmt.Errorf("%w: %s", ErrInvalidValue, pgErr.Message)
		}
	}
	return err
}

func (p *postgres) List(ctx context.Context, res *model.Resource, q model.ListQuery) (*model.Page, error) {
	var count int
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s", ident(res.Table))
	if err := p.db.QueryRow(ctx, countQuery).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", res.Name, err)
	}

	column, desc := res.OrderBy()
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s %s, %s ASC LIMIT $1 OFFSET $2",
		selectList(res), ident(res.Table), ident(column), direction, ident(res.IDField))

	limit := q.Limit
	if limit <= 0 {
		limit = count
	}
	rows, err := p.db.Query(ctx, query, limit, max(q.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", res.Name, err)
	}
	defer rows.Close()

	page := &model.Page{Count: count, Items: []*model.Row{}}
	for rows.Next() {
		row, err := scanRow(res, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", res.Name, err)
		}
		page.Items = append(page.Items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", res.Name, err)
	}
	return page, nil
}

func (p *postgres) Get(ctx context.Context, res *model.Resource, id any) (*model.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", selectList(res), ident(res.Table), ident(res.IDField))
	row, err := scanRow(res, p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", res.Name, err)
	}
	return row, nil
}

func (p *postgres) Create(ctx context.Context, res *model.Resource, values map[string]any) (*model.Row, error) {
	prepared, err := prepareCreate(res, values, p.now())
	if err != nil {
		return nil, err
	}

	var (
		cols  []string
		binds []string
		args  []any
	)
	for _, f := range res.Fields {
		v, ok := prepared.Get(f.Name)
		if !ok {
			continue
		}
		args = append(args, v)
		cols = append(cols, ident(f.Name))
		binds = append(binds, placeholder(f, len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		ident(res.Table), strings.Join(cols, ", "), strings.Join(binds, ", "), selectList(res))
	row, err := scanRow(res, p.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", res.Name, mapError(err))
	}
	return row, nil
}

func (p *postgres) Update(ctx context.Context, res *model.Resource, id any, values map[string]any) (*model.Row, error) {
	changes, err := prepareUpdate(res, values, p.now())
	if err != nil {
		return nil, err
	}
	if changes.Len() == 0 {
		return p.Get(ctx, res, id)
	}

	var (
		sets []string
		args []any
	)
	for _, f := range res.Fields {
		v, ok := changes.Get(f.Name)
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = %s", ident(f.Name), placeholder(f, len(args))))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		ident(res.Table), strings.Join(sets, ", "), ident(res.IDField), len(args), selectList(res))
	row, err := scanRow(res, p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update %s: %w", res.Name, mapError(err))
	}
	return row, nil
}

func (p *postgres) Delete(ctx context.Context, res *model.Resource, id any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", ident(res.Table), ident(res.IDField))
	tag, err := p.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", res.Name, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postgres) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	query := `
		INSERT INTO app_users (username, email, password_hash, is_staff)
		VALUES ($1, $2, $3, $4)
		RETURNING id, date_joined`

	err := p.db.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash, user.IsStaff).
		Scan(&user.ID, &user.DateJoined)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", mapError(err))
	}
	return &user, nil
}

func (p *postgres) GetUser(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT id, username, email, password_hash, is_staff, date_joined FROM app_users WHERE username = $1`
	var user model.User

	err := p.db.QueryRow(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsStaff, &user.DateJoined)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
