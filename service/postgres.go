package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/lifecycle"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
)

// NewPostgresPool opens a pgx connection pool for the given database URL
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            uuid PRIMARY KEY,
    email         text UNIQUE NOT NULL,
    name          text NOT NULL,
    password_hash text NOT NULL,
    created_at    timestamptz NOT NULL,
    updated_at    timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS sow_documents (
    id            uuid PRIMARY KEY,
    slug          text NOT NULL,
    owner_id      uuid NOT NULL REFERENCES users(id),
    client_name   text NOT NULL,
    title         text NOT NULL,
    deliverables  text NOT NULL,
    price         numeric(12,2) NOT NULL,
    currency      text NOT NULL,
    payment_type  text NOT NULL,
    status        text NOT NULL,
    signed_by     text NOT NULL DEFAULT '',
    provider_sign text NOT NULL DEFAULT '',
    archive_key   text NOT NULL DEFAULT '',
    created_at    timestamptz NOT NULL,
    updated_at    timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS sow_documents_owner_idx ON sow_documents (owner_id);
CREATE INDEX IF NOT EXISTS sow_documents_slug_idx ON sow_documents (slug);
`

// EnsureSchema creates the tables if they do not exist. Slug deliberately has
// no UNIQUE constraint; collisions are avoided by the random suffix only.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const sowColumns = `id, slug, owner_id, client_name, title, deliverables,
	price, currency, payment_type, status, signed_by, provider_sign,
	archive_key, created_at, updated_at`

// PostgresSOWStore implements SOWStore on pgx
type PostgresSOWStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSOWStore(pool *pgxpool.Pool) *PostgresSOWStore {
	return &PostgresSOWStore{pool: pool}
}

func scanSOW(row pgx.Row) (*model.SOWDocument, error) {
	var doc model.SOWDocument
	err := row.Scan(
		&doc.ID,
		&doc.Slug,
		&doc.OwnerID,
		&doc.ClientName,
		&doc.Title,
		&doc.Deliverables,
		&doc.Price,
		&doc.Currency,
		&doc.PaymentType,
		&doc.Status,
		&doc.SignedBy,
		&doc.ProviderSign,
		&doc.ArchiveKey,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (s *PostgresSOWStore) Insert(ctx context.Context, doc *model.SOWDocument) error {
	query := `
		INSERT INTO sow_documents (id, slug, owner_id, client_name, title,
			deliverables, price, currency, payment_type, status, signed_by,
			provider_sign, archive_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		doc.ID,
		doc.Slug,
		doc.OwnerID,
		doc.ClientName,
		doc.Title,
		doc.Deliverables,
		doc.Price,
		doc.Currency,
		doc.PaymentType,
		doc.Status,
		doc.SignedBy,
		doc.ProviderSign,
		doc.ArchiveKey,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresSOWStore) Get(ctx context.Context, id string) (*model.SOWDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM sow_documents WHERE id = $1`, sowColumns)
	return scanSOW(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresSOWStore) GetBySlug(ctx context.Context, slug string) (*model.SOWDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM sow_documents WHERE slug = $1 LIMIT 1`, sowColumns)
	return scanSOW(s.pool.QueryRow(ctx, query, slug))
}

func (s *PostgresSOWStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.SOWDocument, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sow_documents
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, sowColumns)

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*model.SOWDocument
	for rows.Next() {
		doc, err := scanSOW(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Apply executes one lifecycle command as a single UPDATE. Each command has a
// fixed field set; no dynamic partial payloads are built.
func (s *PostgresSOWStore) Apply(ctx context.Context, id string, action lifecycle.Action) (*model.SOWDocument, error) {
	var (
		query string
		args  []any
	)

	switch a := action.(type) {
	case lifecycle.EditContent:
		// Guarded in SQL as well: a payment landing between the handler's
		// eligibility check and this UPDATE must not mutate a paid document
		query = fmt.Sprintf(`
			UPDATE sow_documents
			SET client_name = $2, title = $3, deliverables = $4, price = $5,
				currency = $6, payment_type = $7, updated_at = now()
			WHERE id = $1 AND status <> 'paid'
			RETURNING %s
		`, sowColumns)
		args = []any{id, a.ClientName, a.Title, a.Deliverables, a.Price, a.Currency, a.PaymentType}

		doc, err := scanSOW(s.pool.QueryRow(ctx, query, args...))
		if errors.Is(err, ErrNotFound) {
			// Distinguish a missing row from one the guard skipped
			existing, getErr := s.Get(ctx, id)
			if getErr == nil && existing.Status == model.StatusPaid {
				return nil, lifecycle.ErrAlreadyPaid
			}
			return nil, ErrNotFound
		}
		return doc, err

	case lifecycle.SignProvider:
		query = fmt.Sprintf(`
			UPDATE sow_documents
			SET provider_sign = $2, updated_at = now()
			WHERE id = $1
			RETURNING %s
		`, sowColumns)
		args = []any{id, a.Name}

	case lifecycle.SignClient:
		query = fmt.Sprintf(`
			UPDATE sow_documents
			SET signed_by = $2,
				status = CASE WHEN status = 'draft' THEN 'signed' ELSE status END,
				updated_at = now()
			WHERE id = $1
			RETURNING %s
		`, sowColumns)
		args = []any{id, a.Name}

	case lifecycle.MarkPaid:
		query = fmt.Sprintf(`
			UPDATE sow_documents
			SET status = 'paid', updated_at = now()
			WHERE id = $1
			RETURNING %s
		`, sowColumns)
		args = []any{id}

	case lifecycle.InitiatePayment:
		return s.Get(ctx, id)

	default:
		return nil, errors.New("unknown action")
	}

	return scanSOW(s.pool.QueryRow(ctx, query, args...))
}

func (s *PostgresSOWStore) SetArchiveKey(ctx context.Context, id, key string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sow_documents SET archive_key = $2, updated_at = now() WHERE id = $1
	`, id, key)
	if err != nil {
		return fmt.Errorf("set archive key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresSOWStore) LatestEligibleByOwner(ctx context.Context, ownerID string) (*model.SOWDocument, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sow_documents
		WHERE owner_id = $1
			AND provider_sign <> ''
			AND signed_by <> ''
			AND status <> 'paid'
		ORDER BY updated_at DESC
		LIMIT 1
	`, sowColumns)
	return scanSOW(s.pool.QueryRow(ctx, query, ownerID))
}

// PostgresUserStore implements UserStore on pgx
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (s *PostgresUserStore) Insert(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE id = $1`
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE email = $1`
	return scanUser(s.pool.QueryRow(ctx, query, email))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
