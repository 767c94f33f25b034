package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories and runs units of work atomically
type Store interface {
	Users() UserRepository
	Categories() CategoryRepository
	Fabrics() FabricRepository
	Cart() CartRepository
	Favorites() FavoriteRepository
	Discounts() DiscountRepository
	Orders() OrderRepository
	Reviews() ReviewRepository

	// WithTx runs fn with a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type store struct {
	db   *sql.DB
	conn DBTX
}

// NewStore creates a Store over the connection pool
func NewStore(db *sql.DB) Store {
	return &store{db: db, conn: db}
}

func (s *store) Users() UserRepository           { return &userRepository{db: s.conn} }
func (s *store) Categories() CategoryRepository { return &categoryRepository{db: s.conn} }
func (s *store) Fabrics() FabricRepository       { return &fabricRepository{db: s.conn} }
func (s *store) Cart() CartRepository            { return &cartRepository{db: s.conn} }
func (s *store) Favorites() FavoriteRepository   { return &favoriteRepository{db: s.conn} }
func (s *store) Discounts() DiscountRepository   { return &discountRepository{db: s.conn} }
func (s *store) Orders() OrderRepository         { return &orderRepository{db: s.conn} }
func (s *store) Reviews() ReviewRepository       { return &reviewRepository{db: s.conn} }

func (s *store) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.conn.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&store{db: s.db, conn: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// isForeignKeyViolation reports whether err is a Postgres foreign key violation
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// rowsAffectedOr returns notFound when the statement touched no rows.
func rowsAffectedOr(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
