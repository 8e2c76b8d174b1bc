package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// ErrNotFound is returned when no item with the requested id exists
var ErrNotFound = errors.New("item not found")

// Item is a single inventory record
type Item struct {
	ID       int64   `db:"id" json:"id" yaml:"id"`
	Name     string  `db:"name" json:"name" yaml:"name"`
	Price    float64 `db:"price" json:"price" yaml:"price"`
	Quantity int64   `db:"quantity" json:"quantity" yaml:"quantity"`
}

// SQLite implements item persistence on top of a local SQLite file
type SQLite struct {
	db   *sqlx.DB
	path string
}

const itemsTable = "items"

var itemColumns = []string{"id", "name", "price", "quantity"}

// NewSQLite opens the database file and makes sure the schema exists
func NewSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection for the whole application lifetime
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLite{db: db, path: dbPath}
	if err := s.CreateSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (also failed to close db: %v)", err, closeErr)
		}
		return nil, err
	}
	log.Printf("[DEBUG] sqlite store opened at %s", dbPath)
	return s, nil
}

// CreateSchema creates the items table, it is safe to call repeatedly
func (s *SQLite) CreateSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		quantity INTEGER NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Insert adds a new item and returns the id assigned by the database
func (s *SQLite) Insert(ctx context.Context, name string, price float64, quantity int64) (int64, error) {
	query, args, err := sq.Insert(itemsTable).Columns("name", "price", "quantity").
		Values(name, price, quantity).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert item %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return id, nil
}

// List returns all items ordered by id
func (s *SQLite) List(ctx context.Context) ([]Item, error) {
	query, args, err := sq.Select(itemColumns...).From(itemsTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	items := []Item{}
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	return items, nil
}

// Get returns a single item by id
func (s *SQLite) Get(ctx context.Context, id int64) (Item, error) {
	query, args, err := sq.Select(itemColumns...).From(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Item{}, fmt.Errorf("failed to build select: %w", err)
	}

	var item Item
	if err := s.db.GetContext(ctx, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		return Item{}, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return item, nil
}

// Update changes price and quantity of an existing item, the name is never touched
func (s *SQLite) Update(ctx context.Context, id int64, price float64, quantity int64) error {
	query, args, err := sq.Update(itemsTable).Set("price", price).Set("quantity", quantity).
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item %d: %w", id, err)
	}
	return s.checkAffected(res, id)
}

// Delete removes an item by id
func (s *SQLite) Delete(ctx context.Context, id int64) error {
	query, args, err := sq.Delete(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	return s.checkAffected(res, id)
}

// Backup writes a consistent snapshot of the database into dst file
func (s *SQLite) Backup(ctx context.Context, dst string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("failed to backup to %s: %w", dst, err)
	}
	return nil
}

// String returns the database file path
func (s *SQLite) String() string {
	return s.path
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) checkAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for item %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return nil
}
