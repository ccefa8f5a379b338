// Package store keeps H3 aggregates in Postgres, one table per resolution.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"unidrome/internal/hexagg"
)

const (
	// DefaultAttempts and DefaultRetryWait bound the connection loop.
	DefaultAttempts  = 5
	DefaultRetryWait = 10 * time.Second
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// TableName returns the table holding cells of a resolution, e.g.
// "h3_level_7".
func TableName(resolution int) string {
	return fmt.Sprintf("h3_level_%d", resolution)
}

func checkTable(table string) error {
	if !identifier.MatchString(table) {
		return errors.Errorf("invalid table name %q", table)
	}
	return nil
}

// CreateTableQuery creates the cell table when missing.
func CreateTableQuery(table string) string {
	return fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
      h3_index TEXT PRIMARY KEY,
      resolution INT,
      aerodromes INT,
      updated_at TIMESTAMP
    );
  `, table)
}

// UpsertQuery inserts a cell or replaces the count of an existing one.
// Parameters are h3_index, resolution, aerodromes and updated_at.
func UpsertQuery(table string) string {
	return `INSERT INTO ` + table + ` (h3_index, resolution, aerodromes, updated_at) VALUES ($1, $2, $3, $4)
    ON CONFLICT (h3_index) DO UPDATE
    SET aerodromes = EXCLUDED.aerodromes,
    updated_at = EXCLUDED.updated_at`
}

// Store wraps the database handle.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Connect opens url and pings it, retrying up to attempts times.
func Connect(ctx context.Context, url string, attempts int, wait time.Duration, logger *zap.Logger) (*Store, error) {
	if url == "" {
		return nil, errors.New("POSTGRES_URL not set in environment variables")
	}
	if attempts < 1 {
		attempts = 1
	}

	var db *sql.DB
	var err error
	for i := 0; i < attempts; i++ {
		db, err = sql.Open("postgres", url)
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				break
			}
			db.Close()
		}
		if i == attempts-1 {
			break
		}
		logger.Warn("Failed to connect to database, retrying", zap.Error(err), zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database after multiple attempts")
	}
	logger.Info("Successfully connected to the database")
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of rows of table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	return n, errors.Wrapf(err, "failed to count rows in %s", table)
}

// WriteCells upserts cells into the table of their resolution inside one
// transaction per table.
func (s *Store) WriteCells(ctx context.Context, cells []hexagg.Cell) error {
	byTable := make(map[string][]hexagg.Cell)
	var order []string
	for _, c := range cells {
		t := TableName(c.Resolution)
		if _, ok := byTable[t]; !ok {
			order = append(order, t)
		}
		byTable[t] = append(byTable[t], c)
	}

	for _, table := range order {
		if _, err := s.db.ExecContext(ctx, CreateTableQuery(table)); err != nil {
			return errors.Wrapf(err, "failed to create table %s if not exists", table)
		}
		before, err := s.Count(ctx, table)
		if err != nil {
			return err
		}
		if err := s.upsert(ctx, table, byTable[table]); err != nil {
			return err
		}
		after, err := s.Count(ctx, table)
		if err != nil {
			return err
		}
		s.logger.Info("Stored cells",
			zap.String("table", table),
			zap.Int("cells", len(byTable[table])),
			zap.Int("rows_before", before),
			zap.Int("rows_after", after))
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, table string, cells []hexagg.Cell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	stmt, err := tx.PrepareContext(ctx, UpsertQuery(table))
	if err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "failed to prepare upsert into %s", table)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for _, c := range cells {
		if _, err := stmt.ExecContext(ctx, c.Index, c.Resolution, c.Count, now); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to upsert %s", c.Index)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit")
}
