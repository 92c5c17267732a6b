package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/baldhumanity/flappy-neat/neat"
)

// SQLiteStore is a Store backed by a SQLite database file. Genomes and statistics
// are stored as JSON, checkpoints as the gzip-compressed gob written by
// neat.Population.WriteCheckpoint.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore returns a store for path. ":memory:" keeps the database in memory.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema. It is a no-op when already open.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// An in-memory database lives in a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// CreateRun registers a new run and returns its id.
func (s *SQLiteStore) CreateRun(ctx context.Context, name string) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = db.ExecContext(ctx, `INSERT INTO runs (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("create run %q: %w", name, err)
	}
	return id, nil
}

func (s *SQLiteStore) SaveGenome(ctx context.Context, runID string, g *neat.Genome) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := s.checkRun(ctx, db, runID); err != nil {
		return err
	}

	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode genome %d: %w", g.Key, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO genomes (run_id, genome_key, fitness, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, genome_key) DO UPDATE SET
			fitness = excluded.fitness,
			payload = excluded.payload
	`, runID, g.Key, g.Fitness, payload)
	return err
}

func (s *SQLiteStore) GetGenome(ctx context.Context, runID string, key int, config *neat.GenomeConfig) (*neat.Genome, bool, error) {
	return s.queryGenome(ctx, config,
		`SELECT payload FROM genomes WHERE run_id = ? AND genome_key = ?`, runID, key)
}

// BestGenome returns the saved genome of the run with the highest fitness.
func (s *SQLiteStore) BestGenome(ctx context.Context, runID string, config *neat.GenomeConfig) (*neat.Genome, bool, error) {
	return s.queryGenome(ctx, config,
		`SELECT payload FROM genomes WHERE run_id = ? ORDER BY fitness DESC, genome_key ASC LIMIT 1`, runID)
}

func (s *SQLiteStore) queryGenome(ctx context.Context, config *neat.GenomeConfig, query string, args ...any) (*neat.Genome, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	g, err := neat.DecodeGenome(payload, config)
	if err != nil {
		return nil, false, fmt.Errorf("decode genome: %w", err)
	}
	return g, true, nil
}

// SaveCheckpoint stores the latest checkpoint of the run, replacing any earlier one.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, runID string, p *neat.Population) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := s.checkRun(ctx, db, runID); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := p.WriteCheckpoint(&buf); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, generation, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			generation = excluded.generation,
			payload = excluded.payload
	`, runID, p.Generation, buf.Bytes())
	return err
}

// LoadCheckpoint restores the population saved by the last SaveCheckpoint of the run.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, runID string, config *neat.Config, opts ...neat.Option) (*neat.Population, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM checkpoints WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	p, err := neat.ReadCheckpoint(bytes.NewReader(payload), config, opts...)
	if err != nil {
		return nil, false, fmt.Errorf("decode checkpoint of run %s: %w", runID, err)
	}
	return p, true, nil
}

func (s *SQLiteStore) SaveStats(ctx context.Context, runID string, stats neat.GenerationStats) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := s.checkRun(ctx, db, runID); err != nil {
		return err
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO generation_stats (run_id, generation, best_fitness, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			best_fitness = excluded.best_fitness,
			payload = excluded.payload
	`, runID, stats.Generation, stats.BestFitness, payload)
	return err
}

// ListStats returns the statistics of the run in generation order.
func (s *SQLiteStore) ListStats(ctx context.Context, runID string) ([]neat.GenerationStats, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT payload FROM generation_stats WHERE run_id = ? ORDER BY generation ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []neat.GenerationStats
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var stats neat.GenerationStats
		if err := json.Unmarshal(payload, &stats); err != nil {
			return nil, fmt.Errorf("decode stats of run %s: %w", runID, err)
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func (s *SQLiteStore) checkRun(ctx context.Context, db *sql.DB, runID string) error {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS genomes (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			genome_key INTEGER NOT NULL,
			fitness REAL NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, genome_key)
		);
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
			generation INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS generation_stats (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			generation INTEGER NOT NULL,
			best_fitness REAL NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`)
	return err
}
