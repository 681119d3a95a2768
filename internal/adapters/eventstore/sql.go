package eventstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/pkg/logger"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

//go:embed migrations
var migrationsFS embed.FS

const selectEvents = `SELECT event_id, user_id, activity, score, duration_seconds, details, occurred_at FROM score_events`

const insertEvent = `INSERT INTO score_events (event_id, user_id, activity, score, duration_seconds, details, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithLogger sets the logger used for skipped rows and migrations.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.log = l
		}
	}
}

// SQLStore reads score events from a relational database.
type SQLStore struct {
	db     *sql.DB
	driver string
	log    logger.Logger
}

// Open connects to dsn with the named driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// A single connection keeps sqlite writes serialized.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return New(db, driver, opts...)
}

// New wraps an existing handle.
func New(db *sql.DB, driver string, opts ...Option) (*SQLStore, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}
	s := &SQLStore{db: db, driver: driver, log: logger.Get().Named("eventstore")}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema for the store's dialect. Migrations
// are idempotent and applied in file name order.
func (s *SQLStore) Migrate(ctx context.Context) error {
	dir := path.Join("migrations", s.driver)
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		content, err := migrationsFS.ReadFile(path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		for _, stmt := range statements(string(content)) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("executing migration %s: %w", entry.Name(), err)
			}
		}
		s.log.Debug(ctx, "applied migration", logger.String("name", entry.Name()), logger.String("driver", s.driver))
	}
	return nil
}

// Fetch implements Store.
func (s *SQLStore) Fetch(ctx context.Context, q Query) ([]model.ScoreEvent, error) {
	var where []string
	var args []any
	if q.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *q.UserID)
	}
	if q.Activity != nil {
		where = append(where, "activity = ?")
		args = append(args, string(*q.Activity))
	}
	query := selectEvents
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY user_id, activity, occurred_at"

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying score events: %w", err)
	}
	defer rows.Close()

	var events []model.ScoreEvent
	for rows.Next() {
		var (
			e        model.ScoreEvent
			activity string
			duration sql.NullInt64
			details  string
		)
		if err := rows.Scan(&e.EventID, &e.UserID, &activity, &e.Score, &duration, &details, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning score event: %w", err)
		}
		a, err := model.ParseActivity(activity)
		if err != nil {
			s.log.Warn(ctx, "skipping score event", logger.String("event_id", e.EventID), logger.Error(err))
			continue
		}
		e.Activity = a
		e.OccurredAt = e.OccurredAt.UTC()
		if duration.Valid {
			d := int(duration.Int64)
			e.DurationSeconds = &d
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &e.Counters); err != nil {
				s.log.Warn(ctx, "ignoring malformed details", logger.String("event_id", e.EventID), logger.Error(err))
				e.Counters = nil
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating score events: %w", err)
	}
	return FilterGroups(events, q)
}

// Insert implements Writer. The batch is written in one transaction; events
// without an id get a random UUID.
func (s *SQLStore) Insert(ctx context.Context, events []model.ScoreEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, rebind(s.driver, insertEvent))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if err := validate(e); err != nil {
			return err
		}
		id := e.EventID
		if id == "" {
			id = uuid.NewString()
		}
		details, err := json.Marshal(e.Counters)
		if err != nil {
			return fmt.Errorf("encoding details: %w", err)
		}
		if e.Counters == nil {
			details = []byte("{}")
		}
		var duration sql.NullInt64
		if e.DurationSeconds != nil {
			duration = sql.NullInt64{Int64: int64(*e.DurationSeconds), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, e.UserID, string(e.Activity), e.Score,
			duration, string(details), e.OccurredAt.UTC()); err != nil {
			return fmt.Errorf("inserting score event: %w", err)
		}
	}
	return tx.Commit()
}

func checkDriver(driver string) error {
	switch driver {
	case DriverSQLite, DriverPostgres:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// rebind rewrites ? placeholders into the $n form postgres expects.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// statements splits a migration file on semicolons.
func statements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validate(e model.ScoreEvent) error {
	switch {
	case !e.Activity.Valid():
		return fmt.Errorf("%w: unknown activity %q", ErrInvalidEvent, e.Activity)
	case e.Score < model.MinScore || e.Score > model.MaxScore:
		return fmt.Errorf("%w: score %d outside %d..%d", ErrInvalidEvent, e.Score, model.MinScore, model.MaxScore)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	case e.DurationSeconds != nil && *e.DurationSeconds < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidEvent)
	}
	return nil
}

var (
	_ Store  = (*SQLStore)(nil)
	_ Store  = (*MemoryStore)(nil)
	_ Writer = (*SQLStore)(nil)
	_ Writer = (*MemoryStore)(nil)
)
