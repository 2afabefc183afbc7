package nearby

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/layzeechat/layzee/pkg/network"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS nearby (
	id          TEXT PRIMARY KEY,
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	last_active INTEGER NOT NULL,
	claim       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS nearby_lat_lng ON nearby (lat, lng);
CREATE INDEX IF NOT EXISTS nearby_last_active ON nearby (last_active);
CREATE INDEX IF NOT EXISTS nearby_claim ON nearby (claim);
`

// SQLiteStore keeps the pool in a SQLite database so it survives restarts.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens or creates the database at path,
// use ":memory:" for a throwaway one.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", path, err)
	}
	// one writer, it makes a claim a single transaction nobody can interleave
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, id network.Uid, p Point) error {
	// an expired record starts over as a free one
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nearby (id, lat, lng, last_active, claim) VALUES (?, ?, ?, ?, '')
		ON CONFLICT(id) DO UPDATE SET lat = excluded.lat, lng = excluded.lng,
			last_active = excluded.last_active,
			claim = CASE WHEN nearby.last_active < ? THEN '' ELSE nearby.claim END`,
		string(id), p.Lat, p.Lng, s.now().UnixNano(), s.cutoff())
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id network.Uid) (Record, error) {
	return s.get(ctx, s.db, id)
}

func (s *SQLiteStore) ClaimNearest(ctx context.Context, id network.Uid, radius float64, exclude ...network.Uid) (_ Record, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	self, err := s.get(ctx, tx, id)
	if err != nil {
		return Record{}, err
	}
	if self.Busy {
		err = ErrNoMatch
		return Record{}, err
	}

	minLat, maxLat, minLng, maxLng := bounds(self.Point, radius)
	rows, err := tx.QueryContext(ctx,
		`SELECT id, lat, lng, last_active, claim FROM nearby
		WHERE id != ? AND claim = '' AND last_active >= ?
			AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		string(id), s.cutoff(), minLat, maxLat, minLng, maxLng)
	if err != nil {
		return Record{}, err
	}
	var candidates []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			_ = rows.Close()
			return Record{}, err
		}
		candidates = append(candidates, r)
	}
	if err = errors.Join(rows.Err(), rows.Close()); err != nil {
		return Record{}, err
	}

	partner, ok := nearest(self, radius, candidates, exclude)
	if !ok {
		err = ErrNoMatch
		return Record{}, err
	}
	claim := newClaim()
	res, err := tx.ExecContext(ctx,
		`UPDATE nearby SET claim = ? WHERE id = ? AND claim = ''`, claim, string(partner.Id))
	if err != nil {
		return Record{}, err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		err = ErrNoMatch
		return Record{}, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE nearby SET claim = ? WHERE id = ?`, claim, string(id)); err != nil {
		return Record{}, err
	}
	if err = tx.Commit(); err != nil {
		return Record{}, err
	}
	partner.Busy, partner.Claim = true, claim
	return partner, nil
}

func (s *SQLiteStore) Release(ctx context.Context, claim string) error {
	if claim == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE nearby SET claim = '' WHERE claim = ?`, claim)
	return err
}

func (s *SQLiteStore) Remove(ctx context.Context, id network.Uid) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM nearby WHERE id = ? RETURNING id, lat, lng, last_active, claim`, string(id))
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, err
	}
	if s.expired(r) {
		return Record{}, ErrNoRecord
	}
	return r, nil
}

func (s *SQLiteStore) Expire(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM nearby WHERE last_active < ?`, s.cutoff())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) get(ctx context.Context, q querier, id network.Uid) (Record, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, lat, lng, last_active, claim FROM nearby WHERE id = ? AND last_active >= ?`,
		string(id), s.cutoff())
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNoRecord
	}
	return r, err
}

func (s *SQLiteStore) cutoff() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(-s.ttl).UnixNano()
}

func (s *SQLiteStore) expired(r Record) bool {
	return s.ttl > 0 && r.LastActiveAt.UnixNano() < s.cutoff()
}

func scan(row scanner) (Record, error) {
	var (
		r      Record
		id     string
		active int64
	)
	if err := row.Scan(&id, &r.Point.Lat, &r.Point.Lng, &active, &r.Claim); err != nil {
		return Record{}, err
	}
	r.Busy = r.Claim != ""
	r.Id = network.Uid(id)
	r.LastActiveAt = time.Unix(0, active)
	return r, nil
}
