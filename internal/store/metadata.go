package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"MarketVault/internal/model"
)

// Metadata returns the collection metadata row for a symbol, or nil when
// the symbol has never been collected.
func (s *Store) Metadata(ctx context.Context, symbol string) (*model.CollectionMetadata, error) {
	row := s.db.QueryRowContext(ctx, `SELECT symbol, last_attempt_at, last_success_at,
		earliest_date, latest_date, point_count, status, consecutive_failures,
		priority, active, created_at, updated_at
		FROM collection_metadata WHERE symbol=?`, strings.ToUpper(symbol))

	m, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	return m, nil
}

// ActiveMetadata returns all active symbols ordered by priority descending,
// the order the full sweep walks them in.
func (s *Store) ActiveMetadata(ctx context.Context) ([]model.CollectionMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, last_attempt_at, last_success_at,
		earliest_date, latest_date, point_count, status, consecutive_failures,
		priority, active, created_at, updated_at
		FROM collection_metadata WHERE active=1 ORDER BY priority DESC, symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query active metadata: %w", err)
	}
	defer rows.Close()

	var out []model.CollectionMetadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// RecordSuccess marks a successful collection: status success, failure
// counter reset, and the date range/point count recomputed from the
// stored rows.
func (s *Store) RecordSuccess(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		count            int
		earliest, latest sql.NullString
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(date), MAX(date) FROM historical_prices WHERE symbol=?`, symbol)
	if err := row.Scan(&count, &earliest, &latest); err != nil {
		return fmt.Errorf("aggregate prices: %w", err)
	}

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO collection_metadata
		(symbol, last_attempt_at, last_success_at, earliest_date, latest_date,
		 point_count, status, consecutive_failures, priority, active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,0,0,1,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			last_attempt_at=excluded.last_attempt_at,
			last_success_at=excluded.last_success_at,
			earliest_date=excluded.earliest_date,
			latest_date=excluded.latest_date,
			point_count=excluded.point_count,
			status=excluded.status,
			consecutive_failures=0,
			updated_at=excluded.updated_at`,
		symbol, now, now, earliest.String, latest.String, count, model.StatusSuccess, now, now)
	if err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// RecordFailure increments the consecutive-failure counter and flips the
// symbol inactive once the threshold is reached. Rate-limit failures are
// recorded with their own status so operators can tell quota exhaustion
// from provider outages.
func (s *Store) RecordFailure(ctx context.Context, symbol string, rateLimited bool) error {
	symbol = strings.ToUpper(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	status := model.StatusFailed
	if rateLimited {
		status = model.StatusRateLimited
	}

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO collection_metadata
		(symbol, last_attempt_at, status, consecutive_failures, priority, active, point_count, created_at, updated_at)
		VALUES (?,?,?,1,0,1,0,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			last_attempt_at=excluded.last_attempt_at,
			status=excluded.status,
			consecutive_failures=consecutive_failures+1,
			updated_at=excluded.updated_at`,
		symbol, now, status, now, now)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE collection_metadata SET active=0, updated_at=? WHERE symbol=? AND consecutive_failures>=? AND active=1`,
		now, symbol, s.FailureThreshold)
	if err != nil {
		return fmt.Errorf("deactivate check: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[WARN] deactivating %s after %d consecutive failures", symbol, s.FailureThreshold)
	}
	return nil
}

// SetPriority upserts priority for a set of symbols and reactivates them.
// The scheduler uses it to keep portfolio/watchlist/popular symbols hot.
func (s *Store) SetPriority(ctx context.Context, symbols []string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, symbol := range symbols {
		_, err := tx.ExecContext(ctx, `INSERT INTO collection_metadata
			(symbol, status, priority, active, point_count, created_at, updated_at)
			VALUES (?,?,?,1,0,?,?)
			ON CONFLICT(symbol) DO UPDATE SET
				priority=excluded.priority,
				active=1,
				updated_at=excluded.updated_at`,
			strings.ToUpper(symbol), model.StatusPending, priority, now, now)
		if err != nil {
			return fmt.Errorf("set priority %s: %w", symbol, err)
		}
	}
	return tx.Commit()
}

// Reactivate clears the failure state of a symbol so the scheduler picks
// it up again; used by the manual trigger.
func (s *Store) Reactivate(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`UPDATE collection_metadata SET active=1, consecutive_failures=0, updated_at=? WHERE symbol=?`,
		now, strings.ToUpper(symbol))
	if err != nil {
		return fmt.Errorf("reactivate: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner) (*model.CollectionMetadata, error) {
	var (
		m                        model.CollectionMetadata
		lastAttempt, lastSuccess sql.NullInt64
		earliest, latest, status sql.NullString
		active                   int
		createdAt, updatedAt     int64
	)
	err := row.Scan(&m.Symbol, &lastAttempt, &lastSuccess, &earliest, &latest,
		&m.PointCount, &status, &m.ConsecutiveFailures, &m.Priority, &active,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if lastAttempt.Valid {
		m.LastAttemptAt = time.Unix(lastAttempt.Int64, 0).UTC()
	}
	if lastSuccess.Valid {
		m.LastSuccessAt = time.Unix(lastSuccess.Int64, 0).UTC()
	}
	if earliest.Valid && earliest.String != "" {
		if d, err := time.Parse(dateLayout, earliest.String); err == nil {
			m.EarliestDate = d
		}
	}
	if latest.Valid && latest.String != "" {
		if d, err := time.Parse(dateLayout, latest.String); err == nil {
			m.LatestDate = d
		}
	}
	m.Status = status.String
	m.Active = active == 1
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &m, nil
}
