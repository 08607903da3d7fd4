package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"MarketVault/internal/model"
)

const dateLayout = "2006-01-02"

// MaxBatchPoints caps a single upsert. Providers can return multi-year
// daily series; only the most recent points within the cap are stored to
// bound memory and write amplification.
const MaxBatchPoints = 500

// UpsertPrices stores a fetched batch for one symbol: existing dates are
// updated in place, new dates are inserted in one transaction. Returns
// (inserted, updated) counts.
func (s *Store) UpsertPrices(ctx context.Context, symbol string, records []model.PriceRecord, source string) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}
	symbol = strings.ToUpper(symbol)

	if len(records) > MaxBatchPoints {
		sorted := make([]model.PriceRecord, len(records))
		copy(sorted, records)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
		log.Printf("[WARN] truncating %d points to most recent %d for %s", len(records), MaxBatchPoints, symbol)
		records = sorted[len(sorted)-MaxBatchPoints:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.existingDates(ctx, symbol)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	inserted, updated := 0, 0
	for _, r := range records {
		date := r.Date.Format(dateLayout)
		if existing[date] {
			_, err = tx.ExecContext(ctx, `UPDATE historical_prices
				SET open=?, high=?, low=?, close=?, volume=?, source=?, updated_at=?
				WHERE symbol=? AND date=?`,
				r.Open, r.High, r.Low, r.Close, r.Volume, source, now, symbol, date)
			if err != nil {
				return 0, 0, fmt.Errorf("update %s %s: %w", symbol, date, err)
			}
			updated++
		} else {
			_, err = tx.ExecContext(ctx, `INSERT INTO historical_prices
				(symbol, date, open, high, low, close, volume, source, created_at, updated_at)
				VALUES (?,?,?,?,?,?,?,?,?,?)`,
				symbol, date, r.Open, r.High, r.Low, r.Close, r.Volume, source, now, now)
			if err != nil {
				return 0, 0, fmt.Errorf("insert %s %s: %w", symbol, date, err)
			}
			existing[date] = true
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, updated, nil
}

// existingDates loads all stored dates for a symbol in one query.
func (s *Store) existingDates(ctx context.Context, symbol string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date FROM historical_prices WHERE symbol=?`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

// PricesInRange returns stored records for [from, to], newest first.
func (s *Store) PricesInRange(ctx context.Context, symbol string, from, to time.Time) ([]model.PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, date, open, high, low, close, volume, source, created_at, updated_at
		FROM historical_prices
		WHERE symbol=? AND date>=? AND date<=?
		ORDER BY date DESC`,
		strings.ToUpper(symbol), from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()
	return scanPrices(rows)
}

// AnyPrices returns the newest stored records for a symbol regardless of
// date range, used when everything fresher has failed.
func (s *Store) AnyPrices(ctx context.Context, symbol string, limit int) ([]model.PriceRecord, error) {
	if limit <= 0 {
		limit = 365
	}
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, date, open, high, low, close, volume, source, created_at, updated_at
		FROM historical_prices
		WHERE symbol=?
		ORDER BY date DESC
		LIMIT ?`,
		strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("query any: %w", err)
	}
	defer rows.Close()
	return scanPrices(rows)
}

// PruneOld deletes records older than cutoff for symbols whose priority
// is below maxPriority. Returns rows deleted.
func (s *Store) PruneOld(ctx context.Context, cutoff time.Time, maxPriority int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM historical_prices
		WHERE date < ?
		AND symbol IN (SELECT symbol FROM collection_metadata WHERE priority < ?)`,
		cutoff.Format(dateLayout), maxPriority)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}

func scanPrices(rows *sql.Rows) ([]model.PriceRecord, error) {
	var records []model.PriceRecord
	for rows.Next() {
		var (
			r                    model.PriceRecord
			date                 string
			volume               sql.NullInt64
			open, high, low      sql.NullFloat64
			source               sql.NullString
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&r.Symbol, &date, &open, &high, &low, &r.Close, &volume, &source, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		r.Date = d
		r.Open = open.Float64
		r.High = high.Float64
		r.Low = low.Float64
		r.Volume = volume.Int64
		r.Source = source.String
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}
