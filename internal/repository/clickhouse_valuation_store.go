package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ValueFlow/internal/domain/models"
	pkgch "ValueFlow/pkg/clickhouse"
	applogger "ValueFlow/pkg/logger"
)

// CHValuationStore persists window output into ClickHouse.
type CHValuationStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHValuationStore(ch *pkgch.Client) *CHValuationStore {
	return &CHValuationStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHValuationStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init ensures the valuation tables exist (idempotent).
func (s *CHValuationStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vf_resolutions (
            window_id   String,
            item_id     Int64,
            symbol      String,
            base_id     Int64,
            base_symbol String,
            value       Float64,
            confidence  Float64,
            path        Array(Int64),
            ts          DateTime64(9),
            inserted_at DateTime DEFAULT now()
        ) ENGINE = MergeTree()
        ORDER BY (symbol, ts)`,
		`CREATE TABLE IF NOT EXISTS vf_processing_log (
            window_id         String,
            window_start      DateTime64(9),
            window_end        DateTime64(9),
            status            String,
            records_ingested  Int64,
            points_merged     Int64,
            items_resolved    Int64,
            items_unreachable Int64,
            source_failures   Map(String, String),
            started_at        DateTime64(9),
            finished_at       DateTime64(9)
        ) ENGINE = MergeTree()
        ORDER BY (window_start, window_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init valuation schema: %w", err)
		}
	}
	return nil
}

// StoreResolutions writes one window's resolutions as a single multi-row insert.
func (s *CHValuationStore) StoreResolutions(ctx context.Context, windowID string, res []models.Resolution) error {
	if len(res) == 0 {
		return nil
	}
	start := time.Now()

	// Chunk to bound statement size.
	const chunkSize = 2000
	for lo := 0; lo < len(res); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(res) {
			hi = len(res)
		}

		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*9)
		for _, r := range res[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				windowID,
				r.ItemID,
				r.Symbol,
				r.BaseID,
				r.BaseSymbol,
				r.Value,
				r.Confidence,
				r.Path,
				r.Timestamp,
			)
		}
		q := "INSERT INTO vf_resolutions (window_id, item_id, symbol, base_id, base_symbol, value, confidence, path, ts) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store_resolutions error",
					applogger.String("window_id", windowID),
					applogger.Int("rows", hi-lo),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store resolutions: %w", err)
		}
	}

	if s.l != nil {
		s.l.Info("clickhouse store_resolutions ok",
			applogger.String("window_id", windowID),
			applogger.Int("rows", len(res)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// StoreLog writes one processing log row.
func (s *CHValuationStore) StoreLog(ctx context.Context, log models.ProcessingLog) error {
	const q = `INSERT INTO vf_processing_log
        (window_id, window_start, window_end, status, records_ingested, points_merged,
         items_resolved, items_unreachable, source_failures, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	failures := log.SourceFailures
	if failures == nil {
		failures = map[string]string{}
	}
	_, err := s.db.ExecContext(ctx, q,
		log.WindowID,
		log.WindowStart,
		log.WindowEnd,
		string(log.Status),
		int64(log.RecordsIngested),
		int64(log.PointsMerged),
		int64(log.ItemsResolved),
		int64(log.ItemsUnreachable),
		failures,
		log.StartedAt,
		log.FinishedAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_log error",
				applogger.String("window_id", log.WindowID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store processing log: %w", err)
	}
	return nil
}

// LatestResolutions returns resolutions for a symbol within [from, to], newest first.
// An empty symbol returns rows for all symbols.
func (s *CHValuationStore) LatestResolutions(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Resolution, error) {
	start := time.Now()
	var (
		q    string
		args []interface{}
	)
	if symbol != "" {
		q = `SELECT item_id, symbol, base_id, base_symbol, value, confidence, path, ts
             FROM vf_resolutions
             WHERE symbol = ? AND ts >= ? AND ts <= ?
             ORDER BY ts DESC LIMIT ?`
		args = []interface{}{symbol, from, to, limit}
	} else {
		q = `SELECT item_id, symbol, base_id, base_symbol, value, confidence, path, ts
             FROM vf_resolutions
             WHERE ts >= ? AND ts <= ?
             ORDER BY ts DESC LIMIT ?`
		args = []interface{}{from, to, limit}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_resolutions query error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("latest resolutions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Resolution, 0, limit)
	for rows.Next() {
		var r models.Resolution
		if err := rows.Scan(&r.ItemID, &r.Symbol, &r.BaseID, &r.BaseSymbol, &r.Value, &r.Confidence, &r.Path, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_resolutions ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHValuationStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHValuationStore) Close() error {
	return nil // connection pool owned by pkg client
}
