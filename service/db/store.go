package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brojonat/solsweep/service/metrics"
	"github.com/brojonat/solsweep/service/reclaim"
)

//go:embed schema.sql
var schema string

// Store persists reclaim runs and wallet scans in Postgres.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Open connects to databaseURL, verifies the connection and applies the schema.
func Open(ctx context.Context, databaseURL string, m *metrics.Metrics) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store := NewStore(pool, m)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ReclaimRecord is one stored wallet run.
type ReclaimRecord struct {
	ID                    int64     `json:"id"`
	Wallet                string    `json:"wallet"`
	Mode                  string    `json:"mode"`
	DryRun                bool      `json:"dry_run"`
	TotalAccounts         int       `json:"total_accounts"`
	Candidates            int       `json:"candidates"`
	CandidateRentLamports int64     `json:"candidate_rent_lamports"`
	Batches               int       `json:"batches"`
	Closed                int       `json:"closed"`
	ReclaimedLamports     int64     `json:"reclaimed_lamports"`
	FailedBatches         int       `json:"failed_batches"`
	Signatures            []string  `json:"signatures"`
	RelayURI              *string   `json:"relay_uri,omitempty"`
	SessionID             *string   `json:"session_id,omitempty"`
	Success               bool      `json:"success"`
	Error                 *string   `json:"error,omitempty"`
	StartedAt             time.Time `json:"started_at"`
	FinishedAt            time.Time `json:"finished_at"`
	CreatedAt             time.Time `json:"created_at"`
}

// RecordWalletResult stores the outcome of one pipeline run.
func (s *Store) RecordWalletResult(ctx context.Context, res reclaim.WalletResult) error {
	start := time.Now()
	signatures := res.Signatures
	if signatures == nil {
		signatures = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reclaim_results (
			wallet, mode, dry_run, total_accounts, candidates, candidate_rent_lamports,
			batches, closed, reclaimed_lamports, failed_batches, signatures,
			relay_uri, session_id, success, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		res.Wallet.String(), res.Mode, res.DryRun, res.TotalAccounts, res.Candidates,
		int64(res.CandidateRentLamports), res.Batches, res.Closed, int64(res.ReclaimedLamports),
		res.FailedBatches, signatures, pgtextFromString(res.RelayURI), pgtextFromString(res.SessionID),
		res.Success, pgtextFromString(res.Error),
		pgtype.Timestamptz{Time: res.StartedAt, Valid: true},
		pgtype.Timestamptz{Time: res.FinishedAt, Valid: true},
	)
	s.recordQuery("insert", "reclaim_results", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert reclaim result: %w", err)
	}
	return nil
}

// ListReclaimResults returns a wallet's most recent runs, newest first.
func (s *Store) ListReclaimResults(ctx context.Context, wallet string, limit int32) ([]*ReclaimRecord, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT id, wallet, mode, dry_run, total_accounts, candidates, candidate_rent_lamports,
			batches, closed, reclaimed_lamports, failed_batches, signatures,
			relay_uri, session_id, success, error, started_at, finished_at, created_at
		FROM reclaim_results
		WHERE wallet = $1
		ORDER BY finished_at DESC
		LIMIT $2`, wallet, limit)
	if err != nil {
		s.recordQuery("select", "reclaim_results", start, err)
		return nil, fmt.Errorf("failed to list reclaim results: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*ReclaimRecord, error) {
		var (
			r                           ReclaimRecord
			relayURI, sessionID, errMsg pgtype.Text
		)
		err := row.Scan(&r.ID, &r.Wallet, &r.Mode, &r.DryRun, &r.TotalAccounts, &r.Candidates,
			&r.CandidateRentLamports, &r.Batches, &r.Closed, &r.ReclaimedLamports, &r.FailedBatches,
			&r.Signatures, &relayURI, &sessionID, &r.Success, &errMsg,
			&r.StartedAt, &r.FinishedAt, &r.CreatedAt)
		r.RelayURI = stringPtrFromPgtext(relayURI)
		r.SessionID = stringPtrFromPgtext(sessionID)
		r.Error = stringPtrFromPgtext(errMsg)
		return &r, err
	})
	s.recordQuery("select", "reclaim_results", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reclaim results: %w", err)
	}
	return records, nil
}

// WalletScan is one stored health scan.
type WalletScan struct {
	ID int64 `json:"id"`
	reclaim.ScanReport
}

// RecordScan stores a health scan.
func (s *Store) RecordScan(ctx context.Context, report *reclaim.ScanReport) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wallet_scans (
			wallet, balance_lamports, total_accounts, empty_accounts, with_balance,
			delegated, frozen, unique_mints, closeable, rent_locked_lamports,
			reclaimable_rent_lamports, health_score, scanned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		report.Wallet, int64(report.BalanceLamports), report.TotalAccounts, report.EmptyAccounts,
		report.WithBalance, report.Delegated, report.Frozen, report.UniqueMints, report.Closeable,
		int64(report.RentLockedLamports), int64(report.ReclaimableRent), report.HealthScore,
		pgtype.Timestamptz{Time: report.ScannedAt, Valid: true},
	)
	s.recordQuery("insert", "wallet_scans", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert wallet scan: %w", err)
	}
	return nil
}

// ListScans returns a wallet's most recent scans, newest first.
func (s *Store) ListScans(ctx context.Context, wallet string, limit int32) ([]*WalletScan, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT id, wallet, balance_lamports, total_accounts, empty_accounts, with_balance,
			delegated, frozen, unique_mints, closeable, rent_locked_lamports,
			reclaimable_rent_lamports, health_score, scanned_at
		FROM wallet_scans
		WHERE wallet = $1
		ORDER BY scanned_at DESC
		LIMIT $2`, wallet, limit)
	if err != nil {
		s.recordQuery("select", "wallet_scans", start, err)
		return nil, fmt.Errorf("failed to list wallet scans: %w", err)
	}

	scans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*WalletScan, error) {
		var (
			ws                                  WalletScan
			balance, rentLocked, rentReclaimable int64
		)
		err := row.Scan(&ws.ID, &ws.Wallet, &balance, &ws.TotalAccounts, &ws.EmptyAccounts,
			&ws.WithBalance, &ws.Delegated, &ws.Frozen, &ws.UniqueMints, &ws.Closeable,
			&rentLocked, &rentReclaimable, &ws.HealthScore, &ws.ScannedAt)
		ws.BalanceLamports = uint64(balance)
		ws.RentLockedLamports = uint64(rentLocked)
		ws.ReclaimableRent = uint64(rentReclaimable)
		return &ws, err
	})
	s.recordQuery("select", "wallet_scans", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to scan wallet scans: %w", err)
	}
	return scans, nil
}

func (s *Store) recordQuery(op, table string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(op, table, time.Since(start).Seconds(), err)
	}
}

// pgtextFromString converts a string to pgtype.Text; empty is NULL.
func pgtextFromString(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// stringPtrFromPgtext converts pgtype.Text to *string.
func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
