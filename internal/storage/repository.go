package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertEpochSQL = `INSERT INTO reward_epochs (
        stream,
        epoch_index,
        amount,
        total_coinday,
        sealed_at_ms
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (stream, epoch_index) DO NOTHING;`

	listEpochsSQL = `SELECT
        stream,
        epoch_index,
        amount,
        total_coinday,
        sealed_at_ms,
        created_at
    FROM reward_epochs
    WHERE stream = $1
    ORDER BY epoch_index;`

	listRecentEpochsSQL = `SELECT
        stream,
        epoch_index,
        amount,
        total_coinday,
        sealed_at_ms,
        created_at
    FROM reward_epochs
    ORDER BY sealed_at_ms DESC, stream
    LIMIT $1;`

	countEpochsSQL = `SELECT COUNT(*) FROM reward_epochs WHERE stream = $1;`

	insertSnapshotSQL = `INSERT INTO state_snapshots (
        taken_at,
        state
    ) VALUES (
        $1,$2
    )
    RETURNING id;`

	latestSnapshotSQL = `SELECT id, taken_at, state
    FROM state_snapshots
    ORDER BY id DESC
    LIMIT 1;`

	deleteSnapshotsBeforeSQL = `DELETE FROM state_snapshots WHERE taken_at < $1;`
)

// EpochStore defines operations for sealed epoch persistence.
type EpochStore interface {
	InsertEpoch(ctx context.Context, epoch EpochRecord) error
	ListEpochs(ctx context.Context, stream string) ([]EpochRecord, error)
	ListRecentEpochs(ctx context.Context, limit int) ([]EpochRecord, error)
	CountEpochs(ctx context.Context, stream string) (int64, error)
}

// SnapshotStore defines operations for state snapshot persistence.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, takenAt time.Time, state []byte) (int64, error)
	LatestSnapshot(ctx context.Context) (SnapshotRecord, error)
	DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) error
}

// Store aggregates access to epoch history and state snapshots.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertEpoch persists a sealed epoch. Re-inserting the same
// (stream, index) row is a no-op so restarts can replay safely.
func (s *Store) InsertEpoch(ctx context.Context, epoch EpochRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertEpochSQL,
		epoch.Stream,
		int64(epoch.Index),
		epoch.Amount.String(),
		epoch.TotalCoinday.String(),
		epoch.SealedAtMs,
	)
	if execErr != nil {
		return fmt.Errorf("insert epoch: %w", execErr)
	}
	return nil
}

// ListEpochs lists every sealed epoch of one stream in index order.
func (s *Store) ListEpochs(ctx context.Context, stream string) ([]EpochRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEpochsSQL, stream)
	if queryErr != nil {
		return nil, fmt.Errorf("list epochs: %w", queryErr)
	}
	defer rows.Close()

	epochs := make([]EpochRecord, 0)
	for rows.Next() {
		epoch, scanErr := scanEpoch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		epochs = append(epochs, epoch)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return epochs, nil
}

// ListRecentEpochs lists the most recently sealed epochs across streams.
func (s *Store) ListRecentEpochs(ctx context.Context, limit int) ([]EpochRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEpochsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent epochs: %w", queryErr)
	}
	defer rows.Close()

	epochs := make([]EpochRecord, 0, limit)
	for rows.Next() {
		epoch, scanErr := scanEpoch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		epochs = append(epochs, epoch)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return epochs, nil
}

// CountEpochs counts stored epochs of one stream.
func (s *Store) CountEpochs(ctx context.Context, stream string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countEpochsSQL, stream).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count epochs: %w", scanErr)
	}
	return count, nil
}

// SaveSnapshot persists a serialized economy state.
func (s *Store) SaveSnapshot(ctx context.Context, takenAt time.Time, state []byte) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	if scanErr := pool.QueryRow(ctx, insertSnapshotSQL, takenAt, state).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("save snapshot: %w", scanErr)
	}
	return id, nil
}

// LatestSnapshot returns the newest stored snapshot, or pgx.ErrNoRows
// when none exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SnapshotRecord{}, err
	}

	var rec SnapshotRecord
	if scanErr := pool.QueryRow(ctx, latestSnapshotSQL).Scan(&rec.ID, &rec.TakenAt, &rec.State); scanErr != nil {
		return SnapshotRecord{}, scanErr
	}
	return rec, nil
}

// DeleteSnapshotsBefore deletes historical snapshots.
func (s *Store) DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSnapshotsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete snapshots before: %w", execErr)
	}
	return nil
}

// IsNoRows reports whether err means an absent row.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func scanEpoch(rows pgx.Rows) (EpochRecord, error) {
	var (
		stream     string
		index      int64
		amountStr  string
		totalStr   string
		sealedAtMs int64
		createdAt  time.Time
	)

	if err := rows.Scan(
		&stream,
		&index,
		&amountStr,
		&totalStr,
		&sealedAtMs,
		&createdAt,
	); err != nil {
		return EpochRecord{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return EpochRecord{}, fmt.Errorf("parse epoch amount: %w", err)
	}
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return EpochRecord{}, fmt.Errorf("parse total coinday: %w", err)
	}

	return EpochRecord{
		Stream:       stream,
		Index:        uint32(index),
		Amount:       amount,
		TotalCoinday: total,
		SealedAtMs:   sealedAtMs,
		CreatedAt:    createdAt,
	}, nil
}
