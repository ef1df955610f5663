package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yangluo1024/store-contracts/internal/coinday"
	"github.com/yangluo1024/store-contracts/internal/economy"
	"github.com/yangluo1024/store-contracts/internal/scheduler"
	"github.com/yangluo1024/store-contracts/internal/storage"
	"github.com/yangluo1024/store-contracts/internal/token"
)

// Service orchestrates epoch sealing, persistence, and recovery.
type Service struct {
	scheduler *scheduler.Scheduler
	eco       *economy.Economy
	epochs    storage.EpochStore
	snapshots storage.SnapshotStore
	logger    zerolog.Logger

	// next epoch index to persist, per stream
	nextBlock uint32
	nextIssue uint32
}

// New constructs the node service.
func New(eco *economy.Economy, sched *scheduler.Scheduler, epochs storage.EpochStore, snapshots storage.SnapshotStore, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		eco:       eco,
		epochs:    epochs,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Restore loads the newest snapshot, if any, and rewinds the persistence
// cursors to the stored epoch history.
func (s *Service) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}

	rec, err := s.snapshots.LatestSnapshot(ctx)
	if err != nil {
		if storage.IsNoRows(err) {
			s.logger.Info().Msg("no snapshot found, starting from genesis state")
			return nil
		}
		return fmt.Errorf("load latest snapshot: %w", err)
	}

	var snap economy.Snapshot
	if err := json.Unmarshal(rec.State, &snap); err != nil {
		return fmt.Errorf("decode snapshot %d: %w", rec.ID, err)
	}
	if err := s.eco.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot %d: %w", rec.ID, err)
	}

	if s.epochs != nil {
		blockCount, err := s.epochs.CountEpochs(ctx, storage.StreamBlock)
		if err != nil {
			return fmt.Errorf("count block epochs: %w", err)
		}
		issueCount, err := s.epochs.CountEpochs(ctx, storage.StreamIssue)
		if err != nil {
			return fmt.Errorf("count issue epochs: %w", err)
		}
		s.nextBlock = uint32(blockCount)
		s.nextIssue = uint32(issueCount)
	}

	s.logger.Info().
		Int64("snapshot_id", rec.ID).
		Time("taken_at", rec.TakenAt).
		Uint32("block_epochs", s.nextBlock).
		Uint32("issue_epochs", s.nextIssue).
		Msg("state restored from snapshot")
	return nil
}

// Run begins the periodic sealing loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.SealTick)
}

// SealTick 封存所有已到期的区块奖励期，并持久化结果。
func (s *Service) SealTick(ctx context.Context, tick time.Time) error {
	award, index, err := s.eco.RELP.SealBlockAwards(s.eco.Owner())
	switch {
	case errors.Is(err, coinday.ErrIntervalTooShort):
		s.logger.Debug().Time("tick", tick).Msg("no epoch elapsed yet")
		return nil
	case errors.Is(err, token.ErrInsufficientSupply):
		s.logger.Debug().Time("tick", tick).Msg("no holders yet, emission deferred")
		return nil
	case err != nil:
		return fmt.Errorf("seal block awards: %w", err)
	}

	s.logger.Info().
		Uint32("epoch_index", index).
		Str("amount", award.Amount.String()).
		Msg("block award epoch sealed")

	s.persistEpochs(ctx)
	s.persistSnapshot(ctx, tick)
	return nil
}

// persistEpochs writes every not-yet-stored sealed award of both streams.
// Failures are logged and retried on the next tick; the in-memory ledgers
// remain the source of truth.
func (s *Service) persistEpochs(ctx context.Context) {
	if s.epochs == nil {
		return
	}
	s.nextBlock = s.persistStream(ctx, storage.StreamBlock, s.eco.BlockLedger, s.nextBlock)
	s.nextIssue = s.persistStream(ctx, storage.StreamIssue, s.eco.IssueLedger, s.nextIssue)
}

func (s *Service) persistStream(ctx context.Context, stream string, ledger *coinday.Ledger, next uint32) uint32 {
	length := ledger.AwardsLength()
	for ; next < length; next++ {
		award, err := ledger.AwardAt(next)
		if err != nil {
			s.logger.Error().Err(err).Str("stream", stream).Uint32("epoch_index", next).Msg("read sealed award failed")
			return next
		}
		rec := storage.EpochRecord{
			Stream:       stream,
			Index:        next,
			Amount:       decimal.NewFromBigInt(award.Amount, 0),
			TotalCoinday: decimal.NewFromBigInt(award.TotalCoinday, 0),
			SealedAtMs:   int64(award.Timestamp),
		}
		if err := s.epochs.InsertEpoch(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("stream", stream).Uint32("epoch_index", next).Msg("persist epoch failed")
			return next
		}
	}
	return next
}

func (s *Service) persistSnapshot(ctx context.Context, tick time.Time) {
	if s.snapshots == nil {
		return
	}
	snap := s.eco.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode snapshot failed")
		return
	}
	id, err := s.snapshots.SaveSnapshot(ctx, tick.UTC(), payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("persist snapshot failed")
		return
	}
	s.logger.Debug().Int64("snapshot_id", id).Msg("snapshot persisted")
}
