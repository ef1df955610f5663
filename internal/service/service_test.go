package service

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/yangluo1024/store-contracts/internal/economy"
	"github.com/yangluo1024/store-contracts/internal/storage"
)

var (
	admin = common.HexToAddress("0x0000000000000000000000000000000000000010")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type testClock struct {
	now uint64
}

func (c *testClock) Now() uint64 { return c.now }

type memEpochStore struct {
	records []storage.EpochRecord
}

func (m *memEpochStore) InsertEpoch(ctx context.Context, epoch storage.EpochRecord) error {
	for _, r := range m.records {
		if r.Stream == epoch.Stream && r.Index == epoch.Index {
			return nil
		}
	}
	m.records = append(m.records, epoch)
	return nil
}

func (m *memEpochStore) ListEpochs(ctx context.Context, stream string) ([]storage.EpochRecord, error) {
	var out []storage.EpochRecord
	for _, r := range m.records {
		if r.Stream == stream {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memEpochStore) ListRecentEpochs(ctx context.Context, limit int) ([]storage.EpochRecord, error) {
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[len(m.records)-limit:], nil
}

func (m *memEpochStore) CountEpochs(ctx context.Context, stream string) (int64, error) {
	var n int64
	for _, r := range m.records {
		if r.Stream == stream {
			n++
		}
	}
	return n, nil
}

type memSnapshotStore struct {
	snapshots []storage.SnapshotRecord
}

func (m *memSnapshotStore) SaveSnapshot(ctx context.Context, takenAt time.Time, state []byte) (int64, error) {
	id := int64(len(m.snapshots) + 1)
	m.snapshots = append(m.snapshots, storage.SnapshotRecord{ID: id, TakenAt: takenAt, State: state})
	return id, nil
}

func (m *memSnapshotStore) LatestSnapshot(ctx context.Context) (storage.SnapshotRecord, error) {
	if len(m.snapshots) == 0 {
		return storage.SnapshotRecord{}, pgx.ErrNoRows
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

func (m *memSnapshotStore) DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) error {
	var kept []storage.SnapshotRecord
	for _, s := range m.snapshots {
		if !s.TakenAt.Before(olderThan) {
			kept = append(kept, s)
		}
	}
	m.snapshots = kept
	return nil
}

func testEconomy(clk *testClock) *economy.Economy {
	return economy.New(economy.Params{
		Owner:             admin,
		EpochInterval:     1000,
		InitialDailyAward: big.NewInt(10000),
		BlockTime:         6000,
	}, clk.Now)
}

func TestSealTickPersistsEpochAndSnapshot(t *testing.T) {
	clk := &testClock{now: 1_000_000}
	eco := testEconomy(clk)
	epochs := &memEpochStore{}
	snaps := &memSnapshotStore{}
	svc := New(eco, nil, epochs, snaps, zerolog.Nop())

	if err := eco.RELP.Mint(admin, alice, big.NewInt(100)); err != nil {
		t.Fatalf("铸造失败: %v", err)
	}

	clk.now += 2500
	tick := time.UnixMilli(int64(clk.now))
	if err := svc.SealTick(context.Background(), tick); err != nil {
		t.Fatalf("封存失败: %v", err)
	}

	// 经过两个完整周期, 应封存为一条合并奖励记录
	n, _ := epochs.CountEpochs(context.Background(), storage.StreamBlock)
	if n != 1 {
		t.Fatalf("应持久化 1 条奖励期记录, 实际 %d", n)
	}
	rec := epochs.records[0]
	if rec.Stream != storage.StreamBlock || rec.Index != 0 {
		t.Fatalf("记录流或序号错误: %+v", rec)
	}
	// 两期衰减发放: 10000 + 9900
	if got := rec.Amount.String(); got != "19900" {
		t.Fatalf("奖励金额应为 19900, 实际 %s", got)
	}
	if len(snaps.snapshots) != 1 {
		t.Fatalf("应持久化 1 份快照, 实际 %d", len(snaps.snapshots))
	}
	var snap economy.Snapshot
	if err := json.Unmarshal(snaps.snapshots[0].State, &snap); err != nil {
		t.Fatalf("快照内容不可解析: %v", err)
	}
}

func TestSealTickSkipsWhenNothingElapsed(t *testing.T) {
	clk := &testClock{now: 1_000_000}
	eco := testEconomy(clk)
	epochs := &memEpochStore{}
	snaps := &memSnapshotStore{}
	svc := New(eco, nil, epochs, snaps, zerolog.Nop())

	// 无持仓时不发放
	clk.now += 2000
	if err := svc.SealTick(context.Background(), time.UnixMilli(int64(clk.now))); err != nil {
		t.Fatalf("无持仓时应静默跳过: %v", err)
	}
	if err := eco.RELP.Mint(admin, alice, big.NewInt(100)); err != nil {
		t.Fatalf("铸造失败: %v", err)
	}
	// 周期未满时不发放
	clk.now += 500
	if err := svc.SealTick(context.Background(), time.UnixMilli(int64(clk.now))); err != nil {
		t.Fatalf("周期未满时应静默跳过: %v", err)
	}
	if len(epochs.records) != 0 || len(snaps.snapshots) != 0 {
		t.Fatalf("跳过时不应写入任何记录")
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	clk := &testClock{now: 1_000_000}
	eco := testEconomy(clk)
	epochs := &memEpochStore{}
	snaps := &memSnapshotStore{}
	svc := New(eco, nil, epochs, snaps, zerolog.Nop())

	if err := eco.RELP.Mint(admin, alice, big.NewInt(100)); err != nil {
		t.Fatalf("铸造失败: %v", err)
	}
	clk.now += 1000
	if err := svc.SealTick(context.Background(), time.UnixMilli(int64(clk.now))); err != nil {
		t.Fatalf("封存失败: %v", err)
	}

	// 新进程从同一批存储中恢复
	eco2 := testEconomy(clk)
	svc2 := New(eco2, nil, epochs, snaps, zerolog.Nop())
	if err := svc2.Restore(context.Background()); err != nil {
		t.Fatalf("恢复失败: %v", err)
	}
	if got := eco2.RELP.BalanceOf(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("恢复后余额应为 100, 实际 %s", got)
	}
	if svc2.nextBlock != 1 || svc2.nextIssue != 0 {
		t.Fatalf("持久化游标应为 (1, 0), 实际 (%d, %d)", svc2.nextBlock, svc2.nextIssue)
	}

	// 游标就位后再封存不会重写旧记录
	clk.now += 1000
	if err := svc2.SealTick(context.Background(), time.UnixMilli(int64(clk.now))); err != nil {
		t.Fatalf("恢复后封存失败: %v", err)
	}
	n, _ := epochs.CountEpochs(context.Background(), storage.StreamBlock)
	if n != 2 {
		t.Fatalf("应累计 2 条奖励期记录, 实际 %d", n)
	}
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	clk := &testClock{now: 1_000_000}
	eco := testEconomy(clk)
	svc := New(eco, nil, &memEpochStore{}, &memSnapshotStore{}, zerolog.Nop())

	if err := svc.Restore(context.Background()); err != nil {
		t.Fatalf("无快照时应正常启动: %v", err)
	}
}
