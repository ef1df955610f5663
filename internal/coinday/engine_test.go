package coinday

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testOwner = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol     = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

type testClock struct {
	now uint64
}

func (c *testClock) Now() uint64 { return c.now }

type fixedSupply struct {
	v *big.Int
}

func (s *fixedSupply) TotalSupply() *big.Int { return new(big.Int).Set(s.v) }

func TestSettleDistributesAwardShare(t *testing.T) {
	clk := &testClock{now: 1000}
	sup := &fixedSupply{v: big.NewInt(50)}
	ledger := NewLedger(testOwner, nil, clk.Now)
	eng := NewEngine(ledger, sup, nil, testOwner, 100)

	// alice 从 1000 起持仓 50
	if err := ledger.UpdateCoindays(testOwner, alice, big.NewInt(0), 1000, 0); err != nil {
		t.Fatalf("初始化记录失败: %v", err)
	}
	if _, err := ledger.AppendAward(testOwner, big.NewInt(100), big.NewInt(1000), 1100); err != nil {
		t.Fatalf("封存奖励期失败: %v", err)
	}

	clk.now = 1100
	_, length, err := eng.Settle(alice, big.NewInt(50), clk.now)
	if err != nil {
		t.Fatalf("结算失败: %v", err)
	}
	if length != 1 {
		t.Fatalf("新检查点应为 1, 实际 %d", length)
	}

	// 币天 50*100=5000, 奖励 5000*100/1000=500
	if got := ledger.RewardOf(alice); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("结算奖励应为 500, 实际 %s", got)
	}
}

func TestSettleBacklogLimit(t *testing.T) {
	clk := &testClock{now: 1000}
	sup := &fixedSupply{v: big.NewInt(50)}
	ledger := NewLedger(testOwner, nil, clk.Now)
	eng := NewEngine(ledger, sup, nil, testOwner, 100)

	for i := 0; i < InlineEpochLimit; i++ {
		ts := uint64(1100 + i*100)
		if _, err := ledger.AppendAward(testOwner, big.NewInt(10), big.NewInt(1000), ts); err != nil {
			t.Fatalf("封存奖励期失败: %v", err)
		}
	}

	clk.now = 1600
	if _, _, err := eng.Settle(alice, big.NewInt(50), clk.now); err != nil {
		t.Fatalf("积压 %d 期应可内联结算: %v", InlineEpochLimit, err)
	}

	if _, err := ledger.AppendAward(testOwner, big.NewInt(10), big.NewInt(1000), 1700); err != nil {
		t.Fatalf("封存奖励期失败: %v", err)
	}
	if err := ledger.UpdateCoindays(testOwner, bob, big.NewInt(0), 1000, 0); err != nil {
		t.Fatalf("初始化记录失败: %v", err)
	}

	clk.now = 1700
	if _, _, err := eng.Settle(bob, big.NewInt(50), clk.now); !errors.Is(err, ErrNeedLiquidate) {
		t.Fatalf("积压超限应拒绝内联结算, 实际 %v", err)
	}
	if err := eng.CheckBacklog(bob, big.NewInt(50)); !errors.Is(err, ErrNeedLiquidate) {
		t.Fatalf("CheckBacklog 应拒绝, 实际 %v", err)
	}

	// 零余额账户没有可积的币天, 不受积压限制
	if _, _, err := eng.Settle(bob, big.NewInt(0), clk.now); err != nil {
		t.Fatalf("零余额结算应放行: %v", err)
	}
}

func TestLiquidateBatchesOfFifty(t *testing.T) {
	clk := &testClock{now: 1000}
	sup := &fixedSupply{v: big.NewInt(50)}
	ledger := NewLedger(testOwner, nil, clk.Now)
	eng := NewEngine(ledger, sup, nil, testOwner, 100)

	if err := ledger.UpdateCoindays(testOwner, alice, big.NewInt(0), 1000, 0); err != nil {
		t.Fatalf("初始化记录失败: %v", err)
	}
	const backlog = 120
	for i := 0; i < backlog; i++ {
		ts := uint64(1001 + i)
		if _, err := ledger.AppendAward(testOwner, big.NewInt(10), big.NewInt(1000), ts); err != nil {
			t.Fatalf("封存奖励期失败: %v", err)
		}
	}
	clk.now = 1000 + backlog + 1

	// ceil(120/50)=3 次清算完
	wantIndexes := []uint32{50, 100, 120}
	for i, want := range wantIndexes {
		if err := eng.Liquidate(alice, big.NewInt(50)); err != nil {
			t.Fatalf("第 %d 次清算失败: %v", i+1, err)
		}
		rec := ledger.CoindayInfoOf(alice)
		if rec.LastIndex != want {
			t.Fatalf("第 %d 次清算后检查点应为 %d, 实际 %d", i+1, want, rec.LastIndex)
		}
		last, err := ledger.AwardAt(want - 1)
		if err != nil {
			t.Fatalf("读取奖励期失败: %v", err)
		}
		if rec.Timestamp != last.Timestamp {
			t.Fatalf("检查点时间应推进到第 %d 期, 实际 %d", want-1, rec.Timestamp)
		}
	}
	if err := eng.Liquidate(alice, big.NewInt(50)); !errors.Is(err, ErrNoBacklog) {
		t.Fatalf("无积压时应返回 ErrNoBacklog, 实际 %v", err)
	}
	if ledger.RewardOf(alice).Sign() <= 0 {
		t.Fatal("持仓账户清算后奖励应为正")
	}
}

func TestLiquidateAdvancesWithZeroReward(t *testing.T) {
	clk := &testClock{now: 1000}
	sup := &fixedSupply{v: big.NewInt(0)}
	ledger := NewLedger(testOwner, nil, clk.Now)
	eng := NewEngine(ledger, sup, nil, testOwner, 100)

	for i := 0; i < 60; i++ {
		ts := uint64(1001 + i)
		if _, err := ledger.AppendAward(testOwner, big.NewInt(10), big.NewInt(1000), ts); err != nil {
			t.Fatalf("封存奖励期失败: %v", err)
		}
	}
	clk.now = 1100

	// 零余额奖励为零, 但检查点仍需推进, 否则积压永远清不完
	if err := eng.Liquidate(alice, big.NewInt(0)); err != nil {
		t.Fatalf("清算失败: %v", err)
	}
	if rec := ledger.CoindayInfoOf(alice); rec.LastIndex != 50 {
		t.Fatalf("检查点应推进到 50, 实际 %d", rec.LastIndex)
	}
	if err := eng.Liquidate(alice, big.NewInt(0)); err != nil {
		t.Fatalf("清算失败: %v", err)
	}
	if rec := ledger.CoindayInfoOf(alice); rec.LastIndex != 60 {
		t.Fatalf("检查点应推进到 60, 实际 %d", rec.LastIndex)
	}
	if got := ledger.RewardOf(alice); got.Sign() != 0 {
		t.Fatalf("零余额清算不应产生奖励, 实际 %s", got)
	}
}

func TestDecreaseCoindayTruncates(t *testing.T) {
	clk := &testClock{now: 2000}
	sup := &fixedSupply{v: big.NewInt(3)}
	ledger := NewLedger(testOwner, nil, clk.Now)
	eng := NewEngine(ledger, sup, nil, testOwner, 100)

	if err := ledger.UpdateCoindays(testOwner, alice, big.NewInt(3000), 2000, 0); err != nil {
		t.Fatalf("初始化记录失败: %v", err)
	}

	// ratio = 1*1e8/3 = 33333333, removed = 3000*33333333/1e8 = 999
	removed, err := eng.DecreaseCoinday(alice, big.NewInt(3), big.NewInt(1), 2000, 0)
	if err != nil {
		t.Fatalf("扣减失败: %v", err)
	}
	if removed.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("扣减量应为 999, 实际 %s", removed)
	}
	if rec := ledger.CoindayInfoOf(alice); rec.Amount.Cmp(big.NewInt(2001)) != 0 {
		t.Fatalf("剩余币天应为 2001, 实际 %s", rec.Amount)
	}
}

func TestDecreaseCoindayZeroBalance(t *testing.T) {
	clk := &testClock{now: 2000}
	ledger := NewLedger(testOwner, nil, clk.Now)
	eng := NewEngine(ledger, &fixedSupply{v: big.NewInt(0)}, nil, testOwner, 100)

	if _, err := eng.DecreaseCoinday(alice, big.NewInt(0), big.NewInt(1), 2000, 0); !errors.Is(err, ErrZeroBalance) {
		t.Fatalf("零余额扣减应报错, 实际 %v", err)
	}
}

func TestSealEpochsDecaysAndKeepsGrid(t *testing.T) {
	clk := &testClock{now: 1000}
	sup := &fixedSupply{v: big.NewInt(10)}
	ledger := NewLedger(testOwner, big.NewInt(100), clk.Now)
	eng := NewEngine(ledger, sup, nil, testOwner, 100)

	clk.now = 1250
	award, index, err := eng.SealEpochs(clk.now)
	if err != nil {
		t.Fatalf("封存失败: %v", err)
	}
	if index != 0 {
		t.Fatalf("首个奖励期序号应为 0, 实际 %d", index)
	}
	// 两期: 100 + 99 = 199
	if award.Amount.Cmp(big.NewInt(199)) != 0 {
		t.Fatalf("合并奖励应为 199, 实际 %s", award.Amount)
	}
	// 总币天滚动到 1250: 250*10 = 2500
	if award.TotalCoinday.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("封存时总币天应为 2500, 实际 %s", award.TotalCoinday)
	}

	daily, gridTime := ledger.DailyAward()
	// 99*99/100 整除得 98
	if daily.Cmp(big.NewInt(98)) != 0 {
		t.Fatalf("衰减后日奖励应为 98, 实际 %s", daily)
	}
	// 栅格按整倍数推进, 不贴到当前时刻
	if gridTime != 1200 {
		t.Fatalf("栅格应推进到 1200, 实际 %d", gridTime)
	}
	if got := ledger.TotalReward(); got.Cmp(big.NewInt(199)) != 0 {
		t.Fatalf("累计奖励应为 199, 实际 %s", got)
	}
}

func TestSealEpochsIntervalTooShort(t *testing.T) {
	clk := &testClock{now: 1000}
	ledger := NewLedger(testOwner, big.NewInt(100), clk.Now)
	eng := NewEngine(ledger, &fixedSupply{v: big.NewInt(10)}, nil, testOwner, 100)

	clk.now = 1099
	if _, _, err := eng.SealEpochs(clk.now); !errors.Is(err, ErrIntervalTooShort) {
		t.Fatalf("不足一期应报错, 实际 %v", err)
	}

	daily, gridTime := ledger.DailyAward()
	if daily.Cmp(big.NewInt(100)) != 0 || gridTime != 1000 {
		t.Fatalf("失败的封存不应改动日奖励, 实际 %s@%d", daily, gridTime)
	}
	if ledger.AwardsLength() != 0 {
		t.Fatal("失败的封存不应追加奖励期")
	}
}

func TestSealEpochsZeroTotalLeavesGrid(t *testing.T) {
	clk := &testClock{now: 1000}
	ledger := NewLedger(testOwner, big.NewInt(100), clk.Now)
	eng := NewEngine(ledger, &fixedSupply{v: big.NewInt(0)}, nil, testOwner, 100)

	clk.now = 1300
	if _, _, err := eng.SealEpochs(clk.now); !errors.Is(err, ErrZeroTotalCoinday) {
		t.Fatalf("总币天为零应报错, 实际 %v", err)
	}
	if _, gridTime := ledger.DailyAward(); gridTime != 1000 {
		t.Fatalf("被拒绝的封存不应推进栅格, 实际 %d", gridTime)
	}
}

func TestEmitAppendsAward(t *testing.T) {
	clk := &testClock{now: 1000}
	sup := &fixedSupply{v: big.NewInt(10)}
	ledger := NewLedger(testOwner, nil, clk.Now)
	eng := NewEngine(ledger, sup, nil, testOwner, 100)

	clk.now = 1100
	award, index, err := eng.Emit(clk.now, big.NewInt(77))
	if err != nil {
		t.Fatalf("Emit 失败: %v", err)
	}
	if index != 0 || award.Amount.Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("奖励期不正确: index=%d amount=%s", index, award.Amount)
	}
	if award.TotalCoinday.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("总币天应为 1000, 实际 %s", award.TotalCoinday)
	}
	if got := ledger.TotalReward(); got.Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("累计奖励应为 77, 实际 %s", got)
	}
	if ledger.AwardsLength() != 1 {
		t.Fatal("应追加一个奖励期")
	}
}

func TestRealignDailyAwardOnlyFromDeploy(t *testing.T) {
	clk := &testClock{now: 1000}
	ledger := NewLedger(testOwner, big.NewInt(100), clk.Now)
	eng := NewEngine(ledger, &fixedSupply{v: big.NewInt(10)}, nil, testOwner, 100)

	if err := eng.RealignDailyAward(1500); err != nil {
		t.Fatalf("对齐失败: %v", err)
	}
	if _, gridTime := ledger.DailyAward(); gridTime != 1500 {
		t.Fatalf("栅格应对齐到 1500, 实际 %d", gridTime)
	}

	// 栅格已离开部署时刻, 再次对齐是空操作
	if err := eng.RealignDailyAward(2000); err != nil {
		t.Fatalf("对齐失败: %v", err)
	}
	if _, gridTime := ledger.DailyAward(); gridTime != 1500 {
		t.Fatalf("二次对齐不应生效, 实际 %d", gridTime)
	}
}

func TestDistributionPreservesDust(t *testing.T) {
	clk := &testClock{now: 1000}
	sup := &fixedSupply{v: big.NewInt(3)}
	ledger := NewLedger(testOwner, nil, clk.Now)
	eng := NewEngine(ledger, sup, nil, testOwner, 100)

	holders := []common.Address{alice, bob, carol}
	for _, h := range holders {
		if err := ledger.UpdateCoindays(testOwner, h, big.NewInt(0), 1000, 0); err != nil {
			t.Fatalf("初始化记录失败: %v", err)
		}
	}

	clk.now = 1100
	if _, _, err := eng.Emit(clk.now, big.NewInt(100)); err != nil {
		t.Fatalf("Emit 失败: %v", err)
	}

	distributed := new(big.Int)
	for _, h := range holders {
		if _, _, err := eng.Settle(h, big.NewInt(1), clk.now); err != nil {
			t.Fatalf("结算失败: %v", err)
		}
		reward := ledger.RewardOf(h)
		// 每人份额 100*100/300 = 33, 截断
		if reward.Cmp(big.NewInt(33)) != 0 {
			t.Fatalf("%s 份额应为 33, 实际 %s", h.Hex(), reward)
		}
		distributed.Add(distributed, reward)
	}

	dust := new(big.Int).Sub(ledger.TotalReward(), distributed)
	if dust.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("尘埃应为 1, 实际 %s", dust)
	}
}
