package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/yangluo1024/store-contracts/internal/coinday"
	"github.com/yangluo1024/store-contracts/internal/economy"
)

const dayMs = uint64(24 * 60 * 60 * 1000)

// Simulate 在内存中跑一个多账户多周期的奖励分配场景。
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Accounts <= 0 || opts.Days <= 0 {
		return errors.New("--accounts 与 --days 必须大于 0")
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	now := uint64(1_600_000_000_000)
	clock := func() uint64 { return now }

	params, err := a.Config.Economy.Params()
	if err != nil {
		return err
	}
	// 模拟固定按天封存。
	params.EpochInterval = dayMs

	eco := economy.New(params, clock)
	owner := params.Owner

	accounts := make([]common.Address, opts.Accounts)
	for i := range accounts {
		var raw [20]byte
		rng.Read(raw[:])
		accounts[i] = common.BytesToAddress(raw[:])
	}

	unit := big.NewInt(100000000)
	for _, account := range accounts {
		amount := new(big.Int).Mul(big.NewInt(int64(rng.Intn(900)+100)), unit)
		if err := eco.RELP.Mint(owner, account, amount); err != nil {
			return fmt.Errorf("mint to %s: %w", account.Hex(), err)
		}
	}

	sealed := 0
	for day := 1; day <= opts.Days; day++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now += dayMs

		// 随机转账，触发在途奖励的结算。
		if opts.Accounts > 1 && rng.Intn(2) == 0 {
			from := accounts[rng.Intn(len(accounts))]
			to := accounts[rng.Intn(len(accounts))]
			balance := eco.RELP.BalanceOf(from)
			if from != to && balance.Sign() > 0 {
				value := new(big.Int).Div(balance, big.NewInt(int64(rng.Intn(9)+2)))
				if value.Sign() > 0 {
					if err := eco.RELP.Transfer(from, to, value); err != nil &&
						!errors.Is(err, coinday.ErrNeedLiquidate) {
						return fmt.Errorf("day %d transfer: %w", day, err)
					}
				}
			}
		}

		if _, _, err := eco.RELP.SealBlockAwards(owner); err != nil {
			if !errors.Is(err, coinday.ErrIntervalTooShort) {
				return fmt.Errorf("day %d seal: %w", day, err)
			}
		} else {
			sealed++
		}

		// 每 7 天记录一次增发奖励，模拟稳定币扩张。
		if day%7 == 0 {
			amount := new(big.Int).Mul(big.NewInt(1000), unit)
			if _, _, err := eco.RELP.RecordIssuanceAward(owner, amount); err != nil {
				return fmt.Errorf("day %d issuance: %w", day, err)
			}
		}
	}

	// 清算所有积压，把奖励落账。
	for _, account := range accounts {
		for {
			if err := eco.RELP.LiquidateBlockReward(account); err != nil {
				if errors.Is(err, coinday.ErrNoBacklog) {
					break
				}
				return fmt.Errorf("liquidate block reward for %s: %w", account.Hex(), err)
			}
		}
		for {
			if err := eco.RELP.LiquidateIssuanceReward(account); err != nil {
				if errors.Is(err, coinday.ErrNoBacklog) {
					break
				}
				return fmt.Errorf("liquidate issuance reward for %s: %w", account.Hex(), err)
			}
		}
	}

	printSimulation(eco, accounts, sealed, opts.Days)
	return nil
}

func printSimulation(eco *economy.Economy, accounts []common.Address, sealed, days int) {
	fmt.Fprintf(os.Stdout, "simulated %d days, sealed %d block epochs\n\n", days, sealed)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Account\tRELP Balance\tBlock Reward (ELP)\tIssuance Reward (ELC)")

	distributed := new(big.Int)
	for _, account := range accounts {
		blockReward := eco.BlockLedger.RewardOf(account)
		distributed.Add(distributed, blockReward)
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			account.Hex(),
			formatBaseUnits(eco.RELP.BalanceOf(account)),
			formatBaseUnits(blockReward),
			formatBaseUnits(eco.ELC.BalanceOf(account)),
		)
	}
	writer.Flush()

	total := eco.BlockLedger.TotalReward()
	dust := new(big.Int).Sub(total, distributed)
	fmt.Fprintf(os.Stdout, "\nblock rewards emitted: %s, distributed: %s, dust: %s\n",
		formatBaseUnits(total), formatBaseUnits(distributed), dust.String())
	fmt.Fprintf(os.Stdout, "ELC supply: %s\n",
		decimal.NewFromBigInt(eco.ELC.TotalSupply(), 0).Shift(-8).StringFixed(8))
}
