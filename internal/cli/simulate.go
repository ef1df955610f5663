package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/yangluo1024/store-contracts/internal/app"
)

var (
	simulateAccounts int
	simulateDays     int
	simulateSeed     int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "在内存中模拟多账户多周期的奖励分配",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAccounts <= 0 || simulateDays <= 0 {
			return errors.New("--accounts 与 --days 必须大于 0")
		}

		opts := app.SimulateOptions{
			Accounts: simulateAccounts,
			Days:     simulateDays,
			Seed:     simulateSeed,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateAccounts, "accounts", 5, "模拟账户数量")
	simulateCmd.Flags().IntVar(&simulateDays, "days", 30, "模拟天数")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 42, "随机种子")
}
