package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yangluo1024/store-contracts/internal/economy"
	"github.com/yangluo1024/store-contracts/internal/storage"
)

// Show prints the latest persisted economy state and recent epochs.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show state")
	}
	if closeStore != nil {
		defer closeStore()
	}

	rec, err := store.LatestSnapshot(ctx)
	if err != nil && !storage.IsNoRows(err) {
		return err
	}

	if err == nil {
		eco, buildErr := a.newEconomy()
		if buildErr != nil {
			return buildErr
		}
		var snap economy.Snapshot
		if err := json.Unmarshal(rec.State, &snap); err != nil {
			return fmt.Errorf("decode snapshot %d: %w", rec.ID, err)
		}
		if err := eco.Restore(snap); err != nil {
			return fmt.Errorf("restore snapshot %d: %w", rec.ID, err)
		}
		printStatus(eco.Status(), rec.TakenAt)
	} else {
		fmt.Fprintln(os.Stdout, "no snapshot found")
	}

	epochs, err := store.ListRecentEpochs(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(epochs) == 0 {
		fmt.Fprintln(os.Stdout, "no sealed epochs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Sealed (UTC)\tStream\tEpoch\tAmount\tTotal Coinday")
	for _, epoch := range epochs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\n",
			time.UnixMilli(epoch.SealedAtMs).UTC().Format(time.RFC3339),
			epoch.Stream,
			epoch.Index,
			formatUnits(epoch.Amount),
			epoch.TotalCoinday.String(),
		)
	}
	writer.Flush()
	return nil
}

func printStatus(st economy.Status, takenAt time.Time) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Snapshot taken\t%s\n", takenAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(writer, "Block height\t%d\n", st.Height)
	fmt.Fprintf(writer, "RELP supply\t%s\n", formatBaseUnits(st.RELPSupply))
	fmt.Fprintf(writer, "ELC supply\t%s\n", formatBaseUnits(st.ELCSupply))
	fmt.Fprintf(writer, "Block epochs sealed\t%d\n", st.BlockAwards)
	fmt.Fprintf(writer, "Issuance epochs sealed\t%d\n", st.IssueAwards)
	fmt.Fprintf(writer, "Block rewards emitted\t%s\n", formatBaseUnits(st.BlockTotalReward))
	fmt.Fprintf(writer, "Issuance rewards emitted\t%s\n", formatBaseUnits(st.IssueTotalReward))
	fmt.Fprintf(writer, "Current daily award\t%s\n", formatBaseUnits(st.DailyAward))
	// elcaim 以 1e5 为基数。
	fmt.Fprintf(writer, "ELC aim price\t%s\n", decimal.NewFromBigInt(st.Elcaim, 0).Shift(-5).StringFixed(5))
	fmt.Fprintf(writer, "Inflation factor k\t%s\n", st.K.String())
	writer.Flush()
	fmt.Fprintln(os.Stdout)
}

// formatUnits renders a base-unit decimal with 8 display decimals.
func formatUnits(d decimal.Decimal) string {
	return d.Shift(-8).StringFixed(8)
}

func formatBaseUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return formatUnits(decimal.NewFromBigInt(v, 0))
}
