package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

const minimalConfig = `
economy:
  owner: "0x00000000000000000000000000000000000000aa"
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalConfig))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.App.Name != "elpnode" {
		t.Fatalf("默认应用名应为 elpnode, 实际 %s", cfg.App.Name)
	}
	if cfg.Scheduler.Interval != time.Minute {
		t.Fatalf("默认调度间隔应为 1m, 实际 %s", cfg.Scheduler.Interval)
	}
	if cfg.Economy.EpochInterval != 30*time.Minute {
		t.Fatalf("默认奖励期间隔应为 30m, 实际 %s", cfg.Economy.EpochInterval)
	}
	if cfg.Economy.InitialDailyAward != "2000000000000" {
		t.Fatalf("默认日奖励错误: %s", cfg.Economy.InitialDailyAward)
	}
	if cfg.Economy.VotingDelayBlocks != 201600 {
		t.Fatalf("默认投票窗口错误: %d", cfg.Economy.VotingDelayBlocks)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
economy:
  owner: "0x00000000000000000000000000000000000000aa"
  epoch_interval: "24h"
  initial_daily_award: "500"
  block_time: "3s"
scheduler:
  interval: "10s"
  align_to_grid: false
`))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Economy.EpochInterval != 24*time.Hour {
		t.Fatalf("奖励期间隔应为 24h, 实际 %s", cfg.Economy.EpochInterval)
	}
	if cfg.Scheduler.AlignToGrid {
		t.Fatalf("align_to_grid 应被覆盖为 false")
	}

	params, err := cfg.Economy.Params()
	if err != nil {
		t.Fatalf("转换经济参数失败: %v", err)
	}
	if params.EpochInterval != 24*60*60*1000 {
		t.Fatalf("奖励期间隔应换算到毫秒, 实际 %d", params.EpochInterval)
	}
	if params.BlockTime != 3000 {
		t.Fatalf("出块间隔应换算到毫秒, 实际 %d", params.BlockTime)
	}
	if params.InitialDailyAward.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("日奖励应为 500, 实际 %s", params.InitialDailyAward)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing owner", "app:\n  name: x\n"},
		{"bad owner", "economy:\n  owner: \"not-an-address\"\n"},
		{"bad award", minimalConfig + "  initial_daily_award: \"12.5e3\"\n"},
		{"zero interval", minimalConfig + "  epoch_interval: \"0s\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfigFile(t, tc.content)); err == nil {
				t.Fatalf("非法配置应报错")
			}
		})
	}
}
