package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"presale/config"
)

type scheduleReport struct {
	CliffSeconds    uint64 `json:"cliffSeconds"`
	DurationSeconds uint64 `json:"durationSeconds"`
	IntervalSeconds uint64 `json:"intervalSeconds"`
	TotalIntervals  uint64 `json:"totalIntervals"`
}

type auditReport struct {
	Owner          string         `json:"owner"`
	Beneficiary    string         `json:"beneficiary"`
	SaleAccount    string         `json:"saleAccount"`
	PriceA         string         `json:"priceA"`
	PriceB         string         `json:"priceB"`
	MinUSD         string         `json:"minUsd"`
	MaxUSD         string         `json:"maxUsd"`
	CapA           string         `json:"capA"`
	FeedDecimals   uint8          `json:"feedDecimals"`
	RewardDecimals uint8          `json:"rewardDecimals"`
	ScheduleA      scheduleReport `json:"scheduleA"`
	ScheduleB      scheduleReport `json:"scheduleB"`
	StableAssets   []stableReport `json:"stableAssets"`
	OracleEndpoint string         `json:"oracleEndpoint,omitempty"`
	OracleMaxAge   int64          `json:"oracleMaxAgeSeconds,omitempty"`
}

type stableReport struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

func main() {
	configPath := flag.String("config", "./config.toml", "Path to daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse sale parameters: %v\n", err)
		os.Exit(1)
	}
	if err := engineCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "sale parameters invalid: %v\n", err)
		os.Exit(1)
	}

	report := auditReport{
		Owner:          engineCfg.Owner.Hex(),
		Beneficiary:    engineCfg.Beneficiary.Hex(),
		SaleAccount:    cfg.Sale.SaleAccount,
		PriceA:         engineCfg.PriceA.String(),
		PriceB:         engineCfg.PriceB.String(),
		MinUSD:         engineCfg.MinUSD.String(),
		MaxUSD:         engineCfg.MaxUSD.String(),
		CapA:           engineCfg.CapA.String(),
		FeedDecimals:   engineCfg.FeedDecimals,
		RewardDecimals: engineCfg.RewardDecimals,
		ScheduleA: scheduleReport{
			CliffSeconds:    engineCfg.ScheduleA.Cliff,
			DurationSeconds: engineCfg.ScheduleA.Duration,
			IntervalSeconds: engineCfg.ScheduleA.Interval,
			TotalIntervals:  engineCfg.ScheduleA.TotalIntervals(),
		},
		ScheduleB: scheduleReport{
			CliffSeconds:    engineCfg.ScheduleB.Cliff,
			DurationSeconds: engineCfg.ScheduleB.Duration,
			IntervalSeconds: engineCfg.ScheduleB.Interval,
			TotalIntervals:  engineCfg.ScheduleB.TotalIntervals(),
		},
		OracleEndpoint: cfg.Oracle.Endpoint,
		OracleMaxAge:   cfg.Oracle.MaxAgeSeconds,
	}
	for _, asset := range cfg.Stables {
		report.StableAssets = append(report.StableAssets, stableReport{
			Symbol:   asset.Symbol,
			Address:  asset.Address,
			Decimals: asset.Decimals,
		})
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
}
