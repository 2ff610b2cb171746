package main

import (
	"context"
	"fmt"
	"log"

	"github.com/Mr-Gerald/NEXUSAI/internal/backtest"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

func main() {
	if err := logger.Init("nexus-backtest"); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatal("load config: %v", err)
	}
	specs, err := config.LoadSpecBook()
	if err != nil {
		logger.Fatal("load instrument specs: %v", err)
	}

	engine := backtest.NewEngine(backtest.Config{
		DataDir:         cfg.Market.DataDir,
		Files:           cfg.Market.Files,
		InitialEquity:   cfg.Backtest.InitialEquity,
		RiskPerTrade:    cfg.Risk.RiskPerTrade,
		CalibrationBars: cfg.Runner.CalibrationBars,
		AccountCurrency: cfg.Risk.AccountCurrency,
	}, specs)

	if err := engine.LoadHistory(); err != nil {
		logger.Fatal("load history: %v", err)
	}

	results := engine.Run(context.Background())
	fmt.Print(results.Report())
}
