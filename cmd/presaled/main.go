package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"presale/config"
	"presale/core"
	"presale/core/state"
	"presale/native/bank"
	"presale/native/sale"
	"presale/observability/logging"
	"presale/rpc"
	"presale/storage"
)

const eventRingCapacity = 1024

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PRESALE_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Environment
	}

	var fileOpts *logging.FileOptions
	if strings.TrimSpace(cfg.Log.FilePath) != "" {
		fileOpts = &logging.FileOptions{
			Path:       cfg.Log.FilePath,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
	}
	logger := logging.Setup("presaled", env, fileOpts)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		logger.Error("failed to parse sale parameters", slog.Any("error", err))
		os.Exit(1)
	}
	saleAccount, err := cfg.SaleAccountAddress()
	if err != nil {
		logger.Error("failed to parse sale account", slog.Any("error", err))
		os.Exit(1)
	}

	engine, err := sale.NewEngine(sale.NewLedger(manager), engineCfg, saleAccount)
	if err != nil {
		logger.Error("failed to construct sale engine", slog.Any("error", err))
		os.Exit(1)
	}

	ledger := bank.NewLedger(manager)
	engine.SetNative(ledger.Native())
	engine.SetRegistry(bankRegistry{ledger: ledger})

	for _, asset := range cfg.Stables {
		token, err := registerOrResolve(ledger, asset.Address, asset.Symbol, asset.Decimals)
		if err != nil {
			logger.Error("failed to register stable asset", slog.String("symbol", asset.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
		if err := engine.RegisterStable(asset.Symbol, token, asset.Decimals); err != nil {
			logger.Error("failed to wire stable asset", slog.String("symbol", asset.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
	}
	for _, reward := range cfg.Rewards {
		if _, err := registerOrResolve(ledger, reward.Address, reward.Symbol, reward.Decimals); err != nil {
			logger.Error("failed to register reward token", slog.String("symbol", reward.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
	}

	if endpoint := strings.TrimSpace(cfg.Oracle.Endpoint); endpoint != "" {
		feed, err := sale.NewHTTPFeed(nil, endpoint)
		if err != nil {
			logger.Error("failed to construct price feed", slog.Any("error", err))
			os.Exit(1)
		}
		engine.SetFeed(feed)
		if cfg.Oracle.MaxAgeSeconds > 0 {
			engine.SetMaxPriceAge(time.Duration(cfg.Oracle.MaxAgeSeconds) * time.Second)
		}
	}

	node := core.NewNode(engine, logger, eventRingCapacity)
	server := rpc.NewServer(node, cfg.AuthToken(), cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	logger.Info("starting JSON-RPC server", slog.String("addr", cfg.RPCAddress))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// bankRegistry adapts the bank ledger to the engine's token registry.
type bankRegistry struct {
	ledger *bank.Ledger
}

func (r bankRegistry) Resolve(addr common.Address) (sale.Token, bool) {
	token, ok, err := r.ledger.Token(addr)
	if err != nil || !ok {
		return nil, false
	}
	return token, true
}

func registerOrResolve(ledger *bank.Ledger, address, symbol string, decimals uint8) (*bank.Token, error) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return nil, fmt.Errorf("invalid token address %q", address)
	}
	addr := common.HexToAddress(trimmed)
	if token, ok, err := ledger.Token(addr); err != nil {
		return nil, err
	} else if ok {
		return token, nil
	}
	return ledger.RegisterToken(addr, symbol, decimals)
}
