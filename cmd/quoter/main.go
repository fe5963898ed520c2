package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"oracle-mm-go/config"
	"oracle-mm-go/engine"
	"oracle-mm-go/gateway"
	"oracle-mm-go/infrastructure/logger"
	"oracle-mm-go/metrics"
	"oracle-mm-go/oracle"
	"oracle-mm-go/store"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	dryRun := flag.Bool("dryRun", true, "使用内存模拟盘，不接真实场所")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus metrics 监听地址，覆盖配置文件")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	m := metrics.New(metrics.DefaultConfig())
	addr := cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		m.Serve(addr)
		zl.Info("metrics server started", zap.String("addr", addr))
	}

	// 真实场所 RPC 不在范围内：目前只支持模拟盘运行
	if !*dryRun {
		log.Fatalf("仅支持 -dryRun 模式，真实场所网关未接入")
	}
	venue := gateway.NewSimVenue(gateway.MarketMeta{
		Owner:                           cfg.Venue.Owner,
		Discriminant:                    cfg.Venue.Discriminant,
		TickSizeInQuoteAtomsPerBaseUnit: 100,
		BaseLotsPerBaseUnit:             1000,
		QuoteLotSize:                    1,
		RawBaseUnitsPerBaseUnit:         1,
		BaseDecimals:                    9,
		QuoteDecimals:                   6,
	})

	st, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatalf("打开状态库失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restClient := oracle.NewPriceClient(cfg.Oracle.Endpoint)
	var baseFeed, quoteFeed oracle.Source
	if cfg.Oracle.Stream {
		stream := oracle.NewStreamFeed(cfg.Oracle.Endpoint,
			[]string{cfg.Oracle.BaseFeedID, cfg.Oracle.QuoteFeedID}, zl)
		go stream.Run(ctx)
		baseFeed = &oracle.FeedSource{Stream: stream, REST: restClient, FeedID: cfg.Oracle.BaseFeedID}
		quoteFeed = &oracle.FeedSource{Stream: stream, REST: restClient, FeedID: cfg.Oracle.QuoteFeedID}
	} else {
		baseFeed = &oracle.FeedSource{REST: restClient, FeedID: cfg.Oracle.BaseFeedID}
		quoteFeed = &oracle.FeedSource{REST: restClient, FeedID: cfg.Oracle.QuoteFeedID}
	}

	refresh := time.Duration(cfg.Strategy.QuoteRefreshMs) * time.Millisecond
	eng, err := engine.New(engine.Config{
		Trader:               cfg.Strategy.Trader,
		Market:               cfg.Strategy.Market,
		RefreshInterval:      refresh,
		MaxOracleAge:         time.Duration(cfg.Oracle.MaxAgeSec) * time.Second,
		ExpectedOwner:        cfg.Venue.Owner,
		ExpectedDiscriminant: cfg.Venue.Discriminant,
	}, engine.Components{
		Venue:     venue,
		BaseFeed:  baseFeed,
		QuoteFeed: quoteFeed,
		Store:     st,
		Logger:    zl,
		Metrics:   m,
	})
	if err != nil {
		log.Fatalf("初始化引擎失败: %v", err)
	}

	// 首次运行自动建档
	if err := ensureInitialized(cfg.Strategy, st, eng, zl); err != nil {
		log.Fatalf("初始化策略状态失败: %v", err)
	}

	// 配置热更新：改动经状态机在下一个周期生效
	watcher, err := config.NewWatcher(*cfgPath, config.DefaultWatchConfig(), func(newCfg config.AppConfig) {
		params, err := newCfg.Strategy.Params()
		if err != nil {
			zl.Error("reloaded config has invalid strategy params", zap.Error(err))
			return
		}
		eng.SetParams(params)
		zl.Info("strategy params queued for next cycle")
	}, func(err error) {
		zl.Error("config watcher", zap.Error(err))
	})
	if err != nil {
		log.Fatalf("创建配置监听失败: %v", err)
	}
	if err := watcher.Start(ctx); err != nil {
		log.Fatalf("启动配置监听失败: %v", err)
	}
	defer func() { _ = watcher.Stop() }()

	eng.Start(ctx)
	zl.Info("quoter started",
		zap.String("trader", cfg.Strategy.Trader),
		zap.String("market", cfg.Strategy.Market),
		zap.Duration("refresh", refresh))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	zl.Info("shutting down")
	cancel()
	eng.Stop()
}

// ensureInitialized 在状态库无记录时按配置建档，已有记录时不动。
func ensureInitialized(sc config.StrategyConfig, s store.Store, clock store.Clock, zl *zap.Logger) error {
	_, ok, err := s.Load(sc.Trader, sc.Market)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	params, err := sc.Params()
	if err != nil {
		return err
	}
	st, err := store.Initialize(sc.Trader, sc.Market, params, clock)
	if err != nil {
		return err
	}
	if err := s.Save(st); err != nil {
		return err
	}
	zl.Info("strategy state initialized",
		zap.String("trader", sc.Trader),
		zap.String("market", sc.Market),
		zap.Uint64("edge_bps", st.QuoteEdgeInBps))
	return nil
}
