// Package engine 驱动报价循环：每个刷新周期拉取预言机读数、
// 计算候选报价、对账并提交，周期间互斥、超时各自受限。
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"oracle-mm-go/gateway"
	"oracle-mm-go/metrics"
	"oracle-mm-go/oracle"
	"oracle-mm-go/order"
	"oracle-mm-go/store"
	"oracle-mm-go/strategy"
)

// ErrCycleInFlight 上一个周期还没结束，本次触发被丢弃（不排队）。
var ErrCycleInFlight = errors.New("previous cycle still in flight")

// Config 引擎配置。
type Config struct {
	Trader               string
	Market               string
	RefreshInterval      time.Duration
	MaxOracleAge         time.Duration // 默认 60s
	CallTimeout          time.Duration // 单次外部调用超时
	ExpectedOwner        string        // 市场元数据校验
	ExpectedDiscriminant uint64
}

// Engine 单个 (trader, market) 策略的周期驱动器。
// 同一策略同时只允许一个周期在飞行中（单写者）；
// 不同策略各自持有独立的 Engine，互不共享可变状态。
type Engine struct {
	cfg        Config
	venue      gateway.Adapter
	baseFeed   oracle.Source
	quoteFeed  oracle.Source
	store      store.Store
	reconciler *order.Reconciler
	log        *zap.Logger
	metrics    *metrics.Metrics

	cycleMu sync.Mutex

	pendingMu     sync.Mutex
	pendingParams *store.Params

	slot atomic.Uint64
	now  func() time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

// Components 引擎依赖。
type Components struct {
	Venue     gateway.Adapter
	BaseFeed  oracle.Source
	QuoteFeed oracle.Source
	Store     store.Store
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

func New(cfg Config, c Components) (*Engine, error) {
	if cfg.Trader == "" || cfg.Market == "" {
		return nil, errors.New("trader and market are required")
	}
	if c.Venue == nil || c.BaseFeed == nil || c.QuoteFeed == nil || c.Store == nil {
		return nil, errors.New("venue, feeds and store are required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 2 * time.Second
	}
	if cfg.MaxOracleAge <= 0 {
		cfg.MaxOracleAge = 60 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = cfg.RefreshInterval
	}
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		venue:      c.Venue,
		baseFeed:   c.BaseFeed,
		quoteFeed:  c.QuoteFeed,
		store:      c.Store,
		reconciler: order.NewReconciler(c.Venue, log),
		log:        log,
		metrics:    c.Metrics,
		now:        time.Now,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// Now 实现 store.Clock：slot 为进程内单调计数器，仅用于审计排序。
func (e *Engine) Now() (uint64, int64) {
	return e.slot.Add(1), e.now().Unix()
}

// SetParams 暂存参数更新，下一个周期开始时经状态机套用
//（热更新入口；零值 edge 会被状态机忽略）。
func (e *Engine) SetParams(p store.Params) {
	e.pendingMu.Lock()
	e.pendingParams = &p
	e.pendingMu.Unlock()
}

func (e *Engine) takePendingParams() *store.Params {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	p := e.pendingParams
	e.pendingParams = nil
	return p
}

// Start 启动定时循环。周期超过刷新间隔时，多余的触发被丢弃而不是排队。
func (e *Engine) Start(ctx context.Context) {
	go func() {
		defer close(e.doneChan)
		ticker := time.NewTicker(e.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopChan:
				return
			case <-ticker.C:
				if err := e.RunCycle(ctx); err != nil {
					if errors.Is(err, ErrCycleInFlight) {
						e.log.Warn("cycle dropped, previous still running",
							zap.String("market", e.cfg.Market))
						continue
					}
					// 周期失败只记录，下个周期从场所真实状态重新推导
					e.log.Error("cycle failed", zap.Error(err),
						zap.String("market", e.cfg.Market))
				}
			}
		}
	}()
}

// Stop 停止循环并等待在飞周期结束。
func (e *Engine) Stop() {
	close(e.stopChan)
	<-e.doneChan
}

// RunCycle 执行一个完整报价周期。
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.cycleMu.TryLock() {
		if e.metrics != nil {
			e.metrics.CyclesDropped.Inc()
		}
		return ErrCycleInFlight
	}
	defer e.cycleMu.Unlock()

	started := e.now()
	err := e.runCycleLocked(ctx)
	if e.metrics != nil {
		e.metrics.CycleDuration.Observe(e.now().Sub(started).Seconds())
		e.metrics.CyclesTotal.Inc()
		if err != nil {
			e.metrics.CycleErrors.Inc()
		}
	}
	return err
}

func (e *Engine) runCycleLocked(ctx context.Context) error {
	st, ok, err := e.store.Load(e.cfg.Trader, e.cfg.Market)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotInitialized
	}

	pending := e.takePendingParams()
	if pending != nil {
		st.ApplyUpdate(*pending, e)
		e.log.Info("strategy params updated",
			zap.Uint64("edge_bps", st.QuoteEdgeInBps),
			zap.Uint64("notional", st.QuoteSizeInQuoteAtoms))
	} else {
		st.LastUpdateSlot, st.LastUpdateUnixTimestamp = e.Now()
	}

	meta, err := e.fetchMeta(ctx)
	if err != nil {
		return e.abortCycle(pending, err)
	}

	baseFair, quoteFair, err := e.fetchFairPrices(ctx)
	if err != nil {
		return e.abortCycle(pending, err)
	}

	behavior, err := st.BehaviorValue()
	if err != nil {
		return e.abortCycle(pending, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	book, err := e.venue.BookExcluding(callCtx, e.cfg.Trader)
	cancel()
	if err != nil {
		return e.abortCycle(pending, fmt.Errorf("book snapshot: %w", err))
	}

	quotes, err := strategy.ComputeQuotes(baseFair, quoteFair, meta, strategy.QuoteParams{
		EdgeBps:              st.QuoteEdgeInBps,
		NotionalInQuoteAtoms: st.QuoteSizeInQuoteAtoms,
		Behavior:             behavior,
	}, book)
	if err != nil {
		return e.abortCycle(pending, fmt.Errorf("compute quotes: %w", err))
	}
	if e.metrics != nil {
		if quotes.Bid.Active {
			e.metrics.BidTicks.Set(float64(quotes.Bid.PriceInTicks))
		}
		if quotes.Ask.Active {
			e.metrics.AskTicks.Set(float64(quotes.Ask.PriceInTicks))
		}
	}

	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	res, err := e.reconciler.Run(callCtx, &st, quotes, book)
	cancel()
	if e.metrics != nil {
		e.metrics.OrdersCanceled.Add(float64(res.Canceled))
		e.metrics.OrdersPlaced.Add(float64(res.Placed))
		if res.Noop {
			e.metrics.CyclesNoop.Inc()
		}
	}
	if err != nil {
		// 撤单失败时状态未动，照常落库时间戳即可；
		// 下单失败时已记录成功的那一边，同样落库。
		if saveErr := e.store.Save(st); saveErr != nil {
			e.log.Error("save state after failed cycle", zap.Error(saveErr))
		}
		return err
	}

	return e.store.Save(st)
}

// abortCycle 周期在落库之前失败：把已消费的参数更新放回队列，
// 一次瞬时故障不能吞掉热更新。期间又有新更新排队时以新的为准。
func (e *Engine) abortCycle(pending *store.Params, err error) error {
	if pending != nil {
		e.pendingMu.Lock()
		if e.pendingParams == nil {
			e.pendingParams = pending
		}
		e.pendingMu.Unlock()
	}
	return err
}

func (e *Engine) fetchMeta(ctx context.Context) (gateway.MarketMeta, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	meta, err := e.venue.MarketMeta(callCtx)
	if err != nil {
		return gateway.MarketMeta{}, fmt.Errorf("market meta: %w", err)
	}
	if err := gateway.ValidateMeta(meta, e.cfg.ExpectedOwner, e.cfg.ExpectedDiscriminant); err != nil {
		return gateway.MarketMeta{}, err
	}
	return meta, nil
}

func (e *Engine) fetchFairPrices(ctx context.Context) (baseFair, quoteFair oracle.FairPrice, err error) {
	now := e.now().Unix()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	baseReading, err := e.baseFeed.Read(callCtx)
	cancel()
	if err != nil {
		return 0, 0, fmt.Errorf("base feed: %w", err)
	}
	baseFair, err = oracle.Normalize(baseReading, now, e.cfg.MaxOracleAge)
	if err != nil {
		return 0, 0, fmt.Errorf("base feed: %w", err)
	}

	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	quoteReading, err := e.quoteFeed.Read(callCtx)
	cancel()
	if err != nil {
		return 0, 0, fmt.Errorf("quote feed: %w", err)
	}
	quoteFair, err = oracle.Normalize(quoteReading, now, e.cfg.MaxOracleAge)
	if err != nil {
		return 0, 0, fmt.Errorf("quote feed: %w", err)
	}

	if e.metrics != nil {
		age := now - baseReading.PublishTime
		if qa := now - quoteReading.PublishTime; qa > age {
			age = qa
		}
		e.metrics.OracleAge.Set(float64(age))
	}
	return baseFair, quoteFair, nil
}
