// Package order 把候选报价与上一周期的挂单状态对账，
// 产出最小的撤单/下单集合并在提交后写回状态。
package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"oracle-mm-go/gateway"
	"oracle-mm-go/store"
	"oracle-mm-go/strategy"
)

// Plan 一个周期的对账结果：要撤的单和每边是否需要重新挂单。
type Plan struct {
	Cancels  []gateway.CancelOrder
	Bid      strategy.Quote
	Ask      strategy.Quote
	PlaceBid bool
	PlaceAsk bool
	// ClearBid/ClearAsk：记录的订单已消失或将被撤销，写回时清空该边。
	ClearBid bool
	ClearAsk bool
}

// Noop 两边都无需动作且没有撤单时，本周期是空转，不触发任何场所调用。
func (p Plan) Noop() bool {
	return !p.PlaceBid && !p.PlaceAsk && len(p.Cancels) == 0
}

// BuildPlan 逐边分类记录的挂单：
//   - 序列号 0：该边无挂单，候选有效则下单；
//   - 盘口找不到：已全部成交或过期，视为无挂单，无需撤单；
//   - 找到且完全一致（剩余量等于记录量、价格等于新候选价）：
//     压掉该边候选，避免无谓换单；
//   - 找到但有差异（部分成交或价格变化）：撤旧单，候选有效则下新单。
//
// 纯函数，不触碰场所。
func BuildPlan(st store.StrategyState, quotes strategy.QuotePair, book gateway.BookSnapshot) Plan {
	plan := Plan{Bid: quotes.Bid, Ask: quotes.Ask}
	plan.PlaceBid, plan.ClearBid = planSide(&plan, gateway.Bid, st, quotes.Bid, book)
	plan.PlaceAsk, plan.ClearAsk = planSide(&plan, gateway.Ask, st, quotes.Ask, book)
	return plan
}

func planSide(plan *Plan, side gateway.Side, st store.StrategyState, candidate strategy.Quote, book gateway.BookSnapshot) (place, clear bool) {
	recordedID, recordedSize := st.SideState(side)
	if recordedID.SequenceNumber == 0 {
		return candidate.Active, false
	}
	resting, found := book.Find(side, recordedID)
	if !found {
		// 订单已不在盘口：全部成交或过期，无需撤单。
		return candidate.Active, true
	}
	if resting.SizeInBaseLots == recordedSize && recordedID.PriceInTicks == candidate.PriceInTicks {
		// 挂单与目标完全一致，原样保留。
		return false, false
	}
	plan.Cancels = append(plan.Cancels, gateway.CancelOrder{Side: side, ID: recordedID})
	return candidate.Active, true
}

// Result 对账执行统计。
type Result struct {
	Noop     bool
	Canceled int
	Placed   int
}

// Reconciler 执行对账计划：撤单一批、下单一批（或按保留的
// 特例拆成两笔顺序限价单），然后用场所回执和新盘口写回状态。
type Reconciler struct {
	Venue gateway.Adapter
	Log   *zap.Logger
}

func NewReconciler(venue gateway.Adapter, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{Venue: venue, Log: log}
}

// Run 提交计划并更新 st。撤单失败时整个周期到此为止、不下单，
// 已生效的撤单不回滚——场所才是真实状态，下周期重新对账。
func (r *Reconciler) Run(ctx context.Context, st *store.StrategyState, quotes strategy.QuotePair, book gateway.BookSnapshot) (Result, error) {
	behavior, err := st.BehaviorValue()
	if err != nil {
		return Result{}, err
	}

	plan := BuildPlan(*st, quotes, book)
	if plan.Noop() {
		r.Log.Debug("no orders to update",
			zap.String("trader", st.Trader),
			zap.String("market", st.Market))
		return Result{Noop: true}, nil
	}

	if len(plan.Cancels) > 0 {
		if err := r.Venue.CancelOrders(ctx, plan.Cancels); err != nil {
			// 不确认旧单已撤就下新单会造成双重敞口
			return Result{}, fmt.Errorf("cancel batch: %w", err)
		}
	}
	if plan.ClearBid {
		st.ClearSide(gateway.Bid)
	}
	if plan.ClearAsk {
		st.ClearSide(gateway.Ask)
	}

	placed, placeErr := r.place(ctx, plan, st.PostOnly, behavior)

	if len(placed) > 0 {
		fresh, err := r.Venue.BookExcluding(ctx, st.Trader)
		if err != nil {
			if placeErr == nil {
				placeErr = fmt.Errorf("post-place book: %w", err)
			}
		} else {
			for _, p := range placed {
				resting, ok := fresh.Find(p.Side, p.ID)
				if !ok {
					// 下单即成交，该边没有存活挂单
					r.Log.Info("placed order left no resting size",
						zap.String("side", p.Side.String()),
						zap.Uint64("sequence", p.ID.SequenceNumber))
					continue
				}
				st.SetSide(p.Side, p.ID, resting.SizeInBaseLots)
				r.Log.Info("placed order",
					zap.String("side", p.Side.String()),
					zap.Uint64("price_in_ticks", p.ID.PriceInTicks),
					zap.Uint64("size_in_base_lots", resting.SizeInBaseLots),
					zap.Uint64("sequence", p.ID.SequenceNumber))
			}
		}
	}

	return Result{Canceled: len(plan.Cancels), Placed: len(placed)}, placeErr
}

// place 默认单批提交；post_only 关闭且行为为 Join 时按保留的特例
// 拆成 bid、ask 两笔顺序非批量限价单（批量路径始终是 post-only 单）。
func (r *Reconciler) place(ctx context.Context, plan Plan, postOnly bool, behavior strategy.Behavior) ([]gateway.PlacedOrder, error) {
	clientID := uuid.NewString()

	batch := postOnly || behavior != strategy.BehaviorJoin
	if batch {
		var orders []gateway.PlaceOrder
		if plan.PlaceBid {
			orders = append(orders, gateway.PlaceOrder{
				Side:           gateway.Bid,
				PriceInTicks:   plan.Bid.PriceInTicks,
				SizeInBaseLots: plan.Bid.SizeInBaseLots,
				PostOnly:       true,
				ClientID:       clientID,
			})
		}
		if plan.PlaceAsk {
			orders = append(orders, gateway.PlaceOrder{
				Side:           gateway.Ask,
				PriceInTicks:   plan.Ask.PriceInTicks,
				SizeInBaseLots: plan.Ask.SizeInBaseLots,
				PostOnly:       true,
				ClientID:       clientID,
			})
		}
		if len(orders) == 0 {
			return nil, nil
		}
		placed, err := r.Venue.PlaceOrders(ctx, orders)
		if err != nil {
			return nil, fmt.Errorf("place batch: %w", err)
		}
		return placed, nil
	}

	var placed []gateway.PlacedOrder
	if plan.PlaceBid {
		got, err := r.Venue.PlaceOrders(ctx, []gateway.PlaceOrder{{
			Side:           gateway.Bid,
			PriceInTicks:   plan.Bid.PriceInTicks,
			SizeInBaseLots: plan.Bid.SizeInBaseLots,
			ClientID:       clientID,
		}})
		if err != nil {
			return placed, fmt.Errorf("place bid: %w", err)
		}
		placed = append(placed, got...)
	}
	if plan.PlaceAsk {
		got, err := r.Venue.PlaceOrders(ctx, []gateway.PlaceOrder{{
			Side:           gateway.Ask,
			PriceInTicks:   plan.Ask.PriceInTicks,
			SizeInBaseLots: plan.Ask.SizeInBaseLots,
			ClientID:       clientID,
		}})
		if err != nil {
			return placed, fmt.Errorf("place ask: %w", err)
		}
		placed = append(placed, got...)
	}
	return placed, nil
}
