package gateway

import (
	"context"
	"errors"
	"testing"
)

func testMeta() MarketMeta {
	return MarketMeta{
		Owner:                           "venue-program",
		Discriminant:                    42,
		TickSizeInQuoteAtomsPerBaseUnit: 1000,
		BaseLotsPerBaseUnit:             1000,
		QuoteLotSize:                    1,
		RawBaseUnitsPerBaseUnit:         1,
		BaseDecimals:                    9,
		QuoteDecimals:                   6,
	}
}

func TestValidateMeta(t *testing.T) {
	meta := testMeta()
	if err := ValidateMeta(meta, "venue-program", 42); err != nil {
		t.Fatalf("valid meta rejected: %v", err)
	}

	bad := meta
	bad.Owner = "someone-else"
	if err := ValidateMeta(bad, "venue-program", 42); !errors.Is(err, ErrWrongOwner) {
		t.Fatalf("expected owner error, got %v", err)
	}

	bad = meta
	bad.Discriminant = 7
	if err := ValidateMeta(bad, "venue-program", 42); !errors.Is(err, ErrWrongDiscriminant) {
		t.Fatalf("expected discriminant error, got %v", err)
	}

	bad = meta
	bad.TickSizeInQuoteAtomsPerBaseUnit = 0
	if err := ValidateMeta(bad, "venue-program", 42); !errors.Is(err, ErrBadMarketParams) {
		t.Fatalf("expected params error, got %v", err)
	}
}

func TestSnapshotFindRequiresPriceAndSequence(t *testing.T) {
	snap := BookSnapshot{
		Bids: map[uint64]RestingOrder{
			5: {PriceInTicks: 100, SequenceNumber: 5, SizeInBaseLots: 10},
		},
		Asks: map[uint64]RestingOrder{},
	}
	if _, ok := snap.Find(Bid, OrderID{PriceInTicks: 100, SequenceNumber: 5}); !ok {
		t.Fatal("expected to find order")
	}
	// 序列号相同但价格不同 → 视为不同订单
	if _, ok := snap.Find(Bid, OrderID{PriceInTicks: 101, SequenceNumber: 5}); ok {
		t.Fatal("price mismatch should not match")
	}
	if _, ok := snap.Find(Ask, OrderID{PriceInTicks: 100, SequenceNumber: 5}); ok {
		t.Fatal("wrong side should not match")
	}
}

func TestSimVenuePlaceAndCancel(t *testing.T) {
	v := NewSimVenue(testMeta())
	v.SetBBO(100, 110)
	ctx := context.Background()

	placed, err := v.PlaceOrders(ctx, []PlaceOrder{
		{Side: Bid, PriceInTicks: 99, SizeInBaseLots: 10, PostOnly: true},
		{Side: Ask, PriceInTicks: 111, SizeInBaseLots: 9, PostOnly: true},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(placed) != 2 {
		t.Fatalf("expected 2 placed, got %d", len(placed))
	}

	snap, err := v.BookExcluding(ctx, "trader")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, ok := snap.Find(Bid, placed[0].ID); !ok {
		t.Fatal("bid should be resting")
	}

	if err := v.CancelOrders(ctx, []CancelOrder{{Side: Bid, ID: placed[0].ID}}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	snap, _ = v.BookExcluding(ctx, "trader")
	if _, ok := snap.Find(Bid, placed[0].ID); ok {
		t.Fatal("bid should be gone after cancel")
	}
}

func TestSimVenuePostOnlyCrossRejected(t *testing.T) {
	v := NewSimVenue(testMeta())
	v.SetBBO(100, 110)

	placed, err := v.PlaceOrders(context.Background(), []PlaceOrder{
		{Side: Bid, PriceInTicks: 110, SizeInBaseLots: 10, PostOnly: true},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(placed) != 0 {
		t.Fatalf("crossing post-only leg should be rejected, got %d", len(placed))
	}
}

func TestSimVenueFill(t *testing.T) {
	v := NewSimVenue(testMeta())
	placed, _ := v.PlaceOrders(context.Background(), []PlaceOrder{
		{Side: Ask, PriceInTicks: 105, SizeInBaseLots: 10},
	})
	seq := placed[0].ID.SequenceNumber

	v.Fill(Ask, seq, 4)
	snap, _ := v.BookExcluding(context.Background(), "trader")
	o, ok := snap.Find(Ask, placed[0].ID)
	if !ok || o.SizeInBaseLots != 6 {
		t.Fatalf("expected resting size 6, got %+v ok=%v", o, ok)
	}

	v.Fill(Ask, seq, 6)
	snap, _ = v.BookExcluding(context.Background(), "trader")
	if _, ok := snap.Find(Ask, placed[0].ID); ok {
		t.Fatal("fully filled order should leave the book")
	}
}

func TestTokenBucketLimiterContextCancel(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1)
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first token should be available: %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Wait(cancelled); err == nil {
		t.Fatal("expected context error when bucket is empty")
	}
}
