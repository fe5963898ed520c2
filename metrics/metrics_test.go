package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCycleCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.CyclesTotal.Inc()
	m.CyclesTotal.Inc()
	m.CycleErrors.Inc()
	m.CyclesNoop.Inc()

	if got := testutil.ToFloat64(m.CyclesTotal); got != 2 {
		t.Errorf("Expected CyclesTotal to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(m.CycleErrors); got != 1 {
		t.Errorf("Expected CycleErrors to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.CyclesNoop); got != 1 {
		t.Errorf("Expected CyclesNoop to be 1, got %f", got)
	}
}

func TestQuoteGauges(t *testing.T) {
	m := New(DefaultConfig())

	m.BidTicks.Set(995)
	m.AskTicks.Set(1005)
	m.OracleAge.Set(3)

	if got := testutil.ToFloat64(m.BidTicks); got != 995 {
		t.Errorf("Expected BidTicks to be 995, got %f", got)
	}
	if got := testutil.ToFloat64(m.AskTicks); got != 1005 {
		t.Errorf("Expected AskTicks to be 1005, got %f", got)
	}
	if got := testutil.ToFloat64(m.OracleAge); got != 3 {
		t.Errorf("Expected OracleAge to be 3, got %f", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	a := New(DefaultConfig())
	b := New(DefaultConfig())

	a.OrdersPlaced.Inc()
	if got := testutil.ToFloat64(b.OrdersPlaced); got != 0 {
		t.Errorf("Expected fresh registry to read 0, got %f", got)
	}
}
