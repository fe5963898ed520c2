// 打印持久化的策略状态，便于排查。
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"oracle-mm-go/config"
	"oracle-mm-go/store"
	"oracle-mm-go/strategy"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	asJSON := flag.Bool("json", false, "JSON 输出")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	s, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatalf("打开状态库失败: %v", err)
	}

	st, ok, err := s.Load(cfg.Strategy.Trader, cfg.Strategy.Market)
	if err != nil {
		log.Fatalf("读取状态失败: %v", err)
	}
	if !ok {
		log.Fatalf("策略记录不存在 (trader=%s market=%s)", cfg.Strategy.Trader, cfg.Strategy.Market)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			log.Fatalf("编码失败: %v", err)
		}
		return
	}

	behavior := "invalid"
	if b, err := strategy.BehaviorFromByte(st.Behavior); err == nil {
		behavior = b.String()
	}
	fmt.Printf("trader:    %s\n", st.Trader)
	fmt.Printf("market:    %s\n", st.Market)
	fmt.Printf("edge:      %d bps\n", st.QuoteEdgeInBps)
	fmt.Printf("size:      %d quote atoms\n", st.QuoteSizeInQuoteAtoms)
	fmt.Printf("behavior:  %s\n", behavior)
	fmt.Printf("post-only: %v\n", st.PostOnly)
	fmt.Printf("bid:       seq=%d price=%d size=%d\n", st.BidSequenceNumber, st.BidPriceInTicks, st.BidSizeInBaseLots)
	fmt.Printf("ask:       seq=%d price=%d size=%d\n", st.AskSequenceNumber, st.AskPriceInTicks, st.AskSizeInBaseLots)
	fmt.Printf("updated:   slot=%d ts=%d\n", st.LastUpdateSlot, st.LastUpdateUnixTimestamp)
}
