// 按配置创建策略状态记录；记录已存在或参数非法时报错退出。
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"oracle-mm-go/config"
	"oracle-mm-go/store"
)

type wallClock struct{}

func (wallClock) Now() (uint64, int64) { return 0, time.Now().Unix() }

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	force := flag.Bool("force", false, "记录已存在时覆盖重建（清空挂单记录）")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	s, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatalf("打开状态库失败: %v", err)
	}

	sc := cfg.Strategy
	if _, ok, err := s.Load(sc.Trader, sc.Market); err != nil {
		log.Fatalf("读取状态失败: %v", err)
	} else if ok && !*force {
		log.Fatalf("策略记录已存在 (trader=%s market=%s)，使用 -force 覆盖", sc.Trader, sc.Market)
	}

	params, err := sc.Params()
	if err != nil {
		log.Fatalf("策略参数非法: %v", err)
	}
	st, err := store.Initialize(sc.Trader, sc.Market, params, wallClock{})
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	if err := s.Save(st); err != nil {
		log.Fatalf("写入状态失败: %v", err)
	}

	fmt.Printf("initialized trader=%s market=%s edge=%dbps size=%d behavior=%d postOnly=%v\n",
		st.Trader, st.Market, st.QuoteEdgeInBps, st.QuoteSizeInQuoteAtoms, st.Behavior, st.PostOnly)
}
