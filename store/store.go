package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store 策略状态持久化接口。
type Store interface {
	// Load 返回记录；不存在时 ok 为 false（未初始化不是错误）。
	Load(trader, market string) (st StrategyState, ok bool, err error)
	// Save 整条覆盖写回。
	Save(st StrategyState) error
}

// SQLiteStore 基于纯 Go sqlite 的持久化实现，单文件，无外部服务。
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite 打开（必要时创建）数据库文件并迁移表结构。
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&StrategyState{}); err != nil {
		return nil, fmt.Errorf("migrate strategy state: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(trader, market string) (StrategyState, bool, error) {
	var st StrategyState
	err := s.db.First(&st, "trader = ? AND market = ?", trader, market).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StrategyState{}, false, nil
	}
	if err != nil {
		return StrategyState{}, false, fmt.Errorf("load strategy state: %w", err)
	}
	return st, true, nil
}

func (s *SQLiteStore) Save(st StrategyState) error {
	if err := s.db.Save(&st).Error; err != nil {
		return fmt.Errorf("save strategy state: %w", err)
	}
	return nil
}

// MemoryStore 内存实现，测试用。
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]StrategyState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]StrategyState)}
}

func key(trader, market string) string { return trader + "/" + market }

func (m *MemoryStore) Load(trader, market string) (StrategyState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key(trader, market)]
	return st, ok, nil
}

func (m *MemoryStore) Save(st StrategyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key(st.Trader, st.Market)] = st
	return nil
}
