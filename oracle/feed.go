package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"oracle-mm-go/gateway"
)

// priceWire 价格服务的线格式：mantissa/conf 为十进制字符串。
type priceWire struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type feedWire struct {
	ID    string    `json:"id"`
	Price priceWire `json:"price"`
}

func (w feedWire) toReading() (Reading, error) {
	price, err := strconv.ParseInt(w.Price.Price, 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("parse price mantissa: %w", err)
	}
	conf, err := strconv.ParseUint(w.Price.Conf, 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("parse price conf: %w", err)
	}
	return Reading{
		Price:       price,
		Expo:        w.Price.Expo,
		Conf:        conf,
		PublishTime: w.Price.PublishTime,
	}, nil
}

// PriceClient 价格服务 REST 客户端：按 feed id 拉取最新读数。
type PriceClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    gateway.RateLimiter
}

func NewPriceClient(baseURL string) *PriceClient {
	return &PriceClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Limiter:    gateway.NewTokenBucketLimiter(10, 20),
	}
}

// LatestReading 拉取单条 feed 的最新读数；任何失败都归入 ErrUnavailable。
func (c *PriceClient) LatestReading(ctx context.Context, feedID string) (Reading, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	u, err := url.Parse(c.BaseURL + "/v2/updates/price/latest")
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	q := u.Query()
	q.Add("ids[]", feedID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Parsed []feedWire `json:"parsed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, f := range body.Parsed {
		if f.ID == feedID {
			r, err := f.toReading()
			if err != nil {
				return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			return r, nil
		}
	}
	return Reading{}, fmt.Errorf("%w: feed %s missing from response", ErrUnavailable, feedID)
}

// StreamFeed 价格服务 websocket 订阅客户端，缓存每个 feed 的最新读数。
// 断线后指数退避重连；缓存为空时 Source 回退到 REST。
type StreamFeed struct {
	Endpoint string
	Dialer   *websocket.Dialer
	Log      *zap.Logger

	feedIDs []string

	mu     sync.RWMutex
	latest map[string]Reading
}

func NewStreamFeed(endpoint string, feedIDs []string, log *zap.Logger) *StreamFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamFeed{
		Endpoint: endpoint,
		Dialer:   websocket.DefaultDialer,
		Log:      log,
		feedIDs:  feedIDs,
		latest:   make(map[string]Reading),
	}
}

// Run 保持订阅直到 ctx 取消。
func (s *StreamFeed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.Log.Warn("price stream disconnected",
			zap.Error(err),
			zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *StreamFeed) runOnce(ctx context.Context) error {
	conn, _, err := s.Dialer.DialContext(ctx, s.Endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := struct {
		Type string   `json:"type"`
		IDs  []string `json:"ids"`
	}{Type: "subscribe", IDs: s.feedIDs}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg struct {
			Type      string   `json:"type"`
			PriceFeed feedWire `json:"price_feed"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type != "price_update" {
			continue
		}
		r, err := msg.PriceFeed.toReading()
		if err != nil {
			s.Log.Warn("bad price update", zap.Error(err))
			continue
		}
		s.mu.Lock()
		s.latest[msg.PriceFeed.ID] = r
		s.mu.Unlock()
	}
}

// cached 返回缓存中的最新读数。
func (s *StreamFeed) cached(feedID string) (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[feedID]
	return r, ok
}

// FeedSource 单条 feed 的 Source：优先流缓存，缺失时回退 REST。
type FeedSource struct {
	FeedID string
	Stream *StreamFeed
	REST   *PriceClient
}

func (f *FeedSource) Read(ctx context.Context) (Reading, error) {
	if f.Stream != nil {
		if r, ok := f.Stream.cached(f.FeedID); ok {
			return r, nil
		}
	}
	if f.REST != nil {
		return f.REST.LatestReading(ctx, f.FeedID)
	}
	return Reading{}, ErrUnavailable
}

// StaticSource 固定读数的 Source，测试与模拟运行用。
type StaticSource struct {
	mu      sync.Mutex
	reading Reading
	err     error
}

func NewStaticSource(r Reading) *StaticSource {
	return &StaticSource{reading: r}
}

func (s *StaticSource) Read(ctx context.Context) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Reading{}, s.err
	}
	return s.reading, nil
}

// Set 更新读数。
func (s *StaticSource) Set(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = r
	s.err = nil
}

// SetError 注入失败。
func (s *StaticSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
