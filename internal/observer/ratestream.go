package observer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// rateUpdate 是利率推送流的单条消息。
// 存款池以 protocol/pool 标识，杠杆市场以 market/collateral-debt 标识。
type rateUpdate struct {
	Key    string  `json:"key"`     // e.g. "marginfi/usdc-main"
	APYPct float64 `json:"apy_pct"` // 该池当前的年化收益率
}

type rateEntry struct {
	apyPct float64
	at     time.Time
}

// RateStream 维护到利率推送服务的 WebSocket 连接，把最新利率缓存在内存里。
// 连接断开后自动重连；缓存条目超过最大年龄后视为失效，查询时直接剔除
// 而不是退回某个默认值。
type RateStream struct {
	url      string
	maxAge   time.Duration
	logger   *zap.SugaredLogger
	stopChan chan struct{}

	mu      sync.Mutex
	entries map[string]rateEntry
	conn    *websocket.Conn
}

// NewRateStream 创建利率缓存。调用 Run 前缓存为空，所有查询都会落空。
func NewRateStream(url string, maxAge time.Duration, logger *zap.SugaredLogger) *RateStream {
	return &RateStream{
		url:      url,
		maxAge:   maxAge,
		logger:   logger,
		stopChan: make(chan struct{}),
		entries:  make(map[string]rateEntry),
	}
}

// Lookup 返回 key 的最新利率。条目不存在或超过最大年龄时返回 false。
func (s *RateStream) Lookup(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || time.Since(e.at) > s.maxAge {
		return 0, false
	}
	return e.apyPct, true
}

// put 写入一条利率，并顺手清理已失效的条目，避免缓存無界增长。
func (s *RateStream) put(key string, apyPct float64) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = rateEntry{apyPct: apyPct, at: now}
	for k, e := range s.entries {
		if now.Sub(e.at) > s.maxAge {
			delete(s.entries, k)
		}
	}
}

// Run 是连接守护循环：建连、消费消息、断开后等待重连。
// 应在独立的 goroutine 中运行，Stop 之后返回。
func (s *RateStream) Run() {
	for {
		select {
		case <-s.stopChan:
			s.logger.Info("利率推送循环已停止")
			return
		default:
			conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
			if err != nil {
				s.logger.Warnf("连接利率推送服务失败: %v, 5秒后重试", err)
				time.Sleep(5 * time.Second)
				continue
			}
			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()
			s.logger.Info("利率推送连接成功")

			if err := s.consume(conn); err != nil {
				s.logger.Warnf("利率推送连接中断: %v, 准备重连", err)
			}
			conn.Close()
			time.Sleep(5 * time.Second)
		}
	}
}

// Stop 结束守护循环并关闭当前连接。
func (s *RateStream) Stop() {
	close(s.stopChan)
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}

// consume 为一条已建立的连接处理消息，并实现心跳机制。
// 连接损坏时返回错误交给 Run 重连。
func (s *RateStream) consume(conn *websocket.Conn) error {
	const (
		pongWait   = 60 * time.Second
		pingPeriod = (pongWait * 9) / 10
	)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	pingStop := make(chan struct{})
	defer close(pingStop)

	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.logger.Warnf("发送Ping失败: %v", err)
					return
				}
			case <-pingStop:
				return
			case <-s.stopChan:
				return
			}
		}
	}()

	for {
		select {
		case <-s.stopChan:
			err := conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				return fmt.Errorf("发送WebSocket关闭帧失败: %v", err)
			}
			return nil
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("读取消息失败: %v", err)
			}

			var update rateUpdate
			if err := json.Unmarshal(message, &update); err != nil {
				s.logger.Warnf("解析利率消息失败: %v", err)
				continue
			}
			if update.Key == "" {
				continue
			}
			s.put(update.Key, update.APYPct)
		}
	}
}
