package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"walkerwatch/internal/hub"
)

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 接入层无租户隔离，来源校验交给前置网关
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler WebSocket 订阅处理器
type WSHandler struct {
	hub    *hub.Hub
	logger *zap.Logger
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(h *hub.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:    h,
		logger: logger,
	}
}

// Serve 升级连接并注册订阅
//
// ?residentId= 限定单住户范围，缺省订阅全量更新。
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	residentID := r.URL.Query().Get("residentId")
	sub := newWSSubscriber(conn)
	h.hub.Subscribe(sub, residentID)

	h.logger.Info("WebSocket subscriber connected",
		zap.String("resident_id", residentID),
		zap.String("remote", r.RemoteAddr),
	)

	go sub.writeLoop()
	go func() {
		sub.readLoop()
		h.hub.Unsubscribe(sub)
		sub.close()
		h.logger.Info("WebSocket subscriber disconnected",
			zap.String("remote", r.RemoteAddr),
		)
	}()
}

// wsSubscriber 单条 WebSocket 连接的订阅者
//
// TrySend 仅做非阻塞入队；慢消费者队列打满即视为不可用，
// 由 Hub 移除，连接随后被 writeLoop 关闭。
type wsSubscriber struct {
	conn *websocket.Conn
	send chan interface{}
	done chan struct{}
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{
		conn: conn,
		send: make(chan interface{}, wsSendBuffer),
		done: make(chan struct{}),
	}
}

var _ hub.Subscriber = (*wsSubscriber)(nil)

// TrySend 非阻塞投递
func (s *wsSubscriber) TrySend(payload interface{}) error {
	select {
	case <-s.done:
		return fmt.Errorf("subscriber closed")
	default:
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return fmt.Errorf("subscriber send buffer full")
	}
}

func (s *wsSubscriber) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.conn.Close()
}

// writeLoop 串行写出队列内容并维持心跳
func (s *wsSubscriber) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteJSON(payload); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}

// readLoop 只消费控制帧，连接断开时返回
func (s *wsSubscriber) readLoop() {
	s.conn.SetReadLimit(1024)
	s.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
