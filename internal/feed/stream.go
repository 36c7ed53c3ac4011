package feed

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ianfigueroa/Titan/internal/domain"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	maxFrameSize     = 1 << 20 // 1MB
)

// WSStream is the gorilla/websocket implementation of Stream.
// ReadFrame runs on the session's reader goroutine; Close may be called from any
// goroutine to tear the session down.
type WSStream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSStream creates an unconnected stream.
func NewWSStream() *WSStream {
	return &WSStream{}
}

// Connect dials the combined-stream endpoint.
func (s *WSStream) Connect(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return domain.NewNetworkError("dial", err)
	}
	conn.SetReadLimit(maxFrameSize)

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// ReadFrame returns the next text frame. Control frames are handled by the
// library; a read deadline bounds silent sessions.
func (s *WSStream) ReadFrame() ([]byte, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil, domain.NewFatalNetworkError("read", domain.ErrConnectionFailed)
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return nil, domain.NewNetworkError("deadline", err)
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, domain.NewNetworkError("read", err)
		}
		if msgType != websocket.TextMessage {
			// The combined stream is text-only; skip anything else.
			continue
		}
		return data, nil
	}
}

// Close shuts the session down. Safe to call repeatedly and concurrently
// with ReadFrame, which then returns an error.
func (s *WSStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
