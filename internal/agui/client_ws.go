// client_ws.go — AG-UI WebSocket 传输客户端。
//
// 连接 /chat/ws, 首帧发送 RunAgentInput, 之后逐条读取事件 JSON。
// 与 SSE 客户端不同, WS 客户端只透传原始 delta, 不在本地累计全文。
package agui

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	pkgerr "github.com/agui-chat/go-chat-v2/pkg/errors"
	"github.com/agui-chat/go-chat-v2/pkg/logger"
	"github.com/agui-chat/go-chat-v2/pkg/util"
)

// wsReadIdleTimeout 两条事件之间允许的最大静默。
const wsReadIdleTimeout = 120 * time.Second

// WSClient 通过 WebSocket 消费一次运行的事件流。
type WSClient struct {
	url              string
	handshakeTimeout time.Duration
}

// NewWSClient 从 HTTP 基址推导 ws 端点 (http→ws, https→wss, 路径 /chat/ws)。
func NewWSClient(baseURL string, handshakeTimeout time.Duration) (*WSClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, pkgerr.Wrap(err, "WSClient.New", "parse base url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, pkgerr.Wrapf(pkgerr.ErrInvalidInput, "WSClient.New", "unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/chat/ws"
	return &WSClient{url: u.String(), handshakeTimeout: handshakeTimeout}, nil
}

// Run 发起一次运行, 语义与 SSEClient.Run 一致:
// 通道在终态事件后关闭, 传输层故障合成 RUN_ERROR。
func (c *WSClient) Run(ctx context.Context, input RunAgentInput) (<-chan Event, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.handshakeTimeout,
		NetDialContext:   (&net.Dialer{Timeout: c.handshakeTimeout}).DialContext,
	}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, pkgerr.Wrap(err, "WSClient.Run", "dial backend")
	}
	if err := conn.WriteJSON(input); err != nil {
		_ = conn.Close()
		return nil, pkgerr.Wrap(err, "WSClient.Run", "send run input")
	}

	ch := make(chan Event, eventChanBuffer)
	util.SafeGo(func() { c.readLoop(ctx, conn, ch) })
	return ch, nil
}

func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn, ch chan<- Event) {
	defer close(ch)
	defer conn.Close()

	// ReadMessage 不感知 ctx, 取消时主动断开连接解除阻塞。
	done := make(chan struct{})
	defer close(done)
	util.SafeGo(func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	})

	emit := func(evt Event) bool {
		select {
		case ch <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadIdleTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			// 对端在终态事件前断开, 正常关闭码也按流提前结束处理
			msg := err.Error()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				msg = pkgerr.ErrStreamClosed.Error()
			}
			emit(Event{Type: EventRunError, Message: msg, Code: "TRANSPORT"})
			return
		}

		evt, perr := ParseEvent(data)
		if perr != nil {
			logger.Warn("ws: drop malformed event",
				logger.FieldError, perr,
				logger.FieldDataLen, len(data),
			)
			continue
		}
		if !emit(evt) {
			return
		}
		if evt.Terminal() {
			return
		}
	}
}
