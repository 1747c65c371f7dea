// client_sse.go — AG-UI SSE 传输客户端。
//
// POST /chat 发起运行, 按行解析 text/event-stream 响应:
// 累积 "data:" 行直到空行成帧, 逐帧解析为 Event 投递。
package agui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	pkgerr "github.com/agui-chat/go-chat-v2/pkg/errors"
	"github.com/agui-chat/go-chat-v2/pkg/logger"
	"github.com/agui-chat/go-chat-v2/pkg/util"
)

// eventChanBuffer 事件通道容量, 吸收解析与消费之间的短暂抖动。
const eventChanBuffer = 16

// SSEClient 通过 HTTP POST + SSE 消费一次运行的事件流。
type SSEClient struct {
	baseURL string
	httpc   *http.Client
}

// NewSSEClient 创建 SSE 客户端。connectTimeout 只约束建连与响应头,
// 事件流本身是长连接, 不设整体超时。
func NewSSEClient(baseURL string, connectTimeout time.Duration) *SSEClient {
	return &SSEClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				ResponseHeaderTimeout: connectTimeout,
			},
		},
	}
}

// Run 发起一次运行, 返回按到达顺序递送事件的通道。
//
// 通道在终态事件 (RUN_FINISHED/RUN_ERROR) 后关闭; 传输层故障
// (连接中断、流在终态前结束) 会合成一条 RUN_ERROR 再关闭,
// 保证消费者总能等到终态。
func (c *SSEClient) Run(ctx context.Context, input RunAgentInput) (<-chan Event, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, pkgerr.Wrap(err, "SSEClient.Run", "marshal input")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerr.Wrap(err, "SSEClient.Run", "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, pkgerr.Wrap(err, "SSEClient.Run", "connect backend")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, pkgerr.Wrapf(pkgerr.ErrConnectionFailed, "SSEClient.Run", "backend returned %d", resp.StatusCode)
	}

	ch := make(chan Event, eventChanBuffer)
	util.SafeGo(func() { c.readLoop(ctx, resp.Body, ch) })
	return ch, nil
}

func (c *SSEClient) readLoop(ctx context.Context, body io.ReadCloser, ch chan<- Event) {
	defer close(ch)
	defer body.Close()

	br := bufio.NewReader(body)
	var dataBuf strings.Builder
	var acc textAccumulator
	sawTerminal := false

	emit := func(evt Event) bool {
		select {
		case ch <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// flush 解析并投递缓冲中的一帧。返回 false 表示停止读取。
	flush := func() bool {
		raw := strings.TrimSpace(dataBuf.String())
		dataBuf.Reset()
		if raw == "" {
			return true
		}
		evt, err := ParseEvent([]byte(raw))
		if err != nil {
			logger.Warn("sse: drop malformed event",
				logger.FieldError, err,
				logger.FieldDataLen, len(raw),
			)
			return true
		}
		acc.apply(&evt)
		if !emit(evt) {
			return false
		}
		if evt.Terminal() {
			sawTerminal = true
			return false
		}
		return true
	}

	for {
		line, err := br.ReadString('\n')
		if line != "" {
			trim := strings.TrimRight(line, "\r\n")
			if trim == "" {
				// 空行 = 一帧结束
				if !flush() {
					return
				}
			} else if strings.HasPrefix(trim, "data:") {
				data := strings.TrimSpace(strings.TrimPrefix(trim, "data:"))
				if dataBuf.Len() > 0 {
					dataBuf.WriteString("\n")
				}
				dataBuf.WriteString(data)
			}
		}

		if err != nil {
			// EOF 或读错误: 冲掉残帧, 终态缺失时合成 RUN_ERROR
			if !flush() {
				return
			}
			if !sawTerminal {
				msg := pkgerr.ErrStreamClosed.Error()
				if err != io.EOF {
					msg = err.Error()
				}
				emit(Event{Type: EventRunError, Message: msg, Code: "TRANSPORT"})
			}
			return
		}
	}
}

// textAccumulator 在客户端累计流式文本, 填充 Event.Buffer。
// 消息边界 (START/END/messageId 变化) 与运行边界都会重置累计。
type textAccumulator struct {
	msgID string
	buf   strings.Builder
}

func (a *textAccumulator) apply(evt *Event) {
	switch evt.Type {
	case EventTextMessageStart:
		a.reset(evt.MessageID)
	case EventTextMessageContent, EventTextMessageChunk:
		if evt.MessageID != "" && evt.MessageID != a.msgID {
			a.reset(evt.MessageID)
		}
		a.buf.WriteString(evt.Delta)
		evt.Buffer = a.buf.String()
	case EventTextMessageEnd, EventRunStarted, EventRunFinished, EventRunError:
		a.reset("")
	}
}

func (a *textAccumulator) reset(msgID string) {
	a.msgID = msgID
	a.buf.Reset()
}
