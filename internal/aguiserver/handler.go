// handler.go — /chat 的 SSE 与 WebSocket 入口, 以及两者共用的运行序列。
package aguiserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agui-chat/go-chat-v2/internal/agui"
	"github.com/agui-chat/go-chat-v2/pkg/logger"
)

// EmitFunc 向客户端写出一条事件。
type EmitFunc func(agui.Event) error

// chatSSE 以 SSE 推送一次运行。帧格式 "data: {json}\n\n", 逐帧冲刷。
func (s *Server) chatSSE(c *gin.Context) {
	var input agui.RunAgentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "invalid_request", "message": err.Error()},
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// 反向代理不要攒包, 每帧立即下发
	c.Header("X-Accel-Buffering", "no")

	emit := func(evt agui.Event) error {
		frame, err := evt.EncodeSSE()
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write(frame); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}
	s.runStream(c.Request.Context(), input, "sse", emit)
}

// chatWS 以 WebSocket 推送一次运行。首帧上行为 RunAgentInput,
// 之后服务端逐条下发 JSON 事件, 终态后正常关闭。
func (s *Server) chatWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("chatd: websocket upgrade failed", logger.FieldError, err)
		return
	}
	defer conn.Close()

	var input agui.RunAgentInput
	if err := conn.ReadJSON(&input); err != nil {
		logger.Warn("chatd: websocket run input unreadable", logger.FieldError, err)
		return
	}

	emit := func(evt agui.Event) error { return conn.WriteJSON(evt) }
	s.runStream(c.Request.Context(), input, "ws", emit)

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// runStream 跑完一次运行的完整事件序列:
//
//	RUN_STARTED → Responder (步骤+文本) → [MESSAGES_SNAPSHOT] → RUN_FINISHED
//
// Responder 出错时以 RUN_ERROR 收尾。写出失败说明客户端已断开,
// 记日志后直接放弃本次运行。
func (s *Server) runStream(ctx context.Context, input agui.RunAgentInput, transport string, emit EmitFunc) {
	metricRunsStarted.Inc()
	metricRunsInFlight.Inc()
	defer metricRunsInFlight.Dec()

	logger.Info("chatd: run started",
		logger.FieldThreadID, input.ThreadID,
		logger.FieldRunID, input.RunID,
		logger.FieldTransport, transport,
		logger.FieldCount, len(input.Messages),
	)

	counted := func(evt agui.Event) error {
		metricEventsEmitted.WithLabelValues(string(evt.Type)).Inc()
		return emit(evt)
	}

	abort := func(stage string, err error) {
		logger.Warn("chatd: client gone mid-run",
			logger.FieldRunID, input.RunID,
			logger.FieldState, stage,
			logger.FieldError, err,
		)
	}

	if err := counted(agui.Event{
		Type:     agui.EventRunStarted,
		ThreadID: input.ThreadID,
		RunID:    input.RunID,
		AgentID:  s.cfg.AgentName,
	}); err != nil {
		abort("run_started", err)
		return
	}

	messageID := uuid.NewString()
	reply, err := s.responder.Respond(ctx, input, messageID, counted)
	if err != nil {
		// 客户端断开或服务停机算中断, 不算应答方失败
		if ctx.Err() != nil {
			abort("responder", err)
			return
		}
		metricRunsErrored.Inc()
		logger.Error("chatd: responder failed",
			logger.FieldRunID, input.RunID,
			logger.FieldError, err,
		)
		if werr := counted(agui.Event{
			Type:    agui.EventRunError,
			Message: err.Error(),
			Code:    "RESPONDER",
		}); werr != nil {
			abort("run_error", werr)
		}
		return
	}

	if s.cfg.SnapshotOnFinish {
		snapshot := authoritativeMessages(input, messageID, reply)
		if err := counted(agui.Event{Type: agui.EventMessagesSnapshot, Messages: snapshot}); err != nil {
			abort("messages_snapshot", err)
			return
		}
	}

	if err := counted(agui.Event{
		Type:     agui.EventRunFinished,
		ThreadID: input.ThreadID,
		RunID:    input.RunID,
	}); err != nil {
		abort("run_finished", err)
		return
	}
	metricRunsFinished.Inc()

	logger.Info("chatd: run finished",
		logger.FieldThreadID, input.ThreadID,
		logger.FieldRunID, input.RunID,
		logger.FieldLen, len(reply),
	)
}

// authoritativeMessages 构造本次运行结束时的权威消息列表:
// 上行历史 (空 ID 补发服务端 ID) 加上刚刚流完的助手回复。
func authoritativeMessages(input agui.RunAgentInput, messageID, reply string) []agui.Message {
	msgs := make([]agui.Message, 0, len(input.Messages)+1)
	for _, m := range input.Messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		msgs = append(msgs, m)
	}
	return append(msgs, agui.Message{ID: messageID, Role: agui.RoleAssistant, Content: reply})
}
