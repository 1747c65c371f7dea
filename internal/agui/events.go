// Package agui 实现 AG-UI 协议的事件类型与传输客户端。
//
// 协议形态: 后端把一次运行 (run) 的全部事件按顺序推给前端，
// 每个事件是一个带 "type" 判别字段的扁平 JSON 对象，
// SSE 线上格式为 "data: {json}\n\n"。
package agui

import (
	"encoding/json"
	"fmt"

	pkgerr "github.com/agui-chat/go-chat-v2/pkg/errors"
)

// EventType identifies an AG-UI event.
type EventType string

const (
	// 运行生命周期
	EventRunStarted   EventType = "RUN_STARTED"
	EventRunFinished  EventType = "RUN_FINISHED"
	EventRunError     EventType = "RUN_ERROR"
	EventStepStarted  EventType = "STEP_STARTED"
	EventStepFinished EventType = "STEP_FINISHED"

	// 文本消息
	EventTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventTextMessageChunk   EventType = "TEXT_MESSAGE_CHUNK"

	// 工具调用 (协议保留, 本客户端透传不处理)
	EventToolCallStart  EventType = "TOOL_CALL_START"
	EventToolCallArgs   EventType = "TOOL_CALL_ARGS"
	EventToolCallEnd    EventType = "TOOL_CALL_END"
	EventToolCallChunk  EventType = "TOOL_CALL_CHUNK"
	EventToolCallResult EventType = "TOOL_CALL_RESULT"

	// 状态同步
	EventStateSnapshot    EventType = "STATE_SNAPSHOT"
	EventStateDelta       EventType = "STATE_DELTA"
	EventMessagesSnapshot EventType = "MESSAGES_SNAPSHOT"

	// 透传
	EventRaw    EventType = "RAW"
	EventCustom EventType = "CUSTOM"
)

// Event 是 AG-UI 事件的扁平载体，不同类型只填充各自相关的字段。
type Event struct {
	Type      EventType       `json:"type"`
	ThreadID  string          `json:"threadId,omitempty"`
	RunID     string          `json:"runId,omitempty"`
	AgentID   string          `json:"agentId,omitempty"` // RUN_STARTED 应答方标识
	MessageID string          `json:"messageId,omitempty"`
	Role      string          `json:"role,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	StepName  string          `json:"stepName,omitempty"`
	Message   string          `json:"message,omitempty"`  // RUN_ERROR 错误文本
	Code      string          `json:"code,omitempty"`     // RUN_ERROR 错误码
	Result    json.RawMessage `json:"result,omitempty"`   // RUN_FINISHED 附加结果
	Messages  []Message       `json:"messages,omitempty"` // MESSAGES_SNAPSHOT 权威消息列表
	Raw       json.RawMessage `json:"event,omitempty"`    // RAW 原始事件

	// Buffer 是传输层在本地累计的当前消息全文。
	// 不在线上传输; SSE 客户端逐 delta 累计后填充, WS 客户端不填。
	Buffer string `json:"-"`
}

// Terminal 返回事件是否结束一次运行。
func (e Event) Terminal() bool {
	return e.Type == EventRunFinished || e.Type == EventRunError
}

// ParseEvent 解析一条事件 JSON。type 字段缺失视为非法。
func ParseEvent(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, pkgerr.Wrap(err, "agui.ParseEvent", "unmarshal event")
	}
	if evt.Type == "" {
		return Event{}, pkgerr.Wrap(pkgerr.ErrInvalidInput, "agui.ParseEvent", "missing type field")
	}
	return evt, nil
}

// EncodeSSE 将事件编码为一帧 SSE 数据。
func (e Event) EncodeSSE() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, pkgerr.Wrap(err, "agui.EncodeSSE", "marshal event")
	}
	return fmt.Appendf(nil, "data: %s\n\n", data), nil
}
