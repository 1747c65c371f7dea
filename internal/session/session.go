// Package session 把传输层、状态归约和通知总线拼成一个会话入口。
//
// 一个 Session 对应一个 thread: 发送用户消息会发起一次运行,
// 运行的事件流在单个 goroutine 上按到达顺序归约, 每归约一条
// 就向总线发布通知。读取方通过访问器拿状态快照。
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/agui-chat/go-chat-v2/internal/agui"
	"github.com/agui-chat/go-chat-v2/internal/bus"
	"github.com/agui-chat/go-chat-v2/internal/chatstate"
	"github.com/agui-chat/go-chat-v2/pkg/logger"
	"github.com/agui-chat/go-chat-v2/pkg/util"
)

// Transport 一次运行的事件来源。
//
// Run 返回的通道按到达顺序递送事件, 并保证以终态事件
// (RUN_FINISHED/RUN_ERROR) 收尾后关闭; 传输层故障由实现
// 合成 RUN_ERROR, 调用方不需要自己做超时。
type Transport interface {
	Run(ctx context.Context, input agui.RunAgentInput) (<-chan agui.Event, error)
}

// Session 单线程会话。
type Session struct {
	threadID  string
	transport Transport
	state     *chatstate.StateManager
	notify    *bus.MessageBus

	mu       sync.Mutex // 守护发送路径: inFlight 与 runID
	inFlight bool
	runID    string
}

// New 创建会话。threadID 自动生成, notify 总线由调用方提供并订阅。
func New(transport Transport, notify *bus.MessageBus) *Session {
	return &Session{
		threadID:  uuid.NewString(),
		transport: transport,
		state:     chatstate.NewStateManager(),
		notify:    notify,
	}
}

// ThreadID 返回会话线程 ID。
func (s *Session) ThreadID() string {
	return s.threadID
}

// Bus 返回通知总线。
func (s *Session) Bus() *bus.MessageBus {
	return s.notify
}

// SendUserMessage 追加一条用户消息并发起一次运行。
//
// 运行进行中再次调用是无操作: 返回 nil, 打一条警告,
// 不追加消息也不发起新运行 (重复提交保护)。
// 传输无法建立时返回错误, 已追加的用户消息保留在转写里。
func (s *Session) SendUserMessage(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		logger.Warn("session: run in flight, user message ignored",
			logger.FieldThreadID, s.threadID,
			logger.FieldRunID, s.runID,
		)
		return nil
	}
	runID := uuid.NewString()
	s.inFlight = true
	s.runID = runID
	s.mu.Unlock()

	s.state.AppendUserMessage(content)
	s.publish(bus.TopicTranscriptUpdated, runID)

	input := agui.RunAgentInput{
		ThreadID: s.threadID,
		RunID:    runID,
		Messages: s.wireTranscript(),
	}
	ch, err := s.transport.Run(ctx, input)
	if err != nil {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		return err
	}

	util.SafeGo(func() { s.consume(ch, runID) })
	return nil
}

// consume 单 goroutine 消费一次运行的事件流。
// 终态事件归约后立即放开发送门, 再发通知;
// 订阅者看到 run.finished/run.errored 时一定可以立刻重新发送。
func (s *Session) consume(ch <-chan agui.Event, runID string) {
	for evt := range ch {
		s.state.Apply(evt)
		if evt.Terminal() {
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
		}
		s.publish(topicFor(evt.Type), runID)
	}

	// 传输层保证终态后关闭, 这里兜底防止门卡死。
	// 只兜当前运行: 终态后调用方可能已发起新运行, 不能误开新门。
	s.mu.Lock()
	if s.runID == runID {
		s.inFlight = false
	}
	s.mu.Unlock()
}

func topicFor(t agui.EventType) string {
	switch t {
	case agui.EventRunStarted:
		return bus.TopicRunStarted
	case agui.EventRunFinished:
		return bus.TopicRunFinished
	case agui.EventRunError:
		return bus.TopicRunErrored
	default:
		return bus.TopicTranscriptUpdated
	}
}

func (s *Session) publish(topic, runID string) {
	s.notify.Publish(bus.Message{
		Topic:    topic,
		ThreadID: s.threadID,
		RunID:    runID,
	})
}

// wireTranscript 把本地转写转成线上消息形状。
// 步骤是本地注解, 不上行。
func (s *Session) wireTranscript() []agui.Message {
	local := s.state.Transcript()
	msgs := make([]agui.Message, 0, len(local))
	for _, m := range local {
		msgs = append(msgs, agui.Message{
			ID:      m.ID,
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return msgs
}

// Transcript 返回当前转写快照。
func (s *Session) Transcript() []chatstate.Message {
	return s.state.Transcript()
}

// RunState 返回当前运行状态。
func (s *Session) RunState() chatstate.RunState {
	return s.state.RunState()
}

// Err 返回当前运行错误文本。
func (s *Session) Err() string {
	return s.state.Err()
}

// StreamingBuffer 返回进行中回复的累计全文。
func (s *Session) StreamingBuffer() string {
	return s.state.StreamingBuffer()
}
