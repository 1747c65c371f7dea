// Package chatstate 把 AG-UI 事件流还原为可渲染的会话状态。
//
// StateManager 是实时状态的唯一持有者: 转写、运行状态、当前错误、
// 流式缓冲。事件严格按到达顺序归约, 每次变更整体替换转写序列;
// 读取方拿到的快照与实时状态不共享可变内存。
package chatstate

import (
	"sync"

	"github.com/agui-chat/go-chat-v2/internal/agui"
	"github.com/agui-chat/go-chat-v2/pkg/logger"
)

// StateManager 会话实时状态管理器。
//
// 锁责任: 所有读写都经 mu; Apply 与 AppendUserMessage 持写锁,
// 访问器持读锁并返回深拷贝。调用方之间不需要再加锁。
type StateManager struct {
	mu         sync.RWMutex
	transcript Transcript
	runState   RunState
	runErr     string
	streamBuf  string
	seq        uint64 // 占位 ID 发号器
}

// NewStateManager 创建空会话状态。
func NewStateManager() *StateManager {
	return &StateManager{runState: RunIdle}
}

// Apply 归约一条协议事件。登记外的类型忽略 (debug 日志)。
func (m *StateManager) Apply(evt agui.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handler, ok := eventHandlers[evt.Type]
	if !ok {
		logger.Debug("chatstate: ignore unhandled event",
			logger.FieldEventType, string(evt.Type),
		)
		return
	}
	handler(m, evt)
}

// AppendUserMessage 追加一条本地用户消息 (占位 ID), 返回追加的消息。
// 这是入口层发送路径专用, 不走事件归约。
func (m *StateManager) AppendUserMessage(content string) Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := Message{ID: m.nextLocalIDLocked(), Role: RoleUser, Content: content}
	m.transcript = m.transcript.Append(msg)
	return msg
}

// Transcript 返回当前转写快照 (深拷贝)。
func (m *StateManager) Transcript() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transcript.Messages()
}

// RunState 返回当前运行状态。
func (m *StateManager) RunState() RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runState
}

// Err 返回当前运行错误文本, 空串表示无错误。
func (m *StateManager) Err() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runErr
}

// StreamingBuffer 返回进行中助手回复的累计全文。
// 终态事件与新运行开始都会清空。
func (m *StateManager) StreamingBuffer() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streamBuf
}

func (m *StateManager) nextLocalIDLocked() string {
	m.seq++
	return newLocalID(m.seq)
}
