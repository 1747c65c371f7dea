// 事件归约表。每个处理器在 StateManager 写锁内执行,
// 通过整体替换 transcript 提交变更。
package chatstate

import (
	"github.com/agui-chat/go-chat-v2/internal/agui"
)

type eventHandler func(m *StateManager, evt agui.Event)

// eventHandlers 事件类型到处理器的登记表。
// TEXT_MESSAGE_START/END 只做传输层缓冲边界, 状态侧登记为无操作,
// 以免落进未登记分支刷 debug 日志。
var eventHandlers = map[agui.EventType]eventHandler{
	agui.EventRunStarted:         handleRunStarted,
	agui.EventRunFinished:        handleRunFinished,
	agui.EventRunError:           handleRunError,
	agui.EventTextMessageStart:   handleNoop,
	agui.EventTextMessageContent: handleTextDelta,
	agui.EventTextMessageChunk:   handleTextDelta,
	agui.EventTextMessageEnd:     handleNoop,
	agui.EventStepStarted:        handleStepStarted,
	agui.EventStepFinished:       handleStepFinished,
	agui.EventMessagesSnapshot:   handleMessagesSnapshot,
}

func handleNoop(m *StateManager, evt agui.Event) {}

func handleRunStarted(m *StateManager, evt agui.Event) {
	m.runState = RunRunning
	m.runErr = ""
	m.streamBuf = ""
}

func handleRunFinished(m *StateManager, evt agui.Event) {
	m.runState = RunFinished
	m.streamBuf = ""
}

func handleRunError(m *StateManager, evt agui.Event) {
	// 错误文本原样保留, 转写不回滚。
	m.runState = RunErrored
	m.runErr = evt.Message
	m.streamBuf = ""
}

// handleTextDelta 文本增量归约。Buffer 为累计全文, 优先于 Delta;
// 两者都空时不产生任何变更, 也不会新建消息。
func handleTextDelta(m *StateManager, evt agui.Event) {
	if evt.Buffer == "" && evt.Delta == "" {
		return
	}

	if last, ok := m.transcript.Last(); ok && last.Role == RoleAssistant {
		if evt.Buffer != "" {
			last.Content = evt.Buffer
		} else {
			last.Content += evt.Delta
		}
		m.transcript = m.transcript.ReplaceLast(last)
		m.streamBuf = last.Content
		return
	}

	content := evt.Buffer
	if content == "" {
		content = evt.Delta
	}
	m.transcript = m.transcript.Append(Message{
		ID:      m.nextLocalIDLocked(),
		Role:    RoleAssistant,
		Content: content,
	})
	m.streamBuf = content
}

// handleStepStarted 向当前助手消息追加一个运行中步骤;
// 最后一条不是助手消息时新建空内容载体。
func handleStepStarted(m *StateManager, evt agui.Event) {
	name, description := agui.DecodeStepField(evt.StepName)
	step := Step{Name: name, Description: description, Status: StepRunning}

	if last, ok := m.transcript.Last(); ok && last.Role == RoleAssistant {
		last.Steps = append(last.Steps, step)
		m.transcript = m.transcript.ReplaceLast(last)
		return
	}

	m.transcript = m.transcript.Append(Message{
		ID:    m.nextLocalIDLocked(),
		Role:  RoleAssistant,
		Steps: []Step{step},
	})
}

// handleStepFinished 把最后一条助手消息里第一个同名运行中步骤置为完成。
// 找不到匹配时不产生任何变更。
func handleStepFinished(m *StateManager, evt agui.Event) {
	name, _ := agui.DecodeStepField(evt.StepName)

	last, ok := m.transcript.Last()
	if !ok || last.Role != RoleAssistant || len(last.Steps) == 0 {
		return
	}
	for i := range last.Steps {
		if last.Steps[i].Name == name && last.Steps[i].Status == StepRunning {
			last.Steps[i].Status = StepCompleted
			m.transcript = m.transcript.ReplaceLast(last)
			return
		}
	}
	// 未知或已完成的步骤按乱序/重复投递的正常情况忽略。
}

func handleMessagesSnapshot(m *StateManager, evt agui.Event) {
	m.transcript = mergeSnapshot(m.transcript, evt.Messages, m.runState)
}
