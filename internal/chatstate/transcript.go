// transcript.go — 会话转写的数据模型与整体替换式存储。
package chatstate

import (
	"fmt"
	"strings"
	"time"
)

// Role 消息角色。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// StepStatus 步骤状态, 只会从 running 前进到 completed, 不回退。
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
)

// Step 助手消息上的一个执行步骤。
type Step struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      StepStatus `json:"status"`
}

// Message 转写中的一条消息。实践中只有助手消息积累步骤,
// 但类型上不做限制。
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Steps   []Step `json:"steps,omitempty"`
}

// Clone 深拷贝消息, 步骤切片不共享。
func (m Message) Clone() Message {
	out := m
	if len(m.Steps) > 0 {
		out.Steps = make([]Step, len(m.Steps))
		copy(out.Steps, m.Steps)
	}
	return out
}

// localIDPrefix 本地占位消息 ID 前缀, 权威快照到达前的临时身份。
const localIDPrefix = "local-"

// IsPlaceholderID 占位 ID (或空 ID) 不参与身份对齐。
func IsPlaceholderID(id string) bool {
	return id == "" || strings.HasPrefix(id, localIDPrefix)
}

// newLocalID 生成占位 ID。seq 由调用方 (StateManager) 单调递增。
func newLocalID(seq uint64) string {
	return fmt.Sprintf("%s%d-%d", localIDPrefix, time.Now().UnixMilli(), seq)
}

// Transcript 有序消息序列, 值语义:
// 每次变更都生成全新底层数组返回新值, 旧快照持有者
// 不会观察到后续任何修改。未改动的消息元素在版本间共享,
// 修改路径一律先 Clone 再替换整条消息。
type Transcript struct {
	messages []Message
}

// NewTranscript 从既有消息构造转写 (深拷贝入参)。
func NewTranscript(messages []Message) Transcript {
	list := make([]Message, len(messages))
	for i, m := range messages {
		list[i] = m.Clone()
	}
	return Transcript{messages: list}
}

// Len 返回消息数。
func (t Transcript) Len() int { return len(t.messages) }

// Last 返回最后一条消息的深拷贝。
func (t Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1].Clone(), true
}

// Append 追加消息, 返回新转写。
func (t Transcript) Append(msg Message) Transcript {
	list := append([]Message{}, t.messages...)
	list = append(list, msg.Clone())
	return Transcript{messages: list}
}

// ReplaceLast 用 msg 替换最后一条消息, 返回新转写。空转写原样返回。
func (t Transcript) ReplaceLast(msg Message) Transcript {
	if len(t.messages) == 0 {
		return t
	}
	list := append([]Message{}, t.messages...)
	list[len(list)-1] = msg.Clone()
	return Transcript{messages: list}
}

// Messages 返回全部消息的深拷贝, 与实时状态不共享可变内存。
func (t Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}
