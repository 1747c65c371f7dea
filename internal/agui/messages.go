// messages.go — AG-UI 消息与运行输入的线上形态。
package agui

// 消息角色。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message 线上消息形态, 出现在 RunAgentInput 和 MESSAGES_SNAPSHOT 中。
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunAgentInput 是发起一次运行的请求体: 完整会话历史 + 本次运行标识。
type RunAgentInput struct {
	ThreadID string    `json:"threadId"`
	RunID    string    `json:"runId"`
	Messages []Message `json:"messages"`
}
