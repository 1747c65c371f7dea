// 快照对账。权威快照只带 id/role/content, 本地步骤注解要尽量保住:
// 先按稳定 ID 对齐, 助手消息再按出场序兜底, 流式尾巴最后单独处理。
package chatstate

import (
	"github.com/agui-chat/go-chat-v2/internal/agui"
)

// mergeSnapshot 以 authoritative 为准重建转写, 并把 prev 里的步骤
// 注解迁移到对得上的消息。结果与两侧输入不共享步骤切片。
func mergeSnapshot(prev Transcript, authoritative []agui.Message, runState RunState) Transcript {
	prevMsgs := prev.Messages()

	// 两套索引: 稳定 ID 直查, 助手出场序号兜底。
	// 占位 ID 不入 ID 索引, 快照侧对不上它们。
	stepsByID := make(map[string][]Step)
	stepsByAssistantPos := make(map[int][]Step)
	prevAssistantPos := 0
	for _, msg := range prevMsgs {
		if len(msg.Steps) > 0 && !IsPlaceholderID(msg.ID) {
			stepsByID[msg.ID] = msg.Steps
		}
		if msg.Role == RoleAssistant {
			if len(msg.Steps) > 0 {
				stepsByAssistantPos[prevAssistantPos] = msg.Steps
			}
			prevAssistantPos++
		}
	}

	merged := make([]Message, 0, len(authoritative))
	assistantPos := 0
	for _, wire := range authoritative {
		msg := Message{ID: wire.ID, Role: Role(wire.Role), Content: wire.Content}

		steps, matched := stepsByID[wire.ID]
		if !matched && msg.Role == RoleAssistant {
			steps, matched = stepsByAssistantPos[assistantPos]
		}
		if matched {
			msg.Steps = append([]Step{}, steps...)
		}
		if msg.Role == RoleAssistant {
			assistantPos++
		}
		merged = append(merged, msg)
	}

	// 运行中时快照可能落后于流里已追加的步骤:
	// 两侧末尾都是助手消息、本地带步骤而合并结果没带上,
	// 把本地步骤迁到合并尾巴上 (内容仍以快照为准)。
	if runState.Active() && len(merged) > 0 && len(prevMsgs) > 0 {
		mergedTail := merged[len(merged)-1]
		prevTail := prevMsgs[len(prevMsgs)-1]
		if mergedTail.Role == RoleAssistant && prevTail.Role == RoleAssistant &&
			len(mergedTail.Steps) == 0 && len(prevTail.Steps) > 0 {
			merged[len(merged)-1].Steps = append([]Step{}, prevTail.Steps...)
		}
	}

	return NewTranscript(merged)
}
