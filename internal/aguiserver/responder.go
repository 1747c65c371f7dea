// responder.go — 回复产生器。runStream 负责运行级事件,
// Responder 只产生中间的步骤与正文。
package aguiserver

import (
	"context"
	"strings"
	"time"

	"github.com/agui-chat/go-chat-v2/internal/agui"
	"github.com/agui-chat/go-chat-v2/internal/config"
)

// Responder 为一次运行产生步骤与正文事件。
//
// 实现者通过 emit 按序写出 STEP_*/TEXT_MESSAGE_* 事件, 并返回
// 完整回复文本 (快照用)。emit 返回错误时应立即放弃并原样上抛。
type Responder interface {
	Respond(ctx context.Context, input agui.RunAgentInput, messageID string, emit EmitFunc) (string, error)
}

// 每条 TEXT_MESSAGE_CHUNK 携带的正文长度 (按 rune 计)。
const replyChunkRunes = 12

type scriptedStep struct {
	name        string
	description string
}

// 演示剧本: 三个依次完成的步骤, 之后才开始流正文。
var scriptedSteps = []scriptedStep{
	{"Reading the question", "Going through the latest user message to figure out what is actually being asked."},
	{"Gathering context", "Collecting the notes and earlier turns that are relevant to a useful answer."},
	{"Composing the answer", "Drafting the reply and getting it ready to stream back chunk by chunk."},
}

// ScriptedResponder 不接任何模型, 按剧本产生确定性的回复。
// 步骤间与分片间的停顿来自配置, 测试里通常置零。
type ScriptedResponder struct {
	stepDelay  time.Duration
	chunkDelay time.Duration
}

// NewScriptedResponder 从配置构造剧本应答器。
func NewScriptedResponder(cfg *config.Config) *ScriptedResponder {
	return &ScriptedResponder{
		stepDelay:  time.Duration(cfg.StepDelayMS) * time.Millisecond,
		chunkDelay: time.Duration(cfg.ChunkDelayMS) * time.Millisecond,
	}
}

// Respond 依次走完三个剧本步骤, 再把合成回复按小片流出。
func (r *ScriptedResponder) Respond(ctx context.Context, input agui.RunAgentInput, messageID string, emit EmitFunc) (string, error) {
	for _, step := range scriptedSteps {
		field := agui.EncodeStepField(step.name, step.description)
		if err := emit(agui.Event{Type: agui.EventStepStarted, StepName: field}); err != nil {
			return "", err
		}
		if err := sleepCtx(ctx, r.stepDelay); err != nil {
			return "", err
		}
		if err := emit(agui.Event{Type: agui.EventStepFinished, StepName: field}); err != nil {
			return "", err
		}
	}

	reply := scriptedReply(lastUserContent(input.Messages))
	for _, piece := range chunkText(reply, replyChunkRunes) {
		if err := emit(agui.Event{Type: agui.EventTextMessageChunk, MessageID: messageID, Delta: piece}); err != nil {
			return "", err
		}
		if err := sleepCtx(ctx, r.chunkDelay); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// scriptedReply 根据最后一条用户消息合成回复。确定性文本, 端到端测试可逐字断言。
func scriptedReply(question string) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return "No question came through this round, but the pipeline still ran: " +
			"the question slot was read, context was gathered and this reply was streamed back."
	}
	return "You asked: " + q + "\n\n" +
		"This backend is running its scripted responder, so no model was consulted. " +
		"It read the question, gathered what it had and streamed this canned reply " +
		"so every stage of a run shows up in the transcript."
}

// lastUserContent 取最近一条用户消息的正文, 没有则返回空串。
func lastUserContent(msgs []agui.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == agui.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// chunkText 把 s 按每段 size 个 rune 切开。按 rune 切分,
// 多字节字符永远不会被劈在两个分片里。空串切出零个分片。
func chunkText(s string, size int) []string {
	if size <= 0 {
		size = 1
	}
	runes := []rune(s)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// sleepCtx 等待 d, ctx 先取消则提前返回其错误。d<=0 时不等待。
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
