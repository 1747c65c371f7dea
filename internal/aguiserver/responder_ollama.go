// responder_ollama.go — 接本机 ollama 的应答器, 把模型 token 流转成 TEXT_MESSAGE_CHUNK。
package aguiserver

import (
	"context"
	"strings"
	"time"

	"github.com/jmorganca/ollama/api"

	"github.com/agui-chat/go-chat-v2/internal/agui"
	"github.com/agui-chat/go-chat-v2/internal/config"
	pkgerr "github.com/agui-chat/go-chat-v2/pkg/errors"
	"github.com/agui-chat/go-chat-v2/pkg/logger"
)

// OllamaResponder 通过 ollama 的流式 chat 接口产生回复。
// 模型生成对客户端表现为单个步骤, token 流逐片下发。
type OllamaResponder struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewOllamaResponder 构造 ollama 应答器。
// 服务地址由 OLLAMA_HOST 决定, 未设置时走库默认的本机 11434。
func NewOllamaResponder(cfg *config.Config) (*OllamaResponder, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, pkgerr.Wrap(err, "aguiserver.NewOllamaResponder", "resolve ollama host")
	}
	return &OllamaResponder{
		client:  client,
		model:   cfg.OllamaModel,
		timeout: time.Duration(cfg.LLMTimeout) * time.Second,
	}, nil
}

// Respond 把会话历史交给模型, 生成期间挂一个运行中的步骤,
// 收到的每个增量立即作为 TEXT_MESSAGE_CHUNK 写出。
func (r *OllamaResponder) Respond(ctx context.Context, input agui.RunAgentInput, messageID string, emit EmitFunc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	field := agui.EncodeStepField("Generating", "Streaming tokens from "+r.model+".")
	if err := emit(agui.Event{Type: agui.EventStepStarted, StepName: field}); err != nil {
		return "", err
	}

	history := make([]api.Message, 0, len(input.Messages))
	for _, m := range input.Messages {
		history = append(history, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := true
	req := &api.ChatRequest{
		Model:    r.model,
		Messages: history,
		Stream:   &stream,
	}

	var reply strings.Builder
	start := time.Now()
	err := r.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		reply.WriteString(resp.Message.Content)
		return emit(agui.Event{Type: agui.EventTextMessageChunk, MessageID: messageID, Delta: resp.Message.Content})
	})
	if err != nil {
		return "", pkgerr.Wrapf(err, "aguiserver.OllamaResponder", "chat with %s", r.model)
	}

	if err := emit(agui.Event{Type: agui.EventStepFinished, StepName: field}); err != nil {
		return "", err
	}

	logger.Debug("chatd: ollama generation done",
		logger.FieldModel, r.model,
		logger.FieldLen, reply.Len(),
		logger.FieldLatencyMS, time.Since(start).Milliseconds(),
	)
	return reply.String(), nil
}
