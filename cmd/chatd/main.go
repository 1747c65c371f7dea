// cmd/chatd — AG-UI 演示后端主入口。
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/agui-chat/go-chat-v2/internal/aguiserver"
	"github.com/agui-chat/go-chat-v2/internal/config"
	"github.com/agui-chat/go-chat-v2/pkg/logger"
	"github.com/agui-chat/go-chat-v2/pkg/util"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger.Init(cfg.Env, cfg.LogLevel)
	if cfg.LogDir != "" {
		if err := logger.InitWithFile(cfg.LogDir); err != nil {
			logger.Fatal("log file init failed", logger.FieldError, err)
		}
		defer logger.ShutdownFileHandler()
	}

	var responder aguiserver.Responder
	switch cfg.Responder {
	case "ollama":
		r, err := aguiserver.NewOllamaResponder(cfg)
		if err != nil {
			logger.Fatal("ollama responder init failed", logger.FieldError, err)
		}
		responder = r
		logger.Info("chatd: ollama responder ready", logger.FieldModel, cfg.OllamaModel)
	case "scripted":
		responder = aguiserver.NewScriptedResponder(cfg)
	default:
		logger.Warn("chatd: unknown responder, falling back to scripted",
			logger.FieldName, cfg.Responder)
		responder = aguiserver.NewScriptedResponder(cfg)
	}

	srv := aguiserver.NewServer(cfg, responder)

	logger.Info("chatd starting",
		logger.FieldListen, cfg.ListenAddr,
		logger.FieldName, cfg.AgentName,
	)
	util.SafeGo(func() {
		if err := srv.Engine().Run(cfg.ListenAddr); err != nil {
			logger.Fatal("chatd server failed", logger.FieldError, err)
		}
	})

	<-ctx.Done()
	logger.Info("chatd shutting down")
}
