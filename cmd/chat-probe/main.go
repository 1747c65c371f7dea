// cmd/chat-probe — 命令行探针: 向后端发起一次运行, 订阅会话通知,
// 运行结束后把还原出的转写打印成缩进 JSON。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agui-chat/go-chat-v2/internal/agui"
	"github.com/agui-chat/go-chat-v2/internal/bus"
	"github.com/agui-chat/go-chat-v2/internal/config"
	"github.com/agui-chat/go-chat-v2/internal/session"
	"github.com/agui-chat/go-chat-v2/pkg/logger"
)

func main() {
	cfg := config.Load()

	backend := flag.String("backend", cfg.BackendURL, "后端基址")
	transport := flag.String("transport", cfg.Transport, "传输方式 (sse|ws)")
	prompt := flag.String("prompt", "What is new today?", "要发送的用户消息")
	timeout := flag.Duration("timeout", 2*time.Minute, "等待运行结束的上限")
	flag.Parse()

	logger.Init(cfg.Env, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tr, err := buildTransport(*transport, *backend, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transport setup failed: %v\n", err)
		os.Exit(1)
	}

	nb := bus.NewMessageBus()
	sub := nb.Subscribe("probe", bus.TopicAll)
	sess := session.New(tr, nb)

	fmt.Printf("thread %s, backend %s (%s)\n", sess.ThreadID(), *backend, *transport)
	fmt.Printf("you: %s\n", *prompt)
	if err := sess.SendUserMessage(ctx, *prompt); err != nil {
		fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		os.Exit(1)
	}

	deadline := time.After(*timeout)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(1)
		case <-deadline:
			fmt.Fprintln(os.Stderr, "timed out waiting for terminal event")
			os.Exit(1)
		case m := <-sub.Ch:
			switch m.Topic {
			case bus.TopicRunStarted:
				fmt.Println("agent: run started")
			case bus.TopicTranscriptUpdated:
				// 流式进度就地刷新, 终态时再换行
				if buf := sess.StreamingBuffer(); buf != "" {
					fmt.Printf("\ragent: %d bytes streamed", len(buf))
				}
			case bus.TopicRunErrored:
				fmt.Printf("\nrun errored: %s\n", sess.Err())
				dumpTranscript(sess)
				os.Exit(1)
			case bus.TopicRunFinished:
				fmt.Println("\nrun finished")
				dumpTranscript(sess)
				return
			}
		}
	}
}

// buildTransport 按名字装配传输客户端。
func buildTransport(kind, backend string, cfg *config.Config) (session.Transport, error) {
	switch kind {
	case "ws":
		return agui.NewWSClient(backend, time.Duration(cfg.HandshakeTimeoutSec)*time.Second)
	case "sse":
		return agui.NewSSEClient(backend, time.Duration(cfg.ConnectTimeoutSec)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want sse or ws)", kind)
	}
}

// dumpTranscript 把最终转写打印成缩进 JSON。
func dumpTranscript(sess *session.Session) {
	out, err := json.MarshalIndent(sess.Transcript(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal transcript: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
