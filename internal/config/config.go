// Package config 全局配置加载与管理。
//
// 所有字段通过 struct tag 声明环境变量映射:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() 先尝试加载 .env 文件，再通过反射自动填充，无需手动逐行赋值。
package config

import (
	"github.com/joho/godotenv"

	"github.com/agui-chat/go-chat-v2/pkg/util"
)

// Config 应用全局配置，字段名与 .env 变量一一对应。
type Config struct {
	// 运行环境
	Env      string `env:"CHAT_ENV" default:"production"`
	LogLevel string `env:"LOG_LEVEL" default:"INFO"`
	LogDir   string `env:"CHAT_LOG_DIR"`

	// chatd 服务端
	ListenAddr       string `env:"CHATD_LISTEN_ADDR" default:":8000"`
	AgentName        string `env:"CHATD_AGENT_NAME" default:"researcher"`
	StepDelayMS      int    `env:"CHATD_STEP_DELAY_MS" default:"400" min:"0"`
	ChunkDelayMS     int    `env:"CHATD_CHUNK_DELAY_MS" default:"30" min:"0"`
	SnapshotOnFinish bool   `env:"CHATD_SNAPSHOT_ON_FINISH" default:"true"`
	MetricsEnabled   bool   `env:"CHATD_METRICS_ENABLED" default:"true"`

	// 回复生成器: scripted (内置脚本) 或 ollama (本地 LLM, 地址走 OLLAMA_HOST)
	Responder   string `env:"CHATD_RESPONDER" default:"scripted"`
	OllamaModel string `env:"OLLAMA_MODEL" default:"llama3.2:3b"`
	LLMTimeout  int    `env:"LLM_TIMEOUT" default:"120" min:"1"`

	// 客户端传输
	BackendURL          string `env:"CHAT_BACKEND_URL" default:"http://localhost:8000"`
	Transport           string `env:"CHAT_TRANSPORT" default:"sse"`
	ConnectTimeoutSec   int    `env:"CHAT_CONNECT_TIMEOUT_SEC" default:"10" min:"1"`
	HandshakeTimeoutSec int    `env:"CHAT_HANDSHAKE_TIMEOUT_SEC" default:"10" min:"1"`
}

// Load 从环境变量加载配置 (通过反射读取 struct tag)。
// .env 文件存在时优先载入，已存在的环境变量不会被覆盖。
func Load() *Config {
	_ = godotenv.Load()
	var cfg Config
	util.LoadFromEnv(&cfg)
	return &cfg
}
