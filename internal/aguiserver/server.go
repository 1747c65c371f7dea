// Package aguiserver 提供 AG-UI 协议的演示后端 HTTP 服务。
//
// 同一套运行序列走两种传输: POST /chat 以 SSE 流式推送,
// GET /chat/ws 走 WebSocket。回复内容由 Responder 产生,
// 默认为内置脚本, 可切换到本地 Ollama 模型。
package aguiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agui-chat/go-chat-v2/internal/config"
)

// Server AG-UI 演示后端。
type Server struct {
	router    *gin.Engine
	cfg       *config.Config
	responder Responder
	upgrader  websocket.Upgrader
}

// NewServer 创建后端服务。
func NewServer(cfg *config.Config, responder Responder) *Server {
	if cfg.Env != "development" && cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		router:    gin.Default(),
		cfg:       cfg,
		responder: responder,
		// 演示服务与 CORS 同步放开跨源, 前端开发端口不固定。
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.registerRoutes()
	return s
}

// Engine 返回 Gin 引擎。
func (s *Server) Engine() *gin.Engine { return s.router }

func (s *Server) registerRoutes() {
	s.router.Use(corsAllowAll())

	s.router.GET("/", s.rootInfo)
	s.router.GET("/health", s.health)
	s.router.POST("/chat", s.chatSSE)
	s.router.GET("/chat/ws", s.chatWS)
	if s.cfg.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// corsAllowAll 放开所有跨源请求。
func corsAllowAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) rootInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "chatd",
		"agent":     s.cfg.AgentName,
		"endpoints": []string{"/chat", "/chat/ws", "/health"},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
