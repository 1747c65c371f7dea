// safego.go — 受保护的 goroutine 启动器。
package util

import (
	"runtime/debug"

	"github.com/agui-chat/go-chat-v2/pkg/logger"
)

// SafeGo 在新 goroutine 里执行 fn。panic 被捕获并连同堆栈记录日志,
// 不会击穿进程。事件流消费循环和后台服务统一经由这里起协程。
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panicked",
					logger.FieldError, r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
