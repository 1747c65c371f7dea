// Package bus 提供进程内通知总线。
//
// 会话层每归约一条协议事件就发布一条通知, 订阅方 (探针 CLI、
// 未来的渲染层) 收到后重新读取会话快照。总线只传"该刷新了"
// 和少量元数据, 不传转写本体。
package bus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/agui-chat/go-chat-v2/pkg/logger"
)

// ========================================
// 消息类型
// ========================================

// Message 总线消息。
type Message struct {
	Topic     string          `json:"topic"` // run.started / transcript.updated
	ThreadID  string          `json:"threadId,omitempty"`
	RunID     string          `json:"runId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"` // 具体数据
	Timestamp time.Time       `json:"timestamp"`
	Seq       int64           `json:"seq"` // 全局序列号
}

// Topic 常量。
const (
	// TopicRunStarted 运行开始。
	TopicRunStarted = "run.started"
	// TopicRunFinished 运行正常结束。
	TopicRunFinished = "run.finished"
	// TopicRunErrored 运行异常结束。
	TopicRunErrored = "run.errored"
	// TopicTranscriptUpdated 转写有新版本, 订阅方应重新读取快照。
	TopicTranscriptUpdated = "transcript.updated"

	// TopicRunPrefix 运行生命周期前缀, 订阅它可收到全部 run.* 消息。
	TopicRunPrefix = "run"
	// TopicAll 广播 (所有订阅者收到)。
	TopicAll = "*"
)

// ========================================
// Subscriber
// ========================================

// Subscriber 订阅者。
type Subscriber struct {
	ID     string       // 唯一标识
	Filter string       // topic 前缀过滤 ("run" / "transcript" / "*")
	Ch     chan Message // 消息通道
}

// ========================================
// MessageBus — topic pub/sub
// ========================================

// subscriberChanBuffer 每个订阅者的通道容量。
const subscriberChanBuffer = 64

// MessageBus 进程内消息总线。
//
// 支持 topic 前缀匹配和广播:
//   - 订阅 "run" → 收到 run.started, run.finished, run.errored
//   - 订阅 "*" → 收到所有消息
type MessageBus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber // key = subscriber ID
	seq         int64
}

// NewMessageBus 创建消息总线。
func NewMessageBus() *MessageBus {
	return &MessageBus{
		subscribers: make(map[string]*Subscriber),
	}
}

// Publish 发布消息到匹配的订阅者。
//
// seq 递增和 fan-out 在同一把锁下执行, 保证消息到达顺序与 seq 一致。
// 订阅者通道满时丢弃该订阅者的这条消息, 发布方永不阻塞。
func (b *MessageBus) Publish(msg Message) {
	b.mu.Lock()
	b.seq++
	msg.Seq = b.seq
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	var dropped []string
	for _, sub := range b.subscribers {
		if matchTopic(sub.Filter, msg.Topic) {
			select {
			case sub.Ch <- msg:
			default:
				dropped = append(dropped, sub.ID)
			}
		}
	}
	b.mu.Unlock()

	// 日志在锁外打, 慢订阅者不该拖住发布路径。
	for _, id := range dropped {
		logger.Warn("bus: subscriber channel full, message dropped",
			logger.FieldSubscriber, id,
			logger.FieldTopic, msg.Topic,
			logger.FieldSeq, msg.Seq,
		)
	}
}

// Subscribe 订阅消息。filter 为 topic 前缀 ("run" / "transcript" / "*")。
// 同 ID 重复订阅会替换旧订阅并关闭其通道。
func (b *MessageBus) Subscribe(id, filter string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[id]; ok {
		close(old.Ch)
	}
	sub := &Subscriber{
		ID:     id,
		Filter: filter,
		Ch:     make(chan Message, subscriberChanBuffer),
	}
	b.subscribers[id] = sub
	return sub
}

// Unsubscribe 取消订阅。
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Ch)
		delete(b.subscribers, id)
	}
}

// SubscriberCount 返回当前订阅者数量。
func (b *MessageBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Seq 返回当前序列号。
func (b *MessageBus) Seq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// ========================================
// Topic 匹配
// ========================================

// matchTopic 检查 topic 是否匹配 filter。
//
// 规则:
//   - filter "*" 匹配所有 topic
//   - filter "run" 匹配 "run", "run.started", "run.errored"
//   - filter "transcript.updated" 只精确匹配自己
func matchTopic(filter, topic string) bool {
	if filter == TopicAll {
		return true
	}
	if topic == filter {
		return true
	}
	// 前缀匹配: filter="run" 匹配 topic="run.started"
	if len(topic) > len(filter) && topic[:len(filter)] == filter && topic[len(filter)] == '.' {
		return true
	}
	return false
}
