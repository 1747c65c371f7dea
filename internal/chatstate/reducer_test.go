package chatstate

import (
	"reflect"
	"strings"
	"testing"

	"github.com/agui-chat/go-chat-v2/internal/agui"
)

func applyAll(m *StateManager, evts ...agui.Event) {
	for _, evt := range evts {
		m.Apply(evt)
	}
}

func TestApply_FullRunWithStepAndText(t *testing.T) {
	m := NewStateManager()
	m.AppendUserMessage("what's the plan?")

	applyAll(m,
		agui.Event{Type: agui.EventRunStarted, RunID: "run-1"},
		agui.Event{Type: agui.EventStepStarted, StepName: "Plan|||Outlining steps"},
		agui.Event{Type: agui.EventTextMessageChunk, MessageID: "m-1", Delta: "Hel"},
		agui.Event{Type: agui.EventTextMessageChunk, MessageID: "m-1", Delta: "lo"},
		agui.Event{Type: agui.EventStepFinished, StepName: "Plan"},
		agui.Event{Type: agui.EventRunFinished},
	)

	if got := m.RunState(); got != RunFinished {
		t.Fatalf("run state = %q, want %q", got, RunFinished)
	}
	msgs := m.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("transcript len = %d, want 2", len(msgs))
	}
	assistant := msgs[1]
	if assistant.Role != RoleAssistant {
		t.Fatalf("second message role = %q, want assistant", assistant.Role)
	}
	if assistant.Content != "Hello" {
		t.Fatalf("assistant content = %q, want Hello", assistant.Content)
	}
	if len(assistant.Steps) != 1 {
		t.Fatalf("steps len = %d, want 1", len(assistant.Steps))
	}
	step := assistant.Steps[0]
	if step.Name != "Plan" || step.Description != "Outlining steps" {
		t.Fatalf("step = %+v, want Plan/Outlining steps", step)
	}
	if step.Status != StepCompleted {
		t.Fatalf("step status = %q, want %q", step.Status, StepCompleted)
	}
}

func TestApply_DeltaAccumulatesOnOpenAssistant(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "Hel"},
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "lo"},
	)

	msgs := m.Transcript()
	if len(msgs) != 1 {
		t.Fatalf("transcript len = %d, want 1", len(msgs))
	}
	if msgs[0].Content != "Hello" {
		t.Fatalf("content = %q, want Hello", msgs[0].Content)
	}
	if got := m.StreamingBuffer(); got != "Hello" {
		t.Fatalf("streaming buffer = %q, want Hello", got)
	}
}

func TestApply_BufferPreferredOverDelta(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "Hel", Buffer: "Hel"},
		// 累计串优先: 即使 Delta 乱给, 内容也以 Buffer 为准。
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "xxx", Buffer: "Hello"},
	)

	msgs := m.Transcript()
	if msgs[0].Content != "Hello" {
		t.Fatalf("content = %q, want Hello", msgs[0].Content)
	}
}

func TestApply_DeltaAfterUserMessageOpensAssistant(t *testing.T) {
	m := NewStateManager()
	m.AppendUserMessage("hi")
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventTextMessageContent, Delta: "yo"},
	)

	msgs := m.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("transcript len = %d, want 2", len(msgs))
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "yo" {
		t.Fatalf("appended message = %+v, want assistant/yo", msgs[1])
	}
	if !IsPlaceholderID(msgs[1].ID) {
		t.Fatalf("locally opened assistant should carry placeholder ID, got %q", msgs[1].ID)
	}
}

func TestApply_EmptyDeltaAndBufferIsNoop(t *testing.T) {
	m := NewStateManager()
	applyAll(m, agui.Event{Type: agui.EventRunStarted})
	before := m.Transcript()

	m.Apply(agui.Event{Type: agui.EventTextMessageChunk})

	after := m.Transcript()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("empty text event changed transcript: %+v -> %+v", before, after)
	}
	if got := m.StreamingBuffer(); got != "" {
		t.Fatalf("streaming buffer = %q, want empty", got)
	}
}

func TestApply_TextDeltaPreservesSteps(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventStepStarted, StepName: "Search|||Looking things up"},
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "found it"},
	)

	msgs := m.Transcript()
	if len(msgs) != 1 {
		t.Fatalf("transcript len = %d, want 1", len(msgs))
	}
	if msgs[0].Content != "found it" {
		t.Fatalf("content = %q, want found it", msgs[0].Content)
	}
	if len(msgs[0].Steps) != 1 || msgs[0].Steps[0].Name != "Search" {
		t.Fatalf("steps lost across text delta: %+v", msgs[0].Steps)
	}
}

func TestApply_StepStartedCreatesCarrierMessage(t *testing.T) {
	m := NewStateManager()
	m.AppendUserMessage("go")
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventStepStarted, StepName: "Fetch"},
	)

	msgs := m.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("transcript len = %d, want 2", len(msgs))
	}
	carrier := msgs[1]
	if carrier.Role != RoleAssistant || carrier.Content != "" {
		t.Fatalf("carrier = %+v, want empty assistant message", carrier)
	}
	if len(carrier.Steps) != 1 || carrier.Steps[0].Status != StepRunning {
		t.Fatalf("carrier steps = %+v, want single running step", carrier.Steps)
	}
}

func TestApply_StepStartedAppendsToOpenAssistant(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "working"},
		agui.Event{Type: agui.EventStepStarted, StepName: "One"},
		agui.Event{Type: agui.EventStepStarted, StepName: "Two"},
	)

	msgs := m.Transcript()
	if len(msgs) != 1 {
		t.Fatalf("transcript len = %d, want 1", len(msgs))
	}
	if msgs[0].Content != "working" {
		t.Fatalf("content clobbered by step append: %q", msgs[0].Content)
	}
	if len(msgs[0].Steps) != 2 {
		t.Fatalf("steps len = %d, want 2", len(msgs[0].Steps))
	}
}

func TestApply_StepFinishedCompletesFirstRunningMatch(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventStepStarted, StepName: "Retry"},
		agui.Event{Type: agui.EventStepStarted, StepName: "Retry"},
		agui.Event{Type: agui.EventStepFinished, StepName: "Retry"},
	)

	msgs := m.Transcript()
	steps := msgs[0].Steps
	if steps[0].Status != StepCompleted {
		t.Fatalf("first duplicate status = %q, want completed", steps[0].Status)
	}
	if steps[1].Status != StepRunning {
		t.Fatalf("second duplicate status = %q, want still running", steps[1].Status)
	}
}

func TestApply_StepFinishedWithoutMatchLeavesStateUntouched(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventStepStarted, StepName: "Plan"},
	)
	before := m.Transcript()

	applyAll(m,
		agui.Event{Type: agui.EventStepFinished, StepName: "Nope"},
	)

	after := m.Transcript()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("no-match StepFinished changed transcript: %+v -> %+v", before, after)
	}
}

func TestApply_StepFinishedWithoutAssistantTailIsNoop(t *testing.T) {
	m := NewStateManager()
	m.AppendUserMessage("hi")
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventStepFinished, StepName: "Plan"},
	)

	msgs := m.Transcript()
	if len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Fatalf("transcript = %+v, want lone user message", msgs)
	}
}

func TestApply_RunErrorKeepsTranscript(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "partial answer"},
		agui.Event{Type: agui.EventRunError, Message: "model exploded", Code: "UPSTREAM"},
	)

	if got := m.RunState(); got != RunErrored {
		t.Fatalf("run state = %q, want %q", got, RunErrored)
	}
	if got := m.Err(); got != "model exploded" {
		t.Fatalf("err = %q, want verbatim message", got)
	}
	msgs := m.Transcript()
	if len(msgs) != 1 || msgs[0].Content != "partial answer" {
		t.Fatalf("transcript after error = %+v, want partial answer kept", msgs)
	}
	if got := m.StreamingBuffer(); got != "" {
		t.Fatalf("streaming buffer after error = %q, want cleared", got)
	}
}

func TestApply_RunStartedClearsErrorAndBuffer(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "oops"},
		agui.Event{Type: agui.EventRunError, Message: "boom"},
		agui.Event{Type: agui.EventRunStarted},
	)

	if got := m.RunState(); got != RunRunning {
		t.Fatalf("run state = %q, want %q", got, RunRunning)
	}
	if got := m.Err(); got != "" {
		t.Fatalf("err = %q, want cleared on new run", got)
	}
	if got := m.StreamingBuffer(); got != "" {
		t.Fatalf("streaming buffer = %q, want cleared on new run", got)
	}
}

func TestApply_StateTransitions(t *testing.T) {
	m := NewStateManager()
	if got := m.RunState(); got != RunIdle {
		t.Fatalf("initial state = %q, want idle", got)
	}

	m.Apply(agui.Event{Type: agui.EventRunStarted})
	if got := m.RunState(); got != RunRunning {
		t.Fatalf("state = %q, want running", got)
	}

	m.Apply(agui.Event{Type: agui.EventRunFinished})
	if got := m.RunState(); got != RunFinished {
		t.Fatalf("state = %q, want finished", got)
	}
	if !m.RunState().Terminal() {
		t.Fatal("finished state should be terminal")
	}

	m.Apply(agui.Event{Type: agui.EventRunStarted})
	if got := m.RunState(); got != RunRunning {
		t.Fatalf("state = %q, want running again after terminal", got)
	}
}

func TestApply_UnknownEventIgnored(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventType("SOMETHING_NEW"), Delta: "x"},
		agui.Event{Type: agui.EventToolCallStart},
	)

	if got := m.RunState(); got != RunRunning {
		t.Fatalf("unknown event disturbed state: %q", got)
	}
	if got := len(m.Transcript()); got != 0 {
		t.Fatalf("unknown event touched transcript: len = %d", got)
	}
}

func TestApply_TextBoundariesReduceAsNoops(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventTextMessageStart, MessageID: "m-1"},
		agui.Event{Type: agui.EventTextMessageEnd, MessageID: "m-1"},
	)

	if got := len(m.Transcript()); got != 0 {
		t.Fatalf("boundary events created messages: len = %d", got)
	}
}

func TestApply_RunFinishedClearsStreamingBuffer(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventTextMessageChunk, Delta: "done"},
	)
	if got := m.StreamingBuffer(); got != "done" {
		t.Fatalf("streaming buffer = %q, want done", got)
	}

	m.Apply(agui.Event{Type: agui.EventRunFinished})
	if got := m.StreamingBuffer(); got != "" {
		t.Fatalf("streaming buffer after finish = %q, want empty", got)
	}
}

func TestAppendUserMessage(t *testing.T) {
	m := NewStateManager()
	msg := m.AppendUserMessage("hello there")

	if msg.Role != RoleUser || msg.Content != "hello there" {
		t.Fatalf("returned message = %+v", msg)
	}
	if !strings.HasPrefix(msg.ID, localIDPrefix) {
		t.Fatalf("user message ID = %q, want placeholder prefix", msg.ID)
	}

	msgs := m.Transcript()
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Fatalf("transcript = %+v, want the appended message", msgs)
	}

	second := m.AppendUserMessage("again")
	if second.ID == msg.ID {
		t.Fatalf("placeholder IDs collided: %q", second.ID)
	}
}

func TestTranscriptSnapshotIsolation(t *testing.T) {
	m := NewStateManager()
	applyAll(m,
		agui.Event{Type: agui.EventRunStarted},
		agui.Event{Type: agui.EventStepStarted, StepName: "Plan"},
	)

	snap := m.Transcript()
	snap[0].Content = "tampered"
	snap[0].Steps[0].Status = StepCompleted

	fresh := m.Transcript()
	if fresh[0].Content != "" {
		t.Fatalf("snapshot tampering leaked into manager: %q", fresh[0].Content)
	}
	if fresh[0].Steps[0].Status != StepRunning {
		t.Fatalf("snapshot step tampering leaked: %q", fresh[0].Steps[0].Status)
	}
}
