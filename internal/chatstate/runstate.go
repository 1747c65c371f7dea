// runstate.go — 运行状态机: idle → running → finished/errored。
package chatstate

// RunState 一次运行的生命周期状态。每次 RunStarted 重新回到 running,
// 同一时间至多一次运行在进行 (入口层负责拒绝并发发起)。
type RunState string

const (
	RunIdle     RunState = "idle"
	RunRunning  RunState = "running"
	RunFinished RunState = "finished"
	RunErrored  RunState = "errored"
)

// Active 返回是否有运行在进行中。
func (s RunState) Active() bool { return s == RunRunning }

// Terminal 返回状态是否为终态。
func (s RunState) Terminal() bool { return s == RunFinished || s == RunErrored }
