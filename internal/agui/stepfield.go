// stepfield.go — 步骤名复合字段编解码。
//
// 后端把步骤的展示名和说明打包进同一个 stepName 字段,
// 以字面量 "|||" 分隔 (协议的 STEP_* 事件没有独立的说明字段)。
package agui

import "strings"

// StepFieldSeparator 步骤名与说明之间的分隔符。
const StepFieldSeparator = "|||"

// DecodeStepField 拆出步骤名与说明。
//
// 解码是全函数, 永不失败: 无分隔符时整串作为名字, 说明为空;
// 多个分隔符只按第一个拆分, 其余归入说明。
func DecodeStepField(field string) (name, description string) {
	name, description, _ = strings.Cut(field, StepFieldSeparator)
	return name, description
}

// EncodeStepField 是 DecodeStepField 的逆操作。
// 说明为空时只返回名字, 保证无分隔符名字的编解码往返恒等。
func EncodeStepField(name, description string) string {
	if description == "" {
		return name
	}
	return name + StepFieldSeparator + description
}
