package server

import (
	"encoding/json"

	"cursorpilot/cursor"
	"cursorpilot/toolcall"
)

// 入站消息类型
const (
	MsgDisplay  = "display"   // 覆盖层上报视口尺寸
	MsgToolCall = "tool_call" // 模型工具调用
	MsgMove     = "move"      // 直接移动：{"x","y"} 或 {"command":"right"}
)

// 出站消息类型
const (
	MsgCursor       = "cursor"
	MsgToolResponse = "tool_response"
)

// InboundMessage 入站 JSON 结构（WebSocket 文本消息），按 Type 使用不同字段
// 示例：{"type":"move","x":500,"y":250}
type InboundMessage struct {
	Type string `json:"type"`

	// tool_call
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// move
	Command string   `json:"command,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`

	// display
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// ToolCall 转换为分派器的调用结构
func (m InboundMessage) ToolCall() toolcall.Call {
	return toolcall.Call{ID: m.ID, Name: m.Name, Args: m.Args}
}

// Bounds 视口尺寸
func (m InboundMessage) Bounds() cursor.Bounds {
	return cursor.Bounds{Width: m.Width, Height: m.Height}
}

// CursorMessage 广播给覆盖层的位置
type CursorMessage struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// ToolResponseMessage 工具调用结果
type ToolResponseMessage struct {
	Type string `json:"type"`
	toolcall.Response
}
