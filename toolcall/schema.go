// Package toolcall 定义暴露给 AI 会话的指针工具，并把模型发出的工具调用分派给运动控制器。
package toolcall

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// 工具名
const (
	ToolPointTo    = "point_to"
	ToolMoveCursor = "move_cursor"
	ToolMoveRight  = "move_right"
)

// Declaration 工具声明（函数名、描述、参数 JSON Schema），由会话层原样转发给模型
type Declaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

var declarations = []Declaration{
	{
		Name:        ToolPointTo,
		Description: "Points to a location on the screen using a bounding box. The coordinates should be normalised from 0-1000.",
		Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "ymin": {"type": "number", "description": "Minimum Y coordinate (top) normalised from 0-1000"},
    "xmin": {"type": "number", "description": "Minimum X coordinate (left) normalised from 0-1000"},
    "ymax": {"type": "number", "description": "Maximum Y coordinate (bottom) normalised from 0-1000"},
    "xmax": {"type": "number", "description": "Maximum X coordinate (right) normalised from 0-1000"}
  },
  "required": ["ymin", "xmin", "ymax", "xmax"]
}`),
	},
	{
		Name:        ToolMoveCursor,
		Description: "Moves the cursor to a point on the screen. The coordinates should be normalised from 0-1000.",
		Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "x": {"type": "number", "description": "X coordinate normalised from 0-1000"},
    "y": {"type": "number", "description": "Y coordinate normalised from 0-1000"}
  },
  "required": ["x", "y"]
}`),
	},
	{
		Name:        ToolMoveRight,
		Description: "Moves the cursor one step to the right, wrapping back to the left edge.",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	},
}

// Declarations 返回全部工具声明的副本
func Declarations() []Declaration {
	out := make([]Declaration, len(declarations))
	copy(out, declarations)
	return out
}

// DeclarationsJSON 序列化为 JSON，便于 HTTP 输出
func DeclarationsJSON() ([]byte, error) {
	return json.Marshal(struct {
		FunctionDeclarations []Declaration `json:"functionDeclarations"`
	}{declarations})
}

// compileSchemas 将每个工具的参数 Schema 编译为校验器
func compileSchemas(decls []Declaration) (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema, len(decls))
	for _, d := range decls {
		url := "mem://tools/" + d.Name + ".json"
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(d.Parameters))
		if err != nil {
			return nil, fmt.Errorf("add schema %s: %w", d.Name, err)
		}
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", d.Name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", d.Name, err)
		}
		out[d.Name] = compiled
	}
	return out, nil
}
