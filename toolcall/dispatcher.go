package toolcall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
)

var (
	ErrUnknownTool = errors.New("toolcall: unknown tool")
	ErrInvalidArgs = errors.New("toolcall: invalid arguments")
)

// Mover 运动控制器对外能力（*cursor.Controller 实现）
type Mover interface {
	MoveTo(nx, ny float64) bool
	MoveRight() bool
}

// Call 模型发出的一次工具调用
type Call struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response 工具调用结果。Accepted=false 且无 Error 表示指针正忙，请求被丢弃。
type Response struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// Dispatcher 校验参数并调用 Mover
type Dispatcher struct {
	mover   Mover
	schemas map[string]*jsonschema.Schema
	log     *zap.SugaredLogger
}

// NewDispatcher 编译全部工具 Schema
func NewDispatcher(m Mover, log *zap.SugaredLogger) (*Dispatcher, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	schemas, err := compileSchemas(declarations)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{mover: m, schemas: schemas, log: log}, nil
}

type pointToArgs struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

type moveCursorArgs struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Handle 执行一次工具调用；不会阻塞等待动画结束
func (d *Dispatcher) Handle(ctx context.Context, call Call) Response {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	resp := Response{ID: call.ID, Name: call.Name}
	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
		return resp
	}
	if err := d.validate(call); err != nil {
		d.log.Warnw("tool call rejected", "id", call.ID, "name", call.Name, "err", err)
		resp.Error = err.Error()
		return resp
	}

	switch call.Name {
	case ToolPointTo:
		var a pointToArgs
		if err := json.Unmarshal(args(call), &a); err != nil {
			resp.Error = fmt.Errorf("%w: %v", ErrInvalidArgs, err).Error()
			return resp
		}
		// 指向包围盒的左上角
		resp.Accepted = d.mover.MoveTo(a.XMin, a.YMin)
		d.log.Debugw("point_to", "id", call.ID, "bbox", a, "accepted", resp.Accepted)
	case ToolMoveCursor:
		var a moveCursorArgs
		if err := json.Unmarshal(args(call), &a); err != nil {
			resp.Error = fmt.Errorf("%w: %v", ErrInvalidArgs, err).Error()
			return resp
		}
		resp.Accepted = d.mover.MoveTo(a.X, a.Y)
		d.log.Debugw("move_cursor", "id", call.ID, "x", a.X, "y", a.Y, "accepted", resp.Accepted)
	case ToolMoveRight:
		resp.Accepted = d.mover.MoveRight()
		d.log.Debugw("move_right", "id", call.ID, "accepted", resp.Accepted)
	}
	return resp
}

// validate 按工具 Schema 校验参数
func (d *Dispatcher) validate(call Call) error {
	schema, ok := d.schemas[call.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(args(call)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

func args(call Call) []byte {
	if len(bytes.TrimSpace(call.Args)) == 0 || bytes.Equal(bytes.TrimSpace(call.Args), []byte("null")) {
		return []byte("{}")
	}
	return call.Args
}
