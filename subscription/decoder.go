package subscription

import (
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
)

// Variable 一个订阅变量及其在线上的期望数据类型
type Variable struct {
	Tag  uint8
	Type uint8
	Name string
}

// Schema 某一类对象的解码规则：固定的订阅变量列表
type Schema struct {
	Name      string // 对象类别名，用于日志与指标
	Variables []Variable
}

// typeOf 返回变量tag的期望类型，ID_LIST对所有类对象都合法
func (s *Schema) typeOf(tag uint8) (uint8, bool) {
	if tag == traci.ID_LIST {
		return traci.TYPE_STRINGLIST, true
	}
	for _, v := range s.Variables {
		if v.Tag == tag {
			return v.Type, true
		}
	}
	return 0, false
}

// VariableName 变量tag的可读名称
func (s *Schema) VariableName(tag uint8) string {
	if tag == traci.ID_LIST {
		return "id_list"
	}
	for _, v := range s.Variables {
		if v.Tag == tag {
			return v.Name
		}
	}
	return fmt.Sprintf("0x%02x", tag)
}

// Tags 按订阅顺序返回全部变量ID
func (s *Schema) Tags() []uint8 {
	tags := make([]uint8, len(s.Variables))
	for i, v := range s.Variables {
		tags[i] = v.Tag
	}
	return tags
}

// Event 单个响应帧的解码结果：IDListEvent或FieldEvent之一
type Event interface {
	event()
}

// IDListEvent 响应帧携带了整类对象的当前ID列表
type IDListEvent struct {
	IDs []string
}

// FieldEvent 响应帧携带了单个对象的若干变量
type FieldEvent struct {
	ObjectID string
	Fields   Fields
	Failures []VariableFailure
}

func (IDListEvent) event() {}
func (FieldEvent) event()  {}

// VariableFailure 服务器对某对象的某个订阅变量返回了非OK状态
type VariableFailure struct {
	Kind     string
	ObjectID string
	Variable uint8
	Status   uint8
	Message  string
}

func (f VariableFailure) String() string {
	return fmt.Sprintf("%s %q variable 0x%02x: %s (%q)", f.Kind, f.ObjectID, f.Variable, traci.StatusName(f.Status), f.Message)
}

// ProtocolError 响应帧违反协议，继续读取会导致后续字节全部错位
type ProtocolError struct {
	Kind     string
	ObjectID string
	Offset   int // 出错时在帧内的字节偏移
	Reason   string
	Err      error
}

func (e *ProtocolError) Error() string {
	s := fmt.Sprintf("traci protocol violation in %s frame", e.Kind)
	if e.ObjectID != "" {
		s += fmt.Sprintf(" for %q", e.ObjectID)
	}
	s += fmt.Sprintf(" at offset %d: %s", e.Offset, e.Reason)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Decode 解码一个订阅响应帧
// 功能：读取对象ID、变量数量以及每个变量的(变量ID, 状态, 类型, 内容)
// 参数：frame-已去除外层封装（命令长度、扩展长度、响应命令ID）的帧，schema-该类对象的解码规则
// 返回：IDListEvent或FieldEvent；违反协议时返回*ProtocolError
// 算法说明：
// 1. 变量数量必须为1或schema的固定变量数
// 2. 状态为OK时按声明类型读取内容，声明类型必须与该变量的期望类型一致；
// ID_LIST只能作为单变量帧的唯一变量出现，读到后立即返回
// 3. 状态非OK时读取错误字符串并记为VariableFailure，继续处理后续变量
// 4. 全部变量读取后帧内不得有剩余字节
func Decode(frame []byte, schema *Schema) (Event, error) {
	r := traci.NewReader(frame)
	fail := func(objectID, reason string, err error) (Event, error) {
		return nil, &ProtocolError{Kind: schema.Name, ObjectID: objectID, Offset: r.Pos(), Reason: reason, Err: err}
	}

	objectID, err := r.ReadString()
	if err != nil {
		return fail("", "read object id", err)
	}
	count, err := r.ReadUint8()
	if err != nil {
		return fail(objectID, "read variable count", err)
	}
	if count != 1 && int(count) != len(schema.Variables) {
		return fail(objectID, fmt.Sprintf("frame declares %d variables, expected 1 or %d", count, len(schema.Variables)), nil)
	}

	ev := FieldEvent{ObjectID: objectID, Fields: make(Fields, count)}
	// 同一帧内每个变量至多出现一次
	var seen Presence
	for i := 0; i < int(count); i++ {
		tag, err := r.ReadUint8()
		if err != nil {
			return fail(objectID, "read variable id", err)
		}
		status, err := r.ReadUint8()
		if err != nil {
			return fail(objectID, "read variable status", err)
		}
		typ, err := r.ReadUint8()
		if err != nil {
			return fail(objectID, "read variable type", err)
		}

		expected, ok := schema.typeOf(tag)
		if !ok {
			return fail(objectID, fmt.Sprintf("unexpected variable 0x%02x", tag), nil)
		}
		if tag == traci.ID_LIST && count != 1 {
			return fail(objectID, "id list inside a multi-variable frame", nil)
		}
		if seen.Has(tag) {
			return fail(objectID, fmt.Sprintf("repeated variable %s", schema.VariableName(tag)), nil)
		}
		seen.set(tag)

		if status != traci.RTYPE_OK {
			if typ != traci.TYPE_STRING {
				return fail(objectID, fmt.Sprintf("variable 0x%02x with status %s declares type 0x%02x instead of string", tag, traci.StatusName(status), typ), nil)
			}
			msg, err := r.ReadString()
			if err != nil {
				return fail(objectID, fmt.Sprintf("read error message of variable 0x%02x", tag), err)
			}
			ev.Failures = append(ev.Failures, VariableFailure{
				Kind:     schema.Name,
				ObjectID: objectID,
				Variable: tag,
				Status:   status,
				Message:  msg,
			})
			continue
		}

		if typ != expected {
			return fail(objectID, fmt.Sprintf("variable %s declares type 0x%02x, expected 0x%02x", schema.VariableName(tag), typ, expected), nil)
		}
		if tag == traci.ID_LIST {
			ids, err := r.ReadStringList()
			if err != nil {
				return fail(objectID, "read id list", err)
			}
			return IDListEvent{IDs: ids}, nil
		}
		v, err := decodeValue(r, typ)
		if err != nil {
			return fail(objectID, fmt.Sprintf("read variable %s", schema.VariableName(tag)), err)
		}
		ev.Fields[tag] = v
	}
	if !r.EOF() {
		return fail(objectID, fmt.Sprintf("%d trailing bytes", r.Remaining()), nil)
	}
	return ev, nil
}
