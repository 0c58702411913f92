package subscription

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
)

// Value 一个已解码的订阅变量值
// 说明：Type为线上声明的数据类型，决定哪个字段有效
type Value struct {
	Type     uint8
	Position geometry.Point // POSITION_2D
	Double   float64        // TYPE_DOUBLE
	Integer  int32          // TYPE_INTEGER
	String   string         // TYPE_STRING
	Strings  []string       // TYPE_STRINGLIST
}

// Fields 单个响应帧中成功解码的变量，以变量ID为键
type Fields map[uint8]Value

func (f Fields) Has(tag uint8) bool {
	_, ok := f[tag]
	return ok
}

func (f Fields) Position(tag uint8) (geometry.Point, bool) {
	v, ok := f[tag]
	return v.Position, ok && v.Type == traci.POSITION_2D
}

func (f Fields) Double(tag uint8) (float64, bool) {
	v, ok := f[tag]
	return v.Double, ok && v.Type == traci.TYPE_DOUBLE
}

func (f Fields) Integer(tag uint8) (int32, bool) {
	v, ok := f[tag]
	return v.Integer, ok && v.Type == traci.TYPE_INTEGER
}

func (f Fields) String(tag uint8) (string, bool) {
	v, ok := f[tag]
	return v.String, ok && v.Type == traci.TYPE_STRING
}

// Presence 记录一条更新中实际携带了哪些变量
// 说明：更新记录总是部分的，未出现在本帧中的变量保持零值且Has返回false
type Presence [4]uint64

func (p *Presence) set(tag uint8) {
	p[tag/64] |= 1 << (tag % 64)
}

// Has 本条更新是否携带变量tag
func (p Presence) Has(tag uint8) bool {
	return p[tag/64]&(1<<(tag%64)) != 0
}

func presenceOf(f Fields) Presence {
	var p Presence
	for tag := range f {
		p.set(tag)
	}
	return p
}

// decodeValue 按声明的数据类型从游标处读取一个值
func decodeValue(r *traci.Reader, typ uint8) (Value, error) {
	v := Value{Type: typ}
	var err error
	switch typ {
	case traci.POSITION_2D:
		if v.Position.X, err = r.ReadDouble(); err != nil {
			return v, err
		}
		v.Position.Y, err = r.ReadDouble()
	case traci.TYPE_DOUBLE:
		v.Double, err = r.ReadDouble()
	case traci.TYPE_INTEGER:
		v.Integer, err = r.ReadInt32()
	case traci.TYPE_STRING:
		v.String, err = r.ReadString()
	case traci.TYPE_STRINGLIST:
		v.Strings, err = r.ReadStringList()
	default:
		err = fmt.Errorf("unsupported value type 0x%02x", typ)
	}
	return v, err
}
