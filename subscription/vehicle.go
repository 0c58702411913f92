package subscription

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
)

// 车辆信号灯位(VAR_SIGNALS)
const (
	SIGNAL_BLINKER_RIGHT     int32 = 1 << 0
	SIGNAL_BLINKER_LEFT      int32 = 1 << 1
	SIGNAL_BLINKER_EMERGENCY int32 = 1 << 2
	SIGNAL_BRAKELIGHT        int32 = 1 << 3
	SIGNAL_FRONTLIGHT        int32 = 1 << 4
	SIGNAL_FOGLIGHT          int32 = 1 << 5
	SIGNAL_HIGHBEAM          int32 = 1 << 6
	SIGNAL_BACKDRIVE         int32 = 1 << 7
)

// Vehicle 车辆更新记录
// 说明：只有Presence中标记的字段来自本帧，其余字段为零值
type Vehicle struct {
	ID       string
	Position geometry.Point
	RoadID   string
	Speed    float64
	Angle    float64 // SUMO角度，单位度，正北为0，顺时针
	Signals  int32
	Length   float64
	Height   float64
	Width    float64
	TypeID   string

	Presence Presence
}

// HeadingRadians 将SUMO角度转换为x轴正方向为0、逆时针为正的弧度
func (v Vehicle) HeadingRadians() float64 {
	return headingRadians(v.Angle)
}

// Signal 检查信号位是否点亮
func (v Vehicle) Signal(bit int32) bool {
	return v.Signals&bit != 0
}

var VehicleKind = &Kind[Vehicle]{
	Schema: Schema{
		Name: "vehicle",
		Variables: []Variable{
			{Tag: traci.VAR_POSITION, Type: traci.POSITION_2D, Name: "position"},
			{Tag: traci.VAR_ROAD_ID, Type: traci.TYPE_STRING, Name: "road_id"},
			{Tag: traci.VAR_SPEED, Type: traci.TYPE_DOUBLE, Name: "speed"},
			{Tag: traci.VAR_ANGLE, Type: traci.TYPE_DOUBLE, Name: "angle"},
			{Tag: traci.VAR_SIGNALS, Type: traci.TYPE_INTEGER, Name: "signals"},
			{Tag: traci.VAR_LENGTH, Type: traci.TYPE_DOUBLE, Name: "length"},
			{Tag: traci.VAR_HEIGHT, Type: traci.TYPE_DOUBLE, Name: "height"},
			{Tag: traci.VAR_WIDTH, Type: traci.TYPE_DOUBLE, Name: "width"},
			{Tag: traci.VAR_TYPE, Type: traci.TYPE_STRING, Name: "type_id"},
		},
	},
	GetCommand:        traci.CMD_GET_VEHICLE_VARIABLE,
	GetResponse:       traci.RESPONSE_GET_VEHICLE_VARIABLE,
	SubscribeCommand:  traci.CMD_SUBSCRIBE_VEHICLE_VARIABLE,
	SubscribeResponse: traci.RESPONSE_SUBSCRIBE_VEHICLE_VARIABLE,
	Build: func(id string, f Fields) Vehicle {
		v := Vehicle{ID: id, Presence: presenceOf(f)}
		v.Position, _ = f.Position(traci.VAR_POSITION)
		v.RoadID, _ = f.String(traci.VAR_ROAD_ID)
		v.Speed, _ = f.Double(traci.VAR_SPEED)
		v.Angle, _ = f.Double(traci.VAR_ANGLE)
		v.Signals, _ = f.Integer(traci.VAR_SIGNALS)
		v.Length, _ = f.Double(traci.VAR_LENGTH)
		v.Height, _ = f.Double(traci.VAR_HEIGHT)
		v.Width, _ = f.Double(traci.VAR_WIDTH)
		v.TypeID, _ = f.String(traci.VAR_TYPE)
		return v
	},
}

func headingRadians(angle float64) float64 {
	rad := (90 - angle) * math.Pi / 180
	for rad <= -math.Pi {
		rad += 2 * math.Pi
	}
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	return rad
}
