package subscription

import (
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
)

// TrafficLight 信号灯控制器更新记录
type TrafficLight struct {
	ID         string
	State      string // 每个受控连接一个字符，如"GrGr"
	Phase      int32
	Program    string
	NextSwitch float64 // 下次切换的绝对仿真时间

	Presence Presence
}

var TrafficLightKind = &Kind[TrafficLight]{
	Schema: Schema{
		Name: "traffic_light",
		Variables: []Variable{
			{Tag: traci.TL_RED_YELLOW_GREEN_STATE, Type: traci.TYPE_STRING, Name: "state"},
			{Tag: traci.TL_CURRENT_PHASE, Type: traci.TYPE_INTEGER, Name: "phase"},
			{Tag: traci.TL_CURRENT_PROGRAM, Type: traci.TYPE_STRING, Name: "program"},
			{Tag: traci.TL_NEXT_SWITCH, Type: traci.TYPE_DOUBLE, Name: "next_switch"},
		},
	},
	GetCommand:        traci.CMD_GET_TL_VARIABLE,
	GetResponse:       traci.RESPONSE_GET_TL_VARIABLE,
	SubscribeCommand:  traci.CMD_SUBSCRIBE_TL_VARIABLE,
	SubscribeResponse: traci.RESPONSE_SUBSCRIBE_TL_VARIABLE,
	Build: func(id string, f Fields) TrafficLight {
		t := TrafficLight{ID: id, Presence: presenceOf(f)}
		t.State, _ = f.String(traci.TL_RED_YELLOW_GREEN_STATE)
		t.Phase, _ = f.Integer(traci.TL_CURRENT_PHASE)
		t.Program, _ = f.String(traci.TL_CURRENT_PROGRAM)
		t.NextSwitch, _ = f.Double(traci.TL_NEXT_SWITCH)
		return t
	},
}
