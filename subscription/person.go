package subscription

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
)

// Person 行人更新记录
type Person struct {
	ID       string
	Position geometry.Point
	RoadID   string
	Speed    float64
	Angle    float64
	TypeID   string

	Presence Presence
}

func (p Person) HeadingRadians() float64 {
	return headingRadians(p.Angle)
}

var PersonKind = &Kind[Person]{
	Schema: Schema{
		Name: "person",
		Variables: []Variable{
			{Tag: traci.VAR_POSITION, Type: traci.POSITION_2D, Name: "position"},
			{Tag: traci.VAR_ROAD_ID, Type: traci.TYPE_STRING, Name: "road_id"},
			{Tag: traci.VAR_SPEED, Type: traci.TYPE_DOUBLE, Name: "speed"},
			{Tag: traci.VAR_ANGLE, Type: traci.TYPE_DOUBLE, Name: "angle"},
			{Tag: traci.VAR_TYPE, Type: traci.TYPE_STRING, Name: "type_id"},
		},
	},
	GetCommand:        traci.CMD_GET_PERSON_VARIABLE,
	GetResponse:       traci.RESPONSE_GET_PERSON_VARIABLE,
	SubscribeCommand:  traci.CMD_SUBSCRIBE_PERSON_VARIABLE,
	SubscribeResponse: traci.RESPONSE_SUBSCRIBE_PERSON_VARIABLE,
	Build: func(id string, f Fields) Person {
		p := Person{ID: id, Presence: presenceOf(f)}
		p.Position, _ = f.Position(traci.VAR_POSITION)
		p.RoadID, _ = f.String(traci.VAR_ROAD_ID)
		p.Speed, _ = f.Double(traci.VAR_SPEED)
		p.Angle, _ = f.Double(traci.VAR_ANGLE)
		p.TypeID, _ = f.String(traci.VAR_TYPE)
		return p
	},
}
