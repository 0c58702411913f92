package output

import (
	"context"
	"fmt"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/agentsociety-traci/subscription"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Recorder 将每步的更新记录与消失事件写入MongoDB
// 功能：每条更新记录一条文档，只写入本帧实际携带的字段
type Recorder struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New 连接MongoDB，c.URI为空时返回nil
func New(c config.Output) *Recorder {
	if c.URI == "" {
		return nil
	}
	client := mongoutil.NewClient(c.URI)
	log.Infof("record updates to %s.%s", c.Updates.GetDb(), c.Updates.GetColl())
	return &Recorder{
		client: client,
		coll:   mongoutil.GetMongoColl(client, c.Updates),
	}
}

// Step 一步内需要记录的全部内容
type Step struct {
	Step int32
	T    float64

	Vehicles      []subscription.Vehicle
	Persons       []subscription.Person
	TrafficLights []subscription.TrafficLight

	DisappearedVehicles      []string
	DisappearedPersons       []string
	DisappearedTrafficLights []string
}

// Record 写入一步的全部文档，nil的Recorder不做任何事
func (r *Recorder) Record(ctx context.Context, s Step) error {
	if r == nil {
		return nil
	}
	docs := Documents(s)
	if len(docs) == 0 {
		return nil
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert %d documents of step %d: %w", len(docs), s.Step, err)
	}
	return nil
}

func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

// Documents 将一步的内容转换为待写入的文档
func Documents(s Step) []any {
	docs := make([]any, 0, len(s.Vehicles)+len(s.Persons)+len(s.TrafficLights))
	header := func(kind, id string) bson.D {
		return bson.D{{Key: "step", Value: s.Step}, {Key: "t", Value: s.T}, {Key: "kind", Value: kind}, {Key: "id", Value: id}}
	}
	for _, v := range s.Vehicles {
		doc := header("vehicle", v.ID)
		doc = appendIf(doc, v.Presence, traci.VAR_POSITION, "position", bson.D{{Key: "x", Value: v.Position.X}, {Key: "y", Value: v.Position.Y}})
		doc = appendIf(doc, v.Presence, traci.VAR_ROAD_ID, "road_id", v.RoadID)
		doc = appendIf(doc, v.Presence, traci.VAR_SPEED, "speed", v.Speed)
		doc = appendIf(doc, v.Presence, traci.VAR_ANGLE, "angle", v.Angle)
		doc = appendIf(doc, v.Presence, traci.VAR_SIGNALS, "signals", v.Signals)
		doc = appendIf(doc, v.Presence, traci.VAR_LENGTH, "length", v.Length)
		doc = appendIf(doc, v.Presence, traci.VAR_HEIGHT, "height", v.Height)
		doc = appendIf(doc, v.Presence, traci.VAR_WIDTH, "width", v.Width)
		doc = appendIf(doc, v.Presence, traci.VAR_TYPE, "type_id", v.TypeID)
		docs = append(docs, doc)
	}
	for _, p := range s.Persons {
		doc := header("person", p.ID)
		doc = appendIf(doc, p.Presence, traci.VAR_POSITION, "position", bson.D{{Key: "x", Value: p.Position.X}, {Key: "y", Value: p.Position.Y}})
		doc = appendIf(doc, p.Presence, traci.VAR_ROAD_ID, "road_id", p.RoadID)
		doc = appendIf(doc, p.Presence, traci.VAR_SPEED, "speed", p.Speed)
		doc = appendIf(doc, p.Presence, traci.VAR_ANGLE, "angle", p.Angle)
		doc = appendIf(doc, p.Presence, traci.VAR_TYPE, "type_id", p.TypeID)
		docs = append(docs, doc)
	}
	for _, l := range s.TrafficLights {
		doc := header("traffic_light", l.ID)
		doc = appendIf(doc, l.Presence, traci.TL_RED_YELLOW_GREEN_STATE, "state", l.State)
		doc = appendIf(doc, l.Presence, traci.TL_CURRENT_PHASE, "phase", l.Phase)
		doc = appendIf(doc, l.Presence, traci.TL_CURRENT_PROGRAM, "program", l.Program)
		doc = appendIf(doc, l.Presence, traci.TL_NEXT_SWITCH, "next_switch", l.NextSwitch)
		docs = append(docs, doc)
	}
	disappeared := func(kind string, ids []string) {
		for _, id := range ids {
			docs = append(docs, append(header(kind, id), bson.E{Key: "disappeared", Value: true}))
		}
	}
	disappeared("vehicle", s.DisappearedVehicles)
	disappeared("person", s.DisappearedPersons)
	disappeared("traffic_light", s.DisappearedTrafficLights)
	return docs
}

func appendIf(doc bson.D, p subscription.Presence, tag uint8, key string, value any) bson.D {
	if !p.Has(tag) {
		return doc
	}
	return append(doc, bson.E{Key: key, Value: value})
}
