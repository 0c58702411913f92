package subscription_test

import (
	"math"
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-traci/subscription"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
)

// slot 响应帧中的一个变量
type slot struct {
	tag    uint8
	status uint8
	typ    uint8
	value  any
}

func ok(tag, typ uint8, value any) slot {
	return slot{tag: tag, status: traci.RTYPE_OK, typ: typ, value: value}
}

func failed(tag, status uint8, msg string) slot {
	return slot{tag: tag, status: status, typ: traci.TYPE_STRING, value: msg}
}

func encodeFrame(id string, slots ...slot) []byte {
	w := traci.NewWriter().String(id).Uint8(uint8(len(slots)))
	for _, s := range slots {
		w.Uint8(s.tag).Uint8(s.status).Uint8(s.typ)
		switch v := s.value.(type) {
		case geometry.Point:
			w.Double(v.X).Double(v.Y)
		case float64:
			w.Double(v)
		case int32:
			w.Int32(v)
		case string:
			w.String(v)
		case []string:
			w.StringList(v)
		}
	}
	return w.Bytes()
}

func idListFrame(ids ...string) []byte {
	return encodeFrame("", ok(traci.ID_LIST, traci.TYPE_STRINGLIST, ids))
}

func personSlots(speed float64) []slot {
	return []slot{
		ok(traci.VAR_POSITION, traci.POSITION_2D, geometry.Point{X: 12.5, Y: -3}),
		ok(traci.VAR_ROAD_ID, traci.TYPE_STRING, "e1"),
		ok(traci.VAR_SPEED, traci.TYPE_DOUBLE, speed),
		ok(traci.VAR_ANGLE, traci.TYPE_DOUBLE, 90.0),
		ok(traci.VAR_TYPE, traci.TYPE_STRING, "DEFAULT_PEDTYPE"),
	}
}

// withSlot 替换slots中第i个变量，slots须为新建切片
func withSlot(slots []slot, i int, s slot) []slot {
	slots[i] = s
	return slots
}

func vehicleSlots(speed float64) []slot {
	return []slot{
		ok(traci.VAR_POSITION, traci.POSITION_2D, geometry.Point{X: 100, Y: 200}),
		ok(traci.VAR_ROAD_ID, traci.TYPE_STRING, "e2"),
		ok(traci.VAR_SPEED, traci.TYPE_DOUBLE, speed),
		ok(traci.VAR_ANGLE, traci.TYPE_DOUBLE, 0.0),
		ok(traci.VAR_SIGNALS, traci.TYPE_INTEGER, subscription.SIGNAL_BRAKELIGHT),
		ok(traci.VAR_LENGTH, traci.TYPE_DOUBLE, 5.0),
		ok(traci.VAR_HEIGHT, traci.TYPE_DOUBLE, 1.5),
		ok(traci.VAR_WIDTH, traci.TYPE_DOUBLE, 1.8),
		ok(traci.VAR_TYPE, traci.TYPE_STRING, "DEFAULT_VEHTYPE"),
	}
}

func trafficLightSlots(phase int32) []slot {
	return []slot{
		ok(traci.TL_RED_YELLOW_GREEN_STATE, traci.TYPE_STRING, "GrGr"),
		ok(traci.TL_CURRENT_PHASE, traci.TYPE_INTEGER, phase),
		ok(traci.TL_CURRENT_PROGRAM, traci.TYPE_STRING, "0"),
		ok(traci.TL_NEXT_SWITCH, traci.TYPE_DOUBLE, 42.0),
	}
}

// subscribeRequest 服务器收到的一条变量订阅请求
type subscribeRequest struct {
	cmdID uint8
	id    string
	tags  []uint8
}

// fakeServer 内存中的TraCI服务器
// 说明：按对象类别保存当前人口，对ID列表订阅返回人口，对逐对象订阅返回frames生成的帧
type fakeServer struct {
	t *testing.T

	population map[uint8][]string // 订阅命令ID -> 当前全部ID
	frames     map[uint8]func(id string) []byte
	custom     map[string][]byte // 对象ID -> 预置的订阅响应帧
	refuse     map[string]bool   // 对这些对象ID的订阅返回错误状态
	raw        map[string][]byte // 对象ID -> 原样返回的完整响应

	subscriptions []subscribeRequest
	idListQueries []uint8
}

var responseOf = map[uint8]uint8{
	traci.CMD_SUBSCRIBE_VEHICLE_VARIABLE: traci.RESPONSE_SUBSCRIBE_VEHICLE_VARIABLE,
	traci.CMD_SUBSCRIBE_PERSON_VARIABLE:  traci.RESPONSE_SUBSCRIBE_PERSON_VARIABLE,
	traci.CMD_SUBSCRIBE_TL_VARIABLE:      traci.RESPONSE_SUBSCRIBE_TL_VARIABLE,
	traci.CMD_GET_VEHICLE_VARIABLE:       traci.RESPONSE_GET_VEHICLE_VARIABLE,
	traci.CMD_GET_PERSON_VARIABLE:        traci.RESPONSE_GET_PERSON_VARIABLE,
	traci.CMD_GET_TL_VARIABLE:            traci.RESPONSE_GET_TL_VARIABLE,
}

var subscribeOfGet = map[uint8]uint8{
	traci.CMD_GET_VEHICLE_VARIABLE: traci.CMD_SUBSCRIBE_VEHICLE_VARIABLE,
	traci.CMD_GET_PERSON_VARIABLE:  traci.CMD_SUBSCRIBE_PERSON_VARIABLE,
	traci.CMD_GET_TL_VARIABLE:      traci.CMD_SUBSCRIBE_TL_VARIABLE,
}

func newFakeServer(t *testing.T) *fakeServer {
	return &fakeServer{
		t:          t,
		population: make(map[uint8][]string),
		frames: map[uint8]func(id string) []byte{
			traci.CMD_SUBSCRIBE_VEHICLE_VARIABLE: func(id string) []byte { return encodeFrame(id, vehicleSlots(13.9)...) },
			traci.CMD_SUBSCRIBE_PERSON_VARIABLE:  func(id string) []byte { return encodeFrame(id, personSlots(1.2)...) },
			traci.CMD_SUBSCRIBE_TL_VARIABLE:      func(id string) []byte { return encodeFrame(id, trafficLightSlots(0)...) },
		},
		custom: make(map[string][]byte),
		refuse: make(map[string]bool),
		raw:    make(map[string][]byte),
	}
}

func (s *fakeServer) Query(cmdID uint8, content []byte) ([]byte, error) {
	s.t.Helper()
	if sub, isGet := subscribeOfGet[cmdID]; isGet {
		s.idListQueries = append(s.idListQueries, cmdID)
		resp := traci.NewWriter().Uint8(traci.ID_LIST).String("").Uint8(traci.TYPE_STRINGLIST).StringList(s.population[sub]).Bytes()
		return traci.NewWriter().Command(responseOf[cmdID], resp).Bytes(), nil
	}

	r := traci.NewReader(content)
	begin, err := r.ReadDouble()
	require.NoError(s.t, err)
	end, err := r.ReadDouble()
	require.NoError(s.t, err)
	require.Equal(s.t, 0.0, begin)
	require.Equal(s.t, math.MaxFloat64, end)
	id, err := r.ReadString()
	require.NoError(s.t, err)
	count, err := r.ReadUint8()
	require.NoError(s.t, err)
	tags, err := r.ReadBytes(int(count))
	require.NoError(s.t, err)
	require.True(s.t, r.EOF())
	s.subscriptions = append(s.subscriptions, subscribeRequest{cmdID: cmdID, id: id, tags: tags})

	if s.refuse[id] {
		return nil, &traci.StatusError{Command: cmdID, Status: traci.RTYPE_ERR, Description: "no such object"}
	}
	if s.raw[id] != nil {
		return s.raw[id], nil
	}
	var frame []byte
	switch {
	case s.custom[id] != nil:
		frame = s.custom[id]
	case id == "" && len(tags) == 1 && tags[0] == traci.ID_LIST:
		frame = idListFrame(s.population[cmdID]...)
	default:
		frame = s.frames[cmdID](id)
	}
	return traci.NewWriter().Command(responseOf[cmdID], frame).Bytes(), nil
}

// subscribedIDs 逐对象订阅请求中的对象ID（不含ID列表订阅）
func (s *fakeServer) subscribedIDs() []string {
	var ids []string
	for _, req := range s.subscriptions {
		if req.id != "" {
			ids = append(ids, req.id)
		}
	}
	return ids
}

// stepResult 构造CMD_SIMSTEP状态响应之后的订阅结果缓冲区
func stepResult(results ...[]byte) []byte {
	w := traci.NewWriter().Int32(int32(len(results)))
	for _, res := range results {
		w.Raw(res)
	}
	return w.Bytes()
}

func result(respCmd uint8, frame []byte) []byte {
	return traci.NewWriter().Command(respCmd, frame).Bytes()
}
