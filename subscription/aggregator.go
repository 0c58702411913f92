package subscription

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
)

// kindManager 聚合器对各类管理器的统一视图
type kindManager interface {
	Name() string
	Initialize(q traci.Querier) error
	Update(frame []byte) (bool, error)
	UpdateWithList(ids []string) error
	TakeIDListSeen() bool
	DrainFailures() []VariableFailure
	commands() (get, getResponse, subscribeResponse uint8)
}

func (m *Manager[T]) commands() (uint8, uint8, uint8) {
	return m.kind.GetCommand, m.kind.GetResponse, m.kind.SubscribeResponse
}

// Options 聚合器配置
type Options struct {
	Vehicles      bool // 是否订阅车辆
	Persons       bool // 是否订阅行人
	TrafficLights bool // 是否订阅信号灯

	// 某类对象在一步的订阅结果中没有收到ID列表时，改为显式查询该类对象的ID列表
	ExplicitIDListFallback bool
	// 非空时只跟踪其中的信号灯
	TrafficLightIDs []string

	Metrics *Metrics
}

// Aggregator 订阅结果聚合器
// 功能：持有车辆、行人、信号灯三个订阅管理器，按响应命令ID将每一步的订阅结果分发给对应管理器，
// 并向调用方提供按类别取走更新与消失的接口
type Aggregator struct {
	Vehicles      *Manager[Vehicle]
	Persons       *Manager[Person]
	TrafficLights *Manager[TrafficLight]

	opts    Options
	ci      *traci.CommandInterface
	enabled []kindManager
	routes  map[uint8]kindManager // 订阅响应命令ID -> 管理器
}

func NewAggregator(opts Options) *Aggregator {
	tlOpts := []Option{WithMetrics(opts.Metrics)}
	if len(opts.TrafficLightIDs) > 0 {
		whitelist := lo.SliceToMap(opts.TrafficLightIDs, func(id string) (string, struct{}) {
			return id, struct{}{}
		})
		tlOpts = append(tlOpts, WithFilter(func(id string) bool {
			_, ok := whitelist[id]
			return ok
		}))
	}
	a := &Aggregator{
		Vehicles:      NewManager(VehicleKind, WithMetrics(opts.Metrics)),
		Persons:       NewManager(PersonKind, WithMetrics(opts.Metrics)),
		TrafficLights: NewManager(TrafficLightKind, tlOpts...),
		opts:          opts,
		routes:        make(map[uint8]kindManager),
	}
	if opts.Vehicles {
		a.enabled = append(a.enabled, a.Vehicles)
	}
	if opts.Persons {
		a.enabled = append(a.enabled, a.Persons)
	}
	if opts.TrafficLights {
		a.enabled = append(a.enabled, a.TrafficLights)
	}
	for _, m := range a.enabled {
		_, _, resp := m.commands()
		a.routes[resp] = m
	}
	return a
}

// Initialize 为所有启用的对象类别建立ID列表订阅
func (a *Aggregator) Initialize(q traci.Querier) error {
	a.ci = traci.NewCommandInterface(q)
	for _, m := range a.enabled {
		if err := m.Initialize(q); err != nil {
			return err
		}
		m.TakeIDListSeen()
		log.Infof("subscribed to %s population", m.Name())
	}
	return nil
}

// ProcessSubscriptionResult 处理一次仿真步的订阅结果
// 功能：读取结果数量，逐条读取响应命令头并把帧交给对应类别的管理器，帧严格按到达顺序处理
// 参数：buf-CMD_SIMSTEP状态响应之后的全部字节
// 说明：
// 1. 未启用或未知类别的响应按长度跳过
// 2. 任一帧违反协议时立即返回错误，不尝试重新同步
// 3. 启用显式查询补充时，对本步未收到ID列表的类别发起显式查询，查询失败同样返回错误
func (a *Aggregator) ProcessSubscriptionResult(buf []byte) error {
	r := traci.NewReader(buf)
	count, err := r.ReadInt32()
	if err != nil {
		return &ProtocolError{Kind: "simstep", Offset: r.Pos(), Reason: "read subscription result count", Err: err}
	}
	if count < 0 {
		return &ProtocolError{Kind: "simstep", Offset: r.Pos(), Reason: fmt.Sprintf("negative subscription result count %d", count)}
	}
	for i := 0; i < int(count); i++ {
		offset := r.Pos()
		cmdID, n, err := r.ReadCommandHeader()
		if err != nil {
			return &ProtocolError{Kind: "simstep", Offset: offset, Reason: fmt.Sprintf("read header of result %d/%d", i+1, count), Err: err}
		}
		frame, err := r.ReadBytes(n)
		if err != nil {
			return &ProtocolError{Kind: "simstep", Offset: offset, Reason: fmt.Sprintf("read result %d/%d", i+1, count), Err: err}
		}
		m, ok := a.routes[cmdID]
		if !ok {
			log.Debugf("skip subscription response 0x%02x (%d bytes)", cmdID, n)
			continue
		}
		if _, err := m.Update(frame); err != nil {
			return err
		}
	}
	if !r.EOF() {
		return &ProtocolError{Kind: "simstep", Offset: r.Pos(), Reason: fmt.Sprintf("%d bytes after %d subscription results", r.Remaining(), count)}
	}

	for _, m := range a.enabled {
		if m.TakeIDListSeen() || !a.opts.ExplicitIDListFallback {
			continue
		}
		get, getResp, _ := m.commands()
		ids, err := a.ci.IDList(get, getResp)
		if err != nil {
			return fmt.Errorf("query %s id list: %w", m.Name(), err)
		}
		a.opts.Metrics.explicitIDList(m.Name())
		if err := m.UpdateWithList(ids); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) UpdatedVehicles() []Vehicle {
	return a.Vehicles.DrainUpdates()
}

func (a *Aggregator) UpdatedPersons() []Person {
	return a.Persons.DrainUpdates()
}

func (a *Aggregator) UpdatedTrafficLights() []TrafficLight {
	return a.TrafficLights.DrainUpdates()
}

func (a *Aggregator) DisappearedVehicles() []string {
	return a.Vehicles.DrainDisappeared()
}

func (a *Aggregator) DisappearedPersons() []string {
	return a.Persons.DrainDisappeared()
}

func (a *Aggregator) DisappearedTrafficLights() []string {
	return a.TrafficLights.DrainDisappeared()
}

// Failures 取走所有类别自上次调用以来的变量失败
func (a *Aggregator) Failures() []VariableFailure {
	return lo.FlatMap(a.enabled, func(m kindManager, _ int) []VariableFailure {
		return m.DrainFailures()
	})
}
