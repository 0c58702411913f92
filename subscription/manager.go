package subscription

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
	"golang.org/x/exp/slices"
)

// Kind 一类对象（车辆、行人、信号灯）的订阅描述
// 功能：给出该类对象使用的TraCI命令、固定订阅变量列表以及更新记录的构造方式
type Kind[T any] struct {
	Schema

	GetCommand        uint8 // 显式查询命令
	GetResponse       uint8
	SubscribeCommand  uint8 // 变量订阅命令
	SubscribeResponse uint8

	// Build 由一帧中成功解码的变量构造更新记录
	Build func(id string, fields Fields) T
}

// Option 管理器的可选配置
type Option func(*options)

type options struct {
	filter  func(id string) bool
	metrics *Metrics
}

// WithFilter 只跟踪filter返回true的ID，其余ID不订阅也不报告消失
func WithFilter(filter func(id string) bool) Option {
	return func(o *options) { o.filter = filter }
}

// WithMetrics 将订阅事件记录到给定指标
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Manager 一类对象的订阅管理器
// 功能：维护已订阅ID集合，解码该类对象的响应帧，根据ID列表计算出现与消失，
// 为新出现的对象发起变量订阅，并缓存待取走的更新、消失与变量失败
// 说明：所有状态由本管理器独占，公开方法持有本类对象的锁；
// 新对象的订阅响应在处理ID列表的过程中同步解码，内部递归调用不再加锁
type Manager[T any] struct {
	mu sync.Mutex

	kind *Kind[T]
	opts options
	q    traci.Querier

	subscribed  *Set
	updates     []T
	disappeared map[string]struct{}
	failures    []VariableFailure

	// 自上次TakeIDListSeen以来是否处理过ID列表
	idListSeen bool
}

// NewManager 创建订阅管理器，需调用Initialize后才会产生订阅
func NewManager[T any](kind *Kind[T], opts ...Option) *Manager[T] {
	m := &Manager[T]{
		kind:        kind,
		subscribed:  NewSet(),
		updates:     make([]T, 0),
		disappeared: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(&m.opts)
	}
	return m
}

// Name 对象类别名
func (m *Manager[T]) Name() string {
	return m.kind.Name
}

// Kind 订阅描述
func (m *Manager[T]) Kind() *Kind[T] {
	return m.kind
}

// Initialize 订阅整类对象的ID列表，并同步处理其即时响应
// 功能：发起(0, 最大时间, "", 1, ID_LIST)订阅，响应中的ID列表会立即触发逐对象订阅，
// 返回时已订阅集合即为服务器当前的对象全集
func (m *Manager[T]) Initialize(q traci.Querier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.q = q
	if err := m.subscribe("", []uint8{traci.ID_LIST}); err != nil {
		return fmt.Errorf("initialize %s subscription: %w", m.kind.Name, err)
	}
	return nil
}

// Initialized 是否已调用过Initialize
func (m *Manager[T]) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q != nil
}

// Update 处理一个响应帧
// 返回：该帧是否为ID列表；违反协议时返回*ProtocolError
func (m *Manager[T]) Update(frame []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(frame)
}

// UpdateWithList 用显式查询得到的ID列表更新订阅，效果与收到ID列表帧相同
func (m *Manager[T]) UpdateWithList(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processIDList(ids)
}

// DrainUpdates 取走自上次调用以来的全部更新记录（同一对象可能有多条）
func (m *Manager[T]) DrainUpdates() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	updates := m.updates
	m.updates = make([]T, 0)
	return updates
}

// DrainDisappeared 取走自上次调用以来消失的对象ID，按字典序排列
func (m *Manager[T]) DrainDisappeared() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := lo.Keys(m.disappeared)
	slices.Sort(ids)
	m.disappeared = make(map[string]struct{})
	return ids
}

// DrainFailures 取走自上次调用以来已订阅对象的变量失败
func (m *Manager[T]) DrainFailures() []VariableFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	failures := m.failures
	m.failures = nil
	return failures
}

// Subscribed 当前已订阅ID的副本
func (m *Manager[T]) Subscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed.Snapshot()
}

// IsSubscribed 检查ID是否已订阅
func (m *Manager[T]) IsSubscribed(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed.Contains(id)
}

// TakeIDListSeen 返回自上次调用以来是否处理过ID列表，并清除该标记
func (m *Manager[T]) TakeIDListSeen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := m.idListSeen
	m.idListSeen = false
	return seen
}

func (m *Manager[T]) update(frame []byte) (bool, error) {
	ev, err := Decode(frame, &m.kind.Schema)
	if err != nil {
		return false, err
	}
	switch ev := ev.(type) {
	case IDListEvent:
		m.idListSeen = true
		log.Debugf("TraCI reports %d active %s", len(ev.IDs), m.kind.Name)
		return true, m.processIDList(ev.IDs)
	case FieldEvent:
		m.processFields(ev)
		return false, nil
	default:
		log.Panicf("unknown subscription event %T", ev)
		return false, nil
	}
}

// processIDList 根据服务器报告的活跃ID列表更新订阅
// 算法说明：
// 1. 过滤掉不跟踪的ID
// 2. 与已订阅集合做差：出现的ID加入集合并立即订阅其变量（响应在订阅调用内同步处理）
// 3. 消失的ID移出集合并记入待取走的消失集合；对象离开仿真后订阅自然失效，不发送退订
func (m *Manager[T]) processIDList(ids []string) error {
	if m.opts.filter != nil {
		ids = lo.Filter(ids, func(id string, _ int) bool { return m.opts.filter(id) })
	}
	appeared, disappeared := Diff(m.subscribed.Snapshot(), ids)

	for _, id := range disappeared {
		m.subscribed.Remove(id)
		m.disappeared[id] = struct{}{}
	}
	subscribedCount := 0
	for _, id := range appeared {
		if !m.subscribed.Add(id) {
			continue
		}
		err := m.subscribe(id, m.kind.Tags())
		var statusErr *traci.StatusError
		if errors.As(err, &statusErr) {
			// 服务器拒绝订阅：该ID没有在途订阅，不能留在集合中
			m.subscribed.Remove(id)
			log.Warnf("TraCI server refused subscription to %s %q: %v", m.kind.Name, id, err)
			continue
		} else if err != nil {
			return fmt.Errorf("subscribe to %s %q: %w", m.kind.Name, id, err)
		}
		subscribedCount++
	}
	m.opts.metrics.diff(m.kind.Name, subscribedCount, len(disappeared), m.subscribed.Len())
	return nil
}

// processFields 处理单个对象的变量帧
// 说明：只有仍在订阅集合中的对象才产生更新和失败报告；
// 已不再订阅的对象可能收到在途命令的过期响应，这些响应已被完整解码以保持字节流同步，此处直接丢弃
// ID列表订阅本身被拒绝时该类对象不会被跟踪，记录警告
func (m *Manager[T]) processFields(ev FieldEvent) {
	if ev.ObjectID == "" {
		for _, f := range ev.Failures {
			if f.Variable == traci.ID_LIST {
				log.Warnf("TraCI server refused %s id list subscription (%s: %q), no %s will be tracked", m.kind.Name, traci.StatusName(f.Status), f.Message, m.kind.Name)
			}
		}
	}
	if !m.subscribed.Contains(ev.ObjectID) {
		log.Debugf("discard stale %s response for %q", m.kind.Name, ev.ObjectID)
		return
	}
	for _, f := range ev.Failures {
		name := m.kind.VariableName(f.Variable)
		if f.Status == traci.RTYPE_NOTIMPLEMENTED {
			log.Warnf("TraCI server reported subscribing to %s variable %s not implemented (%q), might need newer version", m.kind.Name, name, f.Message)
		} else {
			log.Warnf("TraCI server reported error subscribing to %s %q variable %s (%q)", m.kind.Name, f.ObjectID, name, f.Message)
		}
		m.failures = append(m.failures, f)
		m.opts.metrics.failure(m.kind.Name, name)
	}
	if len(ev.Fields) == 0 {
		return
	}
	m.updates = append(m.updates, m.kind.Build(ev.ObjectID, ev.Fields))
	m.opts.metrics.update(m.kind.Name)
}

// subscribe 订阅对象id的变量tags，并同步处理服务器的即时响应
// 说明：请求格式为(开始时间, 结束时间, 对象ID, 变量数, 变量ID...)，结束时间取最大值表示永久订阅
func (m *Manager[T]) subscribe(id string, tags []uint8) error {
	w := traci.NewWriter().Double(0).Double(math.MaxFloat64).String(id).Uint8(uint8(len(tags)))
	for _, tag := range tags {
		w.Uint8(tag)
	}
	buf, err := m.q.Query(m.kind.SubscribeCommand, w.Bytes())
	if err != nil {
		return err
	}

	r := traci.NewReader(buf)
	n, err := traci.ExpectCommand(r, m.kind.SubscribeResponse)
	if err != nil {
		return &ProtocolError{Kind: m.kind.Name, ObjectID: id, Reason: "subscription response", Err: err}
	}
	frame, err := r.ReadBytes(n)
	if err != nil {
		return &ProtocolError{Kind: m.kind.Name, ObjectID: id, Offset: r.Pos(), Reason: "subscription response", Err: err}
	}
	if !r.EOF() {
		return &ProtocolError{Kind: m.kind.Name, ObjectID: id, Offset: r.Pos(), Reason: fmt.Sprintf("%d bytes after subscription response", r.Remaining())}
	}
	_, err = m.update(frame)
	return err
}
