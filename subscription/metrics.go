package subscription

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 订阅引擎的Prometheus指标，均以对象类别(kind)为标签
// 说明：nil的*Metrics可以安全调用所有记录方法，此时不记录任何内容
type Metrics struct {
	Appeared         *prometheus.CounterVec
	Disappeared      *prometheus.CounterVec
	Updates          *prometheus.CounterVec
	VariableFailures *prometheus.CounterVec
	ExplicitIDLists  *prometheus.CounterVec
	Subscribed       *prometheus.GaugeVec
}

// NewMetrics 在reg上注册订阅指标，reg为nil时使用Prometheus默认注册表
// 说明：重复注册时复用已存在的同名指标
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) (*prometheus.CounterVec, error) {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
		if err := reg.Register(vec); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					return existing, nil
				}
				return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
			}
			return nil, err
		}
		return vec, nil
	}

	m := &Metrics{}
	var err error
	if m.Appeared, err = counter("traci_appeared_total", "Ids that appeared in an id list and were subscribed.", "kind"); err != nil {
		return nil, err
	}
	if m.Disappeared, err = counter("traci_disappeared_total", "Subscribed ids missing from a later id list.", "kind"); err != nil {
		return nil, err
	}
	if m.Updates, err = counter("traci_updates_total", "Decoded per-entity update records.", "kind"); err != nil {
		return nil, err
	}
	if m.VariableFailures, err = counter("traci_variable_failures_total", "Per-variable subscription failures reported for subscribed ids.", "kind", "variable"); err != nil {
		return nil, err
	}
	if m.ExplicitIDLists, err = counter("traci_explicit_id_lists_total", "Explicit id list queries issued because no id list subscription result arrived.", "kind"); err != nil {
		return nil, err
	}

	subscribed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "traci_subscribed",
		Help: "Currently subscribed ids.",
	}, []string{"kind"})
	if err := reg.Register(subscribed); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return nil, fmt.Errorf("collector traci_subscribed already registered with incompatible type")
		}
		subscribed = existing
	}
	m.Subscribed = subscribed
	return m, nil
}

func (m *Metrics) diff(kind string, appeared, disappeared, subscribed int) {
	if m == nil {
		return
	}
	m.Appeared.WithLabelValues(kind).Add(float64(appeared))
	m.Disappeared.WithLabelValues(kind).Add(float64(disappeared))
	m.Subscribed.WithLabelValues(kind).Set(float64(subscribed))
}

func (m *Metrics) update(kind string) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(kind).Inc()
}

func (m *Metrics) failure(kind, variable string) {
	if m == nil {
		return
	}
	m.VariableFailures.WithLabelValues(kind, variable).Inc()
}

func (m *Metrics) explicitIDList(kind string) {
	if m == nil {
		return
	}
	m.ExplicitIDLists.WithLabelValues(kind).Inc()
}
