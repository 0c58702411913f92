package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultPort          = 8813
	defaultRetryCount    = 10
	defaultRetryInterval = 1.0
)

// RuntimeConfig 运行时配置
// 功能：存储填充默认值并校验后的配置
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置

	PenetrationRate float64
	Vehicles        bool
	Persons         bool
	TrafficLights   bool
	RetryInterval   time.Duration
}

// Parse 严格解析YAML配置，未知字段视为错误
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：填充默认值并校验配置
// 参数：config-原始配置对象
// 返回：运行时配置，或配置不合法时的错误
// 算法说明：
// 1. TraCI端口默认8813，重试次数默认10，间隔默认1秒
// 2. 装备率默认1，必须位于[0, 1]
// 3. 三类对象订阅开关默认开启
// 4. 总步数与步长必须为正
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if config.TraCI.Host == "" {
		config.TraCI.Host = "localhost"
	}
	if config.TraCI.Port == 0 {
		config.TraCI.Port = defaultPort
	}
	if config.TraCI.RetryCount == 0 {
		config.TraCI.RetryCount = defaultRetryCount
	}
	if config.TraCI.RetryInterval == 0 {
		config.TraCI.RetryInterval = defaultRetryInterval
	}
	if config.Control.Step.Total <= 0 {
		return nil, fmt.Errorf("control.step.total must be positive, got %d", config.Control.Step.Total)
	}
	if config.Control.Step.Interval <= 0 {
		return nil, fmt.Errorf("control.step.interval must be positive, got %v", config.Control.Step.Interval)
	}

	rc := &RuntimeConfig{
		All:             config,
		C:               config.Control,
		PenetrationRate: 1,
		Vehicles:        enabled(config.Subscription.Vehicle),
		Persons:         enabled(config.Subscription.Person),
		TrafficLights:   enabled(config.Subscription.TrafficLight),
		RetryInterval:   time.Duration(config.TraCI.RetryInterval * float64(time.Second)),
	}
	if p := config.Control.PenetrationRate; p != nil {
		if *p < 0 || *p > 1 {
			return nil, fmt.Errorf("control.penetration_rate must be within [0, 1], got %v", *p)
		}
		rc.PenetrationRate = *p
	}
	return rc, nil
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}
