package config

import "fmt"

// TraCI 指定TraCI服务器（SUMO）连接的配置项
type TraCI struct {
	Host          string  `yaml:"host"`                     // 服务器地址
	Port          int     `yaml:"port"`                     // 服务器端口，默认8813
	RetryCount    int     `yaml:"retry_count,omitempty"`    // 连接重试次数
	RetryInterval float64 `yaml:"retry_interval,omitempty"` // 连接重试间隔（秒）
}

// Addr 返回host:port形式的服务器地址
func (t TraCI) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：控制仿真的时间范围、步长和精度
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Control 模拟器控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
	// 车辆装备率：新出现的车辆以该概率成为受管主机，默认1
	PenetrationRate *float64 `yaml:"penetration_rate,omitempty"`
	Seed            uint64   `yaml:"seed,omitempty"` // 随机数种子
}

// Subscription 订阅配置
// 说明：三类对象的开关均为指针，未配置时默认开启
type Subscription struct {
	Vehicle      *bool `yaml:"vehicle,omitempty"`
	Person       *bool `yaml:"person,omitempty"`
	TrafficLight *bool `yaml:"traffic_light,omitempty"`
	// 某步订阅结果中缺少ID列表时是否显式查询
	ExplicitIDListFallback bool     `yaml:"explicit_id_list_fallback,omitempty"`
	TrafficLightIDs        []string `yaml:"traffic_light_ids,omitempty"` // 只跟踪这些信号灯，为空则全部跟踪
}

// OutputPath 指定输出数据位置的配置（MongoDB）
type OutputPath struct {
	DB  string `yaml:"db"`  // 数据库名
	Col string `yaml:"col"` // 集合名
}

// GetDb 获取数据库名
func (p OutputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p OutputPath) GetColl() string {
	return p.Col
}

// Output 每步更新记录的输出配置，URI为空时不输出
type Output struct {
	URI     string     `yaml:"uri,omitempty"` // MongoDB连接字符串
	Updates OutputPath `yaml:"updates"`
}

// Config YAML配置文件的根结构
// 功能：定义整个程序的配置结构
// 说明：包含TraCI连接、控制、订阅、输出等所有配置项
type Config struct {
	TraCI        TraCI        `yaml:"traci"`                  // TraCI服务器
	Control      Control      `yaml:"control"`                // 模拟过程控制
	Subscription Subscription `yaml:"subscription,omitempty"` // 订阅
	Output       Output       `yaml:"output,omitempty"`       // 输出
}
