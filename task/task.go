package task

import (
	"context"
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tsinghua-fib-lab/agentsociety-traci/clock"
	"github.com/tsinghua-fib-lab/agentsociety-traci/subscription"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/output"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/randengine"
)

// Context 仿真任务上下文
// 功能：包含一次与SUMO联合仿真的所有变量和状态
// 说明：管理时钟、TraCI连接、订阅聚合器、受管主机表与输出
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理与syncer、其他服务的交互
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}

	// 运行时配置
	runtimeConfig *config.RuntimeConfig

	// TraCI连接与命令
	conn     *traci.Connection
	commands *traci.CommandInterface
	// 订阅聚合器
	aggregator *subscription.Aggregator
	// 受管主机表
	hosts *Hosts
	// 更新记录输出，未配置时为nil
	recorder *output.Recorder
}

// NewContext 创建新的仿真任务上下文
// 参数：
//   - job: 任务名称
//   - rc: 运行时配置
//   - sidecar: sidecar实例
//   - reg: 订阅指标的注册表，为nil时使用默认注册表
//   - startSidecarServe: 是否启动sidecar服务
//
// 算法说明：
// 1. 初始化时钟、随机数引擎与受管主机表
// 2. 注册订阅指标并按配置创建订阅聚合器
// 3. 连接输出数据库（如果配置）
// 4. 注册RPC服务到sidecar并启动sidecar服务（如果需要）
func NewContext(
	job string,
	rc *config.RuntimeConfig,
	sidecar *syncer.Sidecar,
	reg prometheus.Registerer,
	startSidecarServe bool,
) *Context {
	ctx := &Context{
		job:            job,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		runtimeConfig:  rc,
	}
	ctx.clock = clock.New(rc.C.Step)
	ctx.hosts = NewHosts(randengine.New(rc.C.Seed), rc.PenetrationRate)

	metrics, err := subscription.NewMetrics(reg)
	if err != nil {
		log.Panicf("failed to register metrics: %v", err)
	}
	ctx.aggregator = subscription.NewAggregator(subscription.Options{
		Vehicles:               rc.Vehicles,
		Persons:                rc.Persons,
		TrafficLights:          rc.TrafficLights,
		ExplicitIDListFallback: rc.All.Subscription.ExplicitIDListFallback,
		TrafficLightIDs:        rc.All.Subscription.TrafficLightIDs,
		Metrics:                metrics,
	})
	ctx.recorder = output.New(rc.All.Output)

	ctx.clock.Register(ctx.sidecar)

	// sidecar协程，用于提供gRPC服务
	if startSidecarServe {
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	}

	return ctx
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Hosts() *Hosts {
	return ctx.hosts
}

// Init 连接SUMO并建立订阅
// 说明：初始订阅的即时响应中已包含当前全部对象的状态，随即合并到受管主机表
func (ctx *Context) Init() {
	ctx.clock.Init()

	tc := ctx.runtimeConfig.All.TraCI
	conn, err := traci.Dial(context.Background(), tc.Addr(), tc.RetryCount, ctx.runtimeConfig.RetryInterval)
	if err != nil {
		log.Panicf("failed to connect to TraCI server: %v", err)
	}
	ctx.conn = conn
	ctx.commands = traci.NewCommandInterface(conn)

	apiVersion, description, err := ctx.commands.Version()
	if err != nil {
		log.Panicf("failed to query TraCI version: %v", err)
	}
	log.Infof("TraCI server %q, API version %d", description, apiVersion)

	if err := ctx.aggregator.Initialize(conn); err != nil {
		log.Panicf("failed to initialize subscriptions: %v", err)
	}
	ctx.update()
	log.Infof("Vehicle: %v", len(ctx.hosts.Vehicles))
	log.Infof("Person: %v", len(ctx.hosts.Persons))
	log.Infof("TrafficLight: %v", len(ctx.hosts.TrafficLights))
}

func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	if ctx.commands != nil {
		if err := ctx.commands.Close(); err != nil {
			log.Warnf("failed to close TraCI connection: %v", err)
		}
	}
	if err := ctx.recorder.Close(context.Background()); err != nil {
		log.Warnf("failed to close output: %v", err)
	}
	ctx.sidecar.Close()
	// wait for graceful stop
	<-ctx.sidecarCloseCh
	ctx.closed.Store(true)
}
