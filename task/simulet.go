package task

import (
	"context"
	"flag"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-traci/subscription"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/output"
)

const (
	SelfName = "traci" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进时钟并定期输出心跳日志
func (ctx *Context) prepare() {
	ctx.clock.Advance()

	if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) vehicles=%d persons=%d traffic_lights=%d",
			ctx.clock.InternalStep,
			hour, minute, second,
			len(ctx.hosts.Vehicles), len(ctx.hosts.Persons), len(ctx.hosts.TrafficLights),
		)
	}
}

// step 推进SUMO到当前时钟时间并处理订阅结果
// 说明：违反协议意味着字节流已错位，无法继续，直接panic
func (ctx *Context) step() {
	buf, err := ctx.commands.SimulationStep(ctx.clock.T)
	if err != nil {
		log.Panicf("step %d: simulation step failed: %v", ctx.clock.InternalStep, err)
	}
	if err := ctx.aggregator.ProcessSubscriptionResult(buf); err != nil {
		log.Panicf("step %d: %v", ctx.clock.InternalStep, err)
	}
}

// update 更新阶段，每步执行一次
// 算法说明：
// 1. 取走各类对象的更新与消失
// 2. 先合并更新再移除消失的对象，受管主机表即为本步结束时的状态
// 3. 写入输出
func (ctx *Context) update() {
	s := collect(ctx.aggregator, ctx.hosts)
	s.Step = ctx.clock.InternalStep
	s.T = ctx.clock.T
	if err := ctx.recorder.Record(context.Background(), s); err != nil {
		log.Errorf("step %d: %v", ctx.clock.InternalStep, err)
	}
}

// collect 取走聚合器中的全部结果并合并到受管主机表
func collect(a *subscription.Aggregator, hosts *Hosts) output.Step {
	s := output.Step{
		Vehicles:                 a.UpdatedVehicles(),
		Persons:                  a.UpdatedPersons(),
		TrafficLights:            a.UpdatedTrafficLights(),
		DisappearedVehicles:      a.DisappearedVehicles(),
		DisappearedPersons:       a.DisappearedPersons(),
		DisappearedTrafficLights: a.DisappearedTrafficLights(),
	}
	if failures := a.Failures(); len(failures) > 0 {
		log.Debugf("%d variable failures in this step", len(failures))
	}

	if created := hosts.UpdateVehicles(s.Vehicles); len(created) > 0 {
		log.Debugf("new vehicles: %v", created)
	}
	if created := hosts.UpdatePersons(s.Persons); len(created) > 0 {
		log.Debugf("new persons: %v", created)
	}
	hosts.UpdateTrafficLights(s.TrafficLights)
	// 只记录受管车辆，未装备的车辆不输出
	s.Vehicles = lo.Filter(s.Vehicles, func(v subscription.Vehicle, _ int) bool {
		_, ok := hosts.Vehicles[v.ID]
		return ok
	})

	s.DisappearedVehicles = hosts.RemoveVehicles(s.DisappearedVehicles)
	hosts.RemovePersons(s.DisappearedPersons)
	hosts.RemoveTrafficLights(s.DisappearedTrafficLights)

	return s
}

// Run 运行
func (ctx *Context) Run() {
	// 初始化
	ctx.Init()
	// init syncer
	ctx.sidecar.Step(false)
	for {
		ctx.prepare()
		// 通知准备阶段完成
		log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.InternalStep)
		ctx.sidecar.NotifyStepReady()
		ctx.step()
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.InternalStep)
		close := ctx.sidecar.Step(ctx.clock.Finished())
		if close || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete")
	ctx.Close()
}
