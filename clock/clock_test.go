package clock_test

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-traci/clock"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/config"
)

func TestClock(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 7200, Total: 3, Interval: 0.5})
	assert.Equal(t, 3600.0, c.T)
	assert.Equal(t, "01:00:00", c.String())
	assert.False(t, c.Finished())

	assert.Equal(t, 3600.5, c.Advance())
	assert.False(t, c.Finished())
	c.Advance()
	assert.True(t, c.Finished())

	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 1, h)
	assert.Equal(t, 0, m)
	assert.Equal(t, 1.0, s)

	c.Init()
	assert.Equal(t, int32(7200), c.InternalStep)
}

func TestNow(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 10, Total: 5, Interval: 1})
	c.Advance()
	resp, err := c.Now(context.Background(), connect.NewRequest(&clockv1.NowRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 11.0, resp.Msg.T)
}
