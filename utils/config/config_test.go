package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/config"
)

const sample = `
traci:
  host: sumo
  port: 9999
control:
  step:
    start: 0
    total: 3600
    interval: 0.5
  penetration_rate: 0.25
  seed: 42
subscription:
  person: false
  explicit_id_list_fallback: true
  traffic_light_ids: [j1, j2]
output:
  uri: mongodb://localhost:27017
  updates:
    db: traci
    col: updates
`

func TestParse(t *testing.T) {
	c, err := config.Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "sumo:9999", c.TraCI.Addr())
	assert.Equal(t, int32(3600), c.Control.Step.Total)
	assert.Equal(t, uint64(42), c.Control.Seed)
	assert.Equal(t, []string{"j1", "j2"}, c.Subscription.TrafficLightIDs)
	assert.Equal(t, "updates", c.Output.Updates.GetColl())

	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, 0.25, rc.PenetrationRate)
	assert.True(t, rc.Vehicles)
	assert.False(t, rc.Persons)
	assert.True(t, rc.TrafficLights)
	assert.Equal(t, 10, rc.All.TraCI.RetryCount)
	assert.Equal(t, time.Second, rc.RetryInterval)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := config.Parse([]byte("control:\n  steps: {}\n"))
	assert.Error(t, err)
}

func TestRuntimeConfigDefaults(t *testing.T) {
	rc, err := config.NewRuntimeConfig(config.Config{
		Control: config.Control{Step: config.ControlStep{Total: 10, Interval: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:8813", rc.All.TraCI.Addr())
	assert.Equal(t, 1.0, rc.PenetrationRate)
	assert.True(t, rc.Vehicles && rc.Persons && rc.TrafficLights)
}

func TestRuntimeConfigValidation(t *testing.T) {
	rate := 1.5
	_, err := config.NewRuntimeConfig(config.Config{
		Control: config.Control{Step: config.ControlStep{Total: 10, Interval: 1}, PenetrationRate: &rate},
	})
	assert.ErrorContains(t, err, "penetration_rate")

	_, err = config.NewRuntimeConfig(config.Config{
		Control: config.Control{Step: config.ControlStep{Total: 10}},
	})
	assert.ErrorContains(t, err, "interval")
}
