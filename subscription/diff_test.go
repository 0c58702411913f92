package subscription_test

import (
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-traci/subscription"
	"golang.org/x/exp/rand"
	"golang.org/x/exp/slices"
)

func TestDiff(t *testing.T) {
	appeared, disappeared := subscription.Diff(nil, []string{"v2", "v1"})
	assert.Equal(t, []string{"v1", "v2"}, appeared)
	assert.Empty(t, disappeared)

	appeared, disappeared = subscription.Diff([]string{"v1", "v2"}, []string{"v2", "v3"})
	assert.Equal(t, []string{"v3"}, appeared)
	assert.Equal(t, []string{"v1"}, disappeared)

	appeared, disappeared = subscription.Diff([]string{"v1"}, []string{"v1", "v1"})
	assert.Empty(t, appeared)
	assert.Empty(t, disappeared)

	appeared, disappeared = subscription.Diff([]string{"a", "b"}, nil)
	assert.Empty(t, appeared)
	assert.Equal(t, []string{"a", "b"}, disappeared)
}

func randomIDs(rng *rand.Rand) []string {
	n := rng.Intn(12)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id%d", rng.Intn(16))
	}
	return ids
}

func TestDiffProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		previous := lo.Uniq(randomIDs(rng))
		current := randomIDs(rng)

		appeared, disappeared := subscription.Diff(previous, current)
		assert.Empty(t, lo.Intersect(appeared, disappeared))

		// appeared ∪ disappeared ∪ (previous ∩ current) == previous ∪ current
		union := lo.Uniq(append(append([]string{}, previous...), current...))
		parts := lo.Uniq(append(append(appeared, disappeared...), lo.Intersect(previous, current)...))
		slices.Sort(union)
		slices.Sort(parts)
		assert.Equal(t, union, parts)

		// 对集合应用差异后得到current
		s := subscription.NewSet()
		for _, id := range previous {
			s.Add(id)
		}
		for _, id := range appeared {
			assert.True(t, s.Add(id))
		}
		for _, id := range disappeared {
			assert.True(t, s.Remove(id))
		}
		expected := lo.Uniq(current)
		slices.Sort(expected)
		assert.Equal(t, expected, s.Snapshot())

		// 纯函数
		appeared2, disappeared2 := subscription.Diff(previous, current)
		assert.Equal(t, appeared, appeared2)
		assert.Equal(t, disappeared, disappeared2)
	}
}
