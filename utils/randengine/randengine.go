// 随机数引擎，包装了golang.org/x/exp/rand
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 说明：非线程安全，只在主循环中使用
type Engine struct {
	*rand.Rand
}

// New 创建随机数引擎
// 说明：实际种子为seed与命令行种子偏移量之和
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// PTrue 以概率p返回true（非线程安全）
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}
