package subscription

import (
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// Diff 计算两次ID快照之间的出现与消失
// 功能：appeared = current - previous，disappeared = previous - current
// 参数：previous-此前已订阅的ID，current-本次服务器报告的活跃ID（允许重复）
// 返回：按字典序排列的出现ID与消失ID
// 说明：纯函数，相同输入总得到相同输出；两侧都存在的ID不产生任何事件
func Diff(previous, current []string) (appeared, disappeared []string) {
	disappeared, appeared = lo.Difference(lo.Uniq(previous), lo.Uniq(current))
	slices.Sort(appeared)
	slices.Sort(disappeared)
	return appeared, disappeared
}
