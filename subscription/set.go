package subscription

import (
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// Set 某一类对象当前已订阅的ID集合
// 说明：集合内的ID与在途的逐对象变量订阅一一对应，
// 只能通过Add/Remove修改，Snapshot返回与内部存储无关的副本
type Set struct {
	ids map[string]struct{}
}

func NewSet() *Set {
	return &Set{ids: make(map[string]struct{})}
}

// Contains 检查ID是否已订阅
func (s *Set) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add 加入ID，若此前不存在则返回true
func (s *Set) Add(id string) bool {
	if s.Contains(id) {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove 移除ID，若此前存在则返回true
func (s *Set) Remove(id string) bool {
	if !s.Contains(id) {
		return false
	}
	delete(s.ids, id)
	return true
}

// Len 已订阅的ID数量
func (s *Set) Len() int {
	return len(s.ids)
}

// Snapshot 返回按字典序排列的ID副本
func (s *Set) Snapshot() []string {
	ids := lo.Keys(s.ids)
	slices.Sort(ids)
	return ids
}
