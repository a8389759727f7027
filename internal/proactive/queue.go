package proactive

import (
	"sync"

	"walkerwatch/internal/models"
)

// Queue 无界 FIFO 事件队列
//
// 入队永不阻塞；出队在队列为空时阻塞等待，Close 后唤醒所有等待者。
// 全部住户共用一条队列，由单 worker 顺序消费，保证播报不互相重叠。
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []models.ProactiveEvent
	closed bool
}

// NewQueue 创建队列
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push 入队；已关闭时丢弃
func (q *Queue) Push(event models.ProactiveEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, event)
	q.cond.Signal()
}

// Pop 出队；队列空时阻塞。关闭且排空后返回 false。
func (q *Queue) Pop() (models.ProactiveEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return models.ProactiveEvent{}, false
	}
	event := q.items[0]
	q.items = q.items[1:]
	return event, true
}

// Close 关闭队列并唤醒等待者
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len 当前积压长度
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
