// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task 一个定时任务。Interval > 0 时为周期任务。
type Task struct {
	ID       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*Task)
	task.index = n
	*q = append(*q, task)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// Manager 基于最小堆的定时器。AddTimer 返回的ID可以用 RemoveTimer
// 取消——这是答题超时竞态里"先到者取消对方"的基础。
type Manager struct {
	queue    taskQueue
	mutex    sync.Mutex
	nextID   int64
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewManager() *Manager {
	m := &Manager{
		queue:    make(taskQueue, 0),
		nextID:   1,
		stopChan: make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.process()
	return m
}

// AddTimer 注册一个延时任务，返回任务ID
func (m *Manager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &Task{
		ID:       m.nextID,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextID++

	heap.Push(&m.queue, task)
	return task.ID
}

// RemoveTimer 取消任务。任务已触发或不存在时返回 false。
func (m *Manager) RemoveTimer(taskID int64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.ID == taskID {
			heap.Remove(&m.queue, i)
			return true
		}
	}
	return false
}

// Stop 停止处理循环，未触发的任务被丢弃
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

func (m *Manager) process() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			for _, task := range m.popDue(time.Now()) {
				go task.Callback()
			}
		}
	}
}

// popDue 取出所有到期任务，周期任务重新入队
func (m *Manager) popDue(now time.Time) []*Task {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var due []*Task
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}

		heap.Pop(&m.queue)
		due = append(due, task)

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		}
	}
	return due
}
