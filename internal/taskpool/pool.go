// Package taskpool реализует пул воркеров без приоритетов с барьером
// конца тика: Wait возвращается, когда все поставленные задачи выполнены.
package taskpool

import (
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/annel0/blockbyte/internal/logging"
)

// Pool фиксированный набор воркеров с неограниченной очередью.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	pending atomic.Int64
	wg      sync.WaitGroup
}

// New запускает пул из workers воркеров (минимум один)
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Execute ставит задачу в очередь. Счётчик незавершённых задач
// увеличивается до возврата, так что барьер учитывает задачу сразу.
func (p *Pool) Execute(job func()) {
	p.pending.Add(1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		// Пул остановлен: выполняем синхронно, чтобы не потерять сохранение
		p.run(job)
		return
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	p.cond.Signal()
}

// AllTasksFinished сообщает, что очередь пуста и ни одна задача не выполняется
func (p *Pool) AllTasksFinished() bool {
	return p.pending.Load() == 0
}

// Pending возвращает число незавершённых задач
func (p *Pool) Pending() int64 {
	return p.pending.Load()
}

// Wait ожидает завершения всех задач, включая порождённые во время ожидания
func (p *Pool) Wait() {
	for !p.AllTasksFinished() {
		runtime.Gosched()
	}
}

// Close дожидается выполнения очереди и останавливает воркеров
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(job)
	}
}

func (p *Pool) run(job func()) {
	defer p.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Паника в задаче пула: %v\n%s", r, debug.Stack())
		}
	}()
	job()
}
