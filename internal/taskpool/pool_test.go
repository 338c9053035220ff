package taskpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolBarrier(t *testing.T) {
	p := New(4)
	defer p.Close()

	var done atomic.Int32
	for i := 0; i < 100; i++ {
		p.Execute(func() {
			done.Add(1)
		})
	}
	p.Wait()

	assert.Equal(t, int32(100), done.Load())
	assert.True(t, p.AllTasksFinished())
}

func TestPoolNestedTasks(t *testing.T) {
	p := New(2)
	defer p.Close()

	var done atomic.Int32
	for i := 0; i < 10; i++ {
		p.Execute(func() {
			// Задача ставит следующую: барьер должен дождаться и её
			p.Execute(func() {
				done.Add(1)
			})
			done.Add(1)
		})
	}
	p.Wait()

	if done.Load() != 20 {
		t.Errorf("Ожидалось 20 выполненных задач, получено %d", done.Load())
	}
}

func TestPoolRecoversPanic(t *testing.T) {
	p := New(1)
	defer p.Close()

	var after atomic.Bool
	p.Execute(func() { panic("сбой задачи") })
	p.Execute(func() { after.Store(true) })
	p.Wait()

	assert.True(t, after.Load(), "воркер должен пережить панику")
	assert.Equal(t, int64(0), p.Pending())
}

func TestPoolExecuteAfterClose(t *testing.T) {
	p := New(1)
	p.Close()

	ran := false
	p.Execute(func() { ran = true })
	assert.True(t, ran)
	assert.True(t, p.AllTasksFinished())
}
