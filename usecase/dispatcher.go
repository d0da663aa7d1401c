package usecase

import (
	"context"
	"sync"
)

// Task is a unit of work submitted to a Dispatcher.
type Task func(ctx context.Context)

// Dispatcher runs tasks asynchronously, one at a time per key, in submission
// order. Tasks for different keys run concurrently.
type Dispatcher struct {
	mu       sync.Mutex
	queues   map[string][]Task
	inflight int
	idle     chan struct{}
	ctx      context.Context
}

// NewDispatcher creates a dispatcher whose tasks observe ctx.
func NewDispatcher(ctx context.Context) *Dispatcher {
	if ctx == nil {
		ctx = context.Background()
	}
	idle := make(chan struct{})
	close(idle)
	return &Dispatcher{
		queues: make(map[string][]Task),
		idle:   idle,
		ctx:    ctx,
	}
}

// Submit enqueues task behind any unfinished task with the same key.
func (d *Dispatcher) Submit(key string, task Task) {
	if task == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inflight == 0 {
		d.idle = make(chan struct{})
	}
	d.inflight++
	queue, running := d.queues[key]
	d.queues[key] = append(queue, task)
	if !running {
		go d.drain(key)
	}
}

// Wait blocks until every submitted task finished or ctx is done. Tasks
// submitted while waiting are waited for as well.
func (d *Dispatcher) Wait(ctx context.Context) error {
	for {
		d.mu.Lock()
		if d.inflight == 0 {
			d.mu.Unlock()
			return nil
		}
		idle := d.idle
		d.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending reports whether key has queued or running tasks.
func (d *Dispatcher) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues[key]) > 0
}

// Len returns the number of queued or running tasks.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}

func (d *Dispatcher) drain(key string) {
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		task := queue[0]
		d.mu.Unlock()

		task(d.ctx)

		d.mu.Lock()
		d.queues[key] = d.queues[key][1:]
		d.inflight--
		if d.inflight == 0 {
			close(d.idle)
		}
		d.mu.Unlock()
	}
}
