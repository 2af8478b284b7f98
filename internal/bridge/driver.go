package bridge

import (
	"sync"
	"time"

	"mqtt-nats-bridge/internal/logger"
)

// Driver owns the worker goroutines pumping messages for the engine's
// channels. The caller's goroutine is never blocked by message flow; all
// relaying happens on driver workers. Stop requests cooperative
// cancellation and joins the workers with a bounded wait.
type Driver struct {
	logger *logger.Logger

	done    chan struct{}
	wg      sync.WaitGroup
	stopped bool
	mu      sync.Mutex
}

// NewDriver creates a driver ready to accept workers
func NewDriver(log *logger.Logger) *Driver {
	return &Driver{
		logger: log,
		done:   make(chan struct{}),
	}
}

// Go spawns a worker. The worker must return promptly once the done
// channel closes.
func (d *Driver) Go(fn func(done <-chan struct{})) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(d.done)
	}()
}

// Done exposes the cancellation signal for subscription callbacks
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Stop cancels all workers and waits for them to exit. If the workers do
// not exit within the grace period the driver abandons them and returns
// ErrShutdownTimeout rather than hanging forever.
func (d *Driver) Stop(grace time.Duration) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.done)
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(grace):
		d.logger.Error("workers did not exit within grace period",
			"grace", grace)
		return ErrShutdownTimeout
	}
}
