package connection

import (
	"context"

	"github.com/LilDemoness/mech-shooter-netcode/internal/method"
	"github.com/LilDemoness/mech-shooter-netcode/internal/transport"
)

type (
	// task is asynchronous work started by a state. At most one is in flight.
	task struct {
		gen    uint64
		cancel context.CancelFunc
	}

	// taskResult is what a task hands back to the loop.
	taskResult struct {
		// gen identifies the task the result belongs to.
		gen uint64

		endpoint  transport.Endpoint
		reconnect method.ReconnectResult
		err       error
	}
)

// startTask implements controller.
func (c *Coordinator) startTask(fn func(ctx context.Context) taskResult) {
	c.cancelTask()

	c.taskGen++
	gen := c.taskGen

	ctx, cancel := context.WithCancel(c.ctx)
	c.task = &task{gen: gen, cancel: cancel}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		res := fn(ctx)
		res.gen = gen

		// A cancelled task must not touch state.
		if ctx.Err() != nil {
			return
		}

		c.enqueue(loopEvent{typ: evTaskDone, result: res})
	}()
}

// cancelTask implements controller.
func (c *Coordinator) cancelTask() {
	if c.task == nil {
		return
	}

	c.task.cancel()
	c.task = nil
}

// claimTask reports whether res belongs to the task in flight, and if so
// marks that task finished.
func (c *Coordinator) claimTask(res taskResult) bool {
	if c.task == nil || c.task.gen != res.gen {
		return false
	}

	c.task = nil

	return true
}
