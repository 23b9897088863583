// Command runloopdemo wires a small in-memory Consumer and a single
// UserTask into a RunLoop and runs it until interrupted. It exists to
// exercise the package end to end; the bootstrap itself carries no
// scope of its own.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamtask/runloop"
)

// demoConsumer hands out a bounded number of envelopes from one partition
// and reports itself exhausted once they're gone.
type demoConsumer struct {
	mu        sync.Mutex
	partition runloop.Partition
	next      runloop.Offset
	remaining int
}

func newDemoConsumer(partition runloop.Partition, count int) *demoConsumer {
	return &demoConsumer{partition: partition, remaining: count}
}

func (c *demoConsumer) Choose() (runloop.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining == 0 {
		return runloop.Envelope{}, false
	}
	env := runloop.Envelope{Partition: c.partition, Offset: c.next, Payload: fmt.Sprintf("message-%d", c.next)}
	c.next++
	c.remaining--
	return env, true
}

func (c *demoConsumer) TryUpdate(runloop.Partition) {}

func (c *demoConsumer) PollIntervalMs() int64 { return 50 }

// demoOffsetManager logs every committed offset.
type demoOffsetManager struct {
	log runloop.Logger
}

func (m demoOffsetManager) Update(task runloop.TaskName, partition runloop.Partition, offset runloop.Offset) {
	m.log.WithFields(logrus.Fields{"task": string(task), "partition": partition.Stream, "offset": int64(offset)}).Info("offset committed")
}

// demoTask processes envelopes with a small simulated async delay and
// requests a commit every few messages.
type demoTask struct {
	name      runloop.TaskName
	partition runloop.Partition
	processed int
}

func (t *demoTask) Process(ctx context.Context, envelope runloop.Envelope, coordinator *runloop.Coordinator, newCallback runloop.CallbackFactory) {
	cb := newCallback()
	t.processed++
	if t.processed%5 == 0 {
		coordinator.RequestCommit()
	}
	go func() {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		cb.Complete()
	}()
}

func (t *demoTask) Window(ctx context.Context, coordinator *runloop.Coordinator) error { return nil }
func (t *demoTask) Commit(ctx context.Context) error                                   { return nil }
func (t *demoTask) IsWindowable() bool                                                 { return false }
func (t *demoTask) Partitions() []runloop.Partition                                    { return []runloop.Partition{t.partition} }
func (t *demoTask) Name() runloop.TaskName                                            { return t.name }

func main() {
	logger := runloop.NewLogrusLogger(logrus.StandardLogger())
	partition := runloop.Partition{System: "demo", Stream: "events"}

	cfg, err := runloop.NewConfig(
		runloop.WithMaxConcurrency(4),
		runloop.WithCommit(500),
		runloop.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	task := &demoTask{name: "demo-task", partition: partition}
	assignment, err := runloop.NewAssignment(cfg, task)
	if err != nil {
		fmt.Fprintln(os.Stderr, "assignment:", err)
		os.Exit(1)
	}

	consumer := newDemoConsumer(partition, 25)
	offsets := demoOffsetManager{log: logger}

	rl, err := runloop.New(cfg, assignment, consumer, offsets)
	if err != nil {
		fmt.Fprintln(os.Stderr, "runloop:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rl.Run(ctx); err != nil {
		logger.Error("run loop exited with error: ", err)
		os.Exit(1)
	}
}
