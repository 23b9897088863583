package runloop

import (
	"fmt"

	"github.com/ygrebnov/errorc"
)

// Assignment is immutable for the run loop's lifetime (§3, Non-goals:
// no dynamic rebalancing). It maps task names to their TaskWorker and
// partitions to the ordered list of workers subscribed to them (one
// partition may serve multiple tasks: broadcast, §GLOSSARY).
type Assignment struct {
	taskOfName       map[TaskName]*TaskWorker
	tasksOfPartition map[Partition][]*TaskWorker
	order            []TaskName // stable iteration order over task names, §4.1(c)
	requests         *CoordinatorRequestSink
}

// NewAssignment builds an immutable Assignment from the given tasks. Tasks
// are registered in the order given; that order becomes the stable
// iteration order used by RunLoop.runTasks. Every task's TaskState shares
// one CoordinatorRequestSink (§4.5) so RunLoop can answer "does any task
// still owe a commit" / "has any task requested shutdown" globally.
func NewAssignment(cfg Config, tasks ...UserTask) (*Assignment, error) {
	a := &Assignment{
		taskOfName:       make(map[TaskName]*TaskWorker, len(tasks)),
		tasksOfPartition: make(map[Partition][]*TaskWorker),
		requests:         newCoordinatorRequestSink(),
	}
	for _, t := range tasks {
		name := t.Name()
		if _, exists := a.taskOfName[name]; exists {
			return nil, errorc.With(ErrInvalidConfig, errorc.String("", fmt.Sprintf("duplicate task name %q", name)))
		}
		w := newTaskWorker(t, cfg, a.requests)
		a.taskOfName[name] = w
		a.order = append(a.order, name)
		for _, p := range t.Partitions() {
			a.tasksOfPartition[p] = append(a.tasksOfPartition[p], w)
		}
	}
	return a, nil
}

// workers returns the stable-ordered list of all TaskWorkers.
func (a *Assignment) workers() []*TaskWorker {
	out := make([]*TaskWorker, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.taskOfName[name])
	}
	return out
}

// workersFor returns the workers subscribed to partition, and whether any
// mapping exists at all (absence is a fatal contract violation per §4.1).
func (a *Assignment) workersFor(partition Partition) ([]*TaskWorker, bool) {
	w, ok := a.tasksOfPartition[partition]
	return w, ok
}
