package workflows

import (
	flow "github.com/noneback/go-taskflow"
)

// TaskFlow wraps go-taskflow's TaskFlow with custom methods
type TaskFlow struct {
	*flow.TaskFlow
}

// NewTaskFlow creates a new custom TaskFlow
func NewTaskFlow(name string) *TaskFlow {
	return &TaskFlow{
		TaskFlow: flow.NewTaskFlow(name),
	}
}

// Run executes every task with at most concurrency running at once and
// returns once all of them finished.
func (tf *TaskFlow) Run(concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	executor := flow.NewExecutor(uint(concurrency))
	executor.Run(tf.TaskFlow).Wait()
}
