// Package async runs named tasks concurrently with a bounded number of workers.
package async

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (interface{}, error)
}

type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs every task and returns their results keyed by task name.
// The first failing task cancels the context handed to the others, and only
// that error is returned; results are never partial.
func (p *Pool) Execute(ctx context.Context, tasks []Task) (map[string]interface{}, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerCount)

	var mu sync.Mutex
	results := make(map[string]interface{}, len(tasks))

	for _, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := task.Execute(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", task.Name, err)
			}
			mu.Lock()
			results[task.Name] = data
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Get fetches a typed result from the map returned by Execute.
func Get[T any](results map[string]interface{}, name string) (T, error) {
	var zero T
	raw, ok := results[name]
	if !ok {
		return zero, fmt.Errorf("missing result for task %q", name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T for task %q", raw, name)
	}
	return v, nil
}
