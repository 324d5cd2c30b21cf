package reconcile

import (
	"context"
	"fmt"
	"iter"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// runPool feeds every unit of items to fn on at most workers goroutines. A
// unit that fails or panics is logged and counted; it never stops the rest.
// Workers start while items is still being produced.
func runPool[T any](ctx context.Context, e *Engine, description string, workers int, items iter.Seq2[T, error], label func(T) string, fn func(context.Context, T) error) {
	if workers < 1 {
		workers = 1
	}
	task := e.addTask(description)
	p := pool.New().WithMaxGoroutines(workers)

	total := 0
	for item, err := range items {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.LogError(fmt.Sprintf("%s: stopped: %v", description, ctxErr))
			break
		}
		total++
		if err != nil {
			e.LogError(fmt.Sprintf("%s: fetch failed: %v", description, err))
			e.unitDone(task, false)
			continue
		}

		p.Go(func() {
			err := runUnit(ctx, item, fn)
			if err != nil {
				e.LogError(fmt.Sprintf("%s: %v", label(item), err))
			}
			e.unitDone(task, err == nil)
		})
	}

	e.setTotal(task, total)
	p.Wait()
}

func runUnit[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	if r := panics.Try(func() { err = fn(ctx, item) }); r != nil {
		return r.AsError()
	}
	return err
}

func (e *Engine) addTask(description string) ProgressTask {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	return e.cfg.Progress.AddTask(description, 0)
}

func (e *Engine) setTotal(task ProgressTask, total int) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	task.SetTotal(total)
}

func (e *Engine) unitDone(task ProgressTask, ok bool) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.processed++
	if ok {
		e.succeeded++
	} else {
		e.failed++
	}
	task.Advance(1)
}
