package reconcile

import (
	"log/slog"
	"sync"
)

// Progress is the sink sync runs report progress to.
type Progress interface {
	// AddTask registers a named task. total is 0 until it becomes known.
	AddTask(description string, total int) ProgressTask
}

type ProgressTask interface {
	SetTotal(total int)
	Advance(n int)
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) AddTask(string, int) ProgressTask { return nopTask{} }

type nopTask struct{}

func (nopTask) SetTotal(int) {}
func (nopTask) Advance(int)  {}

// LogProgress logs a line every Every completed units and on completion.
type LogProgress struct {
	Logger *slog.Logger
	Every  int
}

func (p LogProgress) AddTask(description string, total int) ProgressTask {
	every := p.Every
	if every <= 0 {
		every = 100
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &logTask{logger: logger, description: description, total: total, every: every}
}

type logTask struct {
	mu          sync.Mutex
	logger      *slog.Logger
	description string
	total       int
	done        int
	every       int
}

func (t *logTask) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	if t.done >= t.total {
		t.logger.Info(t.description, "completed", t.done, "total", t.total)
	}
}

func (t *logTask) Advance(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += n
	if t.done%t.every == 0 || (t.total > 0 && t.done == t.total) {
		t.logger.Info(t.description, "completed", t.done, "total", t.total)
	}
}
