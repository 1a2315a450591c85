package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ProcessorFactory builds the processor of one source
type ProcessorFactory func(source SourceConfig) (*Processor, error)

type worker struct {
	processor *Processor
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager supervises one processor goroutine per enabled source
type Manager struct {
	sources []SourceConfig
	factory ProcessorFactory
	logger  *slog.Logger

	mu      sync.Mutex
	workers map[string]*worker
}

func NewManager(sources []SourceConfig, factory ProcessorFactory, logger *slog.Logger) *Manager {
	return &Manager{
		sources: sources,
		factory: factory,
		logger:  logger.With("component", "stream_manager"),
		workers: make(map[string]*worker),
	}
}

// StartAll starts every enabled source that is not already running and
// returns how many were started. A source that fails to build is skipped.
func (m *Manager) StartAll(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := 0
	for _, src := range m.sources {
		if !src.Enabled {
			continue
		}
		if _, ok := m.workers[src.Name]; ok {
			m.logger.Warn("source already running", slog.String("source", src.Name))
			continue
		}

		p, err := m.factory(src)
		if err != nil {
			m.logger.Error("failed to create stream processor",
				slog.String("source", src.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		wctx, cancel := context.WithCancel(ctx)
		w := &worker{processor: p, cancel: cancel, done: make(chan struct{})}
		m.workers[src.Name] = w

		go func() {
			defer close(w.done)
			if err := p.Run(wctx); err != nil {
				level := slog.LevelError
				if errors.Is(err, ErrSourceExhausted) {
					level = slog.LevelWarn
				}
				m.logger.Log(wctx, level, "stream processor exited",
					slog.String("source", p.Name()),
					slog.String("error", err.Error()),
				)
			}
		}()
		started++
	}

	if started == 0 {
		m.logger.Warn("no enabled stream sources started")
	} else {
		m.logger.Info("stream processors started", slog.Int("count", started))
	}
	return started
}

// StopAll cancels every processor, waits for the goroutines and clears the set
func (m *Manager) StopAll() {
	m.mu.Lock()
	workers := m.workers
	m.workers = make(map[string]*worker)
	m.mu.Unlock()

	for _, w := range workers {
		w.cancel()
	}
	for _, w := range workers {
		<-w.done
	}

	if len(workers) > 0 {
		m.logger.Info("stream processors stopped", slog.Int("count", len(workers)))
	}
}

// Status returns one entry per started source, keyed by source name
func (m *Manager) Status() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Status, len(m.workers))
	for name, w := range m.workers {
		out[name] = w.processor.Status()
	}
	return out
}
