package inference

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

type job struct {
	ctx   context.Context
	input *imaging.Grayscale
	out   chan result
}

type result struct {
	score domain.ClassScore
	field *imaging.Field
	err   error
}

// Pool bounds concurrent forward passes. The model itself is stateless;
// the pool exists to cap CPU pressure when many uploads arrive at once.
// A job that has started always runs to completion; context cancellation
// only abandons jobs still waiting in the queue.
type Pool struct {
	model  *Model
	jobs   chan job
	wg     sync.WaitGroup
	once   sync.Once
	logger *logrus.Logger
}

// NewPool starts workers goroutines serving predictions from model.
func NewPool(model *Model, workers int, logger *logrus.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		model:  model,
		jobs:   make(chan job, workers*2),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.WithFields(logrus.Fields{
		"workers":    workers,
		"input_size": model.InputSize(),
	}).Info("Inference pool started")
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		if err := j.ctx.Err(); err != nil {
			j.out <- result{err: err}
			continue
		}
		score, field, err := p.model.Predict(j.input)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"worker": id,
				"error":  err.Error(),
			}).Error("Inference failed")
		}
		j.out <- result{score: score, field: field, err: err}
	}
}

// Predict queues a forward pass and waits for its result. It honors ctx
// while queued and while waiting, and returns the context error if it
// expires first.
func (p *Pool) Predict(ctx context.Context, g *imaging.Grayscale) (domain.ClassScore, *imaging.Field, error) {
	out := make(chan result, 1)
	select {
	case p.jobs <- job{ctx: ctx, input: g, out: out}:
	case <-ctx.Done():
		return domain.ClassScore{}, nil, ctx.Err()
	}

	select {
	case res := <-out:
		return res.score, res.field, res.err
	case <-ctx.Done():
		return domain.ClassScore{}, nil, ctx.Err()
	}
}

// Status reports classifier availability for health checks.
func (p *Pool) Status() domain.ModelStatus {
	return domain.ModelStatus{
		State:     "loaded",
		Path:      p.model.Path(),
		SizeBytes: p.model.SizeBytes(),
	}
}

// Close stops accepting work and waits for in-flight jobs to drain.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
