package io

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ecopia-map/vdpm/internal/store"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

type StandardConsumer struct {
	processor Processor
	publisher store.Publisher
}

// NewStandardConsumer runs processor on every unit and, when publisher is not nil, uploads
// the written output.
func NewStandardConsumer(processor Processor, publisher store.Publisher) *StandardConsumer {
	return &StandardConsumer{
		processor: processor,
		publisher: publisher,
	}
}

// Continually consumes WorkUnits submitted to the work channel. Continues working until the
// channel is closed, the context is cancelled or a unit fails.
func (c *StandardConsumer) Consume(ctx context.Context, workchan <-chan *WorkUnit) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case work, ok := <-workchan:
			if !ok {
				// channel was closed by producer
				return nil
			}
			if err := c.doWork(ctx, work); err != nil {
				return fmt.Errorf("%s: %w", work.Input, err)
			}
		}
	}
}

func (c *StandardConsumer) doWork(ctx context.Context, work *WorkUnit) error {
	if err := c.processor.Process(ctx, work); err != nil {
		return err
	}
	if c.publisher == nil {
		return nil
	}
	name := filepath.Base(work.Output)
	if err := c.publisher.Publish(ctx, work.Output, name); err != nil {
		return err
	}
	glog.Infof("published %s as %s", work.Output, name)
	return nil
}

// Run starts the producer and the consumers and waits for all of them. The first error
// cancels the others and is returned.
func Run(ctx context.Context, producer Producer, consumers []Consumer, buffer int) error {
	g, ctx := errgroup.WithContext(ctx)
	work := make(chan *WorkUnit, buffer)

	g.Go(func() error {
		return producer.Produce(ctx, work)
	})
	for _, consumer := range consumers {
		consumer := consumer
		g.Go(func() error {
			return consumer.Consume(ctx, work)
		})
	}
	return g.Wait()
}
