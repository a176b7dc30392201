package io

import "context"

// Producer submits work units to the channel and closes it when done.
type Producer interface {
	Produce(ctx context.Context, work chan<- *WorkUnit) error
}

// Consumer drains the channel until it is closed or an error stops it.
type Consumer interface {
	Consume(ctx context.Context, work <-chan *WorkUnit) error
}

// Processor does the work of one unit.
type Processor interface {
	Process(ctx context.Context, work *WorkUnit) error
}
