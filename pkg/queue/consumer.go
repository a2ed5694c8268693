// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultDrainTimeout bounds how long running tasks may finish once shutdown starts
const DefaultDrainTimeout = 5 * time.Minute

// HandlerFunc processes one task message. Returned errors are logged and the delivery is
// acked, unless the handler was cut off by shutdown; then the message is requeued.
type HandlerFunc func(ctx context.Context, msg *Message) error

// 🔧 ConsumerOptions configures a Consumer
type ConsumerOptions struct {
	URL   string
	Queue string
	// Concurrency bounds in-flight tasks and the broker prefetch, default 1
	Concurrency int
	Tag         string
	// DrainTimeout defaults to DefaultDrainTimeout
	DrainTimeout time.Duration
}

// 🐇 Consumer reads Celery tasks from one durable queue
type Consumer struct {
	opts ConsumerOptions

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// 🏭 NewConsumer validates options; no connection is made until Run
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	if opts.URL == "" {
		return nil, errors.New("broker url is required")
	}
	if opts.Queue == "" {
		return nil, errors.New("queue is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Tag == "" {
		opts.Tag = "drsholding"
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	return &Consumer{opts: opts, handlers: map[string]HandlerFunc{}}, nil
}

// Handle registers h for a task name
func (c *Consumer) Handle(task string, h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[task] = h
}

func (c *Consumer) handler(task string) (HandlerFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[task]
	return h, ok
}

func (c *Consumer) tasks() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.handlers))
	for n := range c.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// 🏃 Run consumes until ctx is cancelled. onReady is called once the consumer is subscribed.
// Cancelling ctx stops intake; tasks already running get DrainTimeout to finish.
func (c *Consumer) Run(ctx context.Context, onReady func()) error {
	logger := zerolog.Ctx(ctx).With().Str("queue", c.opts.Queue).Logger()

	conn, err := amqp.Dial(c.opts.URL)
	if err != nil {
		return errors.Errorf("connecting to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(c.opts.Concurrency, 0, false); err != nil {
		return errors.Errorf("setting prefetch: %w", err)
	}
	if _, err := ch.QueueDeclare(c.opts.Queue, true, false, false, false, nil); err != nil {
		return errors.Errorf("declaring queue %s: %w", c.opts.Queue, err)
	}

	deliveries, err := ch.Consume(c.opts.Queue, c.opts.Tag, false, false, false, false, nil)
	if err != nil {
		return errors.Errorf("consuming %s: %w", c.opts.Queue, err)
	}

	logger.Info().Str("tasks", c.tasks()).Int("concurrency", c.opts.Concurrency).Msg("consumer ready")
	if onReady != nil {
		onReady()
	}

	// the broker closes deliveries once the subscription is cancelled
	stopIntake := context.AfterFunc(ctx, func() {
		if err := ch.Cancel(c.opts.Tag, false); err != nil {
			logger.Warn().Err(err).Msg("cancelling consumer")
		}
	})
	defer stopIntake()

	return c.consume(logger.WithContext(ctx), deliveries)
}

// consume fans deliveries out to at most Concurrency handlers and waits for them on exit.
// Handlers do not inherit ctx's cancellation; they are cancelled DrainTimeout after it.
func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	hctx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHandlers()

	g := &errgroup.Group{}
	g.SetLimit(c.opts.Concurrency)

	var loopErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() == nil {
					loopErr = errors.New("broker closed the delivery channel")
				}
				break loop
			}
			g.Go(func() error {
				c.deliver(hctx, d)
				return nil
			})
		}
	}

	if ctx.Err() != nil {
		zerolog.Ctx(ctx).Info().Dur("drain_timeout", c.opts.DrainTimeout).Msg("intake stopped, draining running tasks")
		drain := time.AfterFunc(c.opts.DrainTimeout, cancelHandlers)
		defer drain.Stop()
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return loopErr
}

// deliver runs the handler for d and acks it, or requeues it when ctx ended mid-task
func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	logger := zerolog.Ctx(ctx).With().Uint64("delivery_tag", d.DeliveryTag).Logger()

	requeue := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("task handler panicked")
		}
		if requeue {
			if err := d.Nack(false, true); err != nil {
				logger.Error().Err(err).Msg("requeue failed")
			}
			return
		}
		if err := d.Ack(false); err != nil {
			logger.Error().Err(err).Msg("ack failed")
		}
	}()

	msg, err := Decode(d)
	if err != nil {
		logger.Error().Err(err).Msg("dropping malformed message")
		return
	}
	logger = logger.With().Str("task", msg.Task).Str("task_id", msg.ID).Logger()

	h, ok := c.handler(msg.Task)
	if !ok {
		logger.Warn().Str("known", c.tasks()).Msg("dropping message for unregistered task")
		return
	}

	logger.Debug().Msg("handling task")
	if err := h(logger.WithContext(ctx), msg); err != nil {
		if ctx.Err() != nil {
			logger.Warn().Err(err).Msg("task interrupted by shutdown, requeueing")
			requeue = true
			return
		}
		logger.Error().Err(err).Msg("task failed")
		return
	}
	logger.Debug().Msg("task done")
}
