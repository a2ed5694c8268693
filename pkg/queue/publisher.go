package queue

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📤 Publisher sends Celery tasks through the default exchange
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewPublisher(ctx context.Context, url string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("broker url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Errorf("connecting to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Errorf("opening channel: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, declared: map[string]bool{}}, nil
}

// Publish sends task with args to queue
func (p *Publisher) Publish(ctx context.Context, queue, task string, args ...any) error {
	if queue == "" {
		return errors.Errorf("publishing %s: queue is required", task)
	}
	msg, err := NewMessage(task, args...)
	if err != nil {
		return err
	}
	pub, err := Encode(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return errors.Errorf("declaring queue %s: %w", queue, err)
		}
		p.declared[queue] = true
	}

	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		return errors.Errorf("publishing %s to %s: %w", task, queue, err)
	}

	zerolog.Ctx(ctx).Info().Str("queue", queue).Str("task", task).Str("task_id", msg.ID).Msg("published task")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.ch.Close(), p.conn.Close())
}
