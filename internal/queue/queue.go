package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Topic the enqueue paths publish to when a new outbound message wants
// prompt dispatch. Payload is the message ID; the dispatcher still claims
// through the store, so a duplicate or lost nudge is harmless.
const TopicOutboundSends = "outbound_sends"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is an in-process queue with retry, used in single-binary
// deployments and tests. The worker binary consumes RabbitMQ instead.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed (attempt %d/%d): %+v, error: %v\n", job.RetryCount, job.MaxRetries, job.Payload, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("Job permanently failed after %d attempts: %+v\n", job.MaxRetries, job.Payload)
			return // No requeue
		}

		// Exponential backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Dispatcher is the slice of the dispatch service the subscriber needs.
type Dispatcher interface {
	DispatchRound(ctx context.Context, limit int) (int, error)
}

// StartOutboundSendSubscriber wires the queue nudge to a dispatch round.
// The round claims work through the store, so concurrent nudges never
// double-send a message.
func StartOutboundSendSubscriber(q Queue, d Dispatcher) {
	go func() {
		err := q.Subscribe(TopicOutboundSends, func(payload any) error {
			log.Println("📩 Outbound send nudge:", payload)

			n, err := d.DispatchRound(context.Background(), 50)
			if err != nil {
				log.Println("⚠️ Dispatch round failed:", err)
				return err
			}
			log.Println("✅ Dispatch round processed:", n)
			return nil
		})

		if err != nil {
			log.Println("⚠️ Failed to start subscriber for outbound_sends:", err)
		}
	}()
}
