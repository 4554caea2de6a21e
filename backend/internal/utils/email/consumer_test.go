package email

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

type ackResult struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	results []ackResult
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, ackResult{tag: tag, acked: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, ackResult{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) byTag() map[uint64]ackResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint64]ackResult, len(f.results))
	for _, r := range f.results {
		out[r.tag] = r
	}
	return out
}

type failingSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *failingSender) Send(to, subject, body string) error {
	if to == "down@woxsen.edu.in" {
		return errors.New("smtp unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return nil
}

func TestConsume(t *testing.T) {
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"to":"a@woxsen.edu.in","subject":"s","body":"b"}`)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`{"to":"down@woxsen.edu.in","subject":"s","body":"b"}`)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`not json`)}
	close(deliveries)

	s := &failingSender{}
	var mu sync.Mutex
	var failures []error
	Consume(context.Background(), deliveries, s, 2, func(err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, err)
	})

	results := ack.byTag()
	assert.Equal(t, ackResult{tag: 1, acked: true}, results[1])
	assert.Equal(t, ackResult{tag: 2, requeue: true}, results[2], "transient failures are retried")
	assert.Equal(t, ackResult{tag: 3, requeue: false}, results[3], "malformed messages are dropped")
	assert.Equal(t, []string{"a@woxsen.edu.in"}, s.sent)
	assert.Len(t, failures, 2)
}

func TestConsumeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	deliveries := make(chan amqp.Delivery)

	done := make(chan struct{})
	go func() {
		Consume(ctx, deliveries, &failingSender{}, 1, nil)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

type senderFunc func(to, subject, body string) error

func (f senderFunc) Send(to, subject, body string) error {
	return f(to, subject, body)
}

func TestConsumeDropsPermanentSMTPRejections(t *testing.T) {
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"to":"gone@woxsen.edu.in","subject":"s","body":"b"}`)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`{"to":"busy@woxsen.edu.in","subject":"s","body":"b"}`)}
	close(deliveries)

	s := senderFunc(func(to, subject, body string) error {
		if to == "gone@woxsen.edu.in" {
			return fmt.Errorf("rcpt: %w", &textproto.Error{Code: 550, Msg: "mailbox unavailable"})
		}
		return &textproto.Error{Code: 451, Msg: "try again later"}
	})
	Consume(context.Background(), deliveries, s, 1, nil)

	results := ack.byTag()
	assert.Equal(t, ackResult{tag: 1, requeue: false}, results[1], "5xx replies are not retried")
	assert.Equal(t, ackResult{tag: 2, requeue: true}, results[2], "4xx replies are retried")
}

type blockingSender struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSender) Send(to, subject, body string) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil
}

func TestConsumeRequeuesWaitingDeliveryOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery)
	s := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		Consume(ctx, deliveries, s, 1, nil)
		close(done)
	}()

	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"to":"a@woxsen.edu.in","subject":"s","body":"b"}`)}
	<-s.started
	// the only worker is busy, so this delivery waits for a free slot
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`{"to":"b@woxsen.edu.in","subject":"s","body":"b"}`)}

	cancel()
	assert.Eventually(t, func() bool {
		return ack.byTag()[2] == ackResult{tag: 2, requeue: true}
	}, time.Second, 10*time.Millisecond, "waiting delivery should be requeued")

	close(s.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
	assert.Equal(t, ackResult{tag: 1, acked: true}, ack.byTag()[1])
}
