package email

import (
	"context"
	"errors"
	"log/slog"
	"net/textproto"
	"sync"

	"github.com/streadway/amqp"
	"github.com/vpportal/vpportal/shared/logger"
)

// Consume delivers queued emails with s until ctx is done or deliveries is
// closed, running at most workers sends at once. Transient failures are
// requeued. Malformed messages and permanent SMTP rejections (5xx) are
// dropped. onError is called for every failure. A delivery received while all
// workers are busy is requeued if ctx ends before a worker frees up.
func Consume(ctx context.Context, deliveries <-chan amqp.Delivery, s Sender, workers int, onError func(error)) {
	log := logger.Component("mailer")
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				if err := d.Nack(false, true); err != nil {
					log.Error("failed to nack message", "error", err)
				}
				log.Info("mailer shutting down gracefully")
				return
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				handle(log, d, s, onError)
			}(d)
		case <-ctx.Done():
			log.Info("mailer shutting down gracefully")
			return
		}
	}
}

func handle(log *slog.Logger, d amqp.Delivery, s Sender, onError func(error)) {
	err := Deliver(s, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	if onError != nil {
		onError(err)
	}
	requeue := !permanent(err)
	log.Error("failed to deliver email", "requeue", requeue, "error", err)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Error("failed to nack message", "error", nackErr)
	}
}

// permanent reports failures that a retry cannot fix.
func permanent(err error) bool {
	if errors.Is(err, ErrMalformedMessage) {
		return true
	}
	var smtpErr *textproto.Error
	return errors.As(err, &smtpErr) && smtpErr.Code >= 500
}
