package email

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
)

// Message is the queued form of an outgoing email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Queue hands emails to the mailer worker through a durable AMQP queue, so
// API requests do not wait on the SMTP server.
type Queue struct {
	ch    publisher
	queue string
}

func NewQueue(ch publisher, queue string) *Queue {
	return &Queue{ch: ch, queue: queue}
}

// DeclareQueue makes sure the durable queue exists before publishing or
// consuming.
func DeclareQueue(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

func (q *Queue) IsCorrect(email string) error {
	return IsCorrect(email)
}

func (q *Queue) Send(recipientEmail, subject, body string) error {
	payload, err := json.Marshal(Message{To: recipientEmail, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	err = q.ch.Publish("", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("failed to publish email: %w", err)
	}
	return nil
}

// Sender is implemented by the SMTP and log senders.
type Sender interface {
	Send(recipientEmail, subject, body string) error
}

// Deliver decodes a queued message and sends it with s. Malformed payloads
// return a permanent error.
func Deliver(s Sender, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.To == "" {
		return fmt.Errorf("%w: empty recipient", ErrMalformedMessage)
	}
	return s.Send(msg.To, msg.Subject, msg.Body)
}

var ErrMalformedMessage = errors.New("malformed queued email")
