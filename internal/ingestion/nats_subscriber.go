package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSSubscriber subscribes to the chain indexer's JetStream subjects and
// feeds contract events into the apply worker via eventChan.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	logger    zerolog.Logger
	consumers []jetstream.ConsumeContext
}

// RawEvent is the untyped event from NATS, ready for the worker to parse
// and apply to the stream mirror.
type RawEvent struct {
	Subject   string
	EventType string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after the apply committed
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to contract event types.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the subject layout published by the indexer:
// one subject per contract event type under soroban.streams.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "soroban.streams.created.>", EventType: "StreamCreated", ConsumerName: "mirror-created", StreamName: "SOROBAN_STREAMS"},
		{Subject: "soroban.streams.topped_up.>", EventType: "StreamToppedUp", ConsumerName: "mirror-topped-up", StreamName: "SOROBAN_STREAMS"},
		{Subject: "soroban.streams.withdrawn.>", EventType: "TokensWithdrawn", ConsumerName: "mirror-withdrawn", StreamName: "SOROBAN_STREAMS"},
		{Subject: "soroban.streams.cancelled.>", EventType: "StreamCancelled", ConsumerName: "mirror-cancelled", StreamName: "SOROBAN_STREAMS"},
		{Subject: "soroban.streams.fees.>", EventType: "FeeCollected", ConsumerName: "mirror-fees", StreamName: "SOROBAN_STREAMS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent, logger zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
		logger:    logger,
	}
}

// Start creates (or binds to) a durable consumer per subject and begins
// consuming. Messages are ACKed only after the worker commits the apply.
func (s *NATSSubscriber) Start(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    -1,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		eventType := cfg.EventType
		cc, err := consumer.Consume(func(msg jetstream.Msg) {
			meta, err := msg.Metadata()
			received := time.Now()
			if err == nil {
				received = meta.Timestamp
			}

			s.eventChan <- RawEvent{
				Subject:   msg.Subject(),
				EventType: eventType,
				Data:      msg.Data(),
				Timestamp: received,
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.Subject, err)
		}

		s.consumers = append(s.consumers, cc)
		s.logger.Info().
			Str("subject", cfg.Subject).
			Str("consumer", cfg.ConsumerName).
			Msg("consumer started")
	}

	return nil
}

// Stop drains all consumers.
func (s *NATSSubscriber) Stop() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
}

// EnsureStreams creates the inbound JetStream stream if it doesn't exist.
// Retention is limits-based so slow mirrors don't block the indexer.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SOROBAN_STREAMS",
		Subjects:  []string{"soroban.streams.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream SOROBAN_STREAMS: %w", err)
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
