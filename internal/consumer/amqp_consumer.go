package consumer

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Holds the config params for the consumer
type AMQPConfig struct {
	AMQPUri  string
	Exchange string

	ThumbsGenQueueName string
	ThumbsDelQueueName string
}

type AMQPConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	config    AMQPConfig
	processor RequestProcessor
}

// Creates a new AMQPConsumer instance ready to connect to broker
func NewAMQPConsumer(
	config AMQPConfig,
	processor RequestProcessor,
) (*AMQPConsumer, error) {

	if config.AMQPUri == "" {
		return nil, fmt.Errorf("AMQP URI cannot be empty in config")
	}
	if config.Exchange == "" {
		return nil, fmt.Errorf("AMQP exchange cannot be empty in config")
	}
	if config.ThumbsGenQueueName == "" {
		return nil, fmt.Errorf(
			"AMQP thumbs generation queue name cannot be empty in config",
		)
	}
	if config.ThumbsDelQueueName == "" {
		return nil, fmt.Errorf(
			"AMQP thumbs delete queue name cannot be empty in config",
		)
	}
	if processor == nil {
		return nil, fmt.Errorf("AMQP request processor cannot be nil")
	}

	return &AMQPConsumer{
		config:    config,
		processor: processor,
	}, nil
}

// Connects to AMQP broker, declares exchange and queues and
// starts consuming messages
func (c *AMQPConsumer) Start(ctx context.Context) error {
	slog.Debug("AMQP - Initializing AMQP Consumer")

	var err error
	c.conn, err = amqp.Dial(c.config.AMQPUri)
	if err != nil {
		return fmt.Errorf("AMQP - Connection to broker failed: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("AMQP - Failed to open channel: %w", err)
	}

	if err := c.declareTopology(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	genMsgs, err := c.consume(c.config.ThumbsGenQueueName, "thumbforge-gen")
	if err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf(
			"AMQP - Failed to create thumbs gen queue consumer: %w",
			err,
		)
	}

	delMsgs, err := c.consume(c.config.ThumbsDelQueueName, "thumbforge-del")
	if err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf(
			"AMQP - Failed to create thumbs del queue consumer: %w",
			err,
		)
	}

	go c.serve(ctx, genMsgs, delMsgs)
	return nil
}

// Gracefully stops the AMQP consumer
func (c *AMQPConsumer) Stop() {
	slog.Info("AMQP - Stopping AMQP Consumer...")

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			slog.Error("AMQP - Failed to close channel", "error", err)
		} else {
			slog.Debug("AMQP - Channel closed")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			slog.Error("AMQP - Failed to close connection", "error", err)
		} else {
			slog.Debug("AMQP - Connection closed")
		}
	}

	slog.Info("AMQP - AMQP Consumer stopped")
}

func (c *AMQPConsumer) declareTopology() error {
	err := c.channel.ExchangeDeclare(
		c.config.Exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("AMQP - Failed to declare exchange: %w", err)
	}

	for _, queueName := range []string{
		c.config.ThumbsGenQueueName,
		c.config.ThumbsDelQueueName,
	} {
		_, err := c.channel.QueueDeclare(
			queueName,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf(
				"AMQP - Failed to declare queue %s: %w",
				queueName,
				err,
			)
		}

		err = c.channel.QueueBind(
			queueName,         // Queue
			queueName,         // Routing key
			c.config.Exchange, // Exchange
			false,             // No-wait
			nil,               // Arguments
		)
		if err != nil {
			return fmt.Errorf(
				"AMQP - Failed to bind queue %s: %w",
				queueName,
				err,
			)
		}
	}

	return nil
}

func (c *AMQPConsumer) consume(
	queueName string,
	consumerTag string,
) (<-chan amqp.Delivery, error) {
	return c.channel.Consume(
		queueName,
		consumerTag,
		false, // Auto-acknowledge
		false, // Exclusive
		false, // No-local
		false, // No-wait
		nil,   // Arguments
	)
}

// serve handles both queues from a single goroutine so two requests never
// touch the same thumbnail at once.
func (c *AMQPConsumer) serve(
	ctx context.Context,
	genMsgs <-chan amqp.Delivery,
	delMsgs <-chan amqp.Delivery,
) {
	for {
		select {
		case msg, ok := <-genMsgs:
			if !ok {
				slog.Info(
					"AMQP - Thumbs gen message channel closed. goroutine exiting",
				)
				return
			}
			settle(msg, "gen", c.processor.ProcessGenRequest(msg.Body))

		case msg, ok := <-delMsgs:
			if !ok {
				slog.Info(
					"AMQP - Thumbs del message channel closed. goroutine exiting",
				)
				return
			}
			settle(msg, "del", c.processor.ProcessDelRequest(msg.Body))

		case <-ctx.Done():
			slog.Info(
				"AMQP - Context done signal received, " +
					"stopping thumbs consumption goroutine...",
			)
			return
		}
	}
}

// settle acks processed messages and rejects failed ones without requeue.
func settle(msg amqp.Delivery, queue string, processErr error) {
	if processErr != nil {
		slog.Error(
			"AMQP - Failed to process thumbs request",
			"queue", queue,
			"error", processErr,
			"message", string(msg.Body),
		)

		if nackErr := msg.Nack(false, false); nackErr != nil {
			slog.Error(
				"AMQP - Failed to nack thumbs message",
				"queue", queue,
				"error", nackErr,
			)
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error(
			"AMQP - Failed to acknowledge thumbs message",
			"queue", queue,
			"error", err,
		)
	}
}
