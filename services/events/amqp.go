package eventsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/purchase"
)

// AMQPBus reads and writes payment messages on a RabbitMQ topic exchange.
type AMQPBus struct {
	conn       *amqp.Connection
	exchange   string
	routingKey string
	logger     core.Logger
}

var (
	_ purchase.Events = (*AMQPBus)(nil)
	_ Publisher       = (*AMQPBus)(nil)
)

func NewAMQPBus(conf *core.Config, logger core.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(conf.Events.AMQPURL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to RabbitMQ")
	}

	bus := &AMQPBus{
		conn:       conn,
		exchange:   conf.Events.Exchange,
		routingKey: conf.Events.RoutingKey,
		logger:     logger,
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	defer func() { _ = ch.Close() }()
	if err = bus.declareExchange(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return bus, nil
}

func (bus *AMQPBus) declareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		bus.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	return errors.Wrapf(err, "declaring exchange %s", bus.exchange)
}

// Subscribe binds a private queue to the exchange; it is deleted once ctx is done.
func (bus *AMQPBus) Subscribe(ctx context.Context) (<-chan purchase.Message, error) {
	ch, err := bus.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "opening channel")
	}
	if err = ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "setting QoS")
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "declaring queue")
	}
	if err = ch.QueueBind(q.Name, bus.routingKey, bus.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, errors.Wrapf(err, "binding queue %s", q.Name)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer tag
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, errors.Wrapf(err, "consuming queue %s", q.Name)
	}

	out := make(chan purchase.Message)
	go func() {
		defer close(out)
		defer func() { _ = ch.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				msg, err := DecodeMessage(d.Body)
				if err != nil {
					bus.logger.Warn("dropping malformed payment message", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (bus *AMQPBus) Publish(ctx context.Context, msg purchase.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding payment message")
	}
	ch, err := bus.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "opening channel")
	}
	defer func() { _ = ch.Close() }()

	err = ch.PublishWithContext(ctx, bus.exchange, bus.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	return errors.Wrap(err, "publishing payment message")
}

func (bus *AMQPBus) Close() error {
	return bus.conn.Close()
}

// DecodeMessage parses a JSON payment message.
func DecodeMessage(body []byte) (purchase.Message, error) {
	var msg purchase.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, errors.Wrap(err, "decoding payment message")
	}
	return msg, nil
}
