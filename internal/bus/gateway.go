package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// ErrConsumerClosed is returned by Run when the broker stops delivering.
var ErrConsumerClosed = errors.New("delivery channel closed")

// Handler turns an inbound message into a reply. *engine.Pipeline satisfies it.
type Handler interface {
	Process(ctx context.Context, msg model.InboundMessage) model.Reply
}

// channel is the subset of *amqp.Channel the gateway uses.
type channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Config describes the gateway topology.
type Config struct {
	Exchange      string
	Queue         string
	RoutingKey    string
	ReplyExchange string
	Prefetch      int
	// HandleTimeout bounds processing of one delivery.
	HandleTimeout time.Duration
}

// Gateway consumes chat events and publishes replies.
type Gateway struct {
	ch      channel
	conn    *amqp.Connection
	handler Handler
	logger  *slog.Logger
	now     func() time.Time
	tag     string
	cfg     Config
}

// Dial connects to the broker at url.
func Dial(url string, cfg Config, handler Handler, logger *slog.Logger) (*Gateway, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	g := newGateway(ch, cfg, handler, logger)
	g.conn = conn
	return g, nil
}

func newGateway(ch channel, cfg Config, handler Handler, logger *slog.Logger) *Gateway {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 2 * time.Minute
	}
	return &Gateway{
		ch:      ch,
		handler: handler,
		logger:  common.OrDefault(logger),
		now:     time.Now,
		tag:     "chatledger-" + uuid.NewString(),
		cfg:     cfg,
	}
}

// Setup declares exchanges and the inbound queue and applies the prefetch
// limit.
func (g *Gateway) Setup() error {
	if err := g.ch.Qos(g.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	for _, ex := range []string{g.cfg.Exchange, g.cfg.ReplyExchange} {
		if err := g.ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", ex, err)
		}
	}
	q, err := g.ch.QueueDeclare(g.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", g.cfg.Queue, err)
	}
	if err := g.ch.QueueBind(q.Name, g.cfg.RoutingKey, g.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
	}
	return nil
}

// Run consumes until ctx is cancelled, processing at most Prefetch deliveries
// at once. In-flight deliveries finish before Run returns.
func (g *Gateway) Run(ctx context.Context) error {
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	deliveries, err := g.ch.ConsumeWithContext(consumeCtx, g.cfg.Queue, g.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	g.logger.Info("consuming chat events", "queue", g.cfg.Queue, "prefetch", g.cfg.Prefetch)

	var eg errgroup.Group
	eg.SetLimit(g.cfg.Prefetch)

	runErr := func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case d, ok := <-deliveries:
				if !ok {
					return ErrConsumerClosed
				}
				eg.Go(func() error {
					g.handle(ctx, d)
					return nil
				})
			}
		}
	}()

	_ = eg.Wait()
	g.logger.Info("consumer stopped", "queue", g.cfg.Queue)
	return runErr
}

// handle processes one delivery. Processing continues past shutdown so a
// commit is never abandoned halfway; the reply is then published and the
// delivery acked.
func (g *Gateway) handle(ctx context.Context, d amqp.Delivery) {
	msg, err := decode(d)
	if err != nil {
		g.logger.Warn("dropping undecodable chat event",
			"delivery_tag", d.DeliveryTag,
			"routing_key", d.RoutingKey,
			"error", err)
		if ackErr := d.Ack(false); ackErr != nil {
			g.logger.Error("failed to ack poison message", "error", ackErr)
		}
		return
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.HandleTimeout)
	defer cancel()

	reply := g.handler.Process(hctx, msg)
	if err := g.publish(hctx, d, msg, reply); err != nil {
		g.logger.Error("failed to publish reply, requeueing",
			"message_id", msg.MessageID,
			"error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			g.logger.Error("failed to nack delivery", "error", nackErr)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		g.logger.Error("failed to ack delivery", "message_id", msg.MessageID, "error", err)
		return
	}
	g.logger.Debug("handled chat event",
		"message_id", msg.MessageID,
		"status", reply.Status,
		"duplicate", reply.Duplicate)
}

func (g *Gateway) publish(ctx context.Context, d amqp.Delivery, msg model.InboundMessage, reply model.Reply) error {
	body, err := json.Marshal(newReplyEvent(msg, reply, g.now()))
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}

	correlationID := d.CorrelationId
	if correlationID == "" {
		correlationID = msg.MessageID
	}
	return g.ch.PublishWithContext(ctx, g.cfg.ReplyExchange, replyKey(msg), false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: correlationID,
		Timestamp:     g.now(),
		Body:          body,
	})
}

func decode(d amqp.Delivery) (model.InboundMessage, error) {
	var msg model.InboundMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrPoison, err)
	}
	if msg.MessageID == "" {
		msg.MessageID = d.MessageId
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = d.Timestamp
	}
	if err := checkInbound(msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrPoison, err)
	}
	return msg, nil
}

// Close releases the channel and connection.
func (g *Gateway) Close() error {
	err := g.ch.Close()
	if g.conn != nil {
		if cerr := g.conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			err = errors.Join(err, cerr)
		}
	}
	return err
}
