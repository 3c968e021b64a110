package notify

import (
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/loomkg/loom/internal/util"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/orchestrator"
)

const notifyExchange = "run_notifications"

// Init connects to RabbitMQ using the standard environment variables.
func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := "amqp://" + user + ":" + pass + "@" + host + ":" + port + "/"

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// AMQPNotifier publishes run records to a topic exchange with the
// conversation id as routing key, so external consumers can subscribe per
// conversation. Publish failures are logged and dropped.
type AMQPNotifier struct {
	conn *amqp091.Connection
}

// NewAMQPNotifier declares the notification exchange and returns the
// notifier.
func NewAMQPNotifier(conn *amqp091.Connection) (*AMQPNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		notifyExchange,
		"topic",
		false, // durable
		true,  // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &AMQPNotifier{conn: conn}, nil
}

func (n *AMQPNotifier) publish(record Record) {
	body, err := json.Marshal(record)
	if err != nil {
		logger.Error("failed to encode notification", "err", err)
		return
	}

	ch, err := n.conn.Channel()
	if err != nil {
		logger.Error("failed to open channel for notification", "err", err)
		return
	}
	defer ch.Close()

	err = util.RetryErr(3, func() error {
		return ch.Publish(
			notifyExchange,
			record.ConversationID,
			false, // mandatory
			false, // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp091.Persistent,
				Timestamp:    time.Now(),
			},
		)
	})
	if err != nil {
		logger.Error("failed to publish notification", "err", err)
	}
}

func (n *AMQPNotifier) Status(conversationID, runID, message string) {
	n.publish(statusRecord(conversationID, runID, message))
}

func (n *AMQPNotifier) Error(conversationID, runID, message string) {
	n.publish(errorRecord(conversationID, runID, message))
}

func (n *AMQPNotifier) Result(conversationID, runID string, result *orchestrator.RunResult) {
	n.publish(resultRecord(conversationID, runID, result))
}
