package rabbit

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	logging "interviewprep/pkg/logger/pkg"
)

type Rabbit interface {
	Publish(ctx context.Context, body []byte) error
}

// Config carries broker connection settings. A nil config yields a Dummy
// publisher so the pipeline works without a broker.
type Config struct {
	Address      string
	Port         int
	Username     string
	Password     string
	PublishQueue string
	ExpireTime   int32
}

type rabbit struct {
	connectionUrl string
	publishQueue  string
	expireTime    int32
}

func New(cfg *Config) Rabbit {
	if cfg == nil {
		return &Dummy{}
	}

	connectionUrl := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.Username, cfg.Password, cfg.Address, cfg.Port)
	return &rabbit{
		connectionUrl: connectionUrl,
		publishQueue:  cfg.PublishQueue,
		expireTime:    cfg.ExpireTime,
	}
}

func (r *rabbit) Publish(ctx context.Context, body []byte) error {
	conn, err := amqp.Dial(r.connectionUrl)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(r.publishQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	err = ch.Publish("", q.Name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Expiration:  fmt.Sprintf("%d", r.expireTime),
	})
	if err != nil {
		return err
	}

	logging.Logger(ctx).Info(fmt.Sprintf("Sent: %s", string(body)))
	return nil
}
