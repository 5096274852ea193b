package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

type amqpDispatcher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	workers int
	wg      sync.WaitGroup
	logger  *log.Entry
}

// NewAmqp задачи публикуются в устойчивую очередь брокера и разбираются workers исполнителями
func NewAmqp(url, queueName string, workers int) (Provider, error) {
	if workers < 1 {
		workers = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка подключения к брокеру")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "ошибка открытия канала")
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "ошибка объявления очереди")
	}
	// не больше workers неподтвержденных задач на канал
	if err = ch.Qos(workers, 0, false); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "ошибка настройки канала")
	}
	return &amqpDispatcher{
		conn:    conn,
		channel: ch,
		queue:   q,
		workers: workers,
		logger:  log.WithField("dispatcher", "amqp").WithField("queue", queueName),
	}, nil
}

func (a *amqpDispatcher) Submit(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.channel.PublishWithContext(ctx,
		"",           // exchange
		a.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (a *amqpDispatcher) Start(ctx context.Context, handler Handler) error {
	msgs, err := a.channel.Consume(
		a.queue.Name,
		"",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "ошибка регистрации получателя")
	}
	for n := 0; n < a.workers; n++ {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					a.handle(ctx, handler, d)
				}
			}
		}()
	}
	go func() {
		<-ctx.Done()
		a.wg.Wait()
		a.channel.Close()
		a.conn.Close()
	}()
	a.logger.WithField("workers", a.workers).Info("получатель задач запущен")
	return nil
}

func (a *amqpDispatcher) handle(ctx context.Context, handler Handler, d amqp.Delivery) {
	var task Task
	if err := json.Unmarshal(d.Body, &task); err != nil {
		a.logger.WithError(err).Error("некорректный формат задачи")
		_ = d.Nack(false, false)
		return
	}
	// ошибка этапа уже сохранена в статусе ответа, задача подтверждается
	runTask(ctx, handler, task, a.logger)
	if err := d.Ack(false); err != nil {
		a.logger.WithError(err).Error("ошибка подтверждения задачи")
	}
}

func (a *amqpDispatcher) Wait() {
	a.wg.Wait()
}
