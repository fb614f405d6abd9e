package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQQueue RabbitMQ 队列实现
// 单一 Consumer 供所有 Worker 共享，通过 QoS prefetchCount 控制并发，手动 Ack/Nack
type RabbitMQQueue struct {
	url       string
	queueName string
	prefetch  int
	logger    *slog.Logger
	closeOnce sync.Once
	closed    chan struct{}

	publishConn    *amqp.Connection
	publishChannel *amqp.Channel
	publishMutex   sync.Mutex

	consumeConn    *amqp.Connection
	consumeChannel *amqp.Channel
	deliveries     <-chan amqp.Delivery

	// RabbitMQ Channel 不是并发安全的
	ackMutex sync.Mutex
}

// NewRabbitMQQueue 创建 RabbitMQ 队列
func NewRabbitMQQueue(url, queueName string, prefetch int, logger *slog.Logger) (*RabbitMQQueue, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	rq := &RabbitMQQueue{
		url:       url,
		queueName: queueName,
		prefetch:  prefetch,
		logger:    logger.With(slog.String("queue", queueName)),
		closed:    make(chan struct{}),
	}

	if err := rq.setupPublisher(); err != nil {
		return nil, fmt.Errorf("初始化发布者失败: %w", err)
	}
	if err := rq.setupConsumer(); err != nil {
		rq.closePublisher()
		return nil, fmt.Errorf("初始化消费者失败: %w", err)
	}

	rq.logger.Info("✓ RabbitMQ 队列初始化成功", slog.Int("prefetch", prefetch))
	return rq, nil
}

func (rq *RabbitMQQueue) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(rq.url)
	if err != nil {
		return nil, nil, fmt.Errorf("连接失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("创建 RabbitMQ Channel 失败: %w", err)
	}
	// 持久化队列，声明是幂等的
	if _, err := ch.QueueDeclare(rq.queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("声明队列失败: %w", err)
	}
	return conn, ch, nil
}

func (rq *RabbitMQQueue) setupPublisher() error {
	conn, ch, err := rq.dial()
	if err != nil {
		return err
	}
	rq.publishConn = conn
	rq.publishChannel = ch
	return nil
}

func (rq *RabbitMQQueue) setupConsumer() error {
	conn, ch, err := rq.dial()
	if err != nil {
		return err
	}

	// 预取数量 = Worker 数量，每个 Worker 同时只持有一条未确认消息
	if err := ch.Qos(rq.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("设置 QoS 失败: %w", err)
	}

	deliveries, err := ch.Consume(
		rq.queueName,
		"ytscribe-worker",
		false, // autoAck: 手动确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("启动消费失败: %w", err)
	}

	rq.consumeConn = conn
	rq.consumeChannel = ch
	rq.deliveries = deliveries
	return nil
}

// Enqueue 将任务加入队列
func (rq *RabbitMQQueue) Enqueue(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rq.publishMutex.Lock()
	defer rq.publishMutex.Unlock()

	err = rq.publishChannel.PublishWithContext(ctx, "", rq.queueName, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    task.JobID,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Dequeue 从共享的 deliveries 读取一条消息
func (rq *RabbitMQQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-rq.closed:
			return nil, ErrClosed
		case d, ok := <-rq.deliveries:
			if !ok {
				return nil, ErrClosed
			}
			task, err := decodeTask(d.Body)
			if err != nil {
				rq.logger.Error("❌ 丢弃无法解析的消息", slog.Any("error", err))
				rq.nack(d.DeliveryTag, false)
				continue
			}
			tag := d.DeliveryTag
			return &Delivery{
				Task: task,
				ack:  func() error { return rq.ack(tag) },
				nack: func(requeue bool) error { return rq.nack(tag, requeue) },
			}, nil
		}
	}
}

func decodeTask(body []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return Task{}, fmt.Errorf("反序列化任务失败: %w", err)
	}
	if task.JobID == "" || task.URL == "" {
		return Task{}, fmt.Errorf("消息缺少 job_id 或 url")
	}
	return task, nil
}

func (rq *RabbitMQQueue) ack(tag uint64) error {
	rq.ackMutex.Lock()
	defer rq.ackMutex.Unlock()
	return rq.consumeChannel.Ack(tag, false)
}

func (rq *RabbitMQQueue) nack(tag uint64, requeue bool) error {
	rq.ackMutex.Lock()
	defer rq.ackMutex.Unlock()
	return rq.consumeChannel.Nack(tag, false, requeue)
}

// Close 关闭队列
func (rq *RabbitMQQueue) Close() error {
	rq.closeOnce.Do(func() {
		close(rq.closed)
		if rq.consumeChannel != nil {
			rq.consumeChannel.Close()
		}
		if rq.consumeConn != nil {
			rq.consumeConn.Close()
		}
		rq.closePublisher()
		rq.logger.Info("✓ RabbitMQ 队列已关闭")
	})
	return nil
}

func (rq *RabbitMQQueue) closePublisher() {
	if rq.publishChannel != nil {
		rq.publishChannel.Close()
	}
	if rq.publishConn != nil {
		rq.publishConn.Close()
	}
}
