package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ 提供消息队列功能，抽取结果经它发往下游
// accepted走入库消费者，review走人工复核队列（外部协作方消费）
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
}

// NewRabbitMQ 创建RabbitMQ客户端并声明抽取结果的拓扑
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器 (%s): %w", cfg.URL, err)
	}

	mq := &RabbitMQ{conn: conn, cfg: cfg}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, poolErr := conn.Channel()
			if poolErr != nil {
				logger.Error().Err(poolErr).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	if err := mq.declareTopology(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().Str("url", cfg.URL).Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

// declareTopology 声明交换机、复核队列及其绑定
func (r *RabbitMQ) declareTopology() error {
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法创建RabbitMQ通道")
	}
	defer r.putChannel(ch)

	if err := ch.ExchangeDeclare(r.cfg.ExtractionExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明交换机 %s 失败: %w", r.cfg.ExtractionExchange, err)
	}

	if r.cfg.ReviewQueue != "" {
		if _, err := ch.QueueDeclare(r.cfg.ReviewQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("声明复核队列 %s 失败: %w", r.cfg.ReviewQueue, err)
		}
		if err := ch.QueueBind(r.cfg.ReviewQueue, r.cfg.ReviewRoutingKey, r.cfg.ExtractionExchange, false, nil); err != nil {
			return fmt.Errorf("绑定复核队列失败: %w", err)
		}
	}
	return nil
}

// getChannel 获取可用通道
func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			logger.Error().Err(err).Msg("创建新RabbitMQ通道失败")
			return nil
		}
		return newCh
	}
	return ch.(*amqp.Channel)
}

// putChannel 归还通道到池
func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// PublishMessage 发布持久化消息
func (r *RabbitMQ) PublishMessage(ctx context.Context, routingKey string, message []byte) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	return ch.PublishWithContext(
		ctx,
		r.cfg.ExtractionExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: 2,
			ContentType:  "application/json",
			Body:         message,
			Timestamp:    time.Now(),
		},
	)
}

// PublishJSON 发布JSON格式的消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, routingKey string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	return r.PublishMessage(ctx, routingKey, jsonData)
}

// RoutingKeyForStatus 按结果状态选择路由键
func (r *RabbitMQ) RoutingKeyForStatus(status string) string {
	if status == constants.StatusAccepted {
		return r.cfg.AcceptedRoutingKey
	}
	return r.cfg.ReviewRoutingKey
}
