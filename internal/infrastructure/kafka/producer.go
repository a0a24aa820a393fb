// Package kafka публикует события наполнения кэша признаков.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

const eventTypeFeatureCached = "feature_cached"

// featureCachedMessage — формат сообщения в топике.
type featureCachedMessage struct {
	Type         string `json:"type"`
	EventID      string `json:"event_id"`
	ProductID    string `json:"product_id"`
	Model        string `json:"model"`
	Dims         int    `json:"dims"`
	HasHistogram bool   `json:"has_histogram"`
	CachedAt     int64  `json:"cached_at"`
}

type Producer struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka producer error: %s", err.Error())
			}
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}
}

// PublishFeatureCached отправляет событие о новом векторе товара. Ключ сообщения — идентификатор товара.
func (p *Producer) PublishFeatureCached(ctx context.Context, event *domain.FeatureCachedEvent) error {
	value, err := MarshalFeatureCached(event)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ProductID),
		Value: value,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// EnsureTopic создаёт топик, если его ещё нет.
func (p *Producer) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		err := conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, p.cfg.Topic))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// MarshalFeatureCached сериализует событие в JSON.
func MarshalFeatureCached(event *domain.FeatureCachedEvent) ([]byte, error) {
	return json.Marshal(featureCachedMessage{
		Type:         eventTypeFeatureCached,
		EventID:      event.EventID,
		ProductID:    event.ProductID,
		Model:        event.Model,
		Dims:         event.Dims,
		HasHistogram: event.HasHistogram,
		CachedAt:     event.CachedAt.UnixMilli(),
	})
}

// NopPublisher используется, когда Kafka не настроена.
type NopPublisher struct{}

func (NopPublisher) PublishFeatureCached(context.Context, *domain.FeatureCachedEvent) error {
	return nil
}
