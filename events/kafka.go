package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

type KafkaPublisherConfig struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher зеркалирует поток событий в Kafka с контрактом
// at-least-once; сбой доставки логируется и не влияет на ядро.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewKafkaPublisher(cfg KafkaPublisherConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	p := &KafkaPublisher{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for prodErr := range producer.Errors() {
			p.logger.Error("failed to publish event to kafka", slog.Any("error", prodErr.Err))
		}
	}()

	return p, nil
}

// Handle реализует events.Handler; регистрируется через Bus.SubscribeAll.
func (p *KafkaPublisher) Handle(e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("failed to encode event for kafka",
			slog.String("event_type", string(e.Type)),
			slog.Any("error", err))
		return
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Type),
		Value: sarama.ByteEncoder(value),
	}
}

func (p *KafkaPublisher) Close() error {
	err := p.producer.Close()
	p.wg.Wait()
	return err
}
