package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaReporter.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaReporter.
type KafkaConfig struct {
	Brokers []string
	Topic   string

	// Service is stamped on every record.
	Service string

	// Buffer is the channel capacity; reports beyond it are dropped.
	Buffer int

	// Workers drain the channel concurrently.
	Workers int

	// WriteTimeout bounds each publish attempt.
	WriteTimeout time.Duration

	// Attempts per record before it is dropped.
	Attempts int
}

// DefaultKafkaConfig returns a config for the given brokers and topic.
func DefaultKafkaConfig(brokers []string, topic string) KafkaConfig {
	return KafkaConfig{
		Brokers:      brokers,
		Topic:        topic,
		Service:      "plashr",
		Buffer:       256,
		Workers:      2,
		WriteTimeout: 5 * time.Second,
		Attempts:     3,
	}
}

// record is the JSON document published per failure.
type record struct {
	Service   string            `json:"service"`
	Component string            `json:"component"`
	Operation string            `json:"operation"`
	Error     string            `json:"error"`
	Cause     string            `json:"cause,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// KafkaReporter publishes failures to a Kafka topic asynchronously.
type KafkaReporter struct {
	writer  MessageWriter
	cfg     KafkaConfig
	logger  zerolog.Logger
	records chan record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// No record enters the buffer once closed is set under mu.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewKafkaReporter creates a reporter backed by a kafka.Writer.
func NewKafkaReporter(cfg KafkaConfig, logger zerolog.Logger) (*KafkaReporter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka reporter: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka reporter: topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return NewKafkaReporterWithWriter(writer, cfg, logger), nil
}

// NewKafkaReporterWithWriter creates a reporter on an existing writer.
func NewKafkaReporterWithWriter(w MessageWriter, cfg KafkaConfig, logger zerolog.Logger) *KafkaReporter {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Service == "" {
		cfg.Service = "plashr"
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &KafkaReporter{
		writer:  w,
		cfg:     cfg,
		logger:  logger.With().Str("reporter", "kafka").Str("topic", cfg.Topic).Logger(),
		records: make(chan record, cfg.Buffer),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

// Report implements Reporter. It never blocks: a full buffer drops the report.
func (r *KafkaReporter) Report(_ context.Context, f Failure) {
	rec := record{
		Service:   r.cfg.Service,
		Component: f.Component,
		Operation: f.Operation,
		Error:     ErrorString(f.Err),
		Attrs:     f.Attrs,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if root := Root(f.Err); root != nil && root != f.Err {
		rec.Cause = root.Error()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		reportsDropped.Inc()
		r.logger.Warn().Str("operation", f.Operation).Msg("Reporter closed, dropping failure report")
		return
	}

	select {
	case r.records <- rec:
		reportsTotal.WithLabelValues("kafka").Inc()
	default:
		reportsDropped.Inc()
		r.logger.Warn().Str("operation", f.Operation).Msg("Report buffer full, dropping failure report")
	}
}

func (r *KafkaReporter) worker(id int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			r.drain(id)
			return
		case rec := <-r.records:
			r.publish(id, rec)
		}
	}
}

// drain publishes whatever is still buffered once Close has been called.
func (r *KafkaReporter) drain(id int) {
	for {
		select {
		case rec := <-r.records:
			r.publish(id, rec)
		default:
			return
		}
	}
}

func (r *KafkaReporter) publish(id int, rec record) {
	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error().Err(err).Int("worker", id).Msg("Failed to marshal failure report")
		return
	}
	msg := kafka.Message{
		Key:   []byte(strings.Join([]string{rec.Component, rec.Operation}, "/")),
		Value: data,
	}

	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
		err = r.writer.WriteMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		r.logger.Warn().Err(err).Int("worker", id).Int("attempt", attempt).Msg("Failed to publish failure report")
	}
	reportsDropped.Inc()
	r.logger.Error().Err(err).Int("worker", id).Msg("Dropping failure report after all attempts")
}

// Close stops accepting reports, flushes the buffer and closes the writer.
func (r *KafkaReporter) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		r.cancel()
		r.wg.Wait()
		err = r.writer.Close()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
