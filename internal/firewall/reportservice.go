package firewall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"

	"github.com/r3dlight/couic/common"
	"github.com/r3dlight/couic/internal/logging"
)

// ReportJobQueueCapacity is the bounded channel depth for the Report
// Service: a bounded-queue, batched HTTP POST to a webhook;
// 2^12, a quarter of the Peer Service's depth since reports are a
// secondary observability path, not the propagation fast path.
const ReportJobQueueCapacity = 1 << 12

// ReportService batches Reports and delivers them to a webhook and,
// optionally, a Kafka topic via sarama, with the same bounded-queue/backoff
// shape as PeerService.
type ReportService struct {
	jobs    chan common.Report
	webhook string
	client  *http.Client
	logger  *logging.Logger

	producer sarama.SyncProducer
	topic    string

	mtx    sync.Mutex
	buffer []common.Report
}

// NewReportService builds a report sink. producer/topic may be nil/empty
// if Kafka reporting is not configured.
func NewReportService(webhook string, producer sarama.SyncProducer, topic string, lgr *logging.Logger) *ReportService {
	return &ReportService{
		jobs:     make(chan common.Report, ReportJobQueueCapacity),
		webhook:  webhook,
		client:   &http.Client{Timeout: 2 * time.Second},
		logger:   lgr,
		producer: producer,
		topic:    topic,
	}
}

func (r *ReportService) Enqueue(rep common.Report) {
	select {
	case r.jobs <- rep:
	default:
		if r.logger != nil {
			r.logger.Warn("report queue full, dropping report", logging.KV("cidr", rep.Entry.Cidr.String()))
		}
	}
}

func (r *ReportService) Run(stop <-chan struct{}) {
	flush := time.NewTicker(2 * time.Second)
	defer flush.Stop()
	for {
		select {
		case <-stop:
			r.flush()
			return
		case rep := <-r.jobs:
			r.mtx.Lock()
			r.buffer = append(r.buffer, rep)
			r.mtx.Unlock()
		case <-flush.C:
			r.flush()
		}
	}
}

func (r *ReportService) flush() {
	r.mtx.Lock()
	if len(r.buffer) == 0 {
		r.mtx.Unlock()
		return
	}
	batch := r.buffer
	r.buffer = nil
	r.mtx.Unlock()

	if r.webhook != "" {
		r.sendWebhook(batch)
	}
	if r.producer != nil && r.topic != "" {
		r.sendKafka(batch)
	}
}

func (r *ReportService) sendWebhook(batch []common.Report) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 5 * time.Minute

	op := func() error {
		body, err := json.Marshal(batch)
		if err != nil {
			return backoff.Permanent(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhook, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
		}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil && r.logger != nil {
		r.logger.Errorf("report webhook: giving up on batch of %d reports: %v", len(batch), err)
	}
}

func (r *ReportService) sendKafka(batch []common.Report) {
	for _, rep := range batch {
		body, err := json.Marshal(rep)
		if err != nil {
			if r.logger != nil {
				r.logger.Errorf("marshaling report for kafka: %v", err)
			}
			continue
		}
		msg := &sarama.ProducerMessage{
			Topic: r.topic,
			Value: sarama.ByteEncoder(body),
		}
		if _, _, err := r.producer.SendMessage(msg); err != nil && r.logger != nil {
			r.logger.Errorf("kafka report: %v", err)
		}
	}
}
