package firewall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/r3dlight/couic/common"
	"github.com/r3dlight/couic/internal/logging"
)

// PeerJobQueueCapacity is the bounded channel depth for the Peer Service:
// a bounded queue, dedup-set, batched forward to N remote peers. 2^14,
// sized the way an ingest muxer sizes its entry channels relative to
// expected burst rate.
const PeerJobQueueCapacity = 1 << 14

// PeerConfig names one remote peer instance.
type PeerConfig struct {
	Host        string
	Port        int
	TLS         bool
	Token       uuid.UUID
	SignBatches bool
	Secret      string
}

func (p PeerConfig) url() string {
	scheme := "http"
	if p.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/v1/drop/peer", scheme, p.Host, p.Port)
}

// PeerService batches PeerJobs and forwards them to every configured peer,
// deduplicating by full equality within a batch, with backpressure
// (drop-new-on-full) and exponential backoff on delivery failure
// bounded queue, dedup, backoff.
type PeerService struct {
	jobs   chan common.PeerJob
	peers  []PeerConfig
	client *http.Client
	logger *logging.Logger

	mtx    sync.Mutex
	buffer map[string]common.PeerJob
}

func NewPeerService(peers []PeerConfig, lgr *logging.Logger) *PeerService {
	return &PeerService{
		jobs:   make(chan common.PeerJob, PeerJobQueueCapacity),
		peers:  peers,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: lgr,
		buffer: make(map[string]common.PeerJob),
	}
}

// Enqueue offers a job to the bounded channel; if full, the job is
// dropped and the drop is logged (drop-new-on-full backpressure).
func (p *PeerService) Enqueue(job common.PeerJob) {
	select {
	case p.jobs <- job:
	default:
		if p.logger != nil {
			p.logger.Warn("peer queue full, dropping job", logging.KV("cidr", job.Entry.Cidr.String()))
		}
	}
}

// Run drains jobs into a dedup buffer and flushes on a fixed interval
// until stop is closed.
func (p *PeerService) Run(stop <-chan struct{}) {
	flush := time.NewTicker(2 * time.Second)
	defer flush.Stop()
	for {
		select {
		case <-stop:
			p.flush()
			return
		case job := <-p.jobs:
			p.mtx.Lock()
			p.buffer[job.DedupKey()] = job
			p.mtx.Unlock()
		case <-flush.C:
			p.flush()
		}
	}
}

func (p *PeerService) flush() {
	p.mtx.Lock()
	if len(p.buffer) == 0 {
		p.mtx.Unlock()
		return
	}
	batch := make([]common.PeerJob, 0, len(p.buffer))
	for _, j := range p.buffer {
		batch = append(batch, j)
	}
	p.buffer = make(map[string]common.PeerJob)
	p.mtx.Unlock()

	for _, peer := range p.peers {
		p.sendBatch(peer, batch)
	}
}

func (p *PeerService) sendBatch(peer PeerConfig, batch []common.PeerJob) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 5 * time.Minute

	op := func() error {
		return p.postBatch(peer, batch)
	}
	if err := backoff.Retry(op, bo); err != nil && p.logger != nil {
		p.logger.Errorf("peer %s: giving up forwarding batch of %d jobs: %v", peer.Host, len(batch), err)
	}
}

func (p *PeerService) postBatch(peer PeerConfig, batch []common.PeerJob) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return backoff.Permanent(err)
	}
	if peer.SignBatches {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iat": time.Now().Unix(),
			"len": len(batch),
		})
		signed, err := token.SignedString([]byte(peer.Secret))
		if err != nil {
			return backoff.Permanent(err)
		}
		body, err = json.Marshal(struct {
			Envelope string          `json:"envelope"`
			Jobs     json.RawMessage `json:"jobs"`
		}{Envelope: signed, Jobs: body})
		if err != nil {
			return backoff.Permanent(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer.url(), bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+peer.Token.String())

	resp, err := p.client.Do(req)
	if err != nil {
		return err // transient, retry
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("peer %s returned %d", peer.Host, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("peer %s returned %d", peer.Host, resp.StatusCode))
	}
	return nil
}
