package chainclient

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/metrics"
)

const (
	// inflightMaxAge bounds how long a signature is re-polled before being
	// dropped as permanently unknown.
	inflightMaxAge = 5 * time.Minute
)

type inflightEntry struct {
	sig       solana.Signature
	taskID    string
	submitted time.Time
}

// InflightMonitor re-polls signatures whose synchronous confirmation window
// expired. A transaction that times out during execution may still land later;
// the monitor settles its final status in the background so operators are not
// left guessing.
type InflightMonitor struct {
	client   *Client
	logger   logger.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[solana.Signature]inflightEntry

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewInflightMonitor(client *Client, interval time.Duration, log logger.Logger) *InflightMonitor {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &InflightMonitor{
		client:   client,
		logger:   log,
		interval: interval,
		entries:  make(map[solana.Signature]inflightEntry),
		stopChan: make(chan struct{}),
	}
}

// Track registers a signature for background settlement.
func (m *InflightMonitor) Track(sig solana.Signature, taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[sig]; ok {
		return
	}
	m.entries[sig] = inflightEntry{sig: sig, taskID: taskID, submitted: time.Now()}
	metrics.InflightTransactions.Set(float64(len(m.entries)))
	m.logger.InfoWith(logger.RPC, "tracking unconfirmed transaction %s (task %s)", sig, taskID)
}

// Pending returns the number of signatures still being watched.
func (m *InflightMonitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *InflightMonitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.loop(ctx)
}

func (m *InflightMonitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()
}

func (m *InflightMonitor) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *InflightMonitor) sweep(ctx context.Context) {
	m.mu.Lock()
	batch := make([]inflightEntry, 0, len(m.entries))
	for _, e := range m.entries {
		batch = append(batch, e)
	}
	m.mu.Unlock()

	for _, e := range batch {
		status, err := m.client.SignatureStatus(ctx, e.sig)
		if err != nil {
			continue
		}
		switch status {
		case StatusConfirmed:
			m.logger.NoticeWith(logger.RPC, "late confirmation for %s (task %s)", e.sig, e.taskID)
			metrics.LateConfirmations.Inc()
			m.remove(e.sig)
		case StatusFailed:
			m.logger.ErrorWith(logger.RPC, "late failure for %s (task %s)", e.sig, e.taskID)
			m.remove(e.sig)
		case StatusPending:
			if time.Since(e.submitted) > inflightMaxAge {
				m.logger.ErrorWith(logger.RPC, "dropping stale unconfirmed transaction %s (task %s)", e.sig, e.taskID)
				m.remove(e.sig)
			}
		}
	}
}

func (m *InflightMonitor) remove(sig solana.Signature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sig)
	metrics.InflightTransactions.Set(float64(len(m.entries)))
}
