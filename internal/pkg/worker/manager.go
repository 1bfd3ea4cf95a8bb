package worker

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/internal/pkg/entitlement"
	metrics "github.com/hotspotvend/HotspotVend/internal/pkg/metrics/counter"
)

// tickTimeout bounds a single background run so a hung gateway or S3 call
// cannot stall the ticker loop forever.
const tickTimeout = 2 * time.Minute

// Archiver uploads finished ledger days to object storage. The manager only
// ticks it; the archiver decides whether a day is actually due.
type Archiver interface {
	ArchiveDue(ctx context.Context) error
}

// Manager runs the recurring background tasks: expiry sweeps, payment
// reconciliation, counter flushes and ledger archival.
type Manager struct {
	svc      *entitlement.Service
	archiver Archiver

	sweepTicker        *time.Ticker
	reconcileTicker    *time.Ticker
	counterFlushTicker *time.Ticker
	archiveTicker      *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

// NewManager wires the background workers to the entitlement service. The
// archiver may be nil when object storage is not configured, in which case
// the archive worker is simply not started.
func NewManager(svc *entitlement.Service, archiver Archiver) *Manager {
	return &Manager{
		svc:      svc,
		archiver: archiver,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the background workers.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely. Workers hold their own reference because Stop nils
	// the field.
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.running = true
	log.Info("[Worker Manager] Starting background workers")

	sweepInterval := 30 * time.Second // Default fallback
	reconcileInterval := 15 * time.Minute
	if settings := getAppSettings(); settings != nil {
		sweepInterval = time.Duration(settings.GetSweepIntervalSeconds()) * time.Second
		reconcileInterval = time.Duration(settings.GetReconcileIntervalMinutes()) * time.Minute
	}

	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker(stopCh, sweepInterval)

	m.reconcileTicker = time.NewTicker(reconcileInterval)
	m.wg.Add(1)
	go m.reconcileWorker(stopCh, reconcileInterval)

	// Counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker(stopCh)

	// Ledger archive check once per hour; the archiver skips ticks until the
	// previous day is complete.
	if m.archiver != nil {
		m.archiveTicker = time.NewTicker(time.Hour)
		m.wg.Add(1)
		go m.archiveWorker(stopCh)
	}

	log.Info("[Worker Manager] Started successfully")
}

// Stop stops the background workers and waits for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Worker Manager] Stopping background workers...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}
	if m.archiveTicker != nil {
		m.archiveTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	log.Info("[Worker Manager] Stopped successfully")
}

// sweepWorker periodically expires overdue subscriptions and revokes their
// network access.
func (m *Manager) sweepWorker(stopCh <-chan struct{}, interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[Worker Manager] Started sweep worker (interval: %s)", interval)

	for {
		select {
		case <-stopCh:
			log.Info("[Worker Manager] Sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			if err := m.runSweepOnce(); err != nil {
				log.Errorf("[Worker Manager] Sweep error: %v", err)
			}
		}
	}
}

// reconcileWorker periodically looks for completed payments that never got
// their subscription and alerts the operator.
func (m *Manager) reconcileWorker(stopCh <-chan struct{}, interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[Worker Manager] Started reconcile worker (interval: %s)", interval)

	for {
		select {
		case <-stopCh:
			log.Info("[Worker Manager] Reconcile worker stopping")
			return
		case <-m.reconcileTicker.C:
			if err := m.runReconcileOnce(); err != nil {
				log.Errorf("[Worker Manager] Reconcile error: %v", err)
			}
		}
	}
}

// counterFlushWorker periodically flushes accumulated counters from Redis to DB
func (m *Manager) counterFlushWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[Worker Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[Worker Manager] Counter flush error: %v", err)
			}
		}
	}
}

// archiveWorker periodically offers the archiver a chance to upload the
// previous day's ledger.
func (m *Manager) archiveWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[Worker Manager] Archive worker stopping")
			return
		case <-m.archiveTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
			err := m.archiver.ArchiveDue(ctx)
			cancel()
			if err != nil {
				log.Errorf("[Worker Manager] Ledger archive error: %v", err)
			}
		}
	}
}

func (m *Manager) runSweepOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	res, err := m.svc.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if res.Expired > 0 {
		log.Infof("[Worker Manager] Sweep expired %d subscription(s), revoked %d", res.Expired, res.Revoked)
	}
	return nil
}

func (m *Manager) runReconcileOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	_, err := m.svc.ReconcileOrphanedPayments(ctx)
	return err
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunSweepOnce exposes a manual trigger for a single expiry sweep (admin use).
func (m *Manager) RunSweepOnce() error {
	return m.runSweepOnce()
}

// RunReconcileOnce exposes a manual trigger for a single reconciliation pass (admin use).
func (m *Manager) RunReconcileOnce() error {
	return m.runReconcileOnce()
}

// getAppSettings safely returns the current app settings
func getAppSettings() *models.AppSettings {
	return models.GetAppSettings()
}
