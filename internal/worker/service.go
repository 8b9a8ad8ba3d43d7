package worker

import (
	"context"
	"sync"
	"time"

	"steadystream/internal/realtime"
	"steadystream/internal/workers"

	"github.com/sirupsen/logrus"
)

// DefaultRestartDelay is the pause before a failed realtime listener is restarted
const DefaultRestartDelay = 30 * time.Second

// WorkerService manages background workers for the application
type WorkerService struct {
	listener    realtime.Listener
	maintenance *workers.MaintenanceWorker
	log         logrus.FieldLogger

	RestartDelay time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	started time.Time
	mu      sync.RWMutex
}

// NewWorkerService creates a new worker service. listener is nil when events
// are delivered in process only.
func NewWorkerService(listener realtime.Listener, maintenance *workers.MaintenanceWorker, log logrus.FieldLogger) *WorkerService {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerService{
		listener:     listener,
		maintenance:  maintenance,
		log:          log,
		RestartDelay: DefaultRestartDelay,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts all background workers
func (ws *WorkerService) Start() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.running {
		return nil
	}

	ws.log.Info("Starting background workers...")

	if ws.listener != nil {
		ws.wg.Add(1)
		go func() {
			defer ws.wg.Done()
			ws.runListener()
		}()
	}

	if ws.maintenance != nil {
		ws.wg.Add(1)
		go func() {
			defer ws.wg.Done()
			ws.runMaintenance()
		}()
	}

	ws.running = true
	ws.started = time.Now()
	ws.log.Info("Background workers started successfully")

	return nil
}

// Stop stops all background workers
func (ws *WorkerService) Stop() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.running {
		return
	}

	ws.log.Info("Stopping background workers...")

	ws.cancel()
	ws.wg.Wait()

	ws.running = false
	ws.log.Info("Background workers stopped")
}

// IsRunning returns whether the worker service is currently running
func (ws *WorkerService) IsRunning() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.running
}

// runListener keeps the realtime listener running, restarting it after errors
func (ws *WorkerService) runListener() {
	ws.log.Info("Starting realtime listener...")

	for {
		select {
		case <-ws.ctx.Done():
			ws.log.Info("Realtime listener stopped")
			return
		default:
		}

		err := ws.listener.Run(ws.ctx)
		if ws.ctx.Err() != nil {
			return
		}

		ws.log.WithError(err).WithField("restart_in", ws.RestartDelay).Error("Realtime listener exited, restarting")

		select {
		case <-time.After(ws.RestartDelay):
		case <-ws.ctx.Done():
			return
		}
	}
}

func (ws *WorkerService) runMaintenance() {
	ws.maintenance.Start(ws.ctx)
	<-ws.ctx.Done()
	ws.maintenance.Stop()
}

// GetStatus returns the current status of the worker service
func (ws *WorkerService) GetStatus() map[string]interface{} {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	status := map[string]interface{}{
		"running":           ws.running,
		"realtime_listener": ws.listener != nil,
	}
	if ws.running {
		status["uptime"] = time.Since(ws.started).String()
	}
	if ws.maintenance != nil {
		status["maintenance"] = ws.maintenance.GetStats()
	}

	return status
}
