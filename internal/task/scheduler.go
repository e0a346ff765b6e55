// Package task runs background maintenance for the shell on a fixed cadence.
package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSchedulerInterval = time.Minute
	logEventJobFailed        = "background_job_failed"
	logEventJobPanicked      = "background_job_panicked"
	logFieldJob              = "job"
	logFieldPanic            = "panic"
)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs a Job every interval until stopped. trigger requests an immediate run;
// triggers that arrive while a run is pending collapse into one.
type Scheduler struct {
	interval time.Duration
	job      Job
	logger   *zap.Logger
	wake     chan struct{}

	lifecycleMutex sync.Mutex
	stopLoop       context.CancelFunc
	loopFinished   chan struct{}
}

// NewScheduler builds a stopped scheduler. A non-positive interval means one minute.
func NewScheduler(logger *zap.Logger, interval time.Duration, job Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the loop. Starting a running scheduler does nothing.
func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.job == nil {
		return
	}
	scheduler.lifecycleMutex.Lock()
	defer scheduler.lifecycleMutex.Unlock()
	if scheduler.stopLoop != nil {
		return
	}
	loopContext, stopLoop := context.WithCancel(ctx)
	scheduler.stopLoop = stopLoop
	scheduler.loopFinished = make(chan struct{})
	go scheduler.loop(loopContext, scheduler.loopFinished)
}

// trigger asks for a run as soon as possible.
func (scheduler *Scheduler) trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.wake <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for an in-flight run to return.
func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.lifecycleMutex.Lock()
	stopLoop, loopFinished := scheduler.stopLoop, scheduler.loopFinished
	scheduler.stopLoop, scheduler.loopFinished = nil, nil
	scheduler.lifecycleMutex.Unlock()

	if stopLoop == nil {
		return
	}
	stopLoop()
	<-loopFinished
}

func (scheduler *Scheduler) loop(ctx context.Context, loopFinished chan struct{}) {
	defer close(loopFinished)
	ticker := time.NewTicker(scheduler.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.wake:
			scheduler.runOnce(ctx)
			ticker.Reset(scheduler.interval)
		case <-ticker.C:
			scheduler.runOnce(ctx)
		}
	}
}

func (scheduler *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if recovered := recover(); recovered != nil {
			scheduler.logger.Error(logEventJobPanicked, zap.String(logFieldJob, scheduler.job.Name()), zap.Any(logFieldPanic, recovered))
		}
	}()
	if runErr := scheduler.job.Run(ctx); runErr != nil {
		scheduler.logger.Warn(logEventJobFailed, zap.String(logFieldJob, scheduler.job.Name()), zap.Error(runErr))
	}
}
