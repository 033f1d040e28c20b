// Package poller implements the reconciliation loop: one background task per
// active project that re-derives desired workflow state from the forge and
// drives the orchestrator to converge on it.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Boykai/github-workflows/pkg/config"
	"github.com/Boykai/github-workflows/pkg/orchestrator"
)

// Pass names, used as error-counter keys.
const (
	passAgentOutput = "agent_output"
	passBacklog     = "backlog"
	passReady       = "ready"
	passInProgress  = "in_progress"
	passInReview    = "in_review"
)

// Status is the observable state of the poller across all projects.
type Status struct {
	IsRunning            bool             `json:"is_running"`
	LastPollTime         time.Time        `json:"last_poll_time"`
	PollCount            int64            `json:"poll_count"`
	ErrorsCount          int64            `json:"errors_count"`
	LastError            string           `json:"last_error,omitempty"`
	ProcessedIssuesCount int              `json:"processed_issues_count"`
	ActiveProjects       []string         `json:"active_projects"`
	PassErrors           map[string]int64 `json:"pass_errors,omitempty"`
}

// projectLoop is one running reconciliation task.
type projectLoop struct {
	cfg    *config.WorkflowConfiguration
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller runs reconciliation ticks for active projects.
type Poller struct {
	orch      *orchestrator.Orchestrator
	platform  orchestrator.Platform
	pollerCfg *config.PollerConfig
	token     orchestrator.TokenFunc
	logger    *slog.Logger

	mu         sync.Mutex
	loops      map[string]*projectLoop
	lastPoll   time.Time
	pollCount  int64
	errorCount int64
	lastError  string
	passErrors map[string]int64

	// processed caches (issue, slug, pr) triples whose outputs were already
	// posted, and issues whose review request is confirmed.
	processed *lru.Cache[string, struct{}]
}

// New creates a Poller sharing the orchestrator's platform, stores, and
// guards.
func New(orch *orchestrator.Orchestrator, platform orchestrator.Platform, pollerCfg *config.PollerConfig, token orchestrator.TokenFunc) (*Poller, error) {
	if pollerCfg == nil {
		pollerCfg = config.DefaultPollerConfig()
	}
	cache, err := lru.New[string, struct{}](pollerCfg.ProcessedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create processed cache: %w", err)
	}
	return &Poller{
		orch:       orch,
		platform:   platform,
		pollerCfg:  pollerCfg,
		token:      token,
		logger:     slog.Default().With("component", "poller"),
		loops:      make(map[string]*projectLoop),
		passErrors: make(map[string]int64),
		processed:  cache,
	}, nil
}

// StartPolling launches the reconciliation loop for a project. interval <= 0
// uses the configured default. Starting an already-polled project is an
// error.
func (p *Poller) StartPolling(cfg *config.WorkflowConfiguration, interval time.Duration) error {
	if cfg == nil {
		return fmt.Errorf("workflow configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid workflow configuration: %w", err)
	}
	if interval <= 0 {
		interval = p.pollerCfg.Interval
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, running := p.loops[cfg.ProjectID]; running {
		return fmt.Errorf("polling already active for project %s", cfg.ProjectID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	loop := &projectLoop{cfg: cfg, cancel: cancel, done: make(chan struct{})}
	p.loops[cfg.ProjectID] = loop

	go p.run(ctx, loop, interval)
	p.logger.Info("Polling started",
		"project_id", cfg.ProjectID, "interval", interval)
	return nil
}

// StopPolling cancels the loop for one project and waits for it to exit.
func (p *Poller) StopPolling(projectID string) error {
	p.mu.Lock()
	loop, ok := p.loops[projectID]
	if ok {
		delete(p.loops, projectID)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active polling for project %s", projectID)
	}

	loop.cancel()
	<-loop.done
	p.logger.Info("Polling stopped", "project_id", projectID)
	return nil
}

// StopAll cancels every loop, used at shutdown.
func (p *Poller) StopAll() {
	p.mu.Lock()
	loops := make([]*projectLoop, 0, len(p.loops))
	for id, loop := range p.loops {
		loops = append(loops, loop)
		delete(p.loops, id)
	}
	p.mu.Unlock()

	for _, loop := range loops {
		loop.cancel()
		<-loop.done
	}
}

// GetPollingStatus returns the aggregated poller status.
func (p *Poller) GetPollingStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	projects := make([]string, 0, len(p.loops))
	for id := range p.loops {
		projects = append(projects, id)
	}
	passErrors := make(map[string]int64, len(p.passErrors))
	for k, v := range p.passErrors {
		passErrors[k] = v
	}
	return Status{
		IsRunning:            len(p.loops) > 0,
		LastPollTime:         p.lastPoll,
		PollCount:            p.pollCount,
		ErrorsCount:          p.errorCount,
		LastError:            p.lastError,
		ProcessedIssuesCount: p.processed.Len(),
		ActiveProjects:       projects,
		PassErrors:           passErrors,
	}
}

func (p *Poller) run(ctx context.Context, loop *projectLoop, interval time.Duration) {
	defer close(loop.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First tick immediately so a fresh project converges without waiting a
	// full interval.
	p.tick(ctx, loop.cfg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, loop.cfg)
		}
	}
}

// tick runs the five reconciliation passes over one project. A failing pass
// is recorded and never aborts the remaining passes.
func (p *Poller) tick(ctx context.Context, cfg *config.WorkflowConfiguration) {
	p.mu.Lock()
	p.pollCount++
	p.lastPoll = time.Now().UTC()
	p.mu.Unlock()

	token, err := p.token(ctx)
	if err != nil {
		p.recordError(passAgentOutput, fmt.Errorf("resolve token: %w", err))
		return
	}

	items, err := p.platform.GetProjectItems(ctx, token, cfg.ProjectID)
	if err != nil {
		p.recordError(passAgentOutput, fmt.Errorf("fetch project items: %w", err))
		return
	}

	p.runPass(passAgentOutput, func() error { return p.agentOutputPass(ctx, token, cfg) })
	p.runPass(passBacklog, func() error { return p.statusPass(ctx, token, cfg, items, cfg.StatusNames.Backlog) })
	p.runPass(passReady, func() error { return p.statusPass(ctx, token, cfg, items, cfg.StatusNames.Ready) })
	p.runPass(passInProgress, func() error { return p.inProgressPass(ctx, cfg, items) })
	p.runPass(passInReview, func() error { return p.inReviewPass(ctx, token, cfg, items) })
}

func (p *Poller) runPass(name string, fn func() error) {
	if err := fn(); err != nil {
		p.recordError(name, err)
	}
}

func (p *Poller) recordError(pass string, err error) {
	p.logger.Warn("Reconciliation pass failed", "pass", pass, "error", err)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorCount++
	p.passErrors[pass]++
	p.lastError = err.Error()
}
