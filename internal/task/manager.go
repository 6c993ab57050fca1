package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"videocreator/internal/domain"
	"videocreator/internal/infra"
	"videocreator/internal/infra/metrics"
	"videocreator/internal/providers/ark"
	"videocreator/internal/providers/prompt"
)

// Artifacts is the slice of the artifact store the manager needs: resolving
// uploads for submission and persisting results on completion.
type Artifacts interface {
	HasUpload(ref string) bool
	ResolveUpload(ref string) ([]byte, string, error)
	StoreResult(ctx context.Context, taskID, sourceURL string) (string, error)
}

// Config bounds the polling discipline.
type Config struct {
	// PollInterval is the fixed delay between remote status checks.
	PollInterval time.Duration
	// Timeout caps wall-clock time from submission to a terminal state.
	Timeout time.Duration
	// PollFailureLimit is the ceiling on consecutive transport failures.
	PollFailureLimit int
}

// Manager owns task records and drives the submit -> poll -> terminal state
// machine. Each task gets one goroutine that is the sole writer of its
// state; callers only ever read snapshots.
type Manager struct {
	store     Store
	client    ark.API
	enhancer  prompt.Enhancer
	artifacts Artifacts
	logger    infra.Logger
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires a Manager. Zero config fields get the defaults the
// provider nominally completes within (5s polls, 10 minute ceiling).
func NewManager(store Store, client ark.API, enhancer prompt.Enhancer, artifacts Artifacts, logger infra.Logger, cfg Config) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.PollFailureLimit <= 0 {
		cfg.PollFailureLimit = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     store,
		client:    client,
		enhancer:  enhancer,
		artifacts: artifacts,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Create validates the request, registers a pending task, and hands it off
// to its own goroutine. It returns before any remote call is made.
func (m *Manager) Create(ctx context.Context, mode domain.TaskMode, input domain.TaskInput, params domain.TaskParams) (string, error) {
	if err := domain.ValidateParams(params); err != nil {
		return "", err
	}
	if err := domain.ValidateInput(mode, input); err != nil {
		return "", err
	}
	if input.ImageRef != "" && !m.artifacts.HasUpload(input.ImageRef) {
		return "", fmt.Errorf("%w: image %q not uploaded", domain.ErrInvalidParameter, input.ImageRef)
	}
	if input.VideoRef != "" && !m.artifacts.HasUpload(input.VideoRef) {
		return "", fmt.Errorf("%w: video %q not uploaded", domain.ErrInvalidParameter, input.VideoRef)
	}

	t := &domain.Task{
		ID:        uuid.NewString()[:8],
		Mode:      mode,
		Input:     input,
		Params:    params,
		State:     domain.StatePending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Create(ctx, t); err != nil {
		return "", fmt.Errorf("register task: %w", err)
	}
	metrics.TaskCreated(string(mode))
	m.logger.Info().Str("task_id", t.ID).Str("mode", string(mode)).Msg("task: created")

	m.wg.Add(1)
	go m.run(t.ID)
	return t.ID, nil
}

// GetStatus returns the latest snapshot of a task. It never blocks on the
// task's own processing.
func (m *Manager) GetStatus(ctx context.Context, id string) (*domain.Task, error) {
	return m.store.Get(ctx, id)
}

// List returns snapshots of every known task, newest first.
func (m *Manager) List(ctx context.Context) ([]*domain.Task, error) {
	return m.store.List(ctx)
}

// Close stops all pollers and waits for their goroutines to drain. Tasks
// still in flight stay in their last recorded state.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// run owns the full lifecycle of one task. It is the only writer of the
// task's state, which keeps transitions serialized without per-field locks.
func (m *Manager) run(id string) {
	defer m.wg.Done()

	jobRef, ok := m.submit(id)
	if !ok {
		return
	}
	m.poll(id, jobRef)
}

// submit enhances the prompt when requested, opens the remote job, and
// records the job reference. A refused submission is terminal.
func (m *Manager) submit(id string) (string, bool) {
	snap, err := m.store.Get(m.ctx, id)
	if err != nil {
		m.logger.Error().Err(err).Str("task_id", id).Msg("task: load for submit failed")
		return "", false
	}

	userPrompt := snap.Input.Prompt
	enhanced := ""
	if snap.Params.Enhance && userPrompt != "" {
		if out := m.enhancer.Enhance(m.ctx, userPrompt); out != userPrompt {
			enhanced = out
			m.logger.Debug().Str("task_id", id).Msg("task: prompt enhanced")
		}
	}

	content, err := m.buildContent(snap, firstNonEmpty(enhanced, userPrompt))
	if err != nil {
		m.fail(id, domain.KindSubmissionRejected, err.Error())
		return "", false
	}

	started := time.Now()
	jobRef, err := m.client.SubmitJob(m.ctx, ark.SubmitRequest{
		Content:   content,
		Ratio:     snap.Params.Ratio,
		Duration:  snap.Params.Duration,
		Watermark: snap.Params.Watermark,
	})
	metrics.RemoteCall("submit", err == nil, float64(time.Since(started).Milliseconds()))
	if err != nil {
		m.logger.Error().Err(err).Str("task_id", id).Msg("task: submission rejected")
		m.fail(id, domain.KindSubmissionRejected, err.Error())
		return "", false
	}

	_, err = m.store.Update(m.ctx, id, func(t *domain.Task) error {
		if !domain.CanTransition(t.State, domain.StateSubmitted) {
			return domain.ErrTaskTerminal
		}
		t.State = domain.StateSubmitted
		t.RemoteJobRef = jobRef
		t.EnhancedPrompt = enhanced
		t.SubmittedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		m.logger.Error().Err(err).Str("task_id", id).Msg("task: record submission failed")
		return "", false
	}
	m.logger.Info().Str("task_id", id).Str("remote_job", jobRef).Msg("task: submitted")
	return jobRef, true
}

// poll drives fixed-interval status checks until the task reaches a
// terminal state, the transport-failure ceiling, or the overall deadline.
func (m *Manager) poll(id, jobRef string) {
	deadline := time.Now().Add(m.cfg.Timeout)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			metrics.PollCycle("timeout")
			m.fail(id, domain.KindTimeout, fmt.Sprintf("no terminal state within %s", m.cfg.Timeout))
			return
		}

		started := time.Now()
		res, err := m.client.GetJob(m.ctx, jobRef)
		metrics.RemoteCall("poll", err == nil, float64(time.Since(started).Milliseconds()))
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			if !ark.IsTransport(err) {
				// The provider answered and rejected the job reference;
				// retrying cannot change that.
				metrics.PollCycle("rejected")
				m.fail(id, domain.KindRemoteGenerationError, err.Error())
				return
			}
			failures++
			metrics.PollCycle("transport_error")
			m.logger.Warn().Err(err).Str("task_id", id).Int("consecutive", failures).Msg("task: poll failed")
			if failures >= m.cfg.PollFailureLimit {
				m.fail(id, domain.KindPollingExhausted, fmt.Sprintf("%d consecutive polling failures: %v", failures, err))
				return
			}
			continue
		}
		failures = 0

		switch res.Status {
		case ark.StatusQueued, ark.StatusProcessing:
			metrics.PollCycle("running")
			m.markRunning(id, res.Status)
		case ark.StatusSucceeded:
			metrics.PollCycle("succeeded")
			if res.VideoURL == "" {
				m.fail(id, domain.KindRemoteGenerationError, "remote job succeeded without an output reference")
				return
			}
			resultRef, err := m.artifacts.StoreResult(m.ctx, id, res.VideoURL)
			if err != nil {
				// Result persistence shares the transport budget: the remote
				// side is done, only our download keeps failing.
				failures++
				m.logger.Warn().Err(err).Str("task_id", id).Int("consecutive", failures).Msg("task: persist result failed")
				if failures >= m.cfg.PollFailureLimit {
					m.fail(id, domain.KindPollingExhausted, fmt.Sprintf("result download failed %d times: %v", failures, err))
					return
				}
				continue
			}
			m.succeed(id, resultRef)
			return
		case ark.StatusFailed:
			metrics.PollCycle("failed")
			msg := res.Message
			if msg == "" {
				msg = "remote generation failed"
			}
			m.fail(id, domain.KindRemoteGenerationError, msg)
			return
		}
	}
}

// buildContent assembles the provider payload for the task's mode. Uploads
// are inlined as data URLs the way the provider expects.
func (m *Manager) buildContent(t *domain.Task, promptText string) ([]ark.ContentItem, error) {
	switch t.Mode {
	case domain.ModeTextToVideo:
		return []ark.ContentItem{ark.TextContent(promptText)}, nil
	case domain.ModeImageToVideo:
		data, mime, err := m.artifacts.ResolveUpload(t.Input.ImageRef)
		if err != nil {
			return nil, fmt.Errorf("source image unavailable: %w", err)
		}
		content := []ark.ContentItem{ark.ImageContent(ark.DataURL(mime, data))}
		if promptText != "" {
			content = append(content, ark.TextContent(promptText))
		}
		return content, nil
	case domain.ModeEdit:
		ref, asVideo := t.Input.VideoRef, true
		if ref == "" {
			ref, asVideo = t.Input.ImageRef, false
		}
		data, mime, err := m.artifacts.ResolveUpload(ref)
		if err != nil {
			return nil, fmt.Errorf("source media unavailable: %w", err)
		}
		source := ark.ImageContent(ark.DataURL(mime, data))
		if asVideo {
			source = ark.VideoContent(ark.DataURL(mime, data))
		}
		return []ark.ContentItem{source, ark.TextContent(promptText)}, nil
	default:
		return nil, fmt.Errorf("unsupported mode %q", t.Mode)
	}
}

// markRunning is idempotent: staying in running across polls is not a
// transition, but the progress line refreshes on every poll.
func (m *Manager) markRunning(id string, status ark.JobStatus) {
	_, err := m.store.Update(m.ctx, id, func(t *domain.Task) error {
		if t.State != domain.StateRunning {
			if !domain.CanTransition(t.State, domain.StateRunning) {
				return domain.ErrTaskTerminal
			}
			t.State = domain.StateRunning
		}
		elapsed := time.Since(t.SubmittedAt).Round(time.Second)
		t.Progress = fmt.Sprintf("%s, %s elapsed", status, elapsed)
		return nil
	})
	if err != nil {
		m.logger.Error().Err(err).Str("task_id", id).Msg("task: mark running failed")
	}
}

func (m *Manager) succeed(id, resultRef string) {
	_, err := m.store.Update(m.ctx, id, func(t *domain.Task) error {
		if !domain.CanTransition(t.State, domain.StateSucceeded) {
			return domain.ErrTaskTerminal
		}
		t.State = domain.StateSucceeded
		t.Progress = ""
		t.ResultRef = resultRef
		t.CompletedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		m.logger.Error().Err(err).Str("task_id", id).Msg("task: record success failed")
		return
	}
	metrics.TaskTerminal(string(domain.StateSucceeded), "")
	m.logger.Info().Str("task_id", id).Str("result", resultRef).Msg("task: succeeded")
}

func (m *Manager) fail(id string, kind domain.ErrorKind, msg string) {
	_, err := m.store.Update(m.ctx, id, func(t *domain.Task) error {
		if t.State.Terminal() {
			return domain.ErrTaskTerminal
		}
		t.State = domain.StateFailed
		t.Progress = ""
		t.Error = &domain.TaskError{Kind: kind, Message: msg}
		t.CompletedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		m.logger.Error().Err(err).Str("task_id", id).Msg("task: record failure failed")
		return
	}
	metrics.TaskTerminal(string(domain.StateFailed), string(kind))
	m.logger.Info().Str("task_id", id).Str("kind", string(kind)).Str("reason", msg).Msg("task: failed")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
