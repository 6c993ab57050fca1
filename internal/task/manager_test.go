package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"videocreator/internal/domain"
	"videocreator/internal/providers/ark"
	"videocreator/internal/providers/prompt"
)

// fakeAPI scripts the remote provider: one submit outcome and a sequence of
// poll outcomes, repeating the last one when the script runs out.
type fakeAPI struct {
	mu        sync.Mutex
	submitRef string
	submitErr error
	submits   int
	polls     []pollStep
	pollIdx   int
	lastReq   ark.SubmitRequest
}

type pollStep struct {
	result *ark.JobResult
	err    error
}

func (f *fakeAPI) SubmitJob(ctx context.Context, req ark.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	f.lastReq = req
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if f.submitRef == "" {
		f.submitRef = "cgt-fake"
	}
	return f.submitRef, nil
}

func (f *fakeAPI) GetJob(ctx context.Context, jobID string) (*ark.JobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.polls) == 0 {
		return &ark.JobResult{Status: ark.StatusProcessing}, nil
	}
	step := f.polls[f.pollIdx]
	if f.pollIdx < len(f.polls)-1 {
		f.pollIdx++
	}
	return step.result, step.err
}

func (f *fakeAPI) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

// fakeArtifacts resolves scripted uploads and records result persistence.
type fakeArtifacts struct {
	mu       sync.Mutex
	uploads  map[string][]byte
	storeErr error
	stored   map[string]string
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{uploads: map[string][]byte{}, stored: map[string]string{}}
}

func (f *fakeArtifacts) HasUpload(ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.uploads[ref]
	return ok
}

func (f *fakeArtifacts) ResolveUpload(ref string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.uploads[ref]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return data, "image/png", nil
}

func (f *fakeArtifacts) StoreResult(ctx context.Context, taskID, sourceURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return "", f.storeErr
	}
	ref := fmt.Sprintf("video_%s.mp4", taskID)
	f.stored[taskID] = sourceURL
	return ref, nil
}

func newTestManager(t *testing.T, api ark.API, artifacts Artifacts, cfg Config) *Manager {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.PollFailureLimit == 0 {
		cfg.PollFailureLimit = 5
	}
	m := NewManager(NewMemoryStore(), api, prompt.NewPassthroughEnhancer(), artifacts, zerolog.New(io.Discard), cfg)
	t.Cleanup(m.Close)
	return m
}

func waitForTerminal(t *testing.T, m *Manager, id string) *domain.Task {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if snap.State.Terminal() {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
	return nil
}

func assertInvariants(t *testing.T, snap *domain.Task) {
	t.Helper()
	if (snap.ResultRef != "") != (snap.State == domain.StateSucceeded) {
		t.Errorf("result_ref present = %v in state %s", snap.ResultRef != "", snap.State)
	}
	if (snap.Error != nil) != (snap.State == domain.StateFailed) {
		t.Errorf("error present = %v in state %s", snap.Error != nil, snap.State)
	}
	if snap.State.Terminal() && snap.Progress != "" {
		t.Errorf("progress %q survived terminal state %s", snap.Progress, snap.State)
	}
}

// Scenario A: remote accepts, reports processing twice, then succeeds.
func TestTextToVideoSucceeds(t *testing.T) {
	api := &fakeAPI{
		submitRef: "cgt-a",
		polls: []pollStep{
			{result: &ark.JobResult{Status: ark.StatusQueued}},
			{result: &ark.JobResult{Status: ark.StatusProcessing}},
			{result: &ark.JobResult{Status: ark.StatusSucceeded, VideoURL: "https://cdn.example.com/a.mp4"}},
		},
	}
	artifacts := newFakeArtifacts()
	m := newTestManager(t, api, artifacts, Config{})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "a cute cat with a red ball"},
		domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap := waitForTerminal(t, m, id)
	if snap.State != domain.StateSucceeded {
		t.Fatalf("state = %s, want succeeded (error: %+v)", snap.State, snap.Error)
	}
	if snap.ResultRef != "video_"+id+".mp4" {
		t.Fatalf("result_ref = %q", snap.ResultRef)
	}
	if snap.RemoteJobRef != "cgt-a" {
		t.Fatalf("remote_job_ref = %q", snap.RemoteJobRef)
	}
	if artifacts.stored[id] != "https://cdn.example.com/a.mp4" {
		t.Fatalf("stored source = %q", artifacts.stored[id])
	}
	if snap.CompletedAt.Before(snap.SubmittedAt) || snap.SubmittedAt.Before(snap.CreatedAt) {
		t.Fatalf("timestamps out of order: %v %v %v", snap.CreatedAt, snap.SubmittedAt, snap.CompletedAt)
	}
	assertInvariants(t, snap)
}

// Scenario B: image-to-video referencing a missing asset is rejected before
// any task record or remote call exists.
func TestCreateRejectsMissingAsset(t *testing.T) {
	api := &fakeAPI{}
	m := newTestManager(t, api, newFakeArtifacts(), Config{})

	_, err := m.Create(context.Background(), domain.ModeImageToVideo,
		domain.TaskInput{ImageRef: "nope.png"},
		domain.TaskParams{Ratio: "16:9", Duration: 5})
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("Create = %v, want ErrInvalidParameter", err)
	}
	if api.submitCount() != 0 {
		t.Fatal("remote submit happened for rejected create")
	}
	tasks, _ := m.List(context.Background())
	if len(tasks) != 0 {
		t.Fatalf("task record created for rejected request: %d", len(tasks))
	}
}

// Scenario C: every poll is a transport error; the consecutive-failure
// ceiling turns the task into PollingExhausted.
func TestPollingExhausted(t *testing.T) {
	api := &fakeAPI{
		submitRef: "cgt-c",
		polls:     []pollStep{{err: &ark.TransportError{Err: errors.New("connection refused")}}},
	}
	m := newTestManager(t, api, newFakeArtifacts(), Config{PollFailureLimit: 3})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "1:1", Duration: 6})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap := waitForTerminal(t, m, id)
	if snap.State != domain.StateFailed {
		t.Fatalf("state = %s, want failed", snap.State)
	}
	if snap.Error.Kind != domain.KindPollingExhausted {
		t.Fatalf("error kind = %s, want polling_exhausted", snap.Error.Kind)
	}
	assertInvariants(t, snap)
}

// A poll the provider answers with a rejection is not a transport failure:
// no retry budget applies, the task fails as a remote error immediately.
func TestPollRejectionFailsAsRemoteError(t *testing.T) {
	api := &fakeAPI{
		submitRef: "cgt-rej",
		polls:     []pollStep{{err: errors.New("ark: status 404: task not found")}},
	}
	m := newTestManager(t, api, newFakeArtifacts(), Config{PollFailureLimit: 3})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap := waitForTerminal(t, m, id)
	if snap.Error == nil || snap.Error.Kind != domain.KindRemoteGenerationError {
		t.Fatalf("error = %+v, want remote_generation_failed", snap.Error)
	}
	if snap.Error.Message != "ark: status 404: task not found" {
		t.Fatalf("error message = %q", snap.Error.Message)
	}
	assertInvariants(t, snap)
}

// A transient transport error below the ceiling never surfaces: the next
// successful poll resets the counter and the task completes.
func TestTransientTransportErrorRecovers(t *testing.T) {
	api := &fakeAPI{
		submitRef: "cgt-r",
		polls: []pollStep{
			{err: &ark.TransportError{Err: errors.New("timeout")}},
			{err: &ark.TransportError{Err: errors.New("timeout")}},
			{result: &ark.JobResult{Status: ark.StatusProcessing}},
			{err: &ark.TransportError{Err: errors.New("timeout")}},
			{err: &ark.TransportError{Err: errors.New("timeout")}},
			{result: &ark.JobResult{Status: ark.StatusSucceeded, VideoURL: "https://cdn.example.com/r.mp4"}},
		},
	}
	m := newTestManager(t, api, newFakeArtifacts(), Config{PollFailureLimit: 3})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	snap := waitForTerminal(t, m, id)
	if snap.State != domain.StateSucceeded {
		t.Fatalf("state = %s, want succeeded (error: %+v)", snap.State, snap.Error)
	}
}

// Scenario D: remote stays non-terminal past the overall deadline.
func TestOverallTimeout(t *testing.T) {
	api := &fakeAPI{submitRef: "cgt-d"} // always processing
	m := newTestManager(t, api, newFakeArtifacts(), Config{Timeout: 20 * time.Millisecond})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap := waitForTerminal(t, m, id)
	if snap.State != domain.StateFailed {
		t.Fatalf("state = %s, want failed", snap.State)
	}
	if snap.Error.Kind != domain.KindTimeout {
		t.Fatalf("error kind = %s, want timeout", snap.Error.Kind)
	}
	assertInvariants(t, snap)
}

// Scenario E: out-of-range duration fails validation with no remote call.
func TestCreateRejectsBadDuration(t *testing.T) {
	api := &fakeAPI{}
	m := newTestManager(t, api, newFakeArtifacts(), Config{})

	_, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "16:9", Duration: 20})
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("Create = %v, want ErrInvalidParameter", err)
	}
	if api.submitCount() != 0 {
		t.Fatal("remote submit happened for invalid duration")
	}
}

func TestSubmissionRejected(t *testing.T) {
	api := &fakeAPI{submitErr: errors.New("ark: status 400: quota exceeded")}
	m := newTestManager(t, api, newFakeArtifacts(), Config{})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap := waitForTerminal(t, m, id)
	if snap.Error == nil || snap.Error.Kind != domain.KindSubmissionRejected {
		t.Fatalf("error = %+v, want submission_rejected", snap.Error)
	}
	if snap.RemoteJobRef != "" {
		t.Fatalf("remote_job_ref = %q on rejected submission", snap.RemoteJobRef)
	}
	assertInvariants(t, snap)
}

func TestRemoteGenerationFailed(t *testing.T) {
	api := &fakeAPI{
		submitRef: "cgt-f",
		polls: []pollStep{
			{result: &ark.JobResult{Status: ark.StatusProcessing}},
			{result: &ark.JobResult{Status: ark.StatusFailed, Message: "content policy violation"}},
		},
	}
	m := newTestManager(t, api, newFakeArtifacts(), Config{})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap := waitForTerminal(t, m, id)
	if snap.Error == nil || snap.Error.Kind != domain.KindRemoteGenerationError {
		t.Fatalf("error = %+v, want remote_generation_failed", snap.Error)
	}
	if snap.Error.Message != "content policy violation" {
		t.Fatalf("error message = %q", snap.Error.Message)
	}
	assertInvariants(t, snap)
}

// Terminal states are sticky: repeated reads with no poll cycles in between
// return identical snapshots.
func TestTerminalStateIsStable(t *testing.T) {
	api := &fakeAPI{
		submitRef: "cgt-s",
		polls:     []pollStep{{result: &ark.JobResult{Status: ark.StatusSucceeded, VideoURL: "https://cdn.example.com/s.mp4"}}},
	}
	m := newTestManager(t, api, newFakeArtifacts(), Config{})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := waitForTerminal(t, m, id)
	for i := 0; i < 5; i++ {
		again, err := m.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if again.State != first.State || again.ResultRef != first.ResultRef || !again.CompletedAt.Equal(first.CompletedAt) {
			t.Fatalf("snapshot changed after terminal state: %+v vs %+v", again, first)
		}
	}
}

// While a task runs, the snapshot carries a human-readable progress line
// refreshed on every poll.
func TestRunningSnapshotCarriesProgress(t *testing.T) {
	api := &fakeAPI{submitRef: "cgt-p"} // always processing
	m := newTestManager(t, api, newFakeArtifacts(), Config{Timeout: time.Minute})

	id, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "x"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if snap.State == domain.StateRunning {
			if !strings.Contains(snap.Progress, "processing") || !strings.Contains(snap.Progress, "elapsed") {
				t.Fatalf("progress = %q", snap.Progress)
			}
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("task never reached running")
}

func TestImageToVideoBuildsDataURL(t *testing.T) {
	api := &fakeAPI{
		submitRef: "cgt-i",
		polls:     []pollStep{{result: &ark.JobResult{Status: ark.StatusSucceeded, VideoURL: "https://cdn.example.com/i.mp4"}}},
	}
	artifacts := newFakeArtifacts()
	artifacts.uploads["src.png"] = []byte("png-bytes")
	m := newTestManager(t, api, artifacts, Config{})

	id, err := m.Create(context.Background(), domain.ModeImageToVideo,
		domain.TaskInput{ImageRef: "src.png", Prompt: "gentle motion"},
		domain.TaskParams{Ratio: "9:16", Duration: 8})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitForTerminal(t, m, id)

	api.mu.Lock()
	req := api.lastReq
	api.mu.Unlock()
	if len(req.Content) != 2 {
		t.Fatalf("content items = %d, want image + text", len(req.Content))
	}
	if req.Content[0].Type != "image_url" || req.Content[0].ImageURL == nil {
		t.Fatalf("first content item = %+v, want image_url", req.Content[0])
	}
	if want := ark.DataURL("image/png", []byte("png-bytes")); req.Content[0].ImageURL.URL != want {
		t.Fatalf("image url = %q, want data url", req.Content[0].ImageURL.URL)
	}
	if req.Content[1].Text != "gentle motion" {
		t.Fatalf("text item = %q", req.Content[1].Text)
	}
	if req.Ratio != "9:16" || req.Duration != 8 {
		t.Fatalf("params = %q/%d", req.Ratio, req.Duration)
	}
}

func TestGetStatusUnknownID(t *testing.T) {
	m := newTestManager(t, &fakeAPI{}, newFakeArtifacts(), Config{})
	if _, err := m.GetStatus(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetStatus = %v, want ErrNotFound", err)
	}
}

// Tasks proceed independently: one stuck task never blocks another.
func TestTasksProgressIndependently(t *testing.T) {
	stuck := &fakeAPI{submitRef: "cgt-stuck"} // always processing
	m := newTestManager(t, stuck, newFakeArtifacts(), Config{Timeout: time.Minute})

	stuckID, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "slow"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Second manager sharing nothing with the first would be trivial; the
	// interesting property is two tasks inside one manager.
	doneID, err := m.Create(context.Background(), domain.ModeTextToVideo,
		domain.TaskInput{Prompt: "fast"}, domain.TaskParams{Ratio: "16:9", Duration: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = doneID

	time.Sleep(20 * time.Millisecond)
	snap, err := m.GetStatus(context.Background(), stuckID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if snap.State.Terminal() {
		t.Fatalf("stuck task reached terminal state %s prematurely", snap.State)
	}
}
