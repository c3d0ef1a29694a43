// Package app composes the recorder, the player and the session store into
// the orchestrator that the HTTP API and the CLI drive.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/inputreplay/internal/adapters/mq/worker"
	"github.com/okian/inputreplay/internal/adapters/repository"
	"github.com/okian/inputreplay/internal/domain/capture"
	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/internal/domain/playback"
	"github.com/okian/inputreplay/pkg/logger"
	"github.com/okian/inputreplay/pkg/metrics"
)

// FrameSource captures an auxiliary frame (typically a screenshot) while
// a recording is active.
type FrameSource interface {
	CaptureFrame(ctx context.Context) (model.Frame, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) (model.Frame, error)

// CaptureFrame calls f.
func (f FrameSourceFunc) CaptureFrame(ctx context.Context) (model.Frame, error) { return f(ctx) }

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	IsRecording    bool    `json:"is_recording"`
	IsPlaying      bool    `json:"is_playing"`
	EventsRecorded int     `json:"events_recorded"`
	EventsLoaded   int     `json:"events_loaded"`
	Cursor         int     `json:"cursor"`
	Speed          float64 `json:"speed"`
	RecordingName  string  `json:"recording_name,omitempty"`
	PlaybackName   string  `json:"playback_name,omitempty"`
	PlaybackID     string  `json:"playback_id,omitempty"`
}

// RecordingResult describes what StopRecording did.
type RecordingResult struct {
	Stopped  bool    `json:"stopped"`
	Saved    bool    `json:"saved"`
	Session  string  `json:"session,omitempty"`
	Events   int     `json:"events"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration_seconds"`
}

// Orchestrator owns one Recorder and one Player and the background tasks
// that serve them.
type Orchestrator struct {
	store    repository.Store
	recorder *capture.Recorder
	player   *playback.Player

	frames        FrameSource
	frameInterval time.Duration
	logger        logger.Logger

	recorderOpts []capture.Option
	playerOpts   []playback.Option

	// base outlives request contexts; tasks derive from it.
	base   context.Context
	cancel context.CancelFunc

	// mu serializes lifecycle operations and guards the task handles.
	mu         sync.Mutex
	frameTask  *worker.Task
	frameCount atomic.Int64
	playTask   *worker.Task
	closed     bool

	playbackID atomic.Value // string
	lastResult atomic.Pointer[playback.Result]
}

// New creates an orchestrator over store, reading input from source and
// replaying through injector.
func New(store repository.Store, source capture.Source, injector playback.Injector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		frameInterval: defaultFrameInterval,
		logger:        logger.Get().Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.recorder = capture.NewRecorder(source, append([]capture.Option{capture.WithLogger(o.logger.Named("recorder"))}, o.recorderOpts...)...)
	o.player = playback.NewPlayer(injector, append([]playback.Option{playback.WithLogger(o.logger.Named("player"))}, o.playerOpts...)...)
	o.base, o.cancel = context.WithCancel(context.Background())
	o.playbackID.Store("")
	return o
}

// StartRecording begins capturing into a session called name.
func (o *Orchestrator) StartRecording(ctx context.Context, name string) error {
	if err := repository.ValidateName(name); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("start recording: %w", ErrClosed)
	}

	if err := o.recorder.Start(ctx, name); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	o.frameCount.Store(0)
	if o.frames != nil && o.frameInterval > 0 {
		o.frameTask = worker.Go(o.base, func(taskCtx context.Context) error {
			o.sampleFrames(taskCtx, name)
			return nil
		}, worker.WithName("frame-sampler"), worker.WithLogger(o.logger))
	}
	return nil
}

// StopRecording stops the frame sampler, seals the recording and saves it.
// With no active recording it returns a result with Stopped false and no
// error. Empty recordings are not persisted.
func (o *Orchestrator) StopRecording(ctx context.Context) (RecordingResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.frameTask != nil {
		if err := o.frameTask.Shutdown(ctx); err != nil {
			o.logger.Warn(ctx, "frame sampler did not stop cleanly", logger.Error(err))
		}
		o.frameTask = nil
	}

	session, ok := o.recorder.Stop(ctx)
	if !ok {
		return RecordingResult{}, nil
	}

	res := RecordingResult{
		Stopped:  true,
		Session:  session.Name,
		Events:   session.Len(),
		Frames:   int(o.frameCount.Load()),
		Duration: session.Duration(),
	}
	if session.Len() == 0 {
		metrics.RecordRecordingStopped(false)
		o.logger.Warn(ctx, "recording captured no events, nothing to save", logger.String("session", session.Name))
		return res, nil
	}

	if err := o.store.Save(ctx, session); err != nil {
		metrics.RecordRecordingStopped(false)
		return res, fmt.Errorf("stop recording: %w", err)
	}
	metrics.RecordRecordingStopped(true)
	res.Saved = true
	return res, nil
}

// StartPlayback loads name and replays it at speed on a background task.
// It returns the id of the new playback run.
func (o *Orchestrator) StartPlayback(ctx context.Context, name string, speed float64) (string, error) {
	if err := playback.ValidateSpeed(speed); err != nil {
		return "", fmt.Errorf("start playback: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", fmt.Errorf("start playback: %w", ErrClosed)
	}
	if o.player.Playing() {
		return "", fmt.Errorf("start playback: %w", playback.ErrAlreadyPlaying)
	}
	// A previous run that finished on its own is joined here.
	if o.playTask != nil {
		if err := o.playTask.Wait(ctx); err != nil {
			o.logger.Warn(ctx, "previous playback task ended with error", logger.Error(err))
		}
		o.playTask = nil
	}

	session, err := o.store.Load(ctx, name)
	if err != nil {
		return "", fmt.Errorf("start playback: %w", err)
	}
	if err := o.player.Start(session, speed); err != nil {
		return "", fmt.Errorf("start playback: %w", err)
	}

	id := uuid.NewString()
	o.playbackID.Store(id)
	o.playTask = worker.Go(o.base, func(taskCtx context.Context) error {
		res := o.player.Run(taskCtx)
		o.lastResult.Store(&res)
		return nil
	}, worker.WithName("playback"), worker.WithLogger(o.logger))

	o.logger.Info(ctx, "playback scheduled",
		logger.String("session", name),
		logger.String("playback_id", id),
		logger.Float64("speed", speed),
	)
	return id, nil
}

// StopPlayback stops the running playback and joins its task. It is a
// no-op when nothing is playing.
func (o *Orchestrator) StopPlayback(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopPlaybackLocked(ctx)
}

func (o *Orchestrator) stopPlaybackLocked(ctx context.Context) error {
	o.player.Stop()
	if o.playTask == nil {
		return nil
	}
	if err := o.playTask.Wait(ctx); err != nil {
		return fmt.Errorf("stop playback: %w", err)
	}
	o.playTask = nil
	return nil
}

// WaitPlayback blocks until the current playback run finishes on its own
// and returns its result.
func (o *Orchestrator) WaitPlayback(ctx context.Context) (playback.Result, error) {
	o.mu.Lock()
	task := o.playTask
	o.mu.Unlock()
	if task != nil {
		if err := task.Wait(ctx); err != nil {
			return playback.Result{}, fmt.Errorf("wait playback: %w", err)
		}
	}
	res, _ := o.LastPlayback()
	return res, nil
}

// LastPlayback returns the result of the most recent finished run.
func (o *Orchestrator) LastPlayback() (playback.Result, bool) {
	res := o.lastResult.Load()
	if res == nil {
		return playback.Result{}, false
	}
	return *res, true
}

// Status reads the recorder and player counters without taking any lock
// shared with event delivery.
func (o *Orchestrator) Status() Status {
	id, _ := o.playbackID.Load().(string)
	return Status{
		IsRecording:    o.recorder.Active(),
		IsPlaying:      o.player.Playing(),
		EventsRecorded: o.recorder.Count(),
		EventsLoaded:   o.player.Loaded(),
		Cursor:         o.player.Cursor(),
		Speed:          o.player.Speed(),
		RecordingName:  o.recorder.SessionName(),
		PlaybackName:   o.player.SessionName(),
		PlaybackID:     id,
	}
}

// ListSessions returns the names of all persisted sessions.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]string, error) {
	names, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return names, nil
}

// GetSession loads a persisted session.
func (o *Orchestrator) GetSession(ctx context.Context, name string) (model.Session, error) {
	s, err := o.store.Load(ctx, name)
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// DeleteSession removes a persisted session and its frames.
func (o *Orchestrator) DeleteSession(ctx context.Context, name string) (bool, error) {
	removed, err := o.store.Delete(ctx, name)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return removed, nil
}

// Close saves an active recording, stops playback and joins every task.
// The store is left open; its owner closes it.
func (o *Orchestrator) Close(ctx context.Context) error {
	var errs []error
	if _, err := o.StopRecording(ctx); err != nil {
		errs = append(errs, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.stopPlaybackLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	o.closed = true
	o.cancel()
	return errors.Join(errs...)
}

// sampleFrames captures a frame immediately and then every frameInterval
// until ctx is cancelled. Failures are logged and counted, never fatal.
func (o *Orchestrator) sampleFrames(ctx context.Context, name string) {
	ticker := time.NewTicker(o.frameInterval)
	defer ticker.Stop()

	index := 0
	for {
		if err := o.captureFrame(ctx, name, index); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.RecordFrameError()
			o.logger.Warn(ctx, "frame capture failed",
				logger.String("session", name),
				logger.Int("index", index),
				logger.Error(err),
			)
		} else {
			metrics.RecordFrameCaptured()
			o.frameCount.Add(1)
			index++
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) captureFrame(ctx context.Context, name string, index int) error {
	frame, err := o.frames.CaptureFrame(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := o.store.SaveFrame(ctx, name, index, frame); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
