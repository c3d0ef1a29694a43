// Package playback replays a recorded session through an Injector,
// preserving relative timing scaled by a speed multiplier.
package playback

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/pkg/logger"
	"github.com/okian/inputreplay/pkg/metrics"
)

// State is the lifecycle state of a Player.
type State int32

const (
	StateIdle State = iota
	StatePlaying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Result summarizes one Run.
type Result struct {
	Session string
	Emitted int
	Failed  int
	Cursor  int
	Stopped bool
	Elapsed time.Duration
}

// Player is the playback scheduler. It plays at most one session at a time.
type Player struct {
	injector Injector
	sleeper  Sleeper
	aliases  aliasTable
	logger   logger.Logger

	// mu guards transitions and the fields below it.
	mu      sync.Mutex
	session model.Session
	stop    chan struct{}

	state     atomic.Int32
	cursor    atomic.Int64
	loaded    atomic.Int64
	speedBits atomic.Uint64
	name      atomic.Value // string
}

// NewPlayer creates an idle player.
func NewPlayer(injector Injector, opts ...Option) *Player {
	p := &Player{
		injector: injector,
		sleeper:  TimerSleeper,
		logger:   logger.Get().Named("player"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.name.Store("")
	return p
}

// ValidateSpeed rejects speeds that are not positive finite numbers.
func ValidateSpeed(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidSpeed, speed)
	}
	return nil
}

// Start arms the player with session at speed. The caller must follow up
// with Run; Start itself does not emit anything.
func (p *Player) Start(session model.Session, speed float64) error {
	if err := ValidateSpeed(speed); err != nil {
		return fmt.Errorf("start %q: %w", session.Name, err)
	}
	if p.injector == nil {
		return fmt.Errorf("start %q: %w", session.Name, ErrNoInjector)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s := State(p.state.Load()); s != StateIdle {
		return fmt.Errorf("start %q: %w (state %s)", session.Name, ErrAlreadyPlaying, s)
	}

	p.session = session
	p.stop = make(chan struct{})
	p.cursor.Store(0)
	p.loaded.Store(int64(session.Len()))
	p.speedBits.Store(math.Float64bits(speed))
	p.name.Store(session.Name)
	p.state.Store(int32(StatePlaying))
	metrics.RecordPlaybackStarted()
	return nil
}

// Run emits the armed session. Before event i (i > 0) it waits
// (offset[i] - offset[i-1]) / speed, interruptible by Stop or ctx. A failed
// injection is logged and skipped. The player is Idle when Run returns.
func (p *Player) Run(ctx context.Context) Result {
	p.mu.Lock()
	if State(p.state.Load()) == StateIdle {
		p.mu.Unlock()
		return Result{}
	}
	session, stop := p.session, p.stop
	speed := math.Float64frombits(p.speedBits.Load())
	p.mu.Unlock()

	release := context.AfterFunc(ctx, func() { p.Stop() })
	defer release()

	res := Result{Session: session.Name}
	begin := time.Now()
	p.logger.Info(ctx, "playback started",
		logger.String("session", session.Name),
		logger.Int("events", session.Len()),
		logger.Float64("speed", speed),
	)

	for i, e := range session.Events {
		if closed(stop) {
			res.Stopped = true
			break
		}
		if i > 0 {
			delay := scaledDelay(e.Offset-session.Events[i-1].Offset, speed)
			if delay > 0 {
				waitStart := time.Now()
				if !p.sleeper.Sleep(stop, delay) {
					res.Stopped = true
					break
				}
				metrics.RecordPlaybackDelay(delay, time.Since(waitStart))
			}
		}
		if closed(stop) {
			res.Stopped = true
			break
		}

		if err := p.inject(e); err != nil {
			res.Failed++
			metrics.RecordInjectionFailure(e.Kind.String())
			p.logger.Warn(ctx, "skipping event after injection failure",
				logger.String("session", session.Name),
				logger.Int("index", i),
				logger.String("event", e.String()),
				logger.Error(err),
			)
		} else {
			res.Emitted++
			metrics.RecordEventInjected(e.Kind.String())
		}
		p.cursor.Add(1)
	}

	res.Cursor = int(p.cursor.Load())
	res.Elapsed = time.Since(begin)

	p.mu.Lock()
	p.session = model.Session{}
	p.state.Store(int32(StateIdle))
	p.mu.Unlock()

	outcome := "completed"
	if res.Stopped {
		outcome = "stopped"
	}
	metrics.RecordPlaybackFinished(outcome, res.Elapsed)
	p.logger.Info(ctx, "playback finished",
		logger.String("session", session.Name),
		logger.String("outcome", outcome),
		logger.Int("emitted", res.Emitted),
		logger.Int("failed", res.Failed),
		logger.Int("cursor", res.Cursor),
		logger.Duration("elapsed", res.Elapsed),
	)
	return res
}

// Stop requests cancellation of the running playback. It reports false,
// and changes nothing, when the player is not Playing.
func (p *Player) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if State(p.state.Load()) != StatePlaying {
		p.logger.Info(context.Background(), "stop requested with no active playback")
		return false
	}
	p.state.Store(int32(StateStopped))
	close(p.stop)
	return true
}

// State returns the current lifecycle state.
func (p *Player) State() State { return State(p.state.Load()) }

// Playing reports whether a session is armed or running.
func (p *Player) Playing() bool { return p.State() != StateIdle }

// Cursor returns how many events of the current run have been processed.
func (p *Player) Cursor() int { return int(p.cursor.Load()) }

// Loaded returns the number of events in the last armed session.
func (p *Player) Loaded() int { return int(p.loaded.Load()) }

// Speed returns the multiplier of the last armed session.
func (p *Player) Speed() float64 { return math.Float64frombits(p.speedBits.Load()) }

// SessionName returns the name of the last armed session.
func (p *Player) SessionName() string {
	name, _ := p.name.Load().(string)
	return name
}

func (p *Player) inject(e model.InputEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrInjectionFailure, e.Kind, r)
		}
	}()

	switch pl := e.Payload.(type) {
	case model.PointerMove:
		err = p.injector.MovePointer(pl.X, pl.Y)
	case model.PointerButton:
		// the pointer is already at (X, Y) from the preceding motion events
		err = p.injector.SetButton(pl.Button, pl.Pressed)
	case model.Key:
		err = p.injector.SendKey(p.aliases.resolve(pl.Token), e.Kind == model.KindKeyDown)
	default:
		err = fmt.Errorf("unsupported payload %T", e.Payload)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInjectionFailure, e.Kind, err)
	}
	return nil
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// aliasTable rewrites recorded key tokens.
type aliasTable struct {
	exact map[string]string
	fold  map[string]string
}

func newAliasTable(aliases map[string]string) aliasTable {
	t := aliasTable{
		exact: make(map[string]string, len(aliases)),
		fold:  make(map[string]string, len(aliases)),
	}
	for from, to := range aliases {
		if from == "" || to == "" {
			continue
		}
		t.exact[from] = to
		t.fold[strings.ToLower(from)] = to
	}
	return t
}

func (t aliasTable) resolve(token string) string {
	if to, ok := t.exact[token]; ok {
		return to
	}
	if to, ok := t.fold[strings.ToLower(token)]; ok {
		return to
	}
	return token
}

// scaledDelay converts a recorded gap in seconds into a wait at speed,
// saturating instead of overflowing for very slow speeds.
func scaledDelay(gap, speed float64) time.Duration {
	ns := gap / speed * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}
