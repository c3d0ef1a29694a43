package playback

import (
	"time"

	"github.com/okian/inputreplay/internal/domain/model"
)

// Injector is the OS input-injection capability. Implementations decide
// the key-token vocabulary they accept.
type Injector interface {
	MovePointer(x, y int) error
	SetButton(button model.Button, pressed bool) error
	SendKey(token string, pressed bool) error
}

// Sleeper waits for d unless done is closed first. It reports whether the
// full wait elapsed.
type Sleeper interface {
	Sleep(done <-chan struct{}, d time.Duration) bool
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(done <-chan struct{}, d time.Duration) bool

// Sleep calls f.
func (f SleeperFunc) Sleep(done <-chan struct{}, d time.Duration) bool { return f(done, d) }

// TimerSleeper waits on a runtime timer.
var TimerSleeper Sleeper = SleeperFunc(func(done <-chan struct{}, d time.Duration) bool { //nolint:gochecknoglobals // stateless default
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
})
