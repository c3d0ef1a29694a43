package input

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/internal/domain/playback"
	"github.com/okian/inputreplay/pkg/logger"
)

// LogInjector is a dry-run playback.Injector that logs each action instead
// of synthesizing OS input. With a key vocabulary it rejects unknown
// tokens the way a real injection backend would.
type LogInjector struct {
	logger logger.Logger
	keys   map[string]struct{}
	calls  atomic.Int64
}

var _ playback.Injector = (*LogInjector)(nil)

// NewLogInjector creates the injector. An empty vocabulary accepts every token.
func NewLogInjector(l logger.Logger, vocabulary ...string) *LogInjector {
	if l == nil {
		l = logger.Get()
	}
	inj := &LogInjector{logger: l.Named("injector")}
	if len(vocabulary) > 0 {
		inj.keys = make(map[string]struct{}, len(vocabulary))
		for _, k := range vocabulary {
			inj.keys[k] = struct{}{}
		}
	}
	return inj
}

// MovePointer logs a pointer move.
func (i *LogInjector) MovePointer(x, y int) error {
	i.calls.Add(1)
	i.logger.Info(context.Background(), "move pointer", logger.Int("x", x), logger.Int("y", y))
	return nil
}

// SetButton logs a button transition.
func (i *LogInjector) SetButton(button model.Button, pressed bool) error {
	i.calls.Add(1)
	i.logger.Info(context.Background(), "set button", logger.String("button", button.String()), logger.Bool("pressed", pressed))
	return nil
}

// SendKey logs a key transition, rejecting tokens outside the vocabulary.
func (i *LogInjector) SendKey(token string, pressed bool) error {
	if i.keys != nil {
		if _, ok := i.keys[token]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKey, token)
		}
	}
	i.calls.Add(1)
	i.logger.Info(context.Background(), "send key", logger.String("key", token), logger.Bool("pressed", pressed))
	return nil
}

// Calls returns the number of accepted injections.
func (i *LogInjector) Calls() int { return int(i.calls.Load()) }
