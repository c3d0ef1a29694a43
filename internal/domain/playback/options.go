package playback

import (
	"github.com/okian/inputreplay/pkg/logger"
)

// Option applies a configuration option to the Player.
type Option func(*Player)

// WithSleeper replaces the timer-based wait between events.
func WithSleeper(s Sleeper) Option {
	return func(p *Player) {
		if s != nil {
			p.sleeper = s
		}
	}
}

// WithKeyAliases maps recorded key tokens to the tokens the injector expects.
// Lookup is exact first, then case-insensitive.
func WithKeyAliases(aliases map[string]string) Option {
	return func(p *Player) {
		p.aliases = newAliasTable(aliases)
	}
}

// WithLogger sets a custom logger for the player.
func WithLogger(l logger.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}
