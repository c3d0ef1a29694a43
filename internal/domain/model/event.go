// Package model contains the input event and session types shared by the
// capture, storage and playback layers.
package model

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Kind identifies what an InputEvent represents.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPointerMove
	KindPointerButton
	KindKeyDown
	KindKeyUp
)

var kindNames = map[Kind]string{ //nolint:gochecknoglobals // lookup table
	KindPointerMove:   "pointer_move",
	KindPointerButton: "pointer_button",
	KindKeyDown:       "key_down",
	KindKeyUp:         "key_up",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind converts the persisted form of a kind back into a Kind.
func ParseKind(s string) (Kind, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == needle {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: kind %q", ErrInvalidEvent, s)
}

// Button identifies a pointer button.
type Button uint8

const (
	ButtonLeft Button = iota + 1
	ButtonRight
	ButtonOther
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseButton accepts "left", "right" or "other" in any case.
func ParseButton(s string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return ButtonLeft, nil
	case "right":
		return ButtonRight, nil
	case "other":
		return ButtonOther, nil
	default:
		return 0, fmt.Errorf("%w: button %q", ErrInvalidEvent, s)
	}
}

// Payload is the kind-specific body of an InputEvent. The set of
// implementations is closed: PointerMove, PointerButton and Key.
type Payload interface {
	fitsKind(k Kind) bool
}

// PointerMove is the payload of a KindPointerMove event.
type PointerMove struct {
	X, Y int
}

func (PointerMove) fitsKind(k Kind) bool { return k == KindPointerMove }

// PointerButton is the payload of a KindPointerButton event.
type PointerButton struct {
	X, Y    int
	Button  Button
	Pressed bool
}

func (PointerButton) fitsKind(k Kind) bool { return k == KindPointerButton }

// Key is the payload of KindKeyDown and KindKeyUp events.
type Key struct {
	Token string
}

func (Key) fitsKind(k Kind) bool { return k == KindKeyDown || k == KindKeyUp }

// InputEvent is one captured or replayed action. It is a comparable value:
// two events are equal when offset, kind and payload are equal.
type InputEvent struct {
	Offset  float64 // seconds since the recording started
	Kind    Kind
	Payload Payload
}

// New builds a validated InputEvent.
func New(offset float64, kind Kind, payload Payload) (InputEvent, error) {
	e := InputEvent{Offset: offset, Kind: kind, Payload: payload}
	if err := e.Validate(); err != nil {
		return InputEvent{}, err
	}
	return e, nil
}

// NewPointerMove builds a pointer motion event.
func NewPointerMove(offset float64, x, y int) (InputEvent, error) {
	return New(offset, KindPointerMove, PointerMove{X: x, Y: y})
}

// NewPointerButton builds a pointer button transition event.
func NewPointerButton(offset float64, x, y int, button Button, pressed bool) (InputEvent, error) {
	return New(offset, KindPointerButton, PointerButton{X: x, Y: y, Button: button, Pressed: pressed})
}

// NewKeyDown builds a key press event.
func NewKeyDown(offset float64, token string) (InputEvent, error) {
	return New(offset, KindKeyDown, Key{Token: token})
}

// NewKeyUp builds a key release event.
func NewKeyUp(offset float64, token string) (InputEvent, error) {
	return New(offset, KindKeyUp, Key{Token: token})
}

// Validate checks the offset and that the payload variant matches the kind.
func (e InputEvent) Validate() error {
	if math.IsNaN(e.Offset) || math.IsInf(e.Offset, 0) || e.Offset < 0 {
		return fmt.Errorf("%w: offset %v must be finite and non-negative", ErrInvalidEvent, e.Offset)
	}
	if _, ok := kindNames[e.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidEvent, e.Kind)
	}
	if e.Payload == nil || !e.Payload.fitsKind(e.Kind) {
		return fmt.Errorf("%w: payload %T does not match kind %s", ErrInvalidEvent, e.Payload, e.Kind)
	}
	switch p := e.Payload.(type) {
	case PointerButton:
		if p.Button < ButtonLeft || p.Button > ButtonOther {
			return fmt.Errorf("%w: unknown button %d", ErrInvalidEvent, p.Button)
		}
	case Key:
		if p.Token == "" {
			return fmt.Errorf("%w: empty key token", ErrInvalidEvent)
		}
		if strings.IndexFunc(p.Token, unicode.IsControl) >= 0 {
			return fmt.Errorf("%w: key token %q contains a control character", ErrInvalidEvent, p.Token)
		}
	}
	return nil
}

// PointerMove returns the motion payload when the event is a pointer move.
func (e InputEvent) PointerMove() (PointerMove, bool) {
	p, ok := e.Payload.(PointerMove)
	return p, ok && e.Kind == KindPointerMove
}

// PointerButton returns the button payload when the event is a button transition.
func (e InputEvent) PointerButton() (PointerButton, bool) {
	p, ok := e.Payload.(PointerButton)
	return p, ok && e.Kind == KindPointerButton
}

// Key returns the key payload when the event is a key transition.
func (e InputEvent) Key() (Key, bool) {
	p, ok := e.Payload.(Key)
	return p, ok && (e.Kind == KindKeyDown || e.Kind == KindKeyUp)
}

func (e InputEvent) String() string {
	switch p := e.Payload.(type) {
	case PointerMove:
		return fmt.Sprintf("%s(%d,%d)@%g", e.Kind, p.X, p.Y, e.Offset)
	case PointerButton:
		return fmt.Sprintf("%s(%d,%d,%s,%t)@%g", e.Kind, p.X, p.Y, p.Button, p.Pressed, e.Offset)
	case Key:
		return fmt.Sprintf("%s(%q)@%g", e.Kind, p.Token, e.Offset)
	default:
		return fmt.Sprintf("%s@%g", e.Kind, e.Offset)
	}
}
