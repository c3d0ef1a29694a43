// Package repository persists recorded sessions and their auxiliary frames.
package repository

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/okian/inputreplay/internal/domain/model"
)

// Store provides durable access to recorded sessions.
type Store interface {
	// Save persists the session under its name, replacing any previous
	// artifact. A failed save leaves no partial artifact behind.
	Save(ctx context.Context, session model.Session) error

	// Load returns the session stored under name.
	// Returns ErrSessionNotFound if nothing is stored under that name.
	Load(ctx context.Context, name string) (model.Session, error)

	// List returns the sorted names of every persisted session. The catalog
	// is derived from the backing store on each call.
	List(ctx context.Context) ([]string, error)

	// Delete removes the session and every frame stored for it.
	// Reports false when nothing existed.
	Delete(ctx context.Context, name string) (bool, error)

	// SaveFrame stores an auxiliary frame for the session at index.
	SaveFrame(ctx context.Context, name string, index int, frame model.Frame) error

	// Close releases resources held by the store.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Open builds the Store for backend. For the CSV backend location is the
// sessions directory; for SQLite it is the database path.
func Open(ctx context.Context, backend, location string, opts ...Option) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendCSV:
		return NewCSVStore(location, opts...)
	case BackendSQLite:
		return NewSQLiteStore(ctx, location, opts...)
	default:
		return nil, fmt.Errorf("open store: unknown backend %q", backend)
	}
}

// ValidateName checks that name can key a session on every backend.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if name == "." || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains a relative path element", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
		}
	}
	return nil
}

var extPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

func validateFrame(index int, frame model.Frame) error {
	if index < 0 {
		return fmt.Errorf("%w: negative frame index %d", ErrStorageIO, index)
	}
	if frame.Ext != "" && (!extPattern.MatchString(frame.Ext) || strings.EqualFold(frame.Ext, sessionExt)) {
		return fmt.Errorf("%w: bad frame extension %q", ErrStorageIO, frame.Ext)
	}
	return nil
}

// frameName is the artifact name of frame index for session name.
func frameName(name string, index int, ext string) string {
	base := name + frameInfix + strconv.Itoa(index)
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// isFrameOf reports whether file is a frame artifact of session name.
func isFrameOf(name, file string) bool {
	rest, ok := strings.CutPrefix(file, name+frameInfix)
	if !ok || rest == "" {
		return false
	}
	digits, ext, hasExt := strings.Cut(rest, ".")
	if digits == "" || (hasExt && (ext == "" || strings.EqualFold(ext, sessionExt))) {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

const frameInfix = "_frame_"
