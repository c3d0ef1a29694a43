package repository

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/pkg/logger"
	"github.com/okian/inputreplay/pkg/metrics"
)

const sessionExt = "csv"

// csvHeader is the persisted column layout. Unused columns stay empty.
var csvHeader = []string{"timestamp", "type", "x", "y", "button", "pressed", "key"} //nolint:gochecknoglobals // fixed format

const (
	colTimestamp = iota
	colType
	colX
	colY
	colButton
	colPressed
	colKey
	colCount
)

// CSVStore keeps one {name}.csv file per session in a directory, with
// frames stored next to it as {name}_frame_{index}[.ext].
type CSVStore struct {
	dir  string
	opts options
}

var _ Store = (*CSVStore)(nil)

// NewCSVStore creates the store, creating dir if needed.
func NewCSVStore(dir string, opts ...Option) (*CSVStore, error) {
	o := defaultOptions("csv_store")
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("csv store: %w: empty directory", ErrStorageIO)
	}
	if err := os.MkdirAll(dir, o.dirMode); err != nil {
		return nil, fmt.Errorf("csv store: %w: %w", ErrStorageIO, err)
	}
	return &CSVStore{dir: dir, opts: o}, nil
}

// Dir returns the sessions directory.
func (s *CSVStore) Dir() string { return s.dir }

func (s *CSVStore) path(file string) string { return filepath.Join(s.dir, file) }

// Save writes the session to a temp file, syncs it and renames it into place.
func (s *CSVStore) Save(ctx context.Context, session model.Session) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendCSV, "save", time.Since(start), err != nil) }()

	if err := ValidateName(session.Name); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("save %q: %w", session.Name, err)
	}

	err = s.writeAtomic(session.Name+"."+sessionExt, func(w io.Writer) error {
		return encodeCSV(w, session.Events)
	})
	if err != nil {
		s.opts.logger.Error(ctx, "session save failed", logger.String("session", session.Name), logger.Error(err))
		return fmt.Errorf("save %q: %w", session.Name, err)
	}
	s.opts.logger.Info(ctx, "session saved",
		logger.String("session", session.Name),
		logger.Int("events", session.Len()),
	)
	return nil
}

// Load parses {name}.csv.
func (s *CSVStore) Load(ctx context.Context, name string) (session model.Session, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendCSV, "load", time.Since(start), err != nil) }()

	if err := ValidateName(name); err != nil {
		return model.Session{}, fmt.Errorf("load: %w", err)
	}
	f, err := os.Open(s.path(name + "." + sessionExt))
	if errors.Is(err, fs.ErrNotExist) {
		return model.Session{}, fmt.Errorf("load %q: %w", name, ErrSessionNotFound)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("load %q: %w: %w", name, ErrStorageIO, err)
	}
	defer f.Close()

	events, err := decodeCSV(bufio.NewReader(f))
	if err != nil {
		s.opts.logger.Error(ctx, "session parse failed", logger.String("session", name), logger.Error(err))
		return model.Session{}, fmt.Errorf("load %q: %w", name, err)
	}
	session = model.Session{Name: name, Events: events}
	if err := session.Validate(); err != nil {
		return model.Session{}, fmt.Errorf("load %q: %w: %w", name, ErrStorageIO, err)
	}
	return session, nil
}

// List scans the directory for *.csv files.
func (s *CSVStore) List(_ context.Context) (names []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendCSV, "list", time.Since(start), err != nil) }()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list: %w: %w", ErrStorageIO, err)
	}
	names = make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if base, ok := strings.CutSuffix(e.Name(), "."+sessionExt); ok && base != "" {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes {name}.csv and every frame file of the session.
func (s *CSVStore) Delete(ctx context.Context, name string) (removed bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendCSV, "delete", time.Since(start), err != nil) }()

	if err := ValidateName(name); err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	switch err := os.Remove(s.path(name + "." + sessionExt)); {
	case err == nil:
		removed = true
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("delete %q: %w: %w", name, ErrStorageIO, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return removed, fmt.Errorf("delete %q: %w: %w", name, ErrStorageIO, err)
	}
	frames := 0
	for _, e := range entries {
		if e.IsDir() || !isFrameOf(name, e.Name()) {
			continue
		}
		if err := os.Remove(s.path(e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("delete %q frame %s: %w: %w", name, e.Name(), ErrStorageIO, err)
		}
		frames++
	}

	if removed || frames > 0 {
		s.opts.logger.Info(ctx, "session deleted", logger.String("session", name), logger.Int("frames", frames))
	}
	return removed || frames > 0, nil
}

// SaveFrame writes {name}_frame_{index}[.ext].
func (s *CSVStore) SaveFrame(_ context.Context, name string, index int, frame model.Frame) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendCSV, "save_frame", time.Since(start), err != nil) }()

	if err := ValidateName(name); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	if err := validateFrame(index, frame); err != nil {
		return fmt.Errorf("save frame %q/%d: %w", name, index, err)
	}
	err = s.writeAtomic(frameName(name, index, frame.Ext), func(w io.Writer) error {
		_, werr := w.Write(frame.Data)
		return werr
	})
	if err != nil {
		return fmt.Errorf("save frame %q/%d: %w", name, index, err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *CSVStore) Close() error { return nil }

// writeAtomic streams into a temp file in the same directory, fsyncs and
// renames over the target so readers never observe a partial file.
func (s *CSVStore) writeAtomic(file string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, "."+file+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	if err := tmp.Chmod(s.opts.fileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	if err := os.Rename(tmpName, s.path(file)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	committed = true
	return nil
}

func encodeCSV(w io.Writer, events []model.InputEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	row := make([]string, colCount)
	for _, e := range events {
		for i := range row {
			row[i] = ""
		}
		row[colTimestamp] = strconv.FormatFloat(e.Offset, 'f', -1, 64)
		row[colType] = e.Kind.String()
		switch p := e.Payload.(type) {
		case model.PointerMove:
			row[colX], row[colY] = strconv.Itoa(p.X), strconv.Itoa(p.Y)
		case model.PointerButton:
			row[colX], row[colY] = strconv.Itoa(p.X), strconv.Itoa(p.Y)
			row[colButton] = p.Button.String()
			row[colPressed] = strconv.FormatBool(p.Pressed)
		case model.Key:
			row[colKey] = p.Token
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeCSV(r io.Reader) ([]model.InputEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = colCount

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrStorageIO)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	for i, col := range csvHeader {
		if strings.TrimSpace(header[i]) != col {
			return nil, fmt.Errorf("%w: unexpected header %v", ErrStorageIO, header)
		}
	}

	var events []model.InputEvent
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageIO, err)
		}
		e, err := decodeRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrStorageIO, line, err)
		}
		events = append(events, e)
	}
}

func decodeRow(rec []string) (model.InputEvent, error) {
	offset, err := strconv.ParseFloat(rec[colTimestamp], 64)
	if err != nil {
		return model.InputEvent{}, fmt.Errorf("timestamp: %w", err)
	}
	kind, err := model.ParseKind(rec[colType])
	if err != nil {
		return model.InputEvent{}, err
	}

	switch kind {
	case model.KindPointerMove:
		x, y, err := parseXY(rec)
		if err != nil {
			return model.InputEvent{}, err
		}
		return model.NewPointerMove(offset, x, y)
	case model.KindPointerButton:
		x, y, err := parseXY(rec)
		if err != nil {
			return model.InputEvent{}, err
		}
		button, err := model.ParseButton(rec[colButton])
		if err != nil {
			return model.InputEvent{}, err
		}
		pressed, err := strconv.ParseBool(rec[colPressed])
		if err != nil {
			return model.InputEvent{}, fmt.Errorf("pressed: %w", err)
		}
		return model.NewPointerButton(offset, x, y, button, pressed)
	case model.KindKeyDown:
		return model.NewKeyDown(offset, rec[colKey])
	default:
		return model.NewKeyUp(offset, rec[colKey])
	}
}

func parseXY(rec []string) (int, int, error) {
	x, err := strconv.Atoi(rec[colX])
	if err != nil {
		return 0, 0, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.Atoi(rec[colY])
	if err != nil {
		return 0, 0, fmt.Errorf("y: %w", err)
	}
	return x, y, nil
}
