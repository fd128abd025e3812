// Package noteservice implements the vault operations exposed as tools:
// ID lookup, note creation, prepend, move and backlinking.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"

	"github.com/starford/vaultkeeper/internal/apperr"
	"github.com/starford/vaultkeeper/internal/storage"
)

// DefaultGreetingName is the name callers use when none is supplied.
const DefaultGreetingName = "World"

var idPrefixRe = regexp.MustCompile(`^[0-9]+`)

// Event kinds reported to the EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventMoved   = "moved"
)

// Event describes a successful vault mutation. From is set for moves only.
type Event struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	From string `json:"from,omitempty"`
}

// EventCallback is called after every successful mutation.
type EventCallback func(Event)

// Option configures a Service.
type Option func(*Service)

// WithEventCallback registers cb to observe vault mutations.
func WithEventCallback(cb EventCallback) Option {
	return func(s *Service) {
		s.onEvent = cb
	}
}

// WithLogger sets the logger used for operation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service runs vault operations on top of a storage provider.
//
// Every relative path goes through the provider's path guard before any
// filesystem access. Calls touching the same file are serialized.
type Service struct {
	store   storage.Provider
	locks   *pathLocks
	onEvent EventCallback
	logger  *slog.Logger
}

// NewService creates a new note service.
func NewService(store storage.Provider, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locks:  newPathLocks(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hello returns the fixed greeting for name. An empty name is formatted
// as is.
func (s *Service) Hello(name string) string {
	return fmt.Sprintf("Hello %s from Vault Keeper MCP!", name)
}

// NextID returns one more than the largest leading number among the
// direct entries of folder. A missing folder yields 0 and a folder
// without numbered entries yields 1.
func (s *Service) NextID(_ context.Context, folder string) (*big.Int, error) {
	exists, err := s.store.Exists(folder)
	if err != nil {
		return nil, err
	}
	if !exists {
		return big.NewInt(0), nil
	}
	names, err := s.store.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	maxID := new(big.Int)
	current := new(big.Int)
	for _, name := range names {
		digits := idPrefixRe.FindString(name)
		if digits == "" {
			continue
		}
		current.SetString(digits, 10)
		if current.Cmp(maxID) > 0 {
			maxID.Set(current)
		}
	}
	return maxID.Add(maxID, big.NewInt(1)), nil
}

// CreateNote writes content to a new file at path, creating parent
// directories. It never touches an existing file.
func (s *Service) CreateNote(_ context.Context, path, content string) (Outcome, error) {
	abs, err := s.store.SafePath(path)
	if err != nil {
		return Outcome{}, err
	}
	defer s.locks.lock(abs)()

	if err := s.store.Create(path, []byte(content)); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return rejected(apperr.ErrAlreadyExists, "File already exists at %s", path), nil
		}
		return Outcome{}, err
	}
	s.emit(Event{Kind: EventCreated, Path: path})
	return succeeded("Created %s", path), nil
}

// PrependText writes text in front of the existing content of path.
// The whole file is replaced atomically.
func (s *Service) PrependText(_ context.Context, path, text string) (Outcome, error) {
	abs, err := s.store.SafePath(path)
	if err != nil {
		return Outcome{}, err
	}
	defer s.locks.lock(abs)()

	original, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return rejected(apperr.ErrNotFound, "File %s not found.", path), nil
		}
		return Outcome{}, err
	}

	updated := make([]byte, 0, len(text)+len(original))
	updated = append(updated, text...)
	updated = append(updated, original...)
	if err := s.store.Write(path, updated); err != nil {
		return Outcome{}, err
	}
	s.emit(Event{Kind: EventUpdated, Path: path})
	return succeeded("Prepended text to %s", path), nil
}

// MoveNote relocates src to dst. An existing destination is never
// overwritten.
func (s *Service) MoveNote(_ context.Context, src, dst string) (Outcome, error) {
	absSrc, err := s.store.SafePath(src)
	if err != nil {
		return Outcome{}, err
	}
	absDst, err := s.store.SafePath(dst)
	if err != nil {
		return Outcome{}, err
	}
	defer s.locks.lock(absSrc, absDst)()

	if err := s.store.Move(src, dst); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return rejected(apperr.ErrNotFound, "Source %s not found.", src), nil
		case errors.Is(err, apperr.ErrAlreadyExists):
			return rejected(apperr.ErrAlreadyExists,
				"Destination %s already exists. To prevent overwriting, the move has been cancelled.", dst), nil
		}
		return Outcome{}, err
	}
	s.emit(Event{Kind: EventMoved, Path: dst, From: src})
	return succeeded("Moved %s to %s", src, dst), nil
}

// AddBacklink appends a wiki-link to noteToLink at the end of parent.
// noteToLink is only used for its base name and is never opened.
func (s *Service) AddBacklink(_ context.Context, parent, noteToLink string) (Outcome, error) {
	abs, err := s.store.SafePath(parent)
	if err != nil {
		return Outcome{}, err
	}
	defer s.locks.lock(abs)()

	name := LinkName(noteToLink)
	if err := s.store.Append(parent, []byte(BacklinkLine(name))); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return rejected(apperr.ErrNotFound, "Parent note %s not found.", parent), nil
		}
		return Outcome{}, err
	}
	s.emit(Event{Kind: EventUpdated, Path: parent})
	return succeeded("Linked %s to %s", name, parent), nil
}

// LinkName derives the wiki-link display name of a note: its final path
// segment without the extension. Leading dots do not start an extension.
func LinkName(note string) string {
	base := note
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	stem := strings.TrimLeft(base, ".")
	if i := strings.LastIndex(stem, "."); i > 0 {
		return base[:len(base)-len(stem)+i]
	}
	return base
}

// BacklinkLine is the text appended to a parent note for name.
func BacklinkLine(name string) string {
	return "\n- [[" + name + "]]"
}

func (s *Service) emit(ev Event) {
	s.logger.Debug("vault changed",
		slog.String("kind", ev.Kind),
		slog.String("path", ev.Path))
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
