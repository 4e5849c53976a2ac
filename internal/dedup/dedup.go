package dedup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store tracks which message IDs have already been processed. Once an ID is
// marked it stays marked for the life of the store. Implementations must be
// safe for concurrent use.
type Store interface {
	// Seen reports whether the ID was marked before.
	Seen(id string) bool

	// MarkSeen records the ID. Marking an already-seen ID is a no-op.
	MarkSeen(id string) error

	// Count returns the number of tracked IDs.
	Count() int
}

// Memory is an in-process Store. State is lost on restart, so messages
// already reported in a previous run may be reported again.
type Memory struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]struct{})}
}

func (m *Memory) Seen(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[id]
	return ok
}

func (m *Memory) MarkSeen(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[id] = struct{}{}
	return nil
}

func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// File is a Store persisted as an append-only file of IDs, one per line,
// so processed messages are not reported again after a restart.
type File struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	file string
}

// NewFile loads (or creates) a file-backed store at filePath.
func NewFile(filePath string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create seen dir: %w", err)
	}

	s := &File{
		ids:  make(map[string]struct{}),
		file: filePath,
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open seen file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			s.ids[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seen file: %w", err)
	}

	return s, nil
}

func (s *File) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *File) MarkSeen(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[id]; exists {
		return nil
	}
	s.ids[id] = struct{}{}

	f, err := os.OpenFile(s.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open seen file for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, id); err != nil {
		return fmt.Errorf("write seen id: %w", err)
	}
	return nil
}

func (s *File) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
