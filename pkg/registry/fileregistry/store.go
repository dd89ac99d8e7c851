// Package fileregistry implements the primary job registry on the local
// filesystem, for single-node deployments and tests. Production deployments
// plug in a Zookeeper-backed registry instead.
//
// Directory layout:
//
//	<root>/<user_id>/<job_id>/job.json
//
// Entries are stored as free-form JSON objects so that patches can merge
// fields (e.g. result metadata) the registry.JobRecord struct does not model.
package fileregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/eodrift/jobtracker/pkg/jobstatus"
	"github.com/eodrift/jobtracker/pkg/registry"
	"github.com/eodrift/jobtracker/pkg/tracker"
)

// lockRetryInterval is how often Connect re-attempts a contended lock.
const lockRetryInterval = 50 * time.Millisecond

// Store persists job records under a root directory.
type Store struct {
	root string
}

var _ tracker.PrimaryRegistry = (*Store)(nil)

// NewStore creates a file-backed registry rooted at root.
func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

// RootDir returns the registry root directory.
func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) jobDir(jobID, userID string) string {
	return filepath.Join(s.root, userID, jobID)
}

func (s *Store) jobPath(jobID, userID string) string {
	return filepath.Join(s.jobDir(jobID, userID), "job.json")
}

func (s *Store) ensureRoot() error {
	if s.root == "" {
		return fmt.Errorf("registry root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Connect acquires an exclusive session on the registry, backed by a file
// lock on <root>/.lock. The lock is held for the whole tracking pass and
// released by Session.Close.
//
// Acquisition is non-blocking with retries so that ctx cancellation is
// honored while another session holds the lock.
func (s *Store) Connect(ctx context.Context) (tracker.PrimarySession, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	lock, err := os.OpenFile(filepath.Join(s.root, ".lock"), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open registry lock: %w", err)
	}
	for {
		err := syscall.Flock(int(lock.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &Session{store: s, lock: lock}, nil
		}
		if err != syscall.EWOULDBLOCK {
			_ = lock.Close()
			return nil, fmt.Errorf("acquire registry lock: %w", err)
		}
		select {
		case <-ctx.Done():
			_ = lock.Close()
			return nil, fmt.Errorf("acquire registry lock: %w", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

// Ping reports whether the registry root is reachable, without taking the
// registry lock. Health probes use this so they never contend with an
// in-progress tracking pass.
func (s *Store) Ping(ctx context.Context) error {
	if s.root == "" {
		return fmt.Errorf("registry root dir is empty")
	}
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("registry root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("registry root %s is not a directory", s.root)
	}
	return nil
}

// Session is a scoped, exclusively locked connection to the store.
type Session struct {
	store *Store
	lock  *os.File
}

var _ tracker.PrimarySession = (*Session)(nil)

// Close releases the registry lock.
func (s *Session) Close() error {
	if s.lock == nil {
		return nil
	}
	err := syscall.Flock(int(s.lock.Fd()), syscall.LOCK_UN)
	if cerr := s.lock.Close(); err == nil {
		err = cerr
	}
	s.lock = nil
	return err
}

// GetRunningJobs enumerates all records whose status is not terminal,
// sorted by user then job id for deterministic pass ordering.
func (s *Session) GetRunningJobs(ctx context.Context) ([]registry.JobRecord, error) {
	users, err := os.ReadDir(s.store.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry root: %w", err)
	}

	var out []registry.JobRecord
	for _, user := range users {
		if !user.IsDir() {
			continue
		}
		jobs, err := os.ReadDir(filepath.Join(s.store.root, user.Name()))
		if err != nil {
			continue
		}
		for _, job := range jobs {
			if !job.IsDir() {
				continue
			}
			rec, err := s.get(job.Name(), user.Name())
			if err != nil {
				continue
			}
			if rec.Status.Terminal() {
				continue
			}
			out = append(out, *rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JobID < out[j].JobID
	})
	return out, nil
}

func (s *Session) get(jobID, userID string) (*registry.JobRecord, error) {
	b, err := os.ReadFile(s.store.jobPath(jobID, userID))
	if err != nil {
		return nil, err
	}
	var rec registry.JobRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("parse job.json: %w", err)
	}
	return &rec, nil
}

// Patch merges fields into the entry's JSON object; a nil field value
// removes the key. The write is atomic (temp file + rename).
func (s *Session) Patch(ctx context.Context, jobID, userID string, fields map[string]any) error {
	entry, err := s.readEntry(jobID, userID)
	if err != nil {
		return err
	}
	for k, v := range fields {
		if v == nil {
			delete(entry, k)
			continue
		}
		entry[k] = v
	}
	return s.writeEntry(jobID, userID, entry)
}

// SetStatus overwrites only the status of the entry.
func (s *Session) SetStatus(ctx context.Context, jobID, userID string, status jobstatus.Status) error {
	return s.Patch(ctx, jobID, userID, map[string]any{"status": status})
}

// RemoveDependencies clears the dependency bookkeeping fields of the entry.
func (s *Session) RemoveDependencies(ctx context.Context, jobID, userID string) error {
	return s.Patch(ctx, jobID, userID, map[string]any{
		"dependency_sources": nil,
		"dependency_usage":   nil,
	})
}

// Insert writes a fresh record. Job submission is outside the tracker; this
// exists for tooling and tests that seed a registry.
func (s *Session) Insert(jobID, userID string, rec registry.JobRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(b, &entry); err != nil {
		return err
	}
	return s.writeEntry(jobID, userID, entry)
}

func (s *Session) readEntry(jobID, userID string) (map[string]any, error) {
	b, err := os.ReadFile(s.store.jobPath(jobID, userID))
	if err != nil {
		return nil, fmt.Errorf("read job entry: %w", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("parse job entry: %w", err)
	}
	return entry, nil
}

func (s *Session) writeEntry(jobID, userID string, entry map[string]any) error {
	jobDir := s.store.jobDir(jobID, userID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job entry: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(jobDir, "job.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp job file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp job file: %w", err)
	}

	if err := os.Rename(tmpName, s.store.jobPath(jobID, userID)); err != nil {
		return fmt.Errorf("rename job file: %w", err)
	}
	return nil
}
