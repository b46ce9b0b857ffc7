package loansnapshots

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

const (
	defaultSnapshotDir   = "./wal/loan"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 100
	snapshotKeyPrefix    = "loan_snapshot_"
)

var errNotInitialized = errors.New("loan snapshot store is not initialized")

// entry is the WAL payload. The index is stored alongside the snapshot so
// records can be addressed after replay.
type entry struct {
	Index    uint64              `json:"index"`
	Snapshot domain.LoanSnapshot `json:"snapshot"`
}

// WALStore persists loan snapshots in a WAL and serves history queries
// and streaming from it.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens (or replays) the snapshot WAL under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultSnapshotDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init loan snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the snapshot and returns its WAL index.
func (s *WALStore) Append(snapshot domain.LoanSnapshot) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errNotInitialized
	}
	if snapshot.ID == "" {
		return 0, errors.New("loan snapshot id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.wal.CurrentIndex() + 1
	payload, err := json.Marshal(entry{Index: idx, Snapshot: snapshot})
	if err != nil {
		return 0, errors.Wrap(err, "marshal loan snapshot")
	}

	if err := s.wal.Write(idx, snapshotKeyPrefix+snapshot.ID, payload); err != nil {
		return 0, errors.Wrapf(err, "write loan snapshot %s", snapshot.ID)
	}

	return idx, nil
}

func (s *WALStore) scan(keep func(entry) bool) ([]entry, error) {
	var out []entry
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, snapshotKeyPrefix) {
			continue
		}
		var e entry
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return nil, errors.Wrapf(err, "decode loan snapshot %s", msg.Key)
		}
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SnapshotsAfter returns snapshots written after the given WAL index, oldest first.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.LoanSnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wal.CurrentIndex() <= index {
		return nil, nil
	}

	entries, err := s.scan(func(e entry) bool { return e.Index > index })
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })

	records := make([]domain.LoanSnapshotRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, domain.LoanSnapshotRecord{Index: e.Index, Snapshot: e.Snapshot})
	}

	return records, nil
}

// Query returns snapshots taken at or after since, newest first.
func (s *WALStore) Query(since time.Time) ([]domain.LoanSnapshot, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.scan(func(e entry) bool { return !e.Snapshot.Timestamp.Before(since) })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].Snapshot.Timestamp, entries[j].Snapshot.Timestamp
		if ti.Equal(tj) {
			return entries[i].Index > entries[j].Index
		}
		return ti.After(tj)
	})

	out := make([]domain.LoanSnapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Snapshot)
	}

	return out, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
