package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

// Record is the central job entity. The store owns all records; callers
// only ever see snapshots, so the runner goroutine and HTTP handlers never
// share a mutable record.
type Record struct {
	ID              string
	Status          types.Status
	URLs            []string
	Config          types.JobConfig
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Error           string
	Result          *types.BatchResult
	CancelRequested bool
	OutputDir       string
}

// clone returns a deep copy safe to hand outside the store's lock.
func (r *Record) clone() Record {
	out := *r
	out.URLs = append([]string(nil), r.URLs...)
	out.Config = r.Config.Clone()
	if r.Result != nil {
		res := *r.Result
		res.Files = append([]string(nil), r.Result.Files...)
		if r.Result.FailedURLs != nil {
			res.FailedURLs = make(map[string]string, len(r.Result.FailedURLs))
			for k, v := range r.Result.FailedURLs {
				res.FailedURLs[k] = v
			}
		}
		out.Result = &res
	}
	return out
}

// stageOrder ranks the forward path of the state machine. Terminal and
// cancelling states are not stages and are handled separately.
var stageOrder = map[types.Status]int{
	types.StatusPending:      0,
	types.StatusDownloading:  1,
	types.StatusTranscribing: 2,
	types.StatusFormatting:   3,
}

// Store is the process-local, mutex-guarded mapping from job ID to record.
// It is the single source of truth for status queries. Records live for the
// process lifetime; there is no deletion.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Create registers a new record. The ID must be unique for the store's
// lifetime.
func (s *Store) Create(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("duplicate job id %s", rec.ID)
	}

	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Status = types.StatusPending
	stored := rec.clone()
	s.records[rec.ID] = &stored
	return nil
}

// Get returns a snapshot of a record.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// SetStage applies a forward stage transition reported by the runner.
// Backward notifications (a later URL re-entering the download stage) and
// notifications arriving after a cancel request or terminal state are
// dropped, keeping the published status sequence monotonic. Returns whether
// the transition was applied.
func (s *Store) SetStage(id string, stage types.Status) bool {
	newOrder, isStage := stageOrder[stage]
	if !isStage {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return false
	}
	curOrder, curIsStage := stageOrder[rec.Status]
	if !curIsStage || newOrder <= curOrder {
		return false
	}

	rec.Status = stage
	rec.UpdatedAt = time.Now()
	return true
}

// RequestCancel sets the cancel flag and moves the job to cancelling. The
// transition to cancelled happens later, when the runner observes the flag.
func (s *Store) RequestCancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: job is %s", ErrInvalidState, rec.Status)
	}

	rec.CancelRequested = true
	if rec.Status != types.StatusCancelling {
		rec.Status = types.StatusCancelling
		rec.UpdatedAt = time.Now()
	}
	return nil
}

// CancelRequested reads the cancel flag; this is the should_cancel
// predicate handed to the runner.
func (s *Store) CancelRequested(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return ok && rec.CancelRequested
}

// Finish resolves a job to a terminal state with its batch result. A job in
// cancelling state can only terminalize as cancelled; a completion racing a
// late cancel request is coerced to cancelled so the state machine never
// moves backward out of cancelling.
func (s *Store) Finish(id string, status types.Status, result *types.BatchResult, errMsg string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish requires a terminal status, got %s", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: job already %s", ErrInvalidState, rec.Status)
	}
	if rec.Status == types.StatusCancelling {
		status = types.StatusCancelled
	}

	rec.Status = status
	rec.Result = result
	rec.Error = errMsg
	rec.UpdatedAt = time.Now()
	return nil
}

// Len reports how many records the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
