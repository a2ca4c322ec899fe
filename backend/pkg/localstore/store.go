// Package localstore owns the service's mutable operational state: the five
// entity collections persisted as one human-inspectable JSON snapshot,
// written atomically, with lookup indices rebuilt after every load and save.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

const snapshotFile = "snapshot.json"

// State is the full persisted snapshot. It is only ever mutated through
// Store.Update and read through Store.View.
type State struct {
	Institutions map[string]models.Institution      `json:"institutions"`
	Auditors     map[string]models.Auditor          `json:"auditors"`
	Associates   map[string]models.Associate        `json:"associates"`
	Transactions map[string]models.LocalTransaction `json:"transactions"`
	Config       models.Config                      `json:"config"`
}

func emptyState() *State {
	return &State{
		Institutions: map[string]models.Institution{},
		Auditors:     map[string]models.Auditor{},
		Associates:   map[string]models.Associate{},
		Transactions: map[string]models.LocalTransaction{},
		Config:       models.Config{Theme: "default"},
	}
}

// indices are derived lookup maps, rebuilt wholesale after load and save.
type indices struct {
	institutionByName map[string]string
	associatesByInst  map[string][]string
	txsByInst         map[string][]string
}

// Store is the process-wide snapshot owner.
type Store struct {
	path string
	log  *zap.Logger

	mu    sync.RWMutex
	state *State
	idx   indices

	lockMu    sync.Mutex
	instLocks map[string]*sync.Mutex
}

// Open loads the snapshot from dataDir (creating an empty one on first run),
// validates its constraints and builds the indices. Violations abort startup
// unless allowInvalid is set; every violation found is reported, not just
// the first.
func Open(dataDir string, allowInvalid bool, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		path:      filepath.Join(dataDir, snapshotFile),
		log:       log,
		instLocks: map[string]*sync.Mutex{},
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.state = emptyState()
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read snapshot: %w", err)
	default:
		state := emptyState()
		if err := json.Unmarshal(raw, state); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		s.state = state
	}

	if violations := Validate(s.state); len(violations) > 0 {
		for _, v := range violations {
			log.Error("snapshot constraint violation", zap.String("violation", v))
		}
		if !allowInvalid {
			return nil, fmt.Errorf("snapshot failed validation with %d violation(s); set STORE_ALLOW_INVALID=true to override", len(violations))
		}
		log.Warn("starting with invalid snapshot (override enabled)")
	}

	s.rebuildIndices()
	return s, nil
}

// Validate collects every constraint violation in the snapshot.
func Validate(state *State) []string {
	var out []string

	seenNames := map[string]string{}
	for id, inst := range state.Institutions {
		key := strings.ToLower(inst.Name)
		if other, ok := seenNames[key]; ok {
			out = append(out, fmt.Sprintf("duplicate institution name %q (ids %s, %s)", inst.Name, other, id))
			continue
		}
		seenNames[key] = id
	}

	counts := map[string]int{}
	usernames := map[string]string{}
	for id, a := range state.Associates {
		counts[a.InstitutionID]++
		key := a.InstitutionID + "/" + strings.ToLower(a.Username)
		if other, ok := usernames[key]; ok {
			out = append(out, fmt.Sprintf("duplicate associate username %q in institution %s (ids %s, %s)", a.Username, a.InstitutionID, other, id))
		} else {
			usernames[key] = id
		}
	}
	for instID, n := range counts {
		if n > models.MaxAssociatesPerInstitution {
			out = append(out, fmt.Sprintf("institution %s has %d associates (max %d)", instID, n, models.MaxAssociatesPerInstitution))
		}
	}

	return out
}

func (s *Store) rebuildIndices() {
	idx := indices{
		institutionByName: map[string]string{},
		associatesByInst:  map[string][]string{},
		txsByInst:         map[string][]string{},
	}
	for id, inst := range s.state.Institutions {
		idx.institutionByName[strings.ToLower(inst.Name)] = id
	}
	for id, a := range s.state.Associates {
		idx.associatesByInst[a.InstitutionID] = append(idx.associatesByInst[a.InstitutionID], id)
	}
	for id, t := range s.state.Transactions {
		idx.txsByInst[t.InstitutionID] = append(idx.txsByInst[t.InstitutionID], id)
	}
	s.idx = idx
}

// saveLocked writes the snapshot atomically: encode to a temp file in the
// same directory, then rename over the final path. Callers hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Update applies fn to the state under the write lock and persists the
// result. If fn fails nothing is persisted. If the save fails the in-memory
// mutation is KEPT (the remote effect it records may already be final) and
// the error surfaces as Internal; a later successful save flushes it.
func (s *Store) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.state); err != nil {
		return err
	}
	s.rebuildIndices()

	if err := s.saveLocked(); err != nil {
		s.log.Error("snapshot save failed; in-memory state retained", zap.Error(err))
		return apperr.Wrap(apperr.Internal, "failed to persist state", err)
	}
	return nil
}

// View runs fn with read access to the state. fn must not retain or mutate
// anything reachable from the state.
func (s *Store) View(fn func(*State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Flush persists the current state; used on shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// InstitutionByName resolves a case-insensitive name to an institution id.
func (s *Store) InstitutionByName(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idx.institutionByName[strings.ToLower(name)]
	return id, ok
}

// AssociateIDs returns the associate ids of an institution.
func (s *Store) AssociateIDs(institutionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.idx.associatesByInst[institutionID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// TransactionIDs returns the locally-known transaction ids of an institution.
func (s *Store) TransactionIDs(institutionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.idx.txsByInst[institutionID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// InstitutionLock returns the mutex serializing all mutating work for one
// institution. Held across check -> submit -> persist sequences so the
// admission balance check and the submission it gates cannot interleave
// with another writer to the same institution.
func (s *Store) InstitutionLock(institutionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.instLocks[institutionID]
	if !ok {
		l = &sync.Mutex{}
		s.instLocks[institutionID] = l
	}
	return l
}
