// Package file provides a file-based persistence implementation used in
// development and unit tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/foreman-hq/foreman/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of per-collection
// JSON files. A single process-wide mutex stands in for row-level locking;
// that is good enough for tests and single-process development, which is all
// this implementation is for.
type Persistence struct {
	store *store

	triggerRepo       *TriggerRepository
	chainRepo         *ChainRepository
	workflowStateRepo *WorkflowStateRepository
	inboxRepo         *InboxRepository
	agentConfigRepo   *AgentConfigRepository
	workOrderRepo     *WorkOrderRepository
	deliverableRepo   *DeliverableRepository
	taskRepo          *TaskRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	s := &store{root: cleanRoot}

	return &Persistence{
		store:             s,
		triggerRepo:       &TriggerRepository{store: s},
		chainRepo:         &ChainRepository{store: s},
		workflowStateRepo: &WorkflowStateRepository{store: s},
		inboxRepo:         &InboxRepository{store: s},
		agentConfigRepo:   &AgentConfigRepository{store: s},
		workOrderRepo:     &WorkOrderRepository{store: s},
		deliverableRepo:   &DeliverableRepository{store: s},
		taskRepo:          &TaskRepository{store: s},
	}
}

func (p *Persistence) TriggerRepository() persistence.TriggerRepository {
	return p.triggerRepo
}

func (p *Persistence) ChainRepository() persistence.ChainRepository {
	return p.chainRepo
}

func (p *Persistence) WorkflowStateRepository() persistence.WorkflowStateRepository {
	return p.workflowStateRepo
}

func (p *Persistence) InboxRepository() persistence.InboxRepository {
	return p.inboxRepo
}

func (p *Persistence) AgentConfigRepository() persistence.AgentConfigRepository {
	return p.agentConfigRepo
}

func (p *Persistence) WorkOrderRepository() persistence.WorkOrderRepository {
	return p.workOrderRepo
}

func (p *Persistence) DeliverableRepository() persistence.DeliverableRepository {
	return p.deliverableRepo
}

func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.taskRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. There is nothing to clean up for
// file-based persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// store serializes JSON documents under root/<collection>/<id>.json.
type store struct {
	root string
	mu   sync.RWMutex
}

func (s *store) write(collection, id string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeLocked(collection, id, v)
}

func (s *store) writeLocked(collection, id string, v any) error {
	dir := filepath.Join(s.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create collection directory %s: %w", collection, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}

	return nil
}

// read decodes the document into v. It returns false when the document does
// not exist.
func (s *store) read(collection, id string, v any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readLocked(collection, id, v)
}

func (s *store) readLocked(collection, id string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.root, collection, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}

	return true, nil
}

// ids lists document ids in a collection. A missing collection directory is
// an empty collection.
func (s *store) ids(collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root := os.DirFS(filepath.Join(s.root, collection))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}

// delete removes the document. Deleting a missing document is a no-op.
func (s *store) delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.root, collection, id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	return nil
}

// update applies fn to the stored document under the write lock, emulating a
// row-level atomic update.
func (s *store) update(collection, id string, v any, fn func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.readLocked(collection, id, v)
	if err != nil || !found {
		return found, err
	}

	if err := fn(); err != nil {
		return true, err
	}

	return true, s.writeLocked(collection, id, v)
}
