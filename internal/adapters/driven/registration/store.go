package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RegistrationStore = (*FileStore)(nil)

const (
	pointerFile = "current.json"
	versionsDir = "versions"
)

// pointer is the content of a deployment's current.json
type pointer struct {
	RegistrationID string `json:"registrationId"`
}

// FileStore implements driven.RegistrationStore on the local filesystem.
//
// Layout per deployment:
//
//	<root>/<deployment>/versions/<id>.json   one file per registration, written once
//	<root>/<deployment>/current.json         the active pointer, swapped by rename
//
// Activations within one process are serialized; across processes the publish
// lock keeps a single writer.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// PointerPath returns the current.json path for a deployment
func (s *FileStore) PointerPath(deployment string) string {
	return filepath.Join(s.deploymentDir(deployment), pointerFile)
}

func (s *FileStore) deploymentDir(deployment string) string {
	if deployment == "" {
		deployment = domain.DefaultDeployment
	}
	return filepath.Join(s.root, deployment)
}

// Activate writes reg as a new version file and then swaps current.json to it.
func (s *FileStore) Activate(ctx context.Context, reg *domain.AgentRegistration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if reg == nil || reg.ID == "" {
		return fmt.Errorf("registration id required: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.deploymentDir(reg.Deployment)
	if err := os.MkdirAll(filepath.Join(dir, versionsDir), 0o755); err != nil {
		return fmt.Errorf("failed to create registration directory: %w", err)
	}

	prev, err := s.readPointer(reg.Deployment)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read active registration: %w", err)
	}
	reg.SupersededID = prev.RegistrationID

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	// O_EXCL keeps a version from ever being overwritten
	versionPath := filepath.Join(dir, versionsDir, reg.ID+".json")
	f, err := os.OpenFile(versionPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return fmt.Errorf("registration %s: %w", reg.ID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create registration file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write registration file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close registration file: %w", err)
	}

	ptr, err := json.Marshal(pointer{RegistrationID: reg.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal pointer: %w", err)
	}
	if err := writeAtomic(s.PointerPath(reg.Deployment), ptr); err != nil {
		return fmt.Errorf("failed to activate registration: %w", err)
	}
	return nil
}

// Active returns the registration current.json points at
func (s *FileStore) Active(ctx context.Context, deployment string) (*domain.AgentRegistration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ptr, err := s.readPointer(deployment)
	if os.IsNotExist(err) {
		return nil, domain.ErrNoActiveAgent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active registration: %w", err)
	}
	if ptr.RegistrationID == "" {
		return nil, domain.ErrNoActiveAgent
	}

	reg, err := s.readVersion(deployment, ptr.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registration %s: %w", ptr.RegistrationID, err)
	}
	return reg, nil
}

// History lists a deployment's registrations, newest first
func (s *FileStore) History(ctx context.Context, deployment string, limit int) ([]*domain.AgentRegistration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.deploymentDir(deployment), versionsDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	var regs []*domain.AgentRegistration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		reg, err := s.readVersion(deployment, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, fmt.Errorf("failed to load registration %s: %w", name, err)
		}
		regs = append(regs, reg)
	}

	sort.Slice(regs, func(i, j int) bool {
		return regs[i].CreatedAt.After(regs[j].CreatedAt)
	})
	if limit > 0 && len(regs) > limit {
		regs = regs[:limit]
	}
	return regs, nil
}

func (s *FileStore) readPointer(deployment string) (pointer, error) {
	var ptr pointer
	data, err := os.ReadFile(s.PointerPath(deployment))
	if err != nil {
		return ptr, err
	}
	if err := json.Unmarshal(data, &ptr); err != nil {
		return ptr, fmt.Errorf("invalid pointer file: %w", err)
	}
	return ptr, nil
}

func (s *FileStore) readVersion(deployment, id string) (*domain.AgentRegistration, error) {
	data, err := os.ReadFile(filepath.Join(s.deploymentDir(deployment), versionsDir, id+".json"))
	if err != nil {
		return nil, err
	}
	var reg domain.AgentRegistration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// writeAtomic replaces path with data through a temp file and rename
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
