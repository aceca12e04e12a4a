// Package store persists project records: the commands a workspace runs,
// the saved pane layout, and window geometry. Records are JSON files, one
// per project, rewritten whole on save (last writer wins); sibling
// windows pick up rewrites through the change watcher instead of polling.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panemux/panemux/internal/layout"
)

// WindowState is the owning window's saved geometry.
type WindowState struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// Project is one workspace's persisted record.
type Project struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Commands    []*layout.Command `json:"commands"`
	Layout      *layout.Record    `json:"layout,omitempty"`
	WindowState *WindowState      `json:"windowState,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// CommandsByID indexes the project's commands for the layout codec.
func (p *Project) CommandsByID() map[int]*layout.Command {
	byID := make(map[int]*layout.Command, len(p.Commands))
	for _, c := range p.Commands {
		byID[c.ID] = c
	}
	return byID
}

// NextCommandID returns an ID one past the highest in use.
func (p *Project) NextCommandID() int {
	max := 0
	for _, c := range p.Commands {
		if c.ID > max {
			max = c.ID
		}
	}
	return max + 1
}

// ProjectStore provides filesystem JSON-based CRUD for Project records.
// Each project is stored as an individual JSON file (e.g. p-003.json)
// under basePath/projects/.
type ProjectStore struct {
	mu         sync.RWMutex
	projectDir string
}

// NewProjectStore creates a ProjectStore backed by the given base
// directory, creating the projects/ subdirectory if needed.
func NewProjectStore(basePath string) (*ProjectStore, error) {
	projectDir := filepath.Join(basePath, "projects")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, fmt.Errorf("create project directory: %w", err)
	}
	return &ProjectStore{projectDir: projectDir}, nil
}

// Dir returns the directory holding project files; the change watcher
// observes it.
func (s *ProjectStore) Dir() string {
	return s.projectDir
}

func projectFile(id int) string {
	return fmt.Sprintf("p-%03d.json", id)
}

// List returns all projects sorted by creation time (oldest first).
func (s *ProjectStore) List() ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.projectDir)
	if err != nil {
		return nil, fmt.Errorf("read project directory: %w", err)
	}

	var projects []*Project
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		project, err := s.readProjectFile(entry.Name())
		if err != nil {
			continue // skip corrupt files
		}
		projects = append(projects, project)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})

	return projects, nil
}

// Get retrieves a single project by ID.
func (s *ProjectStore) Get(id int) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readProjectFile(projectFile(id))
}

// Save persists a project whole. If the project has no ID one is
// allocated. UpdatedAt is always set to now; CreatedAt on first save. The
// write is atomic (tmp + rename) so a concurrent reader never sees a
// partial record.
func (s *ProjectStore) Save(project *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project.ID == 0 {
		id, err := s.nextID()
		if err != nil {
			return err
		}
		project.ID = id
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	project.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	path := filepath.Join(s.projectDir, projectFile(project.ID))
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename project file: %w", err)
	}

	return nil
}

// Delete removes a project by ID.
func (s *ProjectStore) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.projectDir, projectFile(id))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("project not found: %d", id)
		}
		return fmt.Errorf("delete project file: %w", err)
	}
	return nil
}

func (s *ProjectStore) readProjectFile(filename string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(s.projectDir, filename))
	if err != nil {
		return nil, fmt.Errorf("read project file %s: %w", filename, err)
	}
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("unmarshal project %s: %w", filename, err)
	}
	return &project, nil
}

// nextID scans existing project files and returns the next sequential ID.
// Must be called with s.mu held.
func (s *ProjectStore) nextID() (int, error) {
	entries, err := os.ReadDir(s.projectDir)
	if err != nil {
		return 0, fmt.Errorf("read project directory: %w", err)
	}

	maxNum := 0
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".json")
		if !strings.HasPrefix(name, "p-") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimPrefix(name, "p-"))
		if err != nil {
			continue
		}
		if num > maxNum {
			maxNum = num
		}
	}

	return maxNum + 1, nil
}
