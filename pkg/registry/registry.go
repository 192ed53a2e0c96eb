// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/validation"
)

//go:embed activity-registry.json
var embedded []byte

var (
	defaultOnce sync.Once
	defaultReg  *ActivityRegistry
	defaultErr  error
)

// Default returns the registry compiled into the binary.
func Default() (*ActivityRegistry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Parse(embedded)
	})
	return defaultReg, defaultErr
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a registry document.
func Parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode activity registry: %w", err)
	}
	return &reg, nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// InputSchema returns the input schema of taskType, or nil when unregistered.
func (r *ActivityRegistry) InputSchema(taskType string) map[string]interface{} {
	if a, ok := r.Find(taskType); ok {
		return a.InputSchema
	}
	return nil
}

// Validate checks naming, uniqueness, timeouts and that every schema compiles.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if err := validation.ValidateActivityNaming(a.ID); err != nil {
			return fmt.Errorf("activity %q: %w", a.ID, err)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %q: taskType is required", a.ID)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("activity %q: duplicate taskType %s", a.ID, a.TaskType)
		}
		seen[a.TaskType] = true
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %q: invalid timeout: %w", a.ID, err)
			}
		}
		if err := validation.CompileSchema(a.InputSchema); err != nil {
			return fmt.Errorf("activity %q input: %w", a.ID, err)
		}
		if err := validation.CompileSchema(a.OutputSchema); err != nil {
			return fmt.Errorf("activity %q output: %w", a.ID, err)
		}
	}
	return nil
}
