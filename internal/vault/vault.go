// Package vault stores the per-device mapping from report id to claim token.
// The file-backed implementation survives restarts. Nothing here is a
// security mechanism: the store re-validates token equality on every
// conditional write.
package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// File is a JSON-file-backed vault. Safe for concurrent use.
type File struct {
	mu     sync.Mutex
	path   string
	tokens map[string]string
}

// DefaultPath returns the vault location under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "straymap", "claims.json"), nil
}

// Open loads (or initializes) the vault file at path.
func Open(path string) (*File, error) {
	v := &File{path: path, tokens: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vault: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v.tokens); err != nil {
			return nil, fmt.Errorf("parse vault %s: %w", path, err)
		}
	}
	return v, nil
}

// Put records the claim token for a report and persists immediately.
func (v *File) Put(reportID, token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[reportID] = token
	return v.flush()
}

// Get returns the token held for a report, if any.
func (v *File) Get(reportID string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.tokens[reportID]
	return t, ok
}

// Delete drops the entry for a report. Deleting an absent entry is a no-op.
func (v *File) Delete(reportID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.tokens[reportID]; !ok {
		return nil
	}
	delete(v.tokens, reportID)
	return v.flush()
}

// IDs lists the report ids with a stored token, sorted for stable output.
func (v *File) IDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.tokens))
	for id := range v.tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (v *File) flush() error {
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	data, err := json.MarshalIndent(v.tokens, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(v.path, data, 0o600); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	return nil
}

// Memory is an in-process vault used by the server's request path and tests.
type Memory struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewMemory creates an empty in-memory vault.
func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]string)}
}

// Put records the claim token for a report.
func (v *Memory) Put(reportID, token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[reportID] = token
	return nil
}

// Get returns the token held for a report, if any.
func (v *Memory) Get(reportID string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.tokens[reportID]
	return t, ok
}

// Delete drops the entry for a report.
func (v *Memory) Delete(reportID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.tokens, reportID)
	return nil
}

// IDs lists the report ids with a stored token.
func (v *Memory) IDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.tokens))
	for id := range v.tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
