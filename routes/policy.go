package routes

import (
	"encoding/json"
	"fmt"
	"os"
)

// RouterPolicy is the per-group entry in routers.json
type RouterPolicy struct {
	DisableAuth bool `json:"disableAuth"`
}

// Policy maps route group names to their auth policy.
//
// A group with no entry requires authentication, as does every group when the
// policy file could not be loaded. Policy is read-only once loaded.
type Policy struct {
	Routers map[string]RouterPolicy `json:"routers"`
}

// RequireAllPolicy returns a policy that requires authentication for every group
func RequireAllPolicy() *Policy {
	return &Policy{Routers: map[string]RouterPolicy{}}
}

// LoadPolicy reads routers.json from path.
// On any error it returns RequireAllPolicy alongside the error so callers can log and continue.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RequireAllPolicy(), fmt.Errorf("failed to read router policy %q: %w", path, err)
	}

	return ParsePolicy(data)
}

// ParsePolicy decodes a routers.json document
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return RequireAllPolicy(), fmt.Errorf("failed to parse router policy: %w", err)
	}
	if policy.Routers == nil {
		policy.Routers = map[string]RouterPolicy{}
	}
	return &policy, nil
}

// RequiresAuth reports whether the named group must be wrapped in the auth gate
func (p *Policy) RequiresAuth(name string) bool {
	if p == nil {
		return true
	}
	entry, ok := p.Routers[name]
	if !ok {
		return true
	}
	return !entry.DisableAuth
}
