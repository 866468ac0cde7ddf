// Package appid holds the application identity shared by config, logging
// and the CLI.
package appid

import "sync"

// Identity names the binary and the keys it derives from its name.
type Identity struct {
	BinaryName string
	EnvPrefix  string
	ConfigName string
	Vendor     string
}

// Default is the identity used unless a test overrides it.
var Default = Identity{
	BinaryName: "nimbusview",
	EnvPrefix:  "NIMBUSVIEW",
	ConfigName: "nimbusview",
	Vendor:     "3leaps",
}

var (
	mu      sync.RWMutex
	current *Identity
)

// Get returns the active identity, initializing it to Default on first use.
func Get() *Identity {
	mu.RLock()
	id := current
	mu.RUnlock()
	if id != nil {
		return id
	}

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		d := Default
		current = &d
	}
	return current
}

// Set replaces the active identity. A nil id restores Default on next Get.
func Set(id *Identity) {
	mu.Lock()
	defer mu.Unlock()
	current = id
}
