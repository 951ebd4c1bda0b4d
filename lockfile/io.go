package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/provreq/go-provreq/addrs"
)

// lockfilePermissions is the file permission mode for lock files.
// Using 0600 for security (owner read/write only).
const lockfilePermissions = 0o600

// DefaultLockName is the conventional lock file name within a configuration
// directory.
const DefaultLockName = "providers.lock.json"

// ReadFile reads and parses a lock file from the given path.
func ReadFile(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}
	return Parse(data)
}

// Parse parses lock file JSON data.
func Parse(data []byte) (*Lock, error) {
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file JSON: %w", err)
	}
	if !IsSupported(lock.Version) {
		return nil, &UnsupportedVersionError{Found: lock.Version}
	}

	// Initialize nil map to empty map for consistency
	if lock.Providers == nil {
		lock.Providers = make(map[addrs.Provider]*ProviderEntry)
	}

	for provider, entry := range lock.Providers {
		if entry == nil || entry.Version == "" {
			return nil, fmt.Errorf("lock entry for %s has no version", provider)
		}
		for _, h := range entry.Hashes {
			if !ValidHash(h) {
				return nil, fmt.Errorf("lock entry for %s has malformed hash %q", provider, h)
			}
		}
	}

	return &lock, nil
}

// WriteFile writes the lock file to the given path with deterministic
// formatting.
func (l *Lock) WriteFile(path string) error {
	data, err := l.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, lockfilePermissions)
}

// WriteTo writes the lock file to the given writer.
func (l *Lock) WriteTo(w io.Writer) (int64, error) {
	data, err := l.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Marshal serializes the lock file to JSON with deterministic key ordering:
// encoding the same lock twice produces byte-identical output.
func (l *Lock) Marshal() ([]byte, error) {
	ordered := orderedLock{
		Version:   l.Version,
		Providers: sortedProviderMap(l.Providers),
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ordered); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// orderedLock is used for deterministic JSON output.
type orderedLock struct {
	Version   int                `json:"version"`
	Providers orderedProviderMap `json:"providers"`
}

// orderedProviderMap marshals provider entries with sorted keys and sorted
// hash lists.
type orderedProviderMap struct {
	keys   []addrs.Provider
	values map[addrs.Provider]*ProviderEntry
}

func sortedProviderMap(m map[addrs.Provider]*ProviderEntry) orderedProviderMap {
	lock := Lock{Providers: m}
	return orderedProviderMap{keys: lock.SortedProviders(), values: m}
}

func (o orderedProviderMap) MarshalJSON() ([]byte, error) {
	if len(o.keys) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		entry := *o.values[k]
		entry.Hashes = sortedHashes(entry.Hashes)

		keyJSON, _ := json.Marshal(k.String())
		valJSON, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Exists returns true if a lock file exists at the given path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DefaultPath returns the default lock file path within a configuration
// directory.
func DefaultPath(configDir string) string {
	if configDir == "" {
		return DefaultLockName
	}
	return filepath.Join(configDir, DefaultLockName)
}
