// Package lockfile provides types and operations for the provider
// dependency lock file.
//
// The lock file captures the resolved state of provider dependencies,
// ensuring reproducible runs across machines and time: once a provider
// version is locked, later resolutions keep it as long as it still satisfies
// the declared constraints.
//
// # Lock File Structure
//
// A lock file contains:
//   - version: Schema version for format compatibility
//   - providers: One entry per fully-qualified provider address, recording
//     the selected version, the constraint set that produced it, and the
//     package checksums observed for it
//
// # Usage
//
// Read an existing lock file:
//
//	lock, err := lockfile.ReadFile("providers.lock.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d locked providers\n", lock.Len())
//
// Create a new lock file:
//
//	lock := lockfile.New()
//	lock.SetEntry(addr, &lockfile.ProviderEntry{Version: "5.7.0", Hashes: hashes})
//	if err := lock.WriteFile("providers.lock.json"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Compatibility
//
// Format versions are matched exactly: a lock file written by a newer format
// revision is rejected rather than partially interpreted.
package lockfile
