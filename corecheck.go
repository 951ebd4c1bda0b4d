package provreq

import (
	goversion "github.com/hashicorp/go-version"
)

// checkCoreVersions verifies every module's required_core constraints
// against the running core version. Constraint checks use the core part of
// the running version so that prerelease builds of a release still satisfy
// constraints naming that release.
//
// All failures are collected before returning so the caller sees every
// module that would refuse this core version, not just the first.
func checkCoreVersions(root *Module, running *goversion.Version) error {
	if root == nil || running == nil {
		return nil
	}
	core := running.Core()

	var failed []CoreVersionConstraint
	walkModules(root, RootModuleName, func(path string, mod *Module) {
		for _, raw := range mod.RequiredCore {
			constraint, err := goversion.NewConstraint(raw)
			if err != nil {
				// Malformed constraints are rejected at parse time.
				continue
			}
			if !constraint.Check(core) {
				failed = append(failed, CoreVersionConstraint{
					ModulePath: path,
					Constraint: raw,
				})
			}
		}
	})

	if len(failed) == 0 {
		return nil
	}
	return &CoreVersionError{Running: running.String(), Failed: failed}
}
