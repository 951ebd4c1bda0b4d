package provreq

import (
	"fmt"
	"sort"
	"strings"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/solver"
)

// buildYankedPolicy translates the resolver's yanked-version settings into
// the policy the per-provider solver understands. Allowlist entries take the
// form "<address>@<version>", or the keyword "all" to readmit every yanked
// version.
func buildYankedPolicy(cfg *resolverConfig) (*solver.Policy, error) {
	policy := &solver.Policy{Yanked: cfg.yankedBehavior}

	for _, entry := range cfg.allowYankedVersions {
		if entry == "all" {
			policy.AllowAllYankedVersions()
			continue
		}

		rawAddr, version, found := strings.Cut(entry, "@")
		if !found || rawAddr == "" || version == "" {
			return nil, fmt.Errorf("invalid yanked-version allowlist entry %q: want \"<address>@<version>\" or \"all\"", entry)
		}

		provider, err := addrs.ParseProviderSource(rawAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid yanked-version allowlist entry %q: %w", entry, err)
		}

		policy.AllowYankedVersion(provider, version)
	}

	return policy, nil
}

// yankedSelectionsError aggregates per-provider yanked rejections into one
// error, sorted by provider address so the message is stable.
func yankedSelectionsError(errs []*solver.YankedVersionError) error {
	if len(errs) == 0 {
		return nil
	}

	sort.Slice(errs, func(i, j int) bool {
		return errs[i].Provider.Less(errs[j].Provider)
	})

	return &YankedVersionsError{Selections: errs}
}
