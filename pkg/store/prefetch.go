// SPDX-License-Identifier: MPL-2.0

package store

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"
)

// prefetchLimit bounds concurrent installs.
const prefetchLimit = 4

// Request names a package and version constraint to install.
type Request struct {
	Name       string
	Constraint string
}

// Prefetch installs every request concurrently and returns the installed
// refs sorted by name, so that callers see the same result regardless of
// completion order. The first failure cancels the remaining installs.
func Prefetch(ctx context.Context, s PackageStore, reqs []Request, prerelease bool) ([]ResolvedRef, error) {
	results := make([][]ResolvedRef, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for i, req := range reqs {
		g.Go(func() error {
			refs, err := s.Install(gctx, req.Name, req.Constraint, prerelease)
			if err != nil {
				return err
			}
			results[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []ResolvedRef
	for _, refs := range results {
		out = append(out, refs...)
	}
	slices.SortStableFunc(out, func(a, b ResolvedRef) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}
