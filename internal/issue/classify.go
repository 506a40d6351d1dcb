// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"

	"github.com/bpmkit/bpm/internal/dag"
	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/buildmanifest"
	"github.com/bpmkit/bpm/pkg/cueutil"
	"github.com/bpmkit/bpm/pkg/pipeline"
	"github.com/bpmkit/bpm/pkg/plugin"
	"github.com/bpmkit/bpm/pkg/resolve"
	"github.com/bpmkit/bpm/pkg/semver"
)

// classes maps error sentinels to catalog entries. More specific sentinels
// come first: a local conflict also matches ErrPackageConflict.
var classes = []struct {
	target error
	id     Id
}{
	{resolve.ErrLocalPackageConflict, LocalPackageConflictId},
	{resolve.ErrPackageConflict, PackageConflictId},
	{resolve.ErrPackageNotFound, PackageNotFoundId},
	{dag.ErrCycle, DependencyCycleId},
	{buildmanifest.ErrUnknownInclude, UnknownIncludeId},
	{plugin.ErrMinifierNotFound, MinifierNotFoundId},
	{plugin.ErrCapabilityNotFound, CapabilityNotFoundId},
	{plugin.ErrInvocation, PluginFailedId},
	{pipeline.ErrTooManyTransports, TooManyTransportsId},
	{pipeline.ErrAssetNotFound, AssetNotFoundId},
	{pipeline.ErrPathNotInPackage, PathNotInPackageId},
	{bpmpkg.ErrPackageNotFound, DescriptorNotFoundId},
	{bpmpkg.ErrValidation, InvalidDescriptorId},
	{cueutil.ErrSchema, InvalidDescriptorId},
	{semver.ErrInvalidConstraint, InvalidConstraintId},
	{semver.ErrInvalidVersion, InvalidConstraintId},
}

// Classify returns the catalog entry explaining err, if any.
func Classify(err error) (*Issue, bool) {
	if err == nil {
		return nil, false
	}
	for _, c := range classes {
		if errors.Is(err, c.target) {
			return Get(c.id), true
		}
	}
	return nil, false
}
