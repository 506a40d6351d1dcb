// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	DescriptorNotFoundId
	InvalidDescriptorId
	InvalidConstraintId
	PackageNotFoundId
	PackageConflictId
	LocalPackageConflictId
	DependencyCycleId
	UnknownIncludeId
	MinifierNotFoundId
	CapabilityNotFoundId
	PluginFailedId
	TooManyTransportsId
	AssetNotFoundId
	PathNotInPackageId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using the glamour style at
// stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

bpm reads ` + "`config.cue`" + ` from its configuration directory, then the
current directory. Environment variables prefixed with ` + "`BPM_`" + ` override it.

## Things you can try:
- Check the file for CUE syntax errors
- Show the effective configuration:
~~~
$ bpm config show
~~~

## Example config.cue:
~~~cue
cache_dir: "~/.cache/bpm"
default_mode: "debug"
minify_cache_size: 128
plugin_cache_size: 64
ui: {
  verbose: false
  color_scheme: "auto"
}
~~~`,
	}

	descriptorNotFoundIssue = &Issue{
		id: DescriptorNotFoundId,
		mdMsg: `
# No package.json found!

Every bpm package and project has a ` + "`package.json`" + ` at its root.

## Things you can try:
- Run bpm from the project root
- Create a descriptor:
~~~json
{
  "name": "my-app",
  "version": "0.1.0",
  "summary": "My browser app"
}
~~~`,
	}

	invalidDescriptorIssue = &Issue{
		id: InvalidDescriptorId,
		mdMsg: `
# Invalid package descriptor!

The package.json does not match the descriptor schema.

## Common causes:
- ` + "`name`" + ` or ` + "`version`" + ` is missing
- A dependency constraint does not parse
- ` + "`bpm:provides`" + ` names an unknown capability

## Things you can try:
~~~
$ bpm validate
~~~`,
	}

	invalidConstraintIssue = &Issue{
		id: InvalidConstraintId,
		mdMsg: `
# Invalid version constraint!

Constraints combine comparisons with commas, for example ` + "`>= 1.2, < 2.0`" + `.
Supported operators are ` + "`=`, `!=`, `>`, `>=`, `<`, `<=`, `~>`, `~` and `^`" + `.`,
	}

	packageNotFoundIssue = &Issue{
		id: PackageNotFoundId,
		mdMsg: `
# Package not found!

No vendored, installed or remote package satisfies the requested constraint.

## Things you can try:
- Check the spelling of the package name:
~~~
$ bpm search <name>
~~~
- Relax the version constraint
- Check the configured mirror in ` + "`config.cue`",
	}

	packageConflictIssue = &Issue{
		id: PackageConflictId,
		mdMsg: `
# Dependency conflict!

Two packages require versions of the same dependency that cannot both be
satisfied. Only one version of each package is loaded into a build.

## Things you can try:
- Inspect the dependency tree:
~~~
$ bpm deps
~~~
- Upgrade the package holding the older requirement`,
	}

	localPackageConflictIssue = &Issue{
		id: LocalPackageConflictId,
		mdMsg: `
# Vendored package conflict!

A package vendored under ` + "`packages/`" + ` does not satisfy a dependency's
constraint. Vendored packages always win over installed ones.

## Things you can try:
- Update the vendored copy
- Remove the vendored copy to let bpm fetch a matching version`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

The packages require each other in a loop, so no load order exists.

## Things you can try:
- Remove one of the dependencies in the cycle
- Move shared code into a separate package both can depend on`,
	}

	unknownIncludeIssue = &Issue{
		id: UnknownIncludeId,
		mdMsg: `
# Unknown included package!

A ` + "`bpm:build`" + ` directive includes a package that is not part of the
resolved build.

## Things you can try:
- Add the included package as a dependency
- Remove it from the directive's ` + "`include`" + ` list`,
	}

	minifierNotFoundIssue = &Issue{
		id: MinifierNotFoundId,
		mdMsg: `
# Minifier not found!

A production build names a minifier package that does not provide the
` + "`minifier`" + ` capability.

## Things you can try:
- Check the ` + "`minifier`" + ` setting of the ` + "`bpm:build`" + ` directive
- Build in debug mode, which never minifies:
~~~
$ bpm build --mode debug
~~~`,
	}

	capabilityNotFoundIssue = &Issue{
		id: CapabilityNotFoundId,
		mdMsg: `
# Plugin capability not found!

A package was asked for a plugin it does not declare in ` + "`bpm:provides`" + `.`,
	}

	pluginFailedIssue = &Issue{
		id: PluginFailedId,
		mdMsg: `
# Plugin failed!

A plugin script threw an error or returned something other than a string.

## Things you can try:
- Rerun with ` + "`--verbose`" + ` to see which asset was being processed
- Check the plugin's script for syntax errors`,
	}

	tooManyTransportsIssue = &Issue{
		id: TooManyTransportsId,
		mdMsg: `
# Too many transport plugins!

A package may use at most one transport plugin, but more than one of its
dependencies provides one.

## Things you can try:
- Drop one of the transport providers from the package's dependencies`,
	}

	assetNotFoundIssue = &Issue{
		id: AssetNotFoundId,
		mdMsg: `
# Asset not found!

The logical path does not name a build output or a file in any package.

## Things you can try:
- List the outputs of the build:
~~~
$ bpm manifest
~~~
- Prefix the path with the owning package, for example ` + "`jquery/main`",
	}

	pathNotInPackageIssue = &Issue{
		id: PathNotInPackageId,
		mdMsg: `
# Path is outside every package!

The file does not live under the project or any resolved package, so it
has no module id.`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		descriptorNotFoundIssue.Id():   descriptorNotFoundIssue,
		invalidDescriptorIssue.Id():    invalidDescriptorIssue,
		invalidConstraintIssue.Id():    invalidConstraintIssue,
		packageNotFoundIssue.Id():      packageNotFoundIssue,
		packageConflictIssue.Id():      packageConflictIssue,
		localPackageConflictIssue.Id(): localPackageConflictIssue,
		dependencyCycleIssue.Id():      dependencyCycleIssue,
		unknownIncludeIssue.Id():       unknownIncludeIssue,
		minifierNotFoundIssue.Id():     minifierNotFoundIssue,
		capabilityNotFoundIssue.Id():   capabilityNotFoundIssue,
		pluginFailedIssue.Id():         pluginFailedIssue,
		tooManyTransportsIssue.Id():    tooManyTransportsIssue,
		assetNotFoundIssue.Id():        assetNotFoundIssue,
		pathNotInPackageIssue.Id():     pathNotInPackageIssue,
	}
)

// Values returns every catalogued issue ordered by id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
