// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"path"
	"strings"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
)

// contentTypes maps source extensions to content types.
var contentTypes = map[string]string{
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".css":  "text/css",
	".html": "text/html",
	".htm":  "text/html",
	".json": "application/json",
	".txt":  "text/plain",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// ContentType returns the content type of a file by extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

type (
	// Transform is one plugin capability applied to a file.
	Transform struct {
		Plugin     string
		Capability string
	}

	// Format is a format compiler and the content type it produces.
	Format struct {
		Transform
		Output string
	}

	// Registry holds the transforms of one sub-pipeline: format compilers by
	// source extension, and by content type the preprocessors, then the
	// postprocessors, then the transport compiler.
	Registry struct {
		formats map[string]Format
		byType  map[string][]Transform
	}
)

// NewRegistry builds the registry for pkg from the plugins it uses. Plugins
// are consulted in order; the first format compiler for an extension wins.
func NewRegistry(pkg string, plugins []*bpmpkg.Package) (*Registry, error) {
	r := &Registry{formats: make(map[string]Format), byType: make(map[string][]Transform)}

	type typed struct {
		mime string
		t    Transform
	}
	var pre, post []typed
	var transport *typed

	for _, plug := range plugins {
		for _, capability := range plug.Capabilities() {
			ref := plug.Provides[capability]
			t := Transform{Plugin: plug.Name, Capability: capability}

			if ext, ok := ref.FormatExtension(); ok {
				key := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
				if _, dup := r.formats[key]; !dup {
					r.formats[key] = Format{Transform: t, Output: ref.MIME}
				}
				continue
			}

			switch capability {
			case bpmpkg.CapabilityPreprocessor:
				pre = append(pre, typed{ref.MIME, t})
			case bpmpkg.CapabilityPostprocessor:
				post = append(post, typed{ref.MIME, t})
			case bpmpkg.CapabilityTransport:
				if transport != nil {
					return nil, &TooManyTransportsError{Package: pkg, First: transport.t.Plugin, Second: plug.Name}
				}
				transport = &typed{ref.MIME, t}
			}
		}
	}

	for _, p := range pre {
		r.Register(p.mime, p.t)
	}
	for _, p := range post {
		r.Register(p.mime, p.t)
	}
	if transport != nil {
		r.Register(transport.mime, transport.t)
	}
	return r, nil
}

// Register appends t to the transforms applied to contentType.
func (r *Registry) Register(contentType string, t Transform) {
	r.byType[contentType] = append(r.byType[contentType], t)
}

// Transforms returns the transforms applied to contentType, in order.
func (r *Registry) Transforms(contentType string) []Transform {
	return r.byType[contentType]
}

// Format returns the format compiler for a source extension such as ".coffee".
func (r *Registry) Format(ext string) (Format, bool) {
	f, ok := r.formats[strings.ToLower(ext)]
	return f, ok
}

// OutputType returns the content type a file has after format compilation.
func (r *Registry) OutputType(name string) string {
	if f, ok := r.Format(path.Ext(name)); ok {
		return f.Output
	}
	return ContentType(name)
}
