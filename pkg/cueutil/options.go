// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize caps the size of a document accepted by Decode (5MB).
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

type (
	options struct {
		maxFileSize int64
		concrete    bool
		filename    string
	}

	// Option configures Decode and Validate.
	Option func(*options)
)

func newOptions(opts []Option) options {
	o := options{maxFileSize: DefaultMaxFileSize, concrete: true, filename: "<input>"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(size int64) Option {
	return func(o *options) { o.maxFileSize = size }
}

// WithConcrete controls whether every value must be concrete after
// unification. Defaults to true; configuration files pass false so that
// unset optional fields are accepted.
func WithConcrete(concrete bool) Option {
	return func(o *options) { o.concrete = concrete }
}

// WithFilename names the document in error messages.
func WithFilename(name string) Option {
	return func(o *options) {
		if name != "" {
			o.filename = name
		}
	}
}
