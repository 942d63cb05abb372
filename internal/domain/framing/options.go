// Package framing reassembles delimiter-terminated frames from a raw byte stream.
package framing

// Option applies a configuration option to the Assembler.
type Option func(*Assembler)

// WithDelimiter sets the frame terminator byte.
func WithDelimiter(d byte) Option {
	return func(a *Assembler) {
		if d != 0 {
			a.delimiter = d
		}
	}
}

// WithHeartbeats replaces the set of sentinel payloads dropped as keep-alives.
func WithHeartbeats(sentinels ...string) Option {
	return func(a *Assembler) {
		a.heartbeats = make(map[string]struct{}, len(sentinels))
		for _, s := range sentinels {
			a.heartbeats[s] = struct{}{}
		}
	}
}

// WithTagPrefix enables strict filtering: any frame that does not begin
// with prefix is dropped as noise instead of being emitted.
func WithTagPrefix(prefix string) Option {
	return func(a *Assembler) {
		a.tagPrefix = prefix
	}
}
