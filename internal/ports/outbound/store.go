package outbound

// Store is the per-agent persistent key/value storage. Values are JSON
// documents; Get reports whether the key was present at all so callers
// can distinguish an empty value from a fresh database.
type Store interface {
	// Get loads the value under key into the given struct. The bool is
	// false when the key has never been written.
	Get(key string, into any) (bool, error)

	// Put stores a value under key, replacing any previous one.
	Put(key string, value any) error

	// EnsureDefaults writes each value only if its key has never been
	// set; the storage initials applied on first agent start.
	EnsureDefaults(defaults map[string]any) error

	Close() error
}
