package transport

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Options holds the key=value settings given to a transport on the command
// line.
type Options map[string]string

// ParseOptions parses "key=val:key=val". Empty input yields empty Options.
func ParseOptions(s string) (Options, error) {
	opts := make(Options)
	if strings.TrimSpace(s) == "" {
		return opts, nil
	}
	for _, part := range strings.Split(s, ":") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid option %q: expected key=value", part)
		}
		opts[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return opts, nil
}

// String returns the value of key, or def if it is not set.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		return v
	}
	return def
}

// Int returns key parsed as an integer. Hex values need a 0x prefix.
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return int(n), nil
}

// Uint returns key parsed as an unsigned integer no wider than bits.
func (o Options) Uint(key string, def uint64, bits int) (uint64, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return n, nil
}

// Duration returns key parsed by time.ParseDuration.
func (o Options) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return d, nil
}

// OpenFunc opens a transport from its options.
type OpenFunc func(opts Options) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]OpenFunc)
)

// Register makes a transport available by name. Implementations call it
// from init. Registering the same name twice panics.
func Register(name string, open OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if open == nil {
		panic("transport: Register open func is nil")
	}
	if _, dup := registry[name]; dup {
		panic("transport: Register called twice for " + name)
	}
	registry[name] = open
}

// Open opens the transport registered under name.
func Open(name string, opts Options) (Transport, error) {
	registryMu.RLock()
	open, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transport %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return open(opts)
}

// Names returns the registered transport names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
