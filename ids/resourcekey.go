package ids

import (
	"strings"

	"github.com/segmentio/fasthash/fnv1a"
)

// ModuleKey names the content pack a resource belongs to (e.g. "base").
type ModuleKey string

// ResourceKey addresses a piece of content within a module: a room
// descriptor, an object descriptor, or (with the `#method` suffix parsed
// out by ParseEntryPoint) a script entry point. Its string form is
// "module:path".
type ResourceKey struct {
	Module ModuleKey
	Path   string
}

// New builds a fully qualified ResourceKey.
func New(module ModuleKey, path string) ResourceKey {
	return ResourceKey{Module: module, Path: path}
}

// ParseLazy parses "module:path" or a bare "path" (module left empty, to
// be filled in later with OrModule) into a ResourceKey.
func ParseLazy(s string) ResourceKey {
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return ResourceKey{Module: ModuleKey(s[:idx]), Path: s[idx+1:]}
	}
	return ResourceKey{Path: s}
}

// OrModule fills in Module if it is currently empty, returning a copy.
// Mirrors the "LazyResourceKey::or_module" helper content packs use so a
// descriptor can reference sibling resources without repeating its own
// module name.
func (k ResourceKey) OrModule(module ModuleKey) ResourceKey {
	if k.Module == "" {
		return ResourceKey{Module: module, Path: k.Path}
	}
	return k
}

func (k ResourceKey) String() string {
	return string(k.Module) + ":" + k.Path
}

// IsZero reports whether this key has never been assigned a path.
func (k ResourceKey) IsZero() bool { return k.Module == "" && k.Path == "" }

// Hash returns a stable 64-bit hash of the key, used for the asset
// loaders' interned maps.
func (k ResourceKey) Hash() uint64 {
	h := fnv1a.HashString64(string(k.Module))
	return fnv1a.AddString64(h, k.Path)
}

// WeakMatch compares only the final path segment of the two keys,
// ignoring module. Used by room requirement counting so a
// "base:door/wood" requirement can be satisfied by "mymod:door/wood"
// placed by a different content pack.
func (k ResourceKey) WeakMatch(other ResourceKey) bool {
	return lastSegment(k.Path) == lastSegment(other.Path)
}

func lastSegment(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// EntryPoint is a ResourceKey plus the method name addressed within it,
// the "module:path#method" form used for controller/tile_placer/script
// fields in room and object descriptors.
type EntryPoint struct {
	Key    ResourceKey
	Method string
}

// ParseEntryPoint splits "module:path#method" into its ResourceKey and
// method name. A string without '#' is returned with an empty Method.
func ParseEntryPoint(s string) EntryPoint {
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		return EntryPoint{Key: ParseLazy(s[:idx]), Method: s[idx+1:]}
	}
	return EntryPoint{Key: ParseLazy(s)}
}

func (e EntryPoint) String() string {
	if e.Method == "" {
		return e.Key.String()
	}
	return e.Key.String() + "#" + e.Method
}

// OrModule fills in the key's module as per ResourceKey.OrModule.
func (e EntryPoint) OrModule(module ModuleKey) EntryPoint {
	e.Key = e.Key.OrModule(module)
	return e
}
