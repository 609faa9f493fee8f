// Package room implements the per-room state machine: lazy map loading,
// membership, and save/delete, the way the teacher's roomserver keeps one
// mutex-guarded unit of state per room but retargeted at a map instead of
// a Matrix room's event graph.
package room

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/internal/caching"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/roomconfig"
)

// Layout distinguishes the two on-disk shapes spec.md §4.2/§6 allows.
type Layout int

const (
	// LayoutDirectory is one directory per room: map.map, optional
	// config.json, optional automappers/.
	LayoutDirectory Layout = iota
	// LayoutSingleFile is a flat layout where the map file stem is the
	// room name and there is no per-room directory.
	LayoutSingleFile
)

// User is the subset of a session the Room needs in order to track
// membership and broadcast to it. The concrete type lives in the session
// package; Room only depends on this interface so the two packages don't
// need to import each other.
type User interface {
	ID() string
	Closed() bool
}

// Room is one collaborative map's mutex-guarded state. All mutation
// operations (the Mutation Engine, in the mutation package) run while
// holding Lock; reads (list/get) hold RLock.
type Room struct {
	mu sync.RWMutex

	name          string
	layout        Layout
	mapPath       string
	configPath    string
	automapperDir string

	codec mapmodel.Codec
	cache *caching.MapCache

	config  roomconfig.Config
	loaded  *mapmodel.Map
	etag    string
	users   map[string]User

	loadGroup singleflight.Group
}

// Params bundles a Room's fixed, post-construction-immutable fields.
type Params struct {
	Name          string
	Layout        Layout
	MapPath       string
	ConfigPath    string
	AutomapperDir string
	Codec         mapmodel.Codec
	Cache         *caching.MapCache
	Config        roomconfig.Config
}

// New constructs a Room that has not yet loaded its map from disk.
func New(p Params) *Room {
	codec := p.Codec
	if codec == nil {
		codec = mapmodel.JSONCodec{}
	}
	return &Room{
		name:          p.Name,
		layout:        p.Layout,
		mapPath:       p.MapPath,
		configPath:    p.ConfigPath,
		automapperDir: p.AutomapperDir,
		codec:         codec,
		cache:         p.Cache,
		config:        p.Config,
		users:         make(map[string]User),
	}
}

func (r *Room) Name() string { return r.name }

// AutomapperDir returns the room's automapper directory path, possibly
// empty if none was configured.
func (r *Room) AutomapperDir() string { return r.automapperDir }

// Lock/Unlock/RLock/RUnlock expose the room's reader-writer lock directly
// to the Mutation Engine, which holds it across both the in-memory
// mutation and, for save operations, the filesystem write (spec.md §5:
// "Holding a room writer across filesystem I/O... is permitted and
// intentional").
func (r *Room) Lock()    { r.mu.Lock() }
func (r *Room) Unlock()  { r.mu.Unlock() }
func (r *Room) RLock()   { r.mu.RLock() }
func (r *Room) RUnlock() { r.mu.RUnlock() }

// Config returns a copy of the room's current config. Callers that intend
// to mutate it call SetConfig afterward under the room writer.
func (r *Room) Config() roomconfig.Config { return r.config }

// SetConfig replaces the room's config in place. Caller holds the writer.
func (r *Room) SetConfig(cfg roomconfig.Config) { r.config = cfg }

// Map returns the currently loaded map, loading it from disk or the
// process-wide cache first if necessary. Caller holds at least the
// reader; Load may still need to upgrade internally via singleflight,
// which is safe to call under a held RLock since it only touches its own
// dedup group and the (separate) cache lock.
func (r *Room) Map() (*mapmodel.Map, error) {
	if r.loaded != nil {
		return r.loaded, nil
	}
	return r.load()
}

// load parses the on-disk map file, or pulls a cached snapshot if this
// room was only recently unloaded (Open Question 4). Concurrent first
// touches are deduplicated by room name so only one goroutine ever reads
// the file.
func (r *Room) load() (*mapmodel.Map, error) {
	v, err, _ := r.loadGroup.Do(r.name, func() (interface{}, error) {
		if r.cache != nil {
			if m, ok := r.cache.Get(r.name); ok {
				r.loaded = m
				return m, nil
			}
		}
		data, err := os.ReadFile(r.mapPath)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.KindNotFoundMap, "read map file", err)
		}
		m, err := r.codec.Decode(data)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.KindMapCodec, "decode map file", err)
		}
		if err := mapmodel.MapCheck(m); err != nil {
			return nil, apierrors.Wrap(apierrors.KindMapCodec, "loaded map fails structural check", err)
		}
		r.loaded = m
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mapmodel.Map), nil
}

// SetMap installs m as the room's in-memory map directly, used by map
// creation (Blank/Clone/Upload) which never needs to go through load().
func (r *Room) SetMap(m *mapmodel.Map) {
	r.loaded = m
	r.etag = ""
}

// InvalidateEtag clears the cached serialization hash so the next GetMap
// recomputes it. Called by every successful mutation.
func (r *Room) InvalidateEtag() { r.etag = "" }

// Etag returns the room's current map etag, computing and caching it on
// first access after a change (SPEC_FULL.md §4.3 optional get_map etag).
func (r *Room) Etag() (string, error) {
	if r.etag != "" {
		return r.etag, nil
	}
	m, err := r.Map()
	if err != nil {
		return "", err
	}
	data, err := r.codec.Encode(m)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindMapCodec, "encode map for etag", err)
	}
	r.etag = mapmodel.ETag(data)
	return r.etag, nil
}

// AddUser registers u as present in the room.
func (r *Room) AddUser(u User) { r.users[u.ID()] = u }

// RemoveUser drops u from the room. If that was the last user, the
// in-memory map is demoted into the process-wide cache rather than
// discarded outright (Open Question 4).
func (r *Room) RemoveUser(id string) {
	delete(r.users, id)
	if len(r.users) == 0 {
		r.unloadToCache()
	}
}

// RemoveClosedUsers prunes every user whose underlying connection has
// already closed, as a socket failure may be observed before the
// session's own teardown runs.
func (r *Room) RemoveClosedUsers() {
	for id, u := range r.users {
		if u.Closed() {
			delete(r.users, id)
		}
	}
	if len(r.users) == 0 {
		r.unloadToCache()
	}
}

func (r *Room) unloadToCache() {
	if r.cache == nil || r.loaded == nil {
		r.loaded = nil
		return
	}
	data, err := r.codec.Encode(r.loaded)
	approxBytes := int64(len(data))
	if err != nil {
		approxBytes = 0
	}
	r.cache.Put(r.name, r.loaded, approxBytes)
	r.loaded = nil
}

// UserCount returns the number of users currently present.
func (r *Room) UserCount() int { return len(r.users) }

// Users returns a snapshot slice of the room's current users, safe to
// range over after releasing the lock.
func (r *Room) Users() []User {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out
}

// SaveConfig serializes the room's config as JSON next to the map, if a
// config path is set.
func (r *Room) SaveConfig() error {
	if r.configPath == "" {
		return nil
	}
	r.config.Touch(time.Now())
	data, err := roomconfig.Encode(r.config)
	if err != nil {
		return apierrors.Internal("encode room config: " + err.Error())
	}
	return writeAtomic(r.configPath, data)
}

// Save serializes the current map and atomically replaces the map file.
// Fails with MapTooBig if the serialized size exceeds maxBytes.
func (r *Room) Save(maxBytes int64) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	data, err := r.codec.Encode(m)
	if err != nil {
		return apierrors.Wrap(apierrors.KindMapCodec, "encode map for save", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return apierrors.New(apierrors.KindMapTooBig, "serialized map exceeds the configured size limit")
	}
	if err := writeAtomic(r.mapPath, data); err != nil {
		return apierrors.Internal("write map file: " + err.Error())
	}
	r.etag = mapmodel.ETag(data)
	return nil
}

// Delete best-effort removes the room's on-disk storage: its whole
// directory under LayoutDirectory, or just its map/config files under
// LayoutSingleFile.
func (r *Room) Delete() error {
	switch r.layout {
	case LayoutDirectory:
		dir := filepath.Dir(r.mapPath)
		return os.RemoveAll(dir)
	default:
		_ = os.Remove(r.configPath)
		return os.Remove(r.mapPath)
	}
}

// writeAtomic writes data to a temp file beside path and renames it into
// place, so a crash or concurrent reader never observes a half-written
// map file.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
