package room

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/internal/caching"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/roomconfig"
)

const (
	mapFileName    = "map.map"
	configFileName = "config.json"
	automapperDir  = "automappers"
)

// Registry is the process-wide, name-keyed directory of Rooms (spec.md
// §4.6). The registry's own lock only ever guards map lookups/inserts/
// removes; all per-room work happens under the Room's own lock, taken
// after releasing this one.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	cache       *caching.MapCache
	codec       mapmodel.Codec
	scanWorkers int
	maxMaps     int
}

// NewRegistry builds an empty registry. Call ScanDirectories to populate
// it from disk at startup.
func NewRegistry(cache *caching.MapCache, scanWorkers, maxMaps int) *Registry {
	if scanWorkers < 1 {
		scanWorkers = 1
	}
	return &Registry{
		rooms:       make(map[string]*Room),
		cache:       cache,
		codec:       mapmodel.JSONCodec{},
		scanWorkers: scanWorkers,
		maxMaps:     maxMaps,
	}
}

// Get returns the named room, if present.
func (reg *Registry) Get(name string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[name]
	return r, ok
}

// List returns every room name currently registered.
func (reg *Registry) List() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]string, 0, len(reg.rooms))
	for name := range reg.rooms {
		out = append(out, name)
	}
	return out
}

// Count returns the number of registered rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// insert adds r under its own name if no room is already registered
// there, implementing first-occurrence-wins. Reports whether the insert
// happened.
func (reg *Registry) insert(r *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.rooms[r.name]; exists {
		return false
	}
	reg.rooms[r.name] = r
	return true
}

// remove drops name from the registry unconditionally.
func (reg *Registry) remove(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, name)
}

// ScanDirectories walks every configured map directory, builds a Room per
// subdirectory (directory layout) or per *.map file (flat layout), and
// inserts each under its derived name. Workers run bounded in parallel
// (SPEC_FULL.md §4.6) since this is the one place startup pays for
// parallel filesystem I/O; insertion itself happens back under the
// registry lock so first-occurrence-wins is preserved regardless of scan
// completion order.
func (reg *Registry) ScanDirectories(ctx context.Context, dirs []string) error {
	type found struct {
		room  *Room
		order int
	}

	var mu sync.Mutex
	var results []found
	var nextOrder int

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(reg.scanWorkers)

	for _, dir := range dirs {
		dir := dir
		entries, err := os.ReadDir(dir)
		if err != nil {
			return apierrors.Internal("scan map directory " + dir + ": " + err.Error())
		}
		for _, entry := range entries {
			entry := entry
			g.Go(func() error {
				r, ok, err := reg.buildRoomFromEntry(dir, entry)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				mu.Lock()
				order := nextOrder
				nextOrder++
				results = append(results, found{room: r, order: order})
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Insert in scan order so "first occurrence wins" is deterministic
	// given a fixed directory listing, not an artifact of goroutine
	// scheduling.
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].order < results[i].order {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	for _, f := range results {
		reg.insert(f.room)
	}
	return nil
}

func (reg *Registry) buildRoomFromEntry(dir string, entry os.DirEntry) (*Room, bool, error) {
	name := entry.Name()
	if entry.IsDir() {
		roomDir := filepath.Join(dir, name)
		mapPath := filepath.Join(roomDir, mapFileName)
		if _, err := os.Stat(mapPath); err != nil {
			return nil, false, nil
		}
		configPath := filepath.Join(roomDir, configFileName)
		cfg := loadRoomConfig(configPath, name)
		return New(Params{
			Name:          name,
			Layout:        LayoutDirectory,
			MapPath:       mapPath,
			ConfigPath:    configPath,
			AutomapperDir: filepath.Join(roomDir, automapperDir),
			Codec:         reg.codec,
			Cache:         reg.cache,
			Config:        cfg,
		}), true, nil
	}

	if !strings.HasSuffix(name, ".map") {
		return nil, false, nil
	}
	roomName := strings.TrimSuffix(name, ".map")
	mapPath := filepath.Join(dir, name)
	cfg := roomconfig.Config{Name: roomName, Version: mapmodel.FormatDDNet06}
	return New(Params{
		Name:    roomName,
		Layout:  LayoutSingleFile,
		MapPath: mapPath,
		Codec:   reg.codec,
		Cache:   reg.cache,
		Config:  cfg,
	}), true, nil
}

func loadRoomConfig(path, defaultName string) roomconfig.Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return roomconfig.Config{Name: defaultName, Version: mapmodel.FormatDDNet06}
	}
	cfg, _, err := roomconfig.Decode(data)
	if err != nil {
		return roomconfig.Config{Name: defaultName, Version: mapmodel.FormatDDNet06}
	}
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	return cfg
}

// CreationMode selects how Create builds a new room's initial map,
// mirroring spec.md §4.3's three map-creation modes.
type CreationMode int

const (
	CreationBlank CreationMode = iota
	CreationClone
	CreationUpload
)

// Creation describes a single Create call.
type Creation struct {
	Mode CreationMode

	// CreationBlank
	Width, Height uint16

	// CreationClone
	SourceName string

	// CreationUpload
	UploadBytes  []byte
	MaxUploadLen int64
}

// Create builds a brand-new room named name per creation, validates the
// name grammar and room-count cap, and registers it. The caller is
// responsible for persisting the room afterward (Room.Save/SaveConfig).
func (reg *Registry) Create(baseDir, name string, creation Creation) (*Room, error) {
	if err := mapmodel.ValidateName(name); err != nil {
		return nil, apierrors.New(apierrors.KindInvalidMapName, err.Error())
	}
	if _, exists := reg.Get(name); exists {
		return nil, apierrors.New(apierrors.KindMapNameTaken, "a room named "+name+" already exists")
	}
	if reg.maxMaps > 0 && reg.Count() >= reg.maxMaps {
		return nil, apierrors.New(apierrors.KindMaxMaps, "maximum number of maps reached")
	}

	m, err := reg.buildInitialMap(creation)
	if err != nil {
		return nil, err
	}

	roomDir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(roomDir, 0o755); err != nil {
		return nil, apierrors.Internal("create room directory: " + err.Error())
	}

	r := New(Params{
		Name:          name,
		Layout:        LayoutDirectory,
		MapPath:       filepath.Join(roomDir, mapFileName),
		ConfigPath:    filepath.Join(roomDir, configFileName),
		AutomapperDir: filepath.Join(roomDir, automapperDir),
		Codec:         reg.codec,
		Cache:         reg.cache,
		Config:        roomconfig.Config{Name: name, Public: true, Version: mapmodel.FormatDDNet06},
	})
	r.SetMap(m)

	if !reg.insert(r) {
		return nil, apierrors.New(apierrors.KindMapNameTaken, "a room named "+name+" already exists")
	}
	return r, nil
}

func (reg *Registry) buildInitialMap(creation Creation) (*mapmodel.Map, error) {
	switch creation.Mode {
	case CreationBlank:
		if creation.Width < mapmodel.MinDim || creation.Width > mapmodel.MaxDim ||
			creation.Height < mapmodel.MinDim || creation.Height > mapmodel.MaxDim {
			return nil, apierrors.New(apierrors.KindInvalidClip, "blank map dimensions out of range")
		}
		return mapmodel.Blank(creation.Width, creation.Height), nil
	case CreationClone:
		src, ok := reg.Get(creation.SourceName)
		if !ok {
			return nil, apierrors.New(apierrors.KindNotFoundMap, "source room not found: "+creation.SourceName)
		}
		src.RLock()
		defer src.RUnlock()
		m, err := src.Map()
		if err != nil {
			return nil, err
		}
		return m.Clone(), nil
	case CreationUpload:
		if creation.MaxUploadLen > 0 && int64(len(creation.UploadBytes)) > creation.MaxUploadLen {
			return nil, apierrors.New(apierrors.KindMapTooBig, "uploaded map exceeds the configured size limit")
		}
		m, err := reg.codec.Decode(creation.UploadBytes)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.KindMapCodec, "decode uploaded map", err)
		}
		if err := mapmodel.MapCheck(m); err != nil {
			return nil, apierrors.Wrap(apierrors.KindMapCodec, "uploaded map fails structural check", err)
		}
		return m, nil
	default:
		return nil, apierrors.Internal("unknown map creation mode")
	}
}

// Delete removes name from the registry and best-effort deletes its
// on-disk storage.
func (reg *Registry) Delete(name string) error {
	r, ok := reg.Get(name)
	if !ok {
		return apierrors.New(apierrors.KindNotFoundMap, "room not found: "+name)
	}
	reg.remove(name)
	if reg.cache != nil {
		reg.cache.Invalidate(name)
	}
	r.Lock()
	defer r.Unlock()
	return r.Delete()
}
