package mutation

import (
	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
	"github.com/ddnet/maproom/roomconfig"
)

// GetMap returns the room's map serialized through its codec, plus its
// etag. Caller holds the reader.
func GetMap(r *room.Room) (data []byte, etag string, err error) {
	m, err := r.Map()
	if err != nil {
		return nil, "", err
	}
	et, err := r.Etag()
	if err != nil {
		return nil, "", err
	}
	data, err = roomCodecEncode(r, m)
	if err != nil {
		return nil, "", err
	}
	return data, et, nil
}

// roomCodecEncode re-encodes m the same way Room.Save does, for responses
// that hand the caller serialized bytes without writing them to disk.
func roomCodecEncode(r *room.Room, m *mapmodel.Map) ([]byte, error) {
	data, err := mapmodel.JSONCodec{}.Encode(m)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindMapCodec, "encode map", err)
	}
	return data, nil
}

// CreateMap creates a brand-new room named name under baseDir, with the
// requested creation mode, and persists its initial map and config. A
// maxMapBytes<=0 means no size cap.
func CreateMap(reg *room.Registry, baseDir, name string, creation room.Creation, maxMapBytes int64) (*room.Room, error) {
	r, err := reg.Create(baseDir, name, creation)
	if err != nil {
		return nil, err
	}
	r.Lock()
	defer r.Unlock()
	if err := r.Save(maxMapBytes); err != nil {
		_ = reg.Delete(name)
		return nil, err
	}
	if err := r.SaveConfig(); err != nil {
		_ = reg.Delete(name)
		return nil, err
	}
	return r, nil
}

// DeleteMap removes name from the registry and its on-disk storage.
func DeleteMap(reg *room.Registry, name string) error {
	return reg.Delete(name)
}

// SaveMap persists the room's current in-memory map to disk. Caller holds
// the writer (spec.md §5: the writer is legitimately held across this
// filesystem I/O).
func SaveMap(r *room.Room, maxMapBytes int64) error {
	return r.Save(maxMapBytes)
}

// GetConfig returns a copy of the room's current config. Caller holds the
// reader.
func GetConfig(r *room.Room) roomconfig.Config {
	return r.Config()
}

// ConfigEdit is a partial-update record: nil fields leave the existing
// config value untouched (SPEC_FULL.md §4.3).
type ConfigEdit struct {
	Public   *bool
	Password *string // nil: unchanged. "" clears the password (Open Question 1).
}

// EditConfig applies a partial update to the room's config and persists
// it. Caller holds the writer.
func EditConfig(r *room.Room, edit ConfigEdit) error {
	cfg := r.Config()
	if edit.Public != nil {
		cfg.Public = *edit.Public
	}
	if edit.Password != nil {
		if err := cfg.SetPassword(*edit.Password); err != nil {
			return apierrors.Wrap(apierrors.KindInternal, "set room password", err)
		}
	}
	r.SetConfig(cfg)
	return r.SaveConfig()
}

// GetInfo returns the map's metadata block. Caller holds the reader.
func GetInfo(r *room.Room) (mapmodel.Info, error) {
	m, err := r.Map()
	if err != nil {
		return mapmodel.Info{}, err
	}
	return m.Info, nil
}

// InfoEdit is a partial-update record over mapmodel.Info's fields.
type InfoEdit struct {
	Author   *string
	Version  *string
	Credits  *string
	License  *string
	Settings []string // nil: unchanged; non-nil (incl. empty slice): replaced wholesale
}

// EditInfo applies a partial update to the map's Info block. Caller holds
// the writer.
func EditInfo(r *room.Room, edit InfoEdit) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	next := m.Info
	if edit.Author != nil {
		next.Author = *edit.Author
	}
	if edit.Version != nil {
		next.Version = *edit.Version
	}
	if edit.Credits != nil {
		next.Credits = *edit.Credits
	}
	if edit.License != nil {
		next.License = *edit.License
	}
	if edit.Settings != nil {
		next.Settings = edit.Settings
	}
	if err := mapmodel.SelfCheckInfo(next); err != nil {
		return err
	}
	m.Info = next
	return commit(r, m)
}
