// Package roomconfig handles a Room's config.json: the public/password/
// format-version document described in spec.md §6, including bcrypt
// password hashing and migration of the legacy "access" string schema.
package roomconfig

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/ddnet/maproom/mapmodel"
)

// Config is the in-memory form of config.json (spec.md §6). PasswordHash is
// the bcrypt digest at rest; an empty PasswordHash means the room is
// public. Per spec.md §9 Open Question 1, setting an empty-string password
// is treated identically to "no password" — intentional, not a bug.
type Config struct {
	Name          string                 `json:"name"`
	Public        bool                   `json:"public"`
	PasswordHash  string                 `json:"password,omitempty"`
	Version       mapmodel.FormatVersion `json:"version"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// legacyAccessPublic/legacyAccessPrivate are the values the older "access"
// string schema used in place of a boolean Public field.
const (
	legacyAccessPublic  = "public"
	legacyAccessPrivate = "private"
)

// Decode parses config.json bytes, transparently migrating the legacy
// `access: "public"|"private"` schema into the current `public: bool` form
// (spec.md §6: "A legacy variant ... is accepted on read and rewritten into
// the new form"). The returned bool reports whether a migration happened,
// so the caller can immediately persist the rewritten document.
func Decode(data []byte) (cfg Config, migrated bool, err error) {
	if !gjson.ValidBytes(data) {
		return Config{}, false, errors.New("config.json is not valid JSON")
	}
	result := gjson.ParseBytes(data)

	rewritten := data
	if accessField := result.Get("access"); accessField.Exists() {
		public := accessField.String() == legacyAccessPublic
		rewritten, err = sjson.DeleteBytes(rewritten, "access")
		if err != nil {
			return Config{}, false, errors.Wrap(err, "strip legacy access field")
		}
		rewritten, err = sjson.SetBytes(rewritten, "public", public)
		if err != nil {
			return Config{}, false, errors.Wrap(err, "set public from legacy access field")
		}
		migrated = true
	}

	if err := json.Unmarshal(rewritten, &cfg); err != nil {
		return Config{}, false, errors.Wrap(err, "decode config")
	}
	if cfg.Version == "" {
		cfg.Version = mapmodel.FormatDDNet06
	}
	return cfg, migrated, nil
}

// Encode serializes cfg back to config.json bytes.
func Encode(cfg Config) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return data, nil
}

// SetPassword hashes password with bcrypt and stores the digest. An empty
// string clears the password, making the room public-readable subject to
// the dispatcher's authorization check (spec.md §4.4).
func (c *Config) SetPassword(password string) error {
	if password == "" {
		c.PasswordHash = ""
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	c.PasswordHash = string(hash)
	return nil
}

// HasPassword reports whether the room currently requires a password to
// join (spec.md §4.4 authorization rule).
func (c *Config) HasPassword() bool {
	return c.PasswordHash != ""
}

// CheckPassword reports whether the supplied password matches the stored
// bcrypt hash. Always returns true if the room has no password set.
func (c *Config) CheckPassword(password string) bool {
	if !c.HasPassword() {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}

// Touch refreshes UpdatedAt to now, called every time the config is saved.
func (c *Config) Touch(now time.Time) {
	c.UpdatedAt = now
}
