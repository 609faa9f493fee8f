package roomconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddnet/maproom/mapmodel"
)

func TestDecodeCurrentSchema(t *testing.T) {
	cfg, migrated, err := Decode([]byte(`{"name":"alpha","public":true,"version":"DDNet06"}`))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.True(t, cfg.Public)
	assert.Equal(t, mapmodel.FormatDDNet06, cfg.Version)
}

func TestDecodeLegacyAccessField(t *testing.T) {
	cfg, migrated, err := Decode([]byte(`{"name":"alpha","access":"private"}`))
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.False(t, cfg.Public)
}

func TestDecodeLegacyAccessPublic(t *testing.T) {
	cfg, migrated, err := Decode([]byte(`{"name":"alpha","access":"public"}`))
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.True(t, cfg.Public)
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, _, err := Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestSetPasswordEmptyMeansNoPassword(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.SetPassword("s3cret"))
	assert.True(t, cfg.HasPassword())

	require.NoError(t, cfg.SetPassword(""))
	assert.False(t, cfg.HasPassword())
}

func TestCheckPassword(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.SetPassword("s3cret"))
	assert.True(t, cfg.CheckPassword("s3cret"))
	assert.False(t, cfg.CheckPassword("wrong"))
}

func TestCheckPasswordNoneRequiredAlwaysPasses(t *testing.T) {
	var cfg Config
	assert.True(t, cfg.CheckPassword("anything"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cfg := Config{Name: "alpha", Public: false, Version: mapmodel.FormatDDNet06}
	require.NoError(t, cfg.SetPassword("hunter2"))
	data, err := Encode(cfg)
	require.NoError(t, err)

	got, _, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, got.Name)
	assert.Equal(t, cfg.PasswordHash, got.PasswordHash)
}
