package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/b3nn0/lidarlite/sensors/lidarlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, lidarlite.Default, s.AcquisitionMode())
	assert.EqualValues(t, 0x62, s.Address)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lidarlite.conf")
	s := Default()
	s.Acquisition = lidarlite.HighSensitivity.String()
	s.BusDriver = BusDriverPeriph
	s.PowerPin = 17

	require.NoError(t, s.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, lidarlite.HighSensitivity, got.AcquisitionMode())
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lidarlite.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{"FrameIntervalMs": 50, "Debug": true}`), 0644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, got.FrameIntervalMs)
	assert.True(t, got.Debug)
	assert.Equal(t, Default().HTTPAddr, got.HTTPAddr)
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.conf"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbled := filepath.Join(dir, "garbled.conf")
	require.NoError(t, os.WriteFile(garbled, []byte("{"), 0644))
	got, err := Load(garbled)
	assert.Error(t, err)
	assert.Equal(t, Default(), got)

	invalid := filepath.Join(dir, "invalid.conf")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"Acquisition": "turbo"}`), 0644))
	_, err = Load(invalid)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"bus driver", func(s *Settings) { s.BusDriver = "spi" }},
		{"address", func(s *Settings) { s.Address = 0x80 }},
		{"zero address", func(s *Settings) { s.Address = 0 }},
		{"acquisition", func(s *Settings) { s.Acquisition = "turbo" }},
		{"frame interval", func(s *Settings) { s.FrameIntervalMs = 0 }},
		{"idle interval", func(s *Settings) { s.IdleIntervalMs = -1 }},
		{"signal range", func(s *Settings) { s.FullSignal = s.MinSignal }},
		{"power pin", func(s *Settings) { s.PowerPin = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalid)
		})
	}
}
