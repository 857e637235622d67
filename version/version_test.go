package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, CommitHash, info.CommitHash)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestString(t *testing.T) {
	info := Info{Version: "1.2.3", CommitHash: "abc1234", BuildTime: "2026-01-01"}
	s := info.String()

	assert.True(t, strings.HasPrefix(s, "warden 1.2.3"))
	assert.Contains(t, s, "abc1234")
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc1234", Info{CommitHash: "abc1234def5678"}.Short())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestUpdateAvailable(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
		wantErr bool
	}{
		{"newer patch", "0.2.0", "0.2.1", true, false},
		{"newer minor", "0.2.0", "0.3.0", true, false},
		{"same version", "0.2.0", "0.2.0", false, false},
		{"older latest", "0.2.1", "0.2.0", false, false},
		{"dev build skips check", "dev", "99.0.0", false, false},
		{"empty latest skips check", "0.2.0", "", false, false},
		{"v prefix accepted", "v0.2.0", "v0.2.1", true, false},
		{"garbage current", "not-a-version", "0.2.0", false, true},
		{"garbage latest", "0.2.0", "not-a-version", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UpdateAvailable(tt.current, tt.latest)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
