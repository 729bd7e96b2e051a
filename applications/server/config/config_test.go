package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConfig(t *testing.T) {
	want := Server{
		API: Api{HTTPAddr: "0.0.0.0:8002"},
		Storage: Storage{
			Dir:            "/var/lib/filedrop/files",
			TempPrefix:     "filedrop-",
			MaxUploadBytes: 100 * 1024 * 1024,
		},
	}

	got, err := Parse("config.yml")

	assert.NoError(t, got.Validate())
	assert.Equal(t, nil, err)
	assert.Equal(t, want, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Server
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Server{
				API:     Api{HTTPAddr: ":8002"},
				Storage: Storage{Dir: "/tmp/files"},
			},
		},
		{
			name:    "missing addr",
			cfg:     Server{Storage: Storage{Dir: "/tmp/files"}},
			wantErr: true,
		},
		{
			name:    "missing storage dir",
			cfg:     Server{API: Api{HTTPAddr: ":8002"}},
			wantErr: true,
		},
		{
			name: "negative upload limit",
			cfg: Server{
				API:     Api{HTTPAddr: ":8002"},
				Storage: Storage{Dir: "/tmp/files", MaxUploadBytes: -1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
