package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/tariff/internal/common"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		errMsg  string
		config  Config
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "test-secret",
				RefreshToken:  "test-token",
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
		},
		{
			name:    "missing auth",
			config:  Config{BatchSize: 100},
			wantErr: common.ErrMissingConfig,
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:     "test-client",
				RefreshToken: "test-token",
				BatchSize:    100,
			},
			wantErr: common.ErrMissingConfig,
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "zero batch size",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryDelay:         -time.Second,
			},
			errMsg: "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				assert.ErrorContains(t, err, tt.errMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "Tariff Classifications", cfg.SpreadsheetName)
	assert.Equal(t, "UTC", cfg.TimeZone)
	assert.True(t, cfg.EnableFormatting)
	assert.Positive(t, cfg.BatchSize)
}
