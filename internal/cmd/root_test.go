package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/pkg/engine"
	"github.com/3leaps/demolauncher/pkg/listing"
)

func TestSetVersionInfo(t *testing.T) {
	// Save original values
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2024-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
		{
			name:      "set empty values",
			version:   "",
			commit:    "",
			buildDate: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestGetAppIdentity(t *testing.T) {
	t.Run("returns nil before init", func(t *testing.T) {
		orig := appIdentity
		appIdentity = nil
		defer func() { appIdentity = orig }()

		result := GetAppIdentity()
		assert.Nil(t, result)
	})

	t.Run("returns identity after set", func(t *testing.T) {
		if appIdentity != nil {
			result := GetAppIdentity()
			assert.NotNil(t, result)
			assert.Equal(t, appIdentity, result)
		}
	})
}

func TestFlagOverrides(t *testing.T) {
	defer func() { verbose, logLevel, logFormat = false, "", "" }()

	verbose, logLevel, logFormat = false, "", ""
	assert.Nil(t, flagOverrides())

	verbose = true
	assert.Equal(t, map[string]any{"logging": map[string]any{"level": "debug"}}, flagOverrides())

	logLevel, logFormat = "warn", "json"
	assert.Equal(t, map[string]any{"logging": map[string]any{"level": "warn", "format": "json"}}, flagOverrides())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, apperrors.ExitSuccess},
		{"explicit", exitError(apperrors.ExitFileWriteError, "write", errors.New("disk full")), apperrors.ExitFileWriteError},
		{"wrapped explicit", fmt.Errorf("outer: %w", exitError(apperrors.ExitInvalidArgument, "bad", nil)), apperrors.ExitInvalidArgument},
		{"fetch", commandError("list", listing.FetchError("list", listing.ProtocolHTTP, "https://x/", nil)), apperrors.ExitExternalServiceUnavailable},
		{"blocked", commandError("list", listing.ErrNavigationBlocked), apperrors.ExitInvalidArgument},
		{"missing entry", commandError("get", listing.ErrEntryNotFound), apperrors.ExitFileNotFound},
		{"no engine", engine.ErrNotInstalled, apperrors.ExitExternalServiceUnavailable},
		{"canceled", context.Canceled, apperrors.ExitSignalInt},
		{"plain", errors.New("boom"), apperrors.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := exitError(apperrors.ExitFailure, "Failed to list folder", listing.ErrHistoryEmpty)
	assert.Equal(t, "Failed to list folder: history is empty", err.Error())
	assert.ErrorIs(t, err, listing.ErrHistoryEmpty)
	assert.Equal(t, "just a message", exitError(1, "just a message", nil).Error())
}

func TestDownloadExitCode(t *testing.T) {
	assert.Equal(t, apperrors.ExitSignalInt, downloadExitCode(fmt.Errorf("x: %w", context.Canceled)))
	assert.Equal(t, apperrors.ExitExternalServiceUnavailable, downloadExitCode(errors.New("connection refused")))
}
