package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSettings() *Settings {
	s := &Settings{}
	s.WebServer.Enabled = true
	s.WebServer.Port = "8080"
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "bookdb.db"
	s.Images.BaseURL = "https://images.example.org/iiif/"
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsBadPort(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.WebServer.Port = "notaport"
	assert.Error(t, ValidateSettings(s))

	s.WebServer.Port = "70000"
	assert.Error(t, ValidateSettings(s))
}

func TestValidateSettingsRequiresOneBackend(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Output.SQLite.Enabled = false
	assert.Error(t, ValidateSettings(s))

	s.Output.SQLite.Enabled = true
	s.Output.MySQL.Enabled = true
	assert.Error(t, ValidateSettings(s))
}

func TestValidateSettingsRequiresImageBaseURL(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Images.BaseURL = ""
	assert.Error(t, ValidateSettings(s))

	s.Images.BaseURL = "ftp://images.example.org/"
	assert.Error(t, ValidateSettings(s))
}
