// validate.go: settings validation run after every Load.
package conf

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateSettings rejects configurations the service cannot run with.
func ValidateSettings(settings *Settings) error {
	var errs []string

	if settings.WebServer.Enabled {
		if settings.WebServer.Port == "" {
			errs = append(errs, "webserver.port must not be empty")
		} else if port, err := strconv.Atoi(settings.WebServer.Port); err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("webserver.port %q is not a valid port number", settings.WebServer.Port))
		}
	}

	switch {
	case settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled:
		errs = append(errs, "only one of output.sqlite and output.mysql may be enabled")
	case !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled:
		errs = append(errs, "one of output.sqlite and output.mysql must be enabled")
	}

	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		errs = append(errs, "output.sqlite.path must not be empty")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Database == "" {
			errs = append(errs, "output.mysql.database must not be empty")
		}
		if settings.Output.MySQL.Host == "" {
			errs = append(errs, "output.mysql.host must not be empty")
		}
	}

	if settings.Images.BaseURL == "" {
		errs = append(errs, "images.baseurl must not be empty")
	} else if !strings.HasPrefix(settings.Images.BaseURL, "http://") && !strings.HasPrefix(settings.Images.BaseURL, "https://") {
		errs = append(errs, "images.baseurl must be an http or https URL")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
