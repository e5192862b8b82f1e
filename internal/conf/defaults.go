// defaults.go: default values for all configuration parameters.
package conf

import "github.com/spf13/viper"

// setDefaultConfig registers the default value for every configuration
// parameter with viper.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "bookdb")
	viper.SetDefault("main.loglevel", "info")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.host", "0.0.0.0")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.authtoken", "")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "bookdb.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "bookdb")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "bookdb")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("images.baseurl", "https://printprobability.library.cmu.edu/iiif/")
}
