// Package utils exposes the configuration and logging plumbing shared by the CLI.
//
// ConfigurationLoader layers embedded defaults, an optional configuration file,
// and environment variables through Viper. LoggerFactory builds zap loggers
// whose output never contains registered secrets.
package utils
