// Package config loads the chippy server configuration.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// environment variables, then command-line flags applied by the caller.
//
// # Configuration File Location
//
// Without --config the file is looked up at:
//   - Linux: $XDG_CONFIG_HOME/chippy/config.yaml or $HOME/.config/chippy/config.yaml
//   - macOS: $HOME/.config/chippy/config.yaml
//   - Windows: %LOCALAPPDATA%\chippy\config.yaml
//
// A missing default file is not an error. A missing explicit file is.
//
// # Environment
//
// CHIPPY_PORT, CHIPPY_HOSTNAME, CHIPPY_CONCURRENCY, CHIPPY_REDIS_URL and
// CHIPPY_REDIS_LIST override the listener and sink settings. CHIPPY_ENV=test
// shortens the handshake retry interval so test suites stay fast.
package config
