// Package defaults provides embedded default assets (built-in client config).
package defaults

import _ "embed"

//go:embed default_config.toml
var DefaultConfigTOML []byte
