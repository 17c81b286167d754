package utils

// EnvPrefix prefixes environment overrides of Config keys.
const EnvPrefix = "AXON"

const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Version is stamped by the build.
var Version = "dev"
