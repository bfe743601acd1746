package meta

const (
	// CLIName is the binary name and the root of config paths and env vars.
	CLIName = "rosterctl"
	// EnvPrefix prefixes every environment variable read by the CLI.
	EnvPrefix = "ROSTERCTL"
)
