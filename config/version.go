package config

// Build metadata injected at link time by the dev tool.
var (
	Version = "dev"
	Commit  string
	Date    string
)
