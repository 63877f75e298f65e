package main

// RootFlags decouples cobra from the supervisor setup for testing.
type RootFlags struct {
	ConfigPath string
	Verbose    bool // mirror the supervisor log on stderr
	NoPrompt   bool // never print the interactive prompt
}
