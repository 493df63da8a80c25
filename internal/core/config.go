package core

// Config is runtime configuration for the CLI.
type Config struct {
	Broker    string
	TopicBase string
	From      string
}
