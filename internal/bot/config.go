package bot

// Config represents the configuration for reminder messages
type Config struct {
	// Maximum number of concept names listed in one reminder
	MaxListed int
	// Show each concept's current retention next to its name
	ShowRetention bool
}

// DefaultConfig returns the default reminder configuration
func DefaultConfig() *Config {
	return &Config{
		MaxListed:     10,
		ShowRetention: true,
	}
}
