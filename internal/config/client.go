package config

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	APIURL string `env:"GAFFER_API_URL" envDefault:"http://localhost:3000"`
	// SquadID overrides the id remembered on disk.
	SquadID   string   `env:"GAFFER_SQUAD_ID"`
	SaveDelay Duration `env:"GAFFER_SAVE_DELAY" envDefault:"1s"`
	Log       LogConfig
}

// LoadClient reads the terminal client's configuration.
func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	if err := ParseEnv(&cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}
