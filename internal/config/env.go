package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files from the config directory and the working
// directory. Variables already set in the process environment win, and
// missing files are ignored.
func LoadDotEnv(configPath string) ([]string, error) {
	candidates := []string{
		filepath.Join(filepath.Dir(ExpandHome(configPath)), ".env"),
		".env",
	}
	var loaded []string
	for _, p := range candidates {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// ApplyEnv fills credentials left empty in the file from well-known
// environment variables.
func ApplyEnv(cfg *Config) {
	fill := func(dst *string, key string) {
		if *dst == "" || envVarPattern.MatchString(*dst) {
			if v := os.Getenv(key); v != "" {
				*dst = v
			} else if envVarPattern.MatchString(*dst) {
				*dst = ""
			}
		}
	}
	fill(&cfg.Augment.Search.GoogleAPIKey, "GOOGLE_API_KEY")
	fill(&cfg.Augment.Search.GoogleEngineID, "GOOGLE_SEARCH_ENGINE_ID")
	fill(&cfg.Channels.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	fill(&cfg.Relay.ContactEndpoint, "COOLCAR_CONTACT_ENDPOINT")
	fill(&cfg.Relay.BookingEndpoint, "COOLCAR_BOOKING_ENDPOINT")
	fill(&cfg.Storage.RedisPassword, "REDIS_PASSWORD")
	for i := range cfg.Augment.Models {
		m := &cfg.Augment.Models[i]
		if m.Name != "" {
			fill(&m.APIKey, strings.ToUpper(m.Name)+"_API_KEY")
		}
	}
}
