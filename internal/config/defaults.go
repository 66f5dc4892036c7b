package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 8,
			SessionIdleMinutes:    60,
			JanitorIntervalMin:    15,
		},
		Business: BusinessConfig{
			Name:    "Cool Car Auto Garage",
			Phone:   "+232 78590287",
			Address: "563 Bai Bureh Road, Allen Town, Freetown, Sierra Leone",
			Hours:   "Monday to Friday, 8:00 AM to 6:00 PM",
		},
		Storage: StorageConfig{
			Backend:     "sqlite",
			Path:        "~/.coolcar/coolcar.db",
			RedisPrefix: "coolcar:",
		},
		Memory: MemoryConfig{
			MaxEntries:           1000,
			RetentionDays:        30,
			CleanupIntervalHours: 24,
		},
		Composer: ComposerConfig{
			ReuseThreshold: 0.8,
			EmojiRate:      0.3,
		},
		Augment: AugmentConfig{
			Mode:               "auto",
			TimeoutSeconds:     10,
			MaxRetries:         2,
			RetryBackoffMs:     1000,
			RateLimitPerMinute: 50,
			Search: SearchConfig{
				Provider:      "google",
				TrustedSites:  defaultTrustedSites(),
				ForumFallback: true,
				ForumSites:    defaultForumSites(),
				MinRelevance:  0.3,
				MaxResults:    5,
			},
			Cache: CacheConfig{
				MaxEntries: 1000,
				EvictBatch: 100,
			},
		},
		Booking: BookingConfig{
			OpenHour:  8,
			CloseHour: 18,
		},
		Relay: RelayConfig{
			TimeoutSeconds: 15,
		},
		Channels: ChannelsConfig{
			CLI: CLIConfig{Enabled: true},
			Web: WebConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    8080,
			},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

// DeepSeekModel is the hosted model entry written by `coolcar init`.
func DeepSeekModel() ModelConfig {
	return ModelConfig{
		Name:        "deepseek",
		APIBase:     "https://api.deepseek.com/v1",
		APIKey:      "${DEEPSEEK_API_KEY}",
		Model:       "deepseek-chat",
		Temperature: 0.7,
		MaxTokens:   500,
	}
}

func defaultTrustedSites() []string {
	return []string{
		"autozone.com", "carcomplaints.com", "repairpal.com", "autoblog.com",
		"cartalk.com", "edmunds.com", "kbb.com", "caranddriver.com", "motortrend.com",
	}
}

func defaultForumSites() []string {
	return []string{
		"mechanicadvice.reddit.com", "cartalk.com/forum", "automotiveforums.com",
		"bimmerforums.com", "toyotanation.com", "honda-tech.com",
	}
}
