package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	APIPort    int    `yaml:"apiPort"`
	AuthSecret string `yaml:"authSecret"`
	OwnerID    int64  `yaml:"ownerID"`
	Quota      struct {
		DailyLimit int `yaml:"dailyLimit"`
	} `yaml:"quota"`
	Downloads struct {
		PaceSeconds        int    `yaml:"paceSeconds"`
		FreeSizeLimitMB    int64  `yaml:"freeSizeLimitMB"`
		PremiumSizeLimitMB int64  `yaml:"premiumSizeLimitMB"`
		Dir                string `yaml:"dir"`
	} `yaml:"downloads"`
	Database struct {
		Type            string `yaml:"type"`
		Path            string `yaml:"path"`
		Host            string `yaml:"host"`
		Port            string `yaml:"port"`
		Name            string `yaml:"name"`
		User            string `yaml:"user"`
		Password        string `yaml:"password"`
		SSLMode         string `yaml:"sslMode"`
		MaxConns        int    `yaml:"maxConns"`
		MaxIdle         int    `yaml:"maxIdle"`
		ConnMaxLifetime string `yaml:"connMaxLifetime"`
	} `yaml:"database"`
	Provider struct {
		BaseURL        string `yaml:"baseURL"`
		Token          string `yaml:"token"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"provider"`
	Storage struct {
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		AccessKeyID     string `yaml:"accessKeyID"`
		SecretAccessKey string `yaml:"secretAccessKey"`
	} `yaml:"storage"`
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set up config file handling
	v.SetConfigFile(path)   // Use the full path to the config file
	v.SetConfigType("yaml") // Set the config type to yaml
	v.AutomaticEnv()        // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Try to read the config file
	if err := v.ReadInConfig(); err != nil {
		// If the file doesn't exist or is invalid, return an error
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Printf("Warning: Could not read config file: %s. Using defaults or environment variables.", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Set default port if not specified
	if cfg.APIPort == 0 {
		cfg.APIPort = 8081 // Default port
		log.Println("APIPort not specified, using default 8081")
	}

	// Set default daily download limit for free users
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = 5
		log.Println("Daily download limit not specified, using default 5")
	}

	// Set default pacing delay between batch items
	if cfg.Downloads.PaceSeconds == 0 {
		cfg.Downloads.PaceSeconds = 3
		log.Println("Batch pacing delay not specified, using default 3s")
	}

	// Set default size caps (MB) per tier
	if cfg.Downloads.FreeSizeLimitMB == 0 {
		cfg.Downloads.FreeSizeLimitMB = 2048
		log.Println("Free tier size limit not specified, using default 2048 MB")
	}
	if cfg.Downloads.PremiumSizeLimitMB == 0 {
		cfg.Downloads.PremiumSizeLimitMB = 4096
		log.Println("Premium size limit not specified, using default 4096 MB")
	}

	// Set default download scratch directory
	if cfg.Downloads.Dir == "" {
		cfg.Downloads.Dir = "/data/downloads"
		log.Println("Download directory not specified, using default /data/downloads")
	}

	// Set default provider sidecar settings
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "http://localhost:8090"
		log.Println("Provider base URL not specified, using default http://localhost:8090")
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 600
	}

	// Set default database type and path if not specified
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
		log.Println("Database type not specified, using default sqlite")
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/data/savegram.db"
		log.Println("Database path not specified, using default /data/savegram.db")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	log.Printf("Configuration loaded: apiPort=%d dbType=%s dailyLimit=%d", cfg.APIPort, cfg.Database.Type, cfg.Quota.DailyLimit)
	return &cfg, nil
}
