package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/draftforge/draftforge/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Drive     DriveConfig     `yaml:"drive"`
	WordPress WordPressConfig `yaml:"wordpress"`
	AI        AIConfig        `yaml:"ai"`
	Images    ImagesConfig    `yaml:"images"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	APIToken string `yaml:"api_token"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	FolderID        string `yaml:"folder_id"`
}

type WordPressConfig struct {
	BaseURL     string `yaml:"base_url"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"app_password"`
}

type AIConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	CaptionModel string `yaml:"caption_model"`
}

type ImagesConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Count    int    `yaml:"count"`
	Size     string `yaml:"size"`
}

type PipelineConfig struct {
	WidgetCatalog      string `yaml:"widget_catalog"`
	PublishDomain      string `yaml:"publish_domain"`
	TopWidgetThreshold int    `yaml:"top_widget_threshold"`
	JobPause           string `yaml:"job_pause"`
	ExtraTags          string `yaml:"extra_tags"`
}

type SchedulerConfig struct {
	RunInterval string `yaml:"run_interval"`
	StuckAfter  string `yaml:"stuck_after"`
	Enabled     bool   `yaml:"enabled"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5810
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-1.5-flash"
	}
	if cfg.AI.CaptionModel == "" {
		cfg.AI.CaptionModel = cfg.AI.Model
	}
	if cfg.Images.Count == 0 {
		cfg.Images.Count = 2
	}
	if cfg.Images.Size == "" {
		cfg.Images.Size = "1024x1024"
	}
	if cfg.Pipeline.WidgetCatalog == "" {
		cfg.Pipeline.WidgetCatalog = "configs/widgets.yaml"
	}
	if cfg.Pipeline.TopWidgetThreshold == 0 {
		cfg.Pipeline.TopWidgetThreshold = 3
	}
	if cfg.Pipeline.JobPause == "" {
		cfg.Pipeline.JobPause = "5s"
	}
	if cfg.Scheduler.RunInterval == "" {
		cfg.Scheduler.RunInterval = "15m"
	}
	if cfg.Scheduler.StuckAfter == "" {
		cfg.Scheduler.StuckAfter = "1h"
	}

	return cfg, nil
}
