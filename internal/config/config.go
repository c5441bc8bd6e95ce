/**
 * @description
 * Configuration management for the QuotaWatch backend. Settings come from
 * environment variables or a local .env file, loaded through Viper.
 *
 * @dependencies
 * - github.com/spf13/viper: For configuration management.
 */
package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration shared by the api, worker and scheduler
// binaries. Each binary uses the subset it needs.
type Config struct {
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
	MasterEncryptionKey string `mapstructure:"MASTER_ENCRYPTION_KEY"`
	JWTSecret           string `mapstructure:"JWT_SECRET"`
	ServerPort          string `mapstructure:"SERVER_PORT"`
	CheckJobSchedule    string `mapstructure:"CHECK_JOB_SCHEDULE"`
	SMTPHost            string `mapstructure:"SMTP_HOST"`
	SMTPPort            int    `mapstructure:"SMTP_PORT"`
	SMTPUser            string `mapstructure:"SMTP_USER"`
	SMTPPassword        string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom            string `mapstructure:"SMTP_FROM"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CHECK_JOB_SCHEDULE", "*/30 * * * *") // every 30 minutes
	viper.SetDefault("SMTP_HOST", "smtp.gmail.com")
	viper.SetDefault("SMTP_PORT", 587)

	// Bind envs explicitly so containers pick them up reliably
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("MASTER_ENCRYPTION_KEY")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("CHECK_JOB_SCHEDULE")
	_ = viper.BindEnv("SMTP_HOST")
	_ = viper.BindEnv("SMTP_PORT")
	_ = viper.BindEnv("SMTP_USER")
	_ = viper.BindEnv("SMTP_PASSWORD")
	_ = viper.BindEnv("SMTP_FROM")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Error reading config file: %s", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.SMTPFrom == "" {
		config.SMTPFrom = config.SMTPUser
	}

	return &config, nil
}
