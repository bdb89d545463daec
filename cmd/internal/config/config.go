package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server reads from the environment. The .env
// file (if any) is loaded by main before Load is called.
type Config struct {
	Port         string
	DatabasePath string

	// Google service account + calendar/drive targets
	GoogleCredentialsJSON string
	GoogleCalendarID      string
	DriveFolderID         string
	CalendarTimezone      string

	// Meeting availability / registration knobs
	DefaultCapacity  int
	LookupWindowDays int
	DefaultSlotLimit int
	ProviderTimeout  time.Duration

	// Outbound collaborators
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	SlackWebhook string
	SlackChannel string
	CompanyName  string

	// Background jobs
	JobWorkers int
	JobRetries int

	// Cognito (admin auth)
	CognitoClientID   string
	CognitoUserPoolID string
	AWSRegion         string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "6060"),
		DatabasePath: getEnv("DATABASE_PATH", "./database.db"),

		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS"),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", "primary"),
		DriveFolderID:         os.Getenv("GOOGLE_DRIVE_FOLDER_ID"),
		CalendarTimezone:      getEnv("CALENDAR_TIMEZONE", "America/New_York"),

		SMTPHost:     getEnv("SMTP_SERVER", "smtp.gmail.com"),
		SMTPUsername: os.Getenv("EMAIL_USERNAME"),
		SMTPPassword: os.Getenv("EMAIL_PASSWORD"),
		FromEmail:    os.Getenv("FROM_EMAIL"),
		SlackWebhook: os.Getenv("SLACK_WEBHOOK_URL"),
		SlackChannel: getEnv("SLACK_CHANNEL", "#business-submissions"),
		CompanyName:  getEnv("COMPANY_NAME", "Business Acquisition Services"),

		CognitoClientID:   os.Getenv("COGNITO_CLIENT_ID"),
		CognitoUserPoolID: os.Getenv("COGNITO_USER_POOL_ID"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
	}

	var err error
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.DefaultCapacity, err = getEnvInt("DEFAULT_MEETING_CAPACITY", 10); err != nil {
		return nil, err
	}
	if cfg.LookupWindowDays, err = getEnvInt("MEETING_LOOKUP_WINDOW_DAYS", 180); err != nil {
		return nil, err
	}
	if cfg.DefaultSlotLimit, err = getEnvInt("MEETING_SLOT_LIMIT", 3); err != nil {
		return nil, err
	}
	if cfg.JobWorkers, err = getEnvInt("JOB_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.JobRetries, err = getEnvInt("JOB_MAX_RETRIES", 3); err != nil {
		return nil, err
	}

	timeoutSecs, err := getEnvInt("PROVIDER_TIMEOUT_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	cfg.ProviderTimeout = time.Duration(timeoutSecs) * time.Second

	if cfg.DefaultCapacity < 1 {
		return nil, fmt.Errorf("DEFAULT_MEETING_CAPACITY must be at least 1, got %d", cfg.DefaultCapacity)
	}
	if cfg.LookupWindowDays < 1 {
		return nil, fmt.Errorf("MEETING_LOOKUP_WINDOW_DAYS must be at least 1, got %d", cfg.LookupWindowDays)
	}
	return cfg, nil
}

// LookupWindow is the horizon for occurrence enumeration, anchored at "now".
func (c *Config) LookupWindow() time.Duration {
	return time.Duration(c.LookupWindowDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}
