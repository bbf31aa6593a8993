// config.go: This file contains the configuration for the FaceRoll application. It defines the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// CameraSettings contains settings for the capture device.
type CameraSettings struct {
	Device          int           // capture device index, 0 is the system default camera
	Width           int           // requested capture width in pixels
	Height          int           // requested capture height in pixels
	CaptureInterval time.Duration // time between capture attempts
}

// ConfirmSettings holds the per-mode confirmation thresholds.
type ConfirmSettings struct {
	Single     int // consecutive matches required in single-identity verification
	Population int // consecutive matches required in population modes
}

// RecognitionSettings contains settings for face matching.
type RecognitionSettings struct {
	Tolerance       float64         // maximum descriptor distance for a match, lower is stricter
	ModelDir        string          // directory holding the dlib model files
	ProcessEveryNth int             // population modes process every Nth captured frame
	Downscale       float64         // spatial downscale factor for population mode detection
	Confirm         ConfirmSettings // confirmation thresholds
}

// RollCallSettings controls which sessions the realtime engine starts on boot.
type RollCallSettings struct {
	OpenEnabled bool   // true to start the open-population session at startup
	Group       string // group tag to preload into the subset session, empty for none
}

// MQTTSettings contains settings for MQTT integration.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT
	Broker   string // MQTT (tcp://host:port)
	Topic    string // MQTT topic
	Username string // MQTT username
	Password string // MQTT password
}

// WebhookSettings contains settings for attendance webhook delivery.
type WebhookSettings struct {
	Enabled bool     // true to enable webhook delivery
	URLs    []string // endpoints receiving attendance events
	Timeout time.Duration
	Retries int // delivery attempts per event
}

// NotificationSettings contains settings for push notifications.
type NotificationSettings struct {
	Enabled bool     // true to enable push notifications
	URLs    []string // shoutrrr service URLs
}

// TelemetrySettings contains settings for telemetry.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus compatible telemetry endpoint
	Listen  string // IP address and port to listen on
}

// SentrySettings contains settings for error reporting.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error reporting, opt-in
	DSN     string // Sentry project DSN
}

// RealtimeSettings contains all settings related to realtime attendance processing.
type RealtimeSettings struct {
	Interval int              // seconds between marked-today count refreshes on live sessions
	RollCall RollCallSettings // sessions started at boot
	Log      struct {
		Enabled bool   // true to enable attendance event log
		Path    string // path to attendance event log
	}
	MQTT         MQTTSettings         // MQTT settings
	Webhook      WebhookSettings      // webhook settings
	Notification NotificationSettings // push notification settings
	Telemetry    TelemetrySettings    // telemetry settings
}

// BasicAuth holds settings for the password authentication
type BasicAuth struct {
	Enabled  bool   // true to enable password authentication
	Username string // username for the operator interface
	Password string // bcrypt hash of the operator password
}

// Settings contains all configuration options for the FaceRoll application.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build
	SystemID  string `yaml:"-"` // Anonymous system identifier for telemetry

	Main struct {
		Name      string    // name of FaceRoll node, used to identify source of attendance records
		TimeAs24h bool      // true 24-hour time format, false 12-hour time format
		Log       LogConfig // logging configuration
	}

	Camera CameraSettings // capture device configuration

	Recognition RecognitionSettings // face matching configuration

	Realtime RealtimeSettings // realtime processing settings

	WebServer struct {
		Debug     bool      // true to enable debug mode
		Enabled   bool      // true to enable web server
		Port      string    // port for web server
		BasicAuth BasicAuth // password authentication configuration
		Log       LogConfig // logging configuration for web server
	}

	Sentry SentrySettings // error reporting configuration

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // rotation type
	MaxSize     int64        // max size in bytes for RotationSize
	RotationDay string       // day of the week for RotationWeekly (empty for daily rotation)
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into GlobalConfig.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	// Create a new settings struct
	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	// Save settings instance
	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment overrides, FACEROLL_WEBSERVER_PORT and friends.
	// A .env file loaded in main feeds these in containerized deployments.
	viper.SetEnvPrefix("faceroll")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Get OS specific config paths
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	// Assign config paths to Viper
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// Create directories for config file
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write default config file
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file.
// It uses SaveYAMLConfig to handle the atomic write process.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	// Create a deep copy of the settings
	settingsCopy := *settingsInstance

	// Find the path of the current config file
	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	// Save the settings to the config file
	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	// Marshal the settings struct to YAML
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write the YAML data to a temporary file
	// This is done to ensure atomic write operation
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	// Ensure the temporary file is removed in case of any failure
	defer os.Remove(tempFileName)

	// Write the YAML data to the temporary file
	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	// Close the temporary file after writing
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Try to rename the temporary file to replace the original config file
	// This is typically an atomic operation on most filesystems
	if err := os.Rename(tempFileName, configPath); err != nil {
		// If rename fails (e.g., cross-device link), fall back to copy & delete
		// This might happen when the temp directory is on a different filesystem
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	// If we've reached this point, the operation was successful
	return nil
}

// MySQLDSNConfig returns the connection parameters for the MySQL output
// in the shape the driver expects. Credentials stay in one place.
func (s *Settings) MySQLDSNConfig() (username, password, host, port, database string) {
	o := &s.Output.MySQL
	return o.Username, o.Password, o.Host, o.Port, o.Database
}
