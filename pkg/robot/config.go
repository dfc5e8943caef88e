package robot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const DefaultConfigFile = "rover.json"

// EnvPrefix prefixes environment overrides, e.g. ROVER_DRIVE_PORT.
const EnvPrefix = "ROVER"

// Config holds the rover configuration
type Config struct {
	Drive       DriveConfig       `json:"drive" mapstructure:"drive"`
	Sensors     SensorsConfig     `json:"sensors" mapstructure:"sensors"`
	Calibration CalibrationConfig `json:"calibration" mapstructure:"calibration"`
	Capture     CaptureConfig     `json:"capture" mapstructure:"capture"`
	Model       ModelConfig       `json:"model" mapstructure:"model"`
	Remote      RemoteConfig      `json:"remote" mapstructure:"remote"`
	LogLevel    string            `json:"logLevel" mapstructure:"logLevel"`
}

// DriveConfig holds configuration for the wheel servo bus
type DriveConfig struct {
	Port     string      `json:"port" mapstructure:"port"`
	BaudRate int         `json:"baudRate" mapstructure:"baudRate"`
	Speed    float64     `json:"speed" mapstructure:"speed"`
	Wheels   Calibration `json:"wheels,omitempty" mapstructure:"wheels"`
}

// IsCalibrated returns true if the drive has wheel calibration data
func (d *DriveConfig) IsCalibrated() bool {
	return len(d.Wheels) > 0
}

// SensorsConfig holds configuration for the ranging sensor board
type SensorsConfig struct {
	Port     string `json:"port" mapstructure:"port"`
	BaudRate int    `json:"baudRate" mapstructure:"baudRate"`
}

// CalibrationConfig holds sensor calibration
type CalibrationConfig struct {
	Distance DistanceCalibration `json:"distance" mapstructure:"distance"`
}

// CaptureConfig holds the capture file location
type CaptureConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// ModelConfig holds the model file location
type ModelConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// RemoteConfig holds the remote control listener
type RemoteConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = applyDefaults(newViper()).Unmarshal(cfg)
	cfg.normalize()
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func applyDefaults(v *viper.Viper) *viper.Viper {
	v.SetDefault("logLevel", "info")

	v.SetDefault("drive.port", "")
	v.SetDefault("drive.baudRate", 1_000_000)
	v.SetDefault("drive.speed", 100.0)

	v.SetDefault("sensors.port", "")
	v.SetDefault("sensors.baudRate", 115200)

	identity := DefaultDistanceCalibration()
	v.SetDefault("calibration.distance.bias", identity.Bias[:])
	v.SetDefault("calibration.distance.factor", identity.Factor[:])

	v.SetDefault("capture.path", "capture.bin")
	v.SetDefault("model.path", "model.json")
	v.SetDefault("remote.addr", ":8080")
	return v
}

func (c *Config) normalize() {
	if c.Drive.Speed <= 0 || c.Drive.Speed > 100 {
		c.Drive.Speed = 100
	}
	if len(c.Drive.Wheels) == 0 {
		c.Drive.Wheels = DefaultCalibration()
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	return LoadConfigFs(afero.NewOsFs(), path)
}

// LoadConfigFs loads configuration from path on fs. Defaults fill absent
// keys and ROVER_* environment variables override the file.
func LoadConfigFs(fs afero.Fs, path string) (*Config, error) {
	v := applyDefaults(newViper())
	v.SetFs(fs)
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	return c.SaveFs(afero.NewOsFs(), path)
}

// SaveFs saves configuration to path on fs
func (c *Config) SaveFs(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	ok, err := afero.Exists(afero.NewOsFs(), DefaultConfigFile)
	return err == nil && ok
}
