package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kong/rosterctl/internal/meta"
	"github.com/kong/rosterctl/internal/util/viper"
	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

const (
	DefaultProfile = "default"

	defaultConfigFileName = "config.yaml"
)

// Configuration paths shared by commands. Screen specific settings live
// under "screens.<name>".
const (
	OutputConfigPath         = "output"
	LogLevelConfigPath       = "log-level"
	LogFileConfigPath        = "log-file"
	BaseURLConfigPath        = "base-url"
	RequestTimeoutConfigPath = "request-timeout"
	PageSizeConfigPath       = "table.page-size"
	CampaignTemplatePath     = "campaign.template"
	CampaignSubjectPath      = "campaign.subject"

	DefaultBaseURL        = "http://127.0.0.1:8080/api"
	DefaultRequestTimeout = 30 * time.Second
)

// ScreenPathConfigPath is the config path overriding a screen's endpoint.
func ScreenPathConfigPath(screen string) string {
	return "screens." + screen + ".path"
}

// ScreenBulkPathConfigPath is the config path overriding a screen's bulk
// email endpoint.
func ScreenBulkPathConfigPath(screen string) string {
	return "screens." + screen + ".bulk-path"
}

// ScreenRowsQueryConfigPath is the config path of a jq expression that
// extracts rows from a screen's response envelope.
func ScreenRowsQueryConfigPath(screen string) string {
	return "screens." + screen + ".rows-query"
}

// Returns the expanded default config path depending on what
// environment variables are set. If XDG_CONFIG_HOME is set,
// the default is $XDG_CONFIG_HOME/rosterctl,
// otherwise the default is os.UserHomeDir()/.config/rosterctl.
func GetDefaultConfigPath() (string, error) {
	val, set := os.LookupEnv("XDG_CONFIG_HOME")
	if !set || val == "" {
		var err error
		val, err = os.UserHomeDir()
		if err != nil {
			return "", err
		}
		val = filepath.Join(val, ".config")
	}
	val = filepath.Join(val, meta.CLIName)
	return os.ExpandEnv(val), nil
}

func GetDefaultConfigFilePath() (string, error) {
	path, err := GetDefaultConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(path, defaultConfigFileName), nil
}

// ExpandDefaultConfigFilePath is GetDefaultConfigFilePath for flag defaults,
// where an error degrades to a relative path.
func ExpandDefaultConfigFilePath() string {
	path, err := GetDefaultConfigFilePath()
	if err != nil {
		return defaultConfigFileName
	}
	return path
}

// GetConfig returns the configuration for this instance of the CLI
func GetConfig(path string, profile string, defaultConfigFilePath string) (*ProfiledConfig, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); err == nil {
		// a path given by the user is loaded strictly
		vip, err := viper.NewViperE(path)
		if err != nil {
			return nil, err
		}
		return BuildProfiledConfig(profile, path, vip), nil
	}

	if path != defaultConfigFilePath {
		return nil, fmt.Errorf("the provided config file path does not exist: %s", path)
	}

	vip, err := viper.InitializeDefaultViper(getDefaultConfig(profile, path), path)
	if err != nil {
		return nil, err
	}
	return BuildProfiledConfig(profile, path, vip), nil
}

// Empty type to represent the _type_ Config. Genesis is to support a key in a Context
type Key struct{}

// Config is a global instance of the Key type
var ConfigKey = Key{}

// Hook provides a generalization of the Viper interface
// but allows some control, specifically over the Save functionality
type Hook interface {
	// Save writes the configuration to the file system
	Save() error
	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	// GetIntOrElse returns an integer value from the configuration or a default
	GetIntOrElse(key string, orElse int) int
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
	// SetString sets an override for a given string
	SetString(key string, value string)
	// Set sets an override for a given key
	Set(k string, v any)
	Get(key string) any
	// BindFlag takes a specific configuration path and
	// binds it to a specific flag
	BindFlag(configPath string, f *pflag.Flag) error
	// The profile for this configuration
	GetProfile() string
	// The file path used to load this configuration
	GetPath() string
}

// ProfiledConfig is a Viper with an associated profile. Reads go to the
// profile's sub configuration.
type ProfiledConfig struct {
	*v.Viper
	subViper    *v.Viper
	ProfileName string
	Path        string
}

func (p *ProfiledConfig) GetProfile() string {
	return p.ProfileName
}

func (p *ProfiledConfig) Save() error {
	return p.WriteConfig()
}

func (p *ProfiledConfig) GetString(key string) string {
	return p.subViper.GetString(key)
}

func (p *ProfiledConfig) GetBool(key string) bool {
	return p.subViper.GetBool(key)
}

func (p *ProfiledConfig) GetInt(key string) int {
	return p.subViper.GetInt(key)
}

func (p *ProfiledConfig) GetIntOrElse(key string, orElse int) int {
	if p.subViper.IsSet(key) {
		return p.subViper.GetInt(key)
	}
	return orElse
}

func (p *ProfiledConfig) GetDuration(key string) time.Duration {
	return p.subViper.GetDuration(key)
}

func (p *ProfiledConfig) GetStringSlice(key string) []string {
	return p.subViper.GetStringSlice(key)
}

func (p *ProfiledConfig) Get(key string) any {
	return p.subViper.Get(key)
}

func (p *ProfiledConfig) BindFlag(configPath string, f *pflag.Flag) error {
	return p.subViper.BindPFlag(configPath, f)
}

func (p *ProfiledConfig) SetString(k string, v string) {
	p.subViper.Set(k, v)
}

func (p *ProfiledConfig) Set(k string, v any) {
	p.subViper.Set(k, v)
}

func (p *ProfiledConfig) GetPath() string {
	return p.Path
}

func BuildProfiledConfig(profile string, path string, mainv *v.Viper) *ProfiledConfig {
	subv := mainv.Sub(profile)
	if subv == nil {
		// the file has no section for this profile; profile specific
		// environment variables must still resolve
		subv = v.New()
		envPrefix := meta.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(profile, "-", "_"))
		viper.ConfigureEnvVars(subv, envPrefix)
	}

	return &ProfiledConfig{
		Viper:       mainv,
		ProfileName: profile,
		subViper:    subv,
		Path:        path,
	}
}

func getDefaultConfig(profileName, configFilePath string) map[string]any {
	configDir := filepath.Dir(configFilePath)
	defaultLogPath := filepath.Join(configDir, "logs", meta.CLIName+".log")

	return map[string]any{
		profileName: map[string]any{
			OutputConfigPath:         "text",
			LogLevelConfigPath:       "info",
			LogFileConfigPath:        defaultLogPath,
			BaseURLConfigPath:        DefaultBaseURL,
			RequestTimeoutConfigPath: DefaultRequestTimeout.String(),
			"table": map[string]any{
				"page-size": 10,
			},
			"campaign": map[string]any{
				"subject":  "A note for {{ .name | default \"you\" }}",
				"template": "Hello {{ .name | default \"there\" | title }},\n\nThis is a message from HR.\n",
			},
		},
	}
}
