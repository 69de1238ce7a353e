package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigName is the file Load looks for inside the config directory.
const ConfigName = "annotator.cfg.json"

// AnnotatorConfig holds drawing and playback defaults
type AnnotatorConfig struct {
	InitialColor           string        `json:"initialColor" mapstructure:"initialColor"`
	InitialWidth           float64       `json:"initialWidth" mapstructure:"initialWidth"`
	DefaultTool            string        `json:"defaultTool" mapstructure:"defaultTool"`
	DefaultDurationSeconds float64       `json:"defaultDurationSeconds" mapstructure:"defaultDurationSeconds"`
	TimeThreshold          float64       `json:"timeThreshold" mapstructure:"timeThreshold"`
	MinShapeLength         float64       `json:"minShapeLength" mapstructure:"minShapeLength"`
	MinDrawPoints          int           `json:"minDrawPoints" mapstructure:"minDrawPoints"`
	ContainerPadding       float64       `json:"containerPadding" mapstructure:"containerPadding"`
	ResizeDebounce         time.Duration `json:"resizeDebounce" mapstructure:"resizeDebounce"`
	PreviewTick            time.Duration `json:"previewTick" mapstructure:"previewTick"`
}

// ExportConfig holds export document settings
type ExportConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	Format         string `json:"format" mapstructure:"format"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers default values. Load calls it; callers that never
// read a file can call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./annotatorlogs")

	viper.SetDefault("annotator.initialColor", "#FF0000")
	viper.SetDefault("annotator.initialWidth", 4)
	viper.SetDefault("annotator.defaultTool", "select")
	viper.SetDefault("annotator.defaultDurationSeconds", 1)
	viper.SetDefault("annotator.timeThreshold", 0.25)
	viper.SetDefault("annotator.minShapeLength", 5)
	viper.SetDefault("annotator.minDrawPoints", 3)
	viper.SetDefault("annotator.containerPadding", 32)
	viper.SetDefault("annotator.resizeDebounce", "150ms")
	viper.SetDefault("annotator.previewTick", "16ms")

	viper.SetDefault("export.outputDir", "./exports")
	viper.SetDefault("export.compressOutput", false)
	viper.SetDefault("export.format", "json")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "annotator")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(ConfigName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// BindFlags lets command line flags override file values. Flag names are
// the config keys, e.g. --export.outputDir.
func BindFlags(fs *pflag.FlagSet) error {
	if err := viper.BindPFlags(fs); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetAnnotatorConfig returns the drawing and playback settings.
func GetAnnotatorConfig() AnnotatorConfig {
	return AnnotatorConfig{
		InitialColor:           viper.GetString("annotator.initialColor"),
		InitialWidth:           viper.GetFloat64("annotator.initialWidth"),
		DefaultTool:            viper.GetString("annotator.defaultTool"),
		DefaultDurationSeconds: viper.GetFloat64("annotator.defaultDurationSeconds"),
		TimeThreshold:          viper.GetFloat64("annotator.timeThreshold"),
		MinShapeLength:         viper.GetFloat64("annotator.minShapeLength"),
		MinDrawPoints:          viper.GetInt("annotator.minDrawPoints"),
		ContainerPadding:       viper.GetFloat64("annotator.containerPadding"),
		ResizeDebounce:         viper.GetDuration("annotator.resizeDebounce"),
		PreviewTick:            viper.GetDuration("annotator.previewTick"),
	}
}

// GetExportConfig returns the export settings.
func GetExportConfig() ExportConfig {
	return ExportConfig{
		OutputDir:      viper.GetString("export.outputDir"),
		CompressOutput: viper.GetBool("export.compressOutput"),
		Format:         viper.GetString("export.format"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
