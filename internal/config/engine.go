package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = ".aicertify"
	envPrefix  = "AICERTIFY"
)

// EngineConfig is the root configuration for a compliance evaluation run:
// where the policy library lives, how the decision engine driver should
// reach OPA, and the concurrency bound for per-policy evaluation.
type EngineConfig struct {
	Library struct {
		Root string `mapstructure:"root" validate:"required"`
	} `mapstructure:"library"`

	Engine struct {
		Mode      string `mapstructure:"mode" validate:"oneof=production development debug"`
		OpaPath   string `mapstructure:"opaPath"`
		ServerURL string `mapstructure:"serverURL"`
		Workers   int    `mapstructure:"workers" validate:"gte=0"`
	} `mapstructure:"engine"`

	LLM struct {
		Provider string `mapstructure:"provider"`
		Model    string `mapstructure:"model"`
	} `mapstructure:"llm"`

	Audit struct {
		DBPath string `mapstructure:"dbPath"`
	} `mapstructure:"audit"`
}

// GlobalEngineConfig holds the process-wide configuration instance,
// populated by InitConfig.
var GlobalEngineConfig EngineConfig

var validate = validator.New()

// InitConfig loads a .env file into the environment when one exists,
// then reads .aicertify.yaml from the current directory or the home
// directory (or the file already set with viper.SetConfigFile).
// Environment variables prefixed AICERTIFY_ take precedence over the
// config file, which takes precedence over the built-in defaults.
// OPA_SERVER_URL also sets engine.serverURL, and a true OPA_DEBUG
// forces engine.mode to debug.
func InitConfig() error {
	if err := godotenv.Load(); err != nil {
		// No .env file present; environment and defaults still apply.
		_ = err
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = viper.BindEnv("engine.serverURL", envPrefix+"_ENGINE_SERVERURL", "OPA_SERVER_URL")
	if debug, err := strconv.ParseBool(os.Getenv("OPA_DEBUG")); err == nil && debug {
		viper.Set("engine.mode", "debug")
	}

	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetDefault("library.root", "./policies")
	viper.SetDefault("engine.mode", "production")
	viper.SetDefault("engine.opaPath", "")
	viper.SetDefault("engine.serverURL", "")
	viper.SetDefault("engine.workers", 0)
	viper.SetDefault("llm.provider", DefaultProvider)
	viper.SetDefault("llm.model", DefaultModelForProvider(DefaultProvider))
	viper.SetDefault("audit.dbPath", "./aicertify-audit.db")

	if err := viper.Unmarshal(&GlobalEngineConfig); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate.Struct(&GlobalEngineConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
