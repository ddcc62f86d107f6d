package conf

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// CORSAllowOrigins is empty (deny), "*" (allow all) or a comma separated
	// origin list.
	CORSAllowOrigins string `mapstructure:"cors_allow_origins"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Database struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// Account is one upstream credential set. Either Email or Mobile must be
// non-empty; Token is the cached upstream bearer token and may be empty.
type Account struct {
	Email    string `mapstructure:"email" json:"email"`
	Mobile   string `mapstructure:"mobile" json:"mobile"`
	Password string `mapstructure:"password" json:"password"`
	Token    string `mapstructure:"token" json:"token"`
}

type Upstream struct {
	ProxyURL string `mapstructure:"proxy_url"`
	WasmPath string `mapstructure:"wasm_path"`
}

type Admin struct {
	Key string `mapstructure:"key"`
}

// ClaudeMapping maps claude-* model names onto upstream chat modes.
type ClaudeMapping struct {
	Fast string `mapstructure:"fast"`
	Slow string `mapstructure:"slow"`
}

type Config struct {
	Server        Server        `mapstructure:"server"`
	Log           Log           `mapstructure:"log"`
	Database      Database      `mapstructure:"database"`
	Keys          []string      `mapstructure:"keys"`
	Accounts      []Account     `mapstructure:"accounts"`
	Upstream      Upstream      `mapstructure:"upstream"`
	Admin         Admin         `mapstructure:"admin"`
	ClaudeMapping ClaudeMapping `mapstructure:"claude_model_mapping"`
}

var AppConfig Config

func Load(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("json")
		viper.AddConfigPath("data")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(APP_NAME)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		log.Infof("Using config file: %s", viper.ConfigFileUsed())
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Infof("Config file not found, creating default config")
			if err := os.MkdirAll("data", 0755); err != nil {
				log.Errorf("Failed to create data directory: %v", err)
			}
			if err := viper.SafeWriteConfigAs("data/config.json"); err != nil {
				log.Errorf("Failed to create default config: %v", err)
			}
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return validate()
}

func validate() error {
	for i, acc := range AppConfig.Accounts {
		if acc.Email == "" && acc.Mobile == "" {
			return fmt.Errorf("account %d: email or mobile is required", i)
		}
		if acc.Password == "" && acc.Token == "" {
			return fmt.Errorf("account %d: password or token is required", i)
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5001)
	viper.SetDefault("server.cors_allow_origins", "*")
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", "data/data.db")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("upstream.wasm_path", "data/sha3_wasm_bg.wasm")
	viper.SetDefault("claude_model_mapping.fast", "deepseek-chat")
	viper.SetDefault("claude_model_mapping.slow", "deepseek-reasoner")
}
