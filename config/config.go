package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig holds general process settings.
type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Mode     string `yaml:"mode" json:"mode"` // development or production
	Version  string `yaml:"version" json:"version"`
}

// WebConfig holds the HTTP server settings.
type WebConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Secret    string `yaml:"secret" json:"secret"`
	ApiKeyHdr string `yaml:"api_key_header" json:"api_key_header"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// LLMConfig holds settings for the language model boundary.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url" json:"base_url"`
	ApiKey      string  `yaml:"api_key" json:"api_key"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens" json:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec" json:"timeout_sec"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// ChatConfig holds conversation session settings.
type ChatConfig struct {
	SessionTTLMin    int `yaml:"session_ttl_min" json:"session_ttl_min"`
	HistoryRetDays   int `yaml:"history_retention_days" json:"history_retention_days"`
	SweepIntervalMin int `yaml:"sweep_interval_min" json:"sweep_interval_min"`
}

type AppConfig struct {
	System   SysConfig  `yaml:"system" json:"system"`
	Web      WebConfig  `yaml:"web" json:"web"`
	Database DBConfig   `yaml:"database" json:"database"`
	LLM      LLMConfig  `yaml:"llm" json:"llm"`
	Logger   LogConfig  `yaml:"logger" json:"logger"`
	Chat     ChatConfig `yaml:"chat" json:"chat"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "OrderMind",
		Location: "America/Mexico_City",
		Workdir:  "/var/ordermind",
		Mode:     "development",
		Version:  "1.0.0",
	},
	Web: WebConfig{
		Host:      "0.0.0.0",
		Port:      1816,
		Secret:    "9b6de5cc-0731-1203-xxtx-0f568ac9da37",
		ApiKeyHdr: "X-API-Key",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "ordermind",
		User:     "postgres",
		Passwd:   "",
		MaxConn:  100,
		IdleConn: 10,
	},
	LLM: LLMConfig{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o",
		Temperature: 0,
		MaxTokens:   1000,
		TimeoutSec:  60,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/ordermind/ordermind.log",
	},
	Chat: ChatConfig{
		SessionTTLMin:    60,
		HistoryRetDays:   30,
		SweepIntervalMin: 10,
	},
}

func setEnvValue(name string, f func(v string)) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		f(evalue)
	}
}

// LoadConfig reads the YAML config file and applies environment overrides.
// A missing file yields the defaults.
func LoadConfig(cfile string) *AppConfig {
	appcfg := DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			cfg := new(AppConfig)
			if err := yaml.Unmarshal(data, cfg); err == nil {
				appcfg = cfg
			}
		}
	}

	setEnvValue("ORDERMIND_SYSTEM_WORKDIR", func(v string) { appcfg.System.Workdir = v })
	setEnvValue("ORDERMIND_SYSTEM_MODE", func(v string) { appcfg.System.Mode = v })
	setEnvValue("ORDERMIND_WEB_HOST", func(v string) { appcfg.Web.Host = v })
	setEnvValue("ORDERMIND_WEB_PORT", func(v string) { appcfg.Web.Port = cast.ToInt(v) })
	setEnvValue("ORDERMIND_WEB_SECRET", func(v string) { appcfg.Web.Secret = v })
	setEnvValue("ORDERMIND_DB_TYPE", func(v string) { appcfg.Database.Type = v })
	setEnvValue("ORDERMIND_DB_HOST", func(v string) { appcfg.Database.Host = v })
	setEnvValue("ORDERMIND_DB_PORT", func(v string) { appcfg.Database.Port = cast.ToInt(v) })
	setEnvValue("ORDERMIND_DB_NAME", func(v string) { appcfg.Database.Name = v })
	setEnvValue("ORDERMIND_DB_USER", func(v string) { appcfg.Database.User = v })
	setEnvValue("ORDERMIND_DB_PWD", func(v string) { appcfg.Database.Passwd = v })
	setEnvValue("ORDERMIND_DB_DEBUG", func(v string) { appcfg.Database.Debug = cast.ToBool(v) })
	setEnvValue("ORDERMIND_LLM_BASEURL", func(v string) { appcfg.LLM.BaseURL = v })
	setEnvValue("ORDERMIND_LLM_APIKEY", func(v string) { appcfg.LLM.ApiKey = v })
	setEnvValue("ORDERMIND_LLM_MODEL", func(v string) { appcfg.LLM.Model = v })
	setEnvValue("ORDERMIND_LOGGER_MODE", func(v string) { appcfg.Logger.Mode = v })

	_ = os.MkdirAll(appcfg.System.Workdir, 0o755)
	if appcfg.Logger.Filename == "" {
		appcfg.Logger.Filename = filepath.Join(appcfg.System.Workdir, "ordermind.log")
	}
	return appcfg
}
