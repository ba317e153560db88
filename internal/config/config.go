package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration constants
const (
	// Server Configuration
	Port = "PORT"
	Host = "HOST"

	// Agent Configuration
	AgentName     = "AGENT_NAME"
	Location      = "LOCATION"
	DataDir       = "DATA_DIR"
	DirectoryAddr = "DIRECTORY_ADDR"
	RegistryAddr  = "REGISTRY_ADDR"
	SchedulerAddr = "SCHEDULER_ADDR"
	LedgerPath    = "LEDGER_PATH"

	// User Configuration
	UserName  = "USER_NAME"
	UserPhone = "USER_PHONE"
	UserEmail = "USER_EMAIL"

	// Payment Configuration
	PaymentTickSeconds = "PAYMENT_TICK_SECONDS"

	// Messaging Configuration
	RequestTimeoutSeconds = "REQUEST_TIMEOUT_SECONDS"

	// Logging Configuration
	LogLevel  = "LOG_LEVEL"
	LogFormat = "LOG_FORMAT"

	// WebSocket Configuration
	WSReadBufferSize  = "WS_READ_BUFFER_SIZE"
	WSWriteBufferSize = "WS_WRITE_BUFFER_SIZE"
	WSMaxWorkers      = 10
	WSMaxCapacity     = 100
)

// Config holds all agent configuration
type Config struct {
	Server    ServerConfig
	Agent     AgentConfig
	User      UserConfig
	Payment   PaymentConfig
	Messaging MessagingConfig
	Logging   LoggingConfig
	WebSocket WebSocketConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// AgentConfig holds the agent's identity and the well-known addresses
// it depends on
type AgentConfig struct {
	Name          string
	Location      string
	DataDir       string
	DirectoryAddr string
	RegistryAddr  string
	SchedulerAddr string
	LedgerPath    string
}

// UserConfig holds the human's contact details for registration
type UserConfig struct {
	Name  string
	Phone string
	Email string
}

// PaymentConfig holds scheduler configuration
type PaymentConfig struct {
	TickInterval time.Duration
}

// MessagingConfig holds cross-agent request configuration
type MessagingConfig struct {
	RequestTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
}

// LoadConfig loads configuration from environment variables and .envrc file
func LoadConfig() (*Config, error) {
	viper.SetConfigName(".envrc")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// Config file is optional; environment variables cover everything
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: viper.GetString(Port),
			Host: viper.GetString(Host),
		},
		Agent: AgentConfig{
			Name:          viper.GetString(AgentName),
			Location:      viper.GetString(Location),
			DataDir:       viper.GetString(DataDir),
			DirectoryAddr: viper.GetString(DirectoryAddr),
			RegistryAddr:  viper.GetString(RegistryAddr),
			SchedulerAddr: viper.GetString(SchedulerAddr),
			LedgerPath:    viper.GetString(LedgerPath),
		},
		User: UserConfig{
			Name:  viper.GetString(UserName),
			Phone: viper.GetString(UserPhone),
			Email: viper.GetString(UserEmail),
		},
		Payment: PaymentConfig{
			TickInterval: time.Duration(viper.GetInt(PaymentTickSeconds)) * time.Second,
		},
		Messaging: MessagingConfig{
			RequestTimeout: time.Duration(viper.GetInt(RequestTimeoutSeconds)) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  viper.GetString(LogLevel),
			Format: viper.GetString(LogFormat),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  viper.GetInt(WSReadBufferSize),
			WriteBufferSize: viper.GetInt(WSWriteBufferSize),
		},
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	// Server defaults
	viper.SetDefault(Port, "8080")
	viper.SetDefault(Host, "localhost")

	// Agent defaults
	viper.SetDefault(AgentName, "agent")
	viper.SetDefault(Location, "")
	viper.SetDefault(DataDir, "./data")
	viper.SetDefault(DirectoryAddr, "ws://localhost:8000/ws")
	viper.SetDefault(RegistryAddr, "")
	viper.SetDefault(SchedulerAddr, "")
	viper.SetDefault(LedgerPath, "./data/ledger.db")

	// User defaults
	viper.SetDefault(UserName, "")
	viper.SetDefault(UserPhone, "")
	viper.SetDefault(UserEmail, "")

	// Payment defaults
	viper.SetDefault(PaymentTickSeconds, 60)

	// Messaging defaults
	viper.SetDefault(RequestTimeoutSeconds, 240)

	// Logging defaults
	viper.SetDefault(LogLevel, "info")
	viper.SetDefault(LogFormat, "json")

	// WebSocket defaults
	viper.SetDefault(WSReadBufferSize, 1024)
	viper.SetDefault(WSWriteBufferSize, 1024)
}

// ListenAddr is the host:port the agent binds.
func (c *Config) ListenAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// AdvertisedAddress is the websocket address peers reach this agent at.
// It doubles as the agent's identity everywhere in the marketplace.
func (c *Config) AdvertisedAddress() string {
	return fmt.Sprintf("ws://%s:%s/ws", c.Server.Host, c.Server.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Agent.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}

	if c.Messaging.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if c.Payment.TickInterval <= 0 {
		return fmt.Errorf("payment tick interval must be positive")
	}

	return nil
}
