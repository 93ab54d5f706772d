package configuration

import (
	"encoding/json"
	"os"
	"strconv"
)

type MongoConfig struct {
	Uri                     string `json:"uri"`
	Database                string `json:"database"`
	ConversationsCollection string `json:"conversationsCollection"`
	MessagesCollection      string `json:"messagesCollection"`
	PresenceCollection      string `json:"presenceCollection"`
	NotificationsCollection string `json:"notificationsCollection"`
}

type MailboxConfig struct {
	Url   string `json:"url"`
	Token string `json:"token"`
}

type VerifierConfig struct {
	Endpoint string `json:"endpoint"`
	ApiKey   string `json:"api_key"`
}

type NotifyConfig struct {
	Endpoint        string `json:"endpoint"`
	FrontendBaseUrl string `json:"frontend_base_url"`
}

type ServerConfig struct {
	Port        int    `json:"port"`
	SocketRoute string `json:"socket_route"`
}

type Config struct {
	Server       ServerConfig   `json:"server"`
	ChatDatabase MongoConfig    `json:"mongo"`
	Mailbox      MailboxConfig  `json:"mailbox"`
	Verifier     VerifierConfig `json:"verifier"`
	Notify       NotifyConfig   `json:"notify"`
}

// LoadConfig reads the JSON config file, applies defaults and then
// environment overrides. Only the verifier endpoint has no usable
// default; without it every socket handshake is rejected.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(file, &config); err != nil {
			return nil, err
		}
	}

	applyDefaults(&config)
	applyEnvOverrides(&config)

	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.SocketRoute == "" {
		c.Server.SocketRoute = "ws"
	}
	if c.ChatDatabase.Uri == "" {
		c.ChatDatabase.Uri = "mongodb://localhost:27017"
	}
	if c.ChatDatabase.Database == "" {
		c.ChatDatabase.Database = "allrentr_chat"
	}
	if c.ChatDatabase.ConversationsCollection == "" {
		c.ChatDatabase.ConversationsCollection = "conversations"
	}
	if c.ChatDatabase.MessagesCollection == "" {
		c.ChatDatabase.MessagesCollection = "messages"
	}
	if c.ChatDatabase.PresenceCollection == "" {
		c.ChatDatabase.PresenceCollection = "presence"
	}
	if c.ChatDatabase.NotificationsCollection == "" {
		c.ChatDatabase.NotificationsCollection = "notifications"
	}
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("CHAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.ChatDatabase.Uri = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		c.ChatDatabase.Database = v
	}
	if v := os.Getenv("MAILBOX_URL"); v != "" {
		c.Mailbox.Url = v
	}
	if v := os.Getenv("MAILBOX_TOKEN"); v != "" {
		c.Mailbox.Token = v
	}
	if v := os.Getenv("VERIFIER_ENDPOINT"); v != "" {
		c.Verifier.Endpoint = v
	}
	if v := os.Getenv("VERIFIER_API_KEY"); v != "" {
		c.Verifier.ApiKey = v
	}
	if v := os.Getenv("NOTIFY_ENDPOINT"); v != "" {
		c.Notify.Endpoint = v
	}
	if v := os.Getenv("FRONTEND_BASE_URL"); v != "" {
		c.Notify.FrontendBaseUrl = v
	}
}
