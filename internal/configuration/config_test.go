package configuration

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", config.Server.Port)
	}
	if config.Server.SocketRoute != "ws" {
		t.Errorf("expected default socket route ws, got %q", config.Server.SocketRoute)
	}
	if config.ChatDatabase.Uri != "mongodb://localhost:27017" {
		t.Errorf("unexpected default mongo uri %q", config.ChatDatabase.Uri)
	}
	if config.ChatDatabase.ConversationsCollection != "conversations" {
		t.Errorf("unexpected default collection %q", config.ChatDatabase.ConversationsCollection)
	}
	// No default: an unset verifier rejects every handshake.
	if config.Verifier.Endpoint != "" {
		t.Errorf("verifier endpoint must not default, got %q", config.Verifier.Endpoint)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"port": 9100},
		"mongo": {"uri": "mongodb://db:27017", "database": "chat"},
		"mailbox": {"url": "redis://cache:6379/0", "token": "s3cret"},
		"verifier": {"endpoint": "https://id.example.com/user", "api_key": "key"},
		"notify": {"endpoint": "https://mail.example.com/send", "frontend_base_url": "https://www.allrentr.com"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", config.Server.Port)
	}
	if config.ChatDatabase.Uri != "mongodb://db:27017" {
		t.Errorf("unexpected mongo uri %q", config.ChatDatabase.Uri)
	}
	if config.Mailbox.Token != "s3cret" {
		t.Errorf("unexpected mailbox token %q", config.Mailbox.Token)
	}
	if config.Verifier.Endpoint != "https://id.example.com/user" {
		t.Errorf("unexpected verifier endpoint %q", config.Verifier.Endpoint)
	}
	// Unset fields still pick up defaults.
	if config.ChatDatabase.MessagesCollection != "messages" {
		t.Errorf("unexpected messages collection %q", config.ChatDatabase.MessagesCollection)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CHAT_PORT", "9200")
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("MAILBOX_URL", "redis://env:6379/0")
	t.Setenv("VERIFIER_ENDPOINT", "https://env.example.com/user")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Server.Port != 9200 {
		t.Errorf("expected env port 9200, got %d", config.Server.Port)
	}
	if config.ChatDatabase.Uri != "mongodb://env:27017" {
		t.Errorf("expected env mongo uri, got %q", config.ChatDatabase.Uri)
	}
	if config.Mailbox.Url != "redis://env:6379/0" {
		t.Errorf("expected env mailbox url, got %q", config.Mailbox.Url)
	}
	if config.Verifier.Endpoint != "https://env.example.com/user" {
		t.Errorf("expected env verifier endpoint, got %q", config.Verifier.Endpoint)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.json"); err == nil {
		t.Error("expected error for missing config file")
	}
}
