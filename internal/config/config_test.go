package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	os.Unsetenv("LLM_API_KEY")
	os.Unsetenv("CONFIG_PATH")
	os.Unsetenv("HUB_MAX_CONCURRENT_OPERATIONS")

	cfg := LoadConfig()

	if cfg.Hub.MaxConcurrentOperations != 5 {
		t.Errorf("expected max concurrent operations 5, got %d", cfg.Hub.MaxConcurrentOperations)
	}
	if cfg.Hub.ConnectTimeout != 10*time.Second {
		t.Errorf("expected connect timeout 10s, got %v", cfg.Hub.ConnectTimeout)
	}
	if cfg.Hub.ListTimeout != 5*time.Second {
		t.Errorf("expected list timeout 5s, got %v", cfg.Hub.ListTimeout)
	}
	if cfg.ToolExecutor.MaxRetries != 3 {
		t.Errorf("expected max retries 3, got %d", cfg.ToolExecutor.MaxRetries)
	}
}

func TestLoadConfig_EnvOverridesMaxConcurrentOperations(t *testing.T) {
	os.Setenv("HUB_MAX_CONCURRENT_OPERATIONS", "9")
	defer os.Unsetenv("HUB_MAX_CONCURRENT_OPERATIONS")

	cfg := LoadConfig()

	if cfg.Hub.MaxConcurrentOperations != 9 {
		t.Errorf("expected max concurrent operations 9, got %d", cfg.Hub.MaxConcurrentOperations)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	yamlContent := `
log:
  level: DEBUG
hub:
  max_concurrent_operations: 2
servers:
  echo:
    command: /bin/echo-server
tool_executor:
  llm_enabled: false
`
	tmpfile, err := os.CreateTemp("", "config*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(yamlContent)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	os.Setenv("CONFIG_PATH", tmpfile.Name())
	defer os.Unsetenv("CONFIG_PATH")

	cfg := LoadConfig()

	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected Log.Level DEBUG, got %s", cfg.Log.Level)
	}
	if cfg.Hub.MaxConcurrentOperations != 2 {
		t.Errorf("expected max concurrent operations 2, got %d", cfg.Hub.MaxConcurrentOperations)
	}
	sc, ok := cfg.Servers["echo"]
	if !ok || sc.Command != "/bin/echo-server" {
		t.Errorf("expected echo server command, got %+v", cfg.Servers)
	}
	if cfg.ToolExecutor.LLMEnabled {
		t.Errorf("expected llm_enabled false from yaml")
	}
}

func TestValidate_RequiresServers(t *testing.T) {
	cfg := &Config{}
	cfg.Hub.MaxConcurrentOperations = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error with no servers configured")
	}
}

func TestValidate_RequiresCommand(t *testing.T) {
	cfg := &Config{Servers: map[string]ServerConfig{"echo": {}}}
	cfg.Hub.MaxConcurrentOperations = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error with empty command")
	}
}
