package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindScramctl  = "scramctl"
	KindInventory = "inventory"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindScramctl:
		return scramctlTemplate, nil
	case KindInventory:
		return inventoryTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const scramctlTemplate = `# scramctl example configuration. Durations use Go syntax (250ms, 1s, 2m).

host = "127.0.0.1"
port = 7443
# server picks a named entry from inventory instead of host/port.
server = ""
inventory = ""
server_name = "localhost"
ca_file = ""

mechanism = "SCRAM-SHA-256"
username = "admin"
password_env = "SCRAMCTL_PASSWORD"
password_file = ""

max_retries = 3
backoff_unit = "1s"
backoff_max = "30s"
backoff_jitter = false
# Empty keeps each retry's idle timeout equal to its backoff delay.
idle_timeout = ""

connect_timeout = "5s"
handshake_timeout = "5s"
write_timeout = "15s"
first_read_timeout = "10s"

metrics_file = ""

[discovery]
zookeeper = ""
namespace = "scramctl"
session_timeout = "1s"
`

const inventoryTemplate = `# Named SCRAM servers for scramctl -server <name>.

[[servers]]
name = "local"
host = "127.0.0.1"
port = 7443
server_name = "localhost"
ca_file = ""
mechanism = "SCRAM-SHA-256"

[[servers]]
name = "staging"
host = "auth.staging.internal"
port = 7443
server_name = ""
ca_file = "/etc/scramctl/staging-ca.pem"
mechanism = "SCRAM-SHA-512"
`
