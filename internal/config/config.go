package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Candidate ports the pyRevit routes server is known to bind, in probe order.
var defaultListenerPorts = []int{48884, 48885, 48886}

type Config struct {
	Host    string
	Port    string
	DataDir string
	Debug   bool

	// ListenerPorts are probed in order by the bridge client.
	ListenerPorts []int
	ListenerHost  string

	// ListenerPort is the port the development listener binds.
	ListenerPort string
}

func Load() Config {
	_ = godotenv.Load()

	host := getenv("REVITMCP_HOST", "127.0.0.1")
	port := getenv("REVITMCP_PORT", "8000")
	dataDir := getenv("REVITMCP_DATA_DIR", ".data")
	debug := parseBool(getenv("REVITMCP_DEBUG", "false"))
	listenerHost := getenv("REVITMCP_LISTENER_HOST", "localhost")
	listenerPort := getenv("REVITMCP_LISTENER_PORT", "48884")

	ports := parsePorts(os.Getenv("REVITMCP_LISTENER_PORTS"))
	if len(ports) == 0 {
		ports = append([]int{}, defaultListenerPorts...)
	}

	return Config{
		Host:          host,
		Port:          port,
		DataDir:       dataDir,
		Debug:         debug,
		ListenerPorts: ports,
		ListenerHost:  listenerHost,
		ListenerPort:  listenerPort,
	}
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return false
	}
	return v
}

func parsePorts(raw string) []int {
	out := make([]int, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		port, err := strconv.Atoi(part)
		if err != nil || port <= 0 || port > 65535 {
			continue
		}
		out = append(out, port)
	}
	return out
}
