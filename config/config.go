package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BootstrapNode is one entry of the BOOTSTRAP list: a well-known node to
// query on first start, before the routing table has any peers of its
// own.
type BootstrapNode struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Config holds every tunable named in the node's configuration surface.
type Config struct {
	NodePort       int             `yaml:"node_port"`
	NodeIP         string          `yaml:"node_ip"`
	NodeIDName     string          `yaml:"node_id_name"`
	Heartbeat      time.Duration   `yaml:"heartbeat"`
	Bootstrap      []BootstrapNode `yaml:"bootstrap"`
	PeerStorage    string          `yaml:"peer_storage"` // "file" or "mysql"
	PeerStorageDir string          `yaml:"peer_storage_dir"`
	MySQLDSN       string          `yaml:"mysql_dsn"`

	K                  int `yaml:"k"`
	MaxNodesPerBucket  int `yaml:"max_nodes_per_bucket"`
	MaxPeersPerTorrent int `yaml:"max_peers_per_torrent"`

	AdminAddr string `yaml:"admin_addr"`
}

// Default returns the configuration baseline before any env/file
// overrides are applied, matching the prototype's shipped defaults.
func Default() *Config {
	return &Config{
		NodePort:           6881,
		NodeIP:             "0.0.0.0",
		NodeIDName:         "An Adequately Random Node Name For Entropy",
		Heartbeat:          5 * time.Minute,
		PeerStorage:        "file",
		PeerStorageDir:     "./peer_storage",
		K:                  8,
		MaxNodesPerBucket:  8,
		MaxPeersPerTorrent: 6000,
		AdminAddr:          "127.0.0.1:8088",
		Bootstrap: []BootstrapNode{
			{Host: "dht.transmissionbt.com", Port: 6881},
			{Host: "router.utorrent.com", Port: 6881},
		},
	}
}

// Load builds a Config by layering, in increasing priority: built-in
// defaults, an optional .env file at envPath, process environment
// variables, and an optional YAML file at yamlPath.
func Load(envPath, yamlPath string) (*Config, error) {
	cfg := Default()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading %s: %w", envPath, err)
		}
	}

	applyEnv(cfg)

	if yamlPath != "" {
		if err := applyYAML(cfg, yamlPath); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NODE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.NodePort = p
		}
	}
	if v := os.Getenv("NODE_IP"); v != "" {
		cfg.NodeIP = v
	}
	if v := os.Getenv("NODE_ID_NAME"); v != "" {
		cfg.NodeIDName = v
	}
	if v := os.Getenv("HEARTBEAT"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Heartbeat = time.Duration(secs * float64(time.Second))
		}
	}
	if v := os.Getenv("BOOTSTRAP"); v != "" {
		cfg.Bootstrap = parseBootstrapList(v)
	}
	if v := os.Getenv("PEER_STORAGE"); v != "" {
		cfg.PeerStorage = v
	}
	if v := os.Getenv("PEER_STORAGE_DIR"); v != "" {
		cfg.PeerStorageDir = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQLDSN = v
	}
	if v := os.Getenv("K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.K = k
			cfg.MaxNodesPerBucket = k
		}
	}
	if v := os.Getenv("MAX_NODES_PER_BUCKET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxNodesPerBucket = n
		}
	}
	if v := os.Getenv("MAX_PEERS_PER_TORRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPeersPerTorrent = n
		}
	}
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		cfg.AdminAddr = v
	}
}

// parseBootstrapList parses "host:port,host:port" into BootstrapNode
// entries, skipping malformed ones.
func parseBootstrapList(v string) []BootstrapNode {
	var nodes []BootstrapNode
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		host, portStr, found := strings.Cut(entry, ":")
		if !found {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		nodes = append(nodes, BootstrapNode{Host: host, Port: port})
	}
	return nodes
}

func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}
