package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Remote execution channel
	SSHHost    string
	SSHPort    int
	SSHUser    string
	SSHKeyFile string

	// ServerIP is the public IPv4 address sites should resolve to.
	ServerIP string

	// DeployUser owns application directories and the process supervisor.
	DeployUser string
	AppsRoot   string

	NginxAvailableDir string
	NginxEnabledDir   string

	// LetsEncryptLiveDir holds one directory per issued domain, containing
	// fullchain.pem and privkey.pem.
	LetsEncryptLiveDir string

	DNSAPIBaseURL string
	DNSAPIToken   string

	GithubBaseURL string
	GithubToken   string

	// Resolver is the nameserver used for propagation polling.
	Resolver           string
	PropagationTimeout time.Duration

	// PipelineKeywords classify a workflow as a deploy workflow when one of
	// them matches a token of its display name.
	PipelineKeywords []string

	RenewInterval time.Duration

	Mode string
}

func New() Config {
	return Config{
		SSHHost:    os.Getenv("SITEMAN_SSH_HOST"),
		SSHPort:    envInt("SITEMAN_SSH_PORT", 22),
		SSHUser:    os.Getenv("SITEMAN_SSH_USER"),
		SSHKeyFile: envOr("SITEMAN_SSH_KEY", defaultKeyFile()),

		ServerIP: os.Getenv("SITEMAN_SERVER_IP"),

		DeployUser: envOr("SITEMAN_DEPLOY_USER", "deployer"),
		AppsRoot:   envOr("SITEMAN_APPS_ROOT", "/home/deployer/apps"),

		NginxAvailableDir: envOr("SITEMAN_NGINX_AVAILABLE", "/etc/nginx/sites-available"),
		NginxEnabledDir:   envOr("SITEMAN_NGINX_ENABLED", "/etc/nginx/sites-enabled"),

		LetsEncryptLiveDir: envOr("SITEMAN_LETSENCRYPT_LIVE", "/etc/letsencrypt/live"),

		DNSAPIBaseURL: envOr("SITEMAN_DNS_API_URL", "https://api.cloudflare.com/client/v4"),
		DNSAPIToken:   os.Getenv("SITEMAN_DNS_API_TOKEN"),

		GithubBaseURL: envOr("SITEMAN_GITHUB_API_URL", "https://api.github.com"),
		GithubToken:   envOr("SITEMAN_GITHUB_TOKEN", os.Getenv("GITHUB_TOKEN")),

		Resolver:           envOr("SITEMAN_RESOLVER", "1.1.1.1:53"),
		PropagationTimeout: envDuration("SITEMAN_PROPAGATION_TIMEOUT", 2*time.Minute),

		PipelineKeywords: envList("SITEMAN_PIPELINE_KEYWORDS", []string{"deploy", "release", "cd", "production"}),

		RenewInterval: envDuration("SITEMAN_RENEW_INTERVAL", 24*time.Hour),

		Mode: envOr("SITEMAN_MODE", "development"),
	}
}

func defaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(home, ".ssh", "id_rsa")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
