package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the server.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// Addr is the binding address for the server.
	Addr string
	// Port is the binding port for the server.
	Port int
	// Data is the data directory.
	Data string
	// DSN points to where murmur stores its own data.
	DSN string
	// Driver is the database driver: sqlite, mysql or postgres.
	Driver string
	// Version is the current version of the server.
	Version string
	// InstanceURL is the public URL of the instance, used for OAuth redirects and the RSS feed.
	InstanceURL string
	// Secret signs access tokens.
	Secret string

	// AIProvider selects the text generator: "gemini" or "openai".
	AIProvider string
	// AIAPIKey is the API key of the selected provider.
	AIAPIKey string
	// AIBaseURL overrides the endpoint of an OpenAI-compatible provider (e.g. OpenRouter).
	AIBaseURL string
	// AIModel is the model used for replies and summaries.
	AIModel string
	// AIHistoryTurns caps how many prior transcript messages are sent as context.
	AIHistoryTurns int

	// EmbeddingBaseURL and EmbeddingModel enable semantic feed search when set.
	EmbeddingBaseURL string
	EmbeddingModel   string

	// FeedLimit is the number of recent entries loaded into the feed.
	FeedLimit int
	// KeepInputOnFailure tells clients to keep the composer text when an exchange fails.
	// By default the input is cleared whatever the outcome.
	KeepInputOnFailure bool
	// MessagesPerMinute limits message exchanges per client address. Zero disables limiting.
	MessagesPerMinute int

	// S3 archive for uploaded documents. Disabled when S3Bucket is empty.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// OAuthProviders are the configured OAuth identity providers keyed by name.
	OAuthProviders map[string]*OAuthProvider
}

// OAuthProvider describes a generic OAuth 2.0 identity provider.
type OAuthProvider struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	UserInfoURL  string   `mapstructure:"user_info_url"`
	Scopes       []string `mapstructure:"scopes"`
	// EmailField names the field of the userinfo response holding the email.
	EmailField string `mapstructure:"email_field"`
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		p.Mode = "dev"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "murmur")
		} else {
			p.Data = "/var/opt/murmur"
		}
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("murmur_%s.db", p.Mode))
	}

	if p.Secret == "" {
		if p.Mode == "prod" {
			return errors.New("secret is required in prod mode")
		}
		p.Secret = "murmur-dev-secret"
	}
	if p.AIProvider == "" {
		p.AIProvider = "gemini"
	}
	if p.AIHistoryTurns <= 0 {
		p.AIHistoryTurns = 6
	}
	if p.FeedLimit <= 0 {
		p.FeedLimit = 50
	}
	return nil
}
