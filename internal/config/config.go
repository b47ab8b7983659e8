// Package config centralizes how the auction list service reads its settings.
// Values come from an optional YAML file overlaid by environment variables,
// and the result is passed explicitly into every component constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// ErrMissing is returned when a setting required for the selected mode is absent.
var ErrMissing = errors.New("missing configuration")

// Delivery strategies.
const (
	DeliveryStorage  = "storage"
	DeliveryWorkflow = "workflow"
)

// Storage backends.
const (
	BackendDropbox = "dropbox"
	BackendS3      = "s3"
	BackendMemory  = "memory"
)

// Config is the full runtime configuration.
type Config struct {
	Address     string   `yaml:"address"`
	Env         string   `yaml:"env" validate:"oneof=development production"`
	Delivery    string   `yaml:"delivery" validate:"oneof=storage workflow"`
	DatabaseURL string   `yaml:"database_url"`
	Salvato     Salvato  `yaml:"salvato"`
	Plumsail    Plumsail `yaml:"plumsail"`
	Storage     Storage  `yaml:"storage"`
	Render      Render   `yaml:"render"`
	Timeouts    Timeouts `yaml:"timeouts"`
}

// Salvato holds the upstream auction API settings.
type Salvato struct {
	BaseURL           string `yaml:"base_url" validate:"omitempty,url"`
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	VehicleDetailsURL string `yaml:"vehicle_details_url" validate:"omitempty,url"`
}

// Plumsail holds the downstream workflow API settings.
type Plumsail struct {
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	APIKey   string `yaml:"api_key"`
}

// Storage selects and configures where rendered documents are uploaded.
type Storage struct {
	Backend      string        `yaml:"backend" validate:"oneof=dropbox s3 memory"`
	Folder       string        `yaml:"folder"`
	DropboxToken string        `yaml:"dropbox_token"`
	S3Endpoint   string        `yaml:"s3_endpoint"`
	S3AccessKey  string        `yaml:"s3_access_key"`
	S3SecretKey  string        `yaml:"s3_secret_key"`
	S3Bucket     string        `yaml:"s3_bucket"`
	S3Region     string        `yaml:"s3_region"`
	S3UseSSL     bool          `yaml:"s3_use_ssl"`
	LinkTTL      time.Duration `yaml:"link_ttl" validate:"gt=0,lte=168h"`
}

// Render configures document rendering.
type Render struct {
	TemplatePath string        `yaml:"template_path"`
	OutputDir    string        `yaml:"output_dir"`
	Workers      int           `yaml:"workers" validate:"gte=1,lte=16"`
	ImageWait    time.Duration `yaml:"image_wait"`
	ChromePath   string        `yaml:"chrome_path"`
}

// Timeouts bound each pipeline stage.
type Timeouts struct {
	Auth     time.Duration `yaml:"auth" validate:"gt=0"`
	List     time.Duration `yaml:"list" validate:"gt=0"`
	Render   time.Duration `yaml:"render" validate:"gt=0"`
	Delivery time.Duration `yaml:"delivery" validate:"gt=0"`
}

const (
	defaultAddress           = ":3001"
	defaultEnv               = "production"
	defaultFolder            = "/Salvato/Auction Lists"
	defaultVehicleDetailsURL = "https://salvatoauctions.com/vehicle-details"
	defaultS3Region          = "us-east-1"
	defaultLinkTTL           = 7 * 24 * time.Hour
	defaultWorkers           = 2
	defaultImageWait         = 2500 * time.Millisecond
	defaultAuthTimeout       = 10 * time.Second
	defaultListTimeout       = 30 * time.Second
	defaultRenderTimeout     = 45 * time.Second
	defaultDeliveryTimeout   = 30 * time.Second
)

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		Address:  defaultAddress,
		Env:      defaultEnv,
		Delivery: DeliveryStorage,
		Salvato: Salvato{
			VehicleDetailsURL: defaultVehicleDetailsURL,
		},
		Storage: Storage{
			Backend:  BackendDropbox,
			Folder:   defaultFolder,
			S3Region: defaultS3Region,
			LinkTTL:  defaultLinkTTL,
		},
		Render: Render{
			Workers:   defaultWorkers,
			ImageWait: defaultImageWait,
		},
		Timeouts: Timeouts{
			Auth:     defaultAuthTimeout,
			List:     defaultListTimeout,
			Render:   defaultRenderTimeout,
			Delivery: defaultDeliveryTimeout,
		},
	}
}

// Load builds the configuration with Read and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds the configuration without validating it. When path is not
// empty the YAML file is read first; environment variables override anything
// it sets.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// Validate checks value formats and that the upstream settings every run
// needs are present.
func (c *Config) Validate() error {
	if c.Render.Workers <= 0 {
		c.Render.Workers = defaultWorkers
	}
	var missing []string
	if c.Salvato.BaseURL == "" {
		missing = append(missing, "SALVATO_PRODUCTION_URL")
	}
	if c.Salvato.ClientID == "" {
		missing = append(missing, "SALVATO_CLIENT_ID")
	}
	if c.Salvato.ClientSecret == "" {
		missing = append(missing, "SALVATO_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Address = readEnv("AUCTIONLIST_ADDRESS", c.Address)
	c.Env = readEnv("AUCTIONLIST_ENV", c.Env)
	c.Delivery = readEnv("DELIVERY_STRATEGY", c.Delivery)
	c.DatabaseURL = readEnv("DATABASE_URL", c.DatabaseURL)

	c.Salvato.BaseURL = strings.TrimRight(readEnv("SALVATO_PRODUCTION_URL", c.Salvato.BaseURL), "/")
	c.Salvato.ClientID = readEnv("SALVATO_CLIENT_ID", c.Salvato.ClientID)
	c.Salvato.ClientSecret = readEnv("SALVATO_CLIENT_SECRET", c.Salvato.ClientSecret)
	c.Salvato.VehicleDetailsURL = strings.TrimRight(readEnv("SALVATO_VEHICLE_DETAILS_URL", c.Salvato.VehicleDetailsURL), "/")

	c.Plumsail.Endpoint = readEnv("PLUMSAIL_API_URL", c.Plumsail.Endpoint)
	c.Plumsail.APIKey = readEnv("PLUMSAIL_API_KEY", c.Plumsail.APIKey)

	c.Storage.Backend = readEnv("STORAGE_BACKEND", c.Storage.Backend)
	// "/" trims to "", which uploads to the account root; unset keeps the default.
	c.Storage.Folder = strings.TrimRight(readEnv("DROPBOX_FOLDER", c.Storage.Folder), "/")
	c.Storage.DropboxToken = readEnv("DROPBOX_ACCESS_TOKEN", c.Storage.DropboxToken)
	c.Storage.S3Endpoint = readEnv("S3_ENDPOINT", c.Storage.S3Endpoint)
	c.Storage.S3AccessKey = readEnv("S3_ACCESS_KEY", c.Storage.S3AccessKey)
	c.Storage.S3SecretKey = readEnv("S3_SECRET_KEY", c.Storage.S3SecretKey)
	c.Storage.S3Bucket = readEnv("S3_BUCKET", c.Storage.S3Bucket)
	c.Storage.S3Region = readEnv("S3_REGION", c.Storage.S3Region)
	c.Storage.S3UseSSL = parseBool("S3_USE_SSL", c.Storage.S3UseSSL)
	c.Storage.LinkTTL = parseDuration("STORAGE_LINK_TTL", c.Storage.LinkTTL)

	c.Render.TemplatePath = readEnv("TEMPLATE_PATH", c.Render.TemplatePath)
	c.Render.OutputDir = readEnv("RENDER_OUTPUT_DIR", c.Render.OutputDir)
	c.Render.Workers = parseInt("RENDER_WORKERS", c.Render.Workers)
	c.Render.ImageWait = parseDuration("RENDER_IMAGE_WAIT", c.Render.ImageWait)
	c.Render.ChromePath = readEnv("CHROME_PATH", c.Render.ChromePath)

	c.Timeouts.Auth = parseDuration("AUTH_TIMEOUT", c.Timeouts.Auth)
	c.Timeouts.List = parseDuration("LIST_TIMEOUT", c.Timeouts.List)
	c.Timeouts.Render = parseDuration("RENDER_TIMEOUT", c.Timeouts.Render)
	c.Timeouts.Delivery = parseDuration("DELIVERY_TIMEOUT", c.Timeouts.Delivery)
}

// readEnv returns the value of key, or def when it is unset or empty. An
// empty variable counts as unset, so "KEY=" in local.env keeps the default.
func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// parseInt and parseBool follow readEnv, and also fall back to def when the
// value does not parse.
func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

// parseDuration accepts "5m"-style durations; bad input keeps the default.
func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
