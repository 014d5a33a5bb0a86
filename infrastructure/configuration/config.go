package configuration

import (
	"fmt"
	"os"
	"strconv"

	"social-agent/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	OAuth       OAuth       `json:"oauth"`
	Upload      Upload      `json:"upload"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

// OAuth holds third-party platform OAuth client credentials
type OAuth struct {
	Facebook  OAuthClient `json:"facebook"`
	Instagram OAuthClient `json:"instagram"`
	TikTok    OAuthClient `json:"tiktok"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	// PageID selects the managed Facebook page used for posting; first page wins when empty
	PageID string `json:"pageId"`
}

// Upload controls the local asset staging area used by the edge layer
type Upload struct {
	Dir string `json:"dir"`
	// MaxSizeMB caps the multipart body accepted by the upload endpoint
	MaxSizeMB int64 `json:"maxSizeMB"`
	// PublicBaseURL is the externally reachable base under which uploads/ is served;
	// Instagram fetches assets from this origin rather than accepting raw bodies
	PublicBaseURL string `json:"publicBaseURL"`
	// CredentialDir is where platform token files live (defaults to the working directory)
	CredentialDir string `json:"credentialDir"`
}

type Database struct {
	Psql Db `json:"psql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type Logger struct {
	Format string `json:"format"`
}

var C Config

func init() {
	LoadConfig()
	initApp(&C)
	initOAuth(&C)
	initUpload(&C)
	initDatabase(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initApp(C *Config) {
	// Prefer SECRET_KEY from environment; overrides config file when provided
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 3000
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 3000
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
}

func initOAuth(C *Config) {
	fillClient(&C.OAuth.Facebook, "FACEBOOK_APP_ID", "FACEBOOK_APP_SECRET", "FACEBOOK_REDIRECT_URI")
	fillClient(&C.OAuth.Instagram, "INSTAGRAM_APP_ID", "INSTAGRAM_APP_SECRET", "INSTAGRAM_REDIRECT_URI")
	fillClient(&C.OAuth.TikTok, "TIKTOK_CLIENT_KEY", "TIKTOK_CLIENT_SECRET", "TIKTOK_REDIRECT_URI")
	if C.OAuth.Facebook.PageID == "" {
		C.OAuth.Facebook.PageID = os.Getenv("FACEBOOK_PAGE_ID")
	}
	base := publicBase(C)
	if C.OAuth.Facebook.RedirectURI == "" {
		C.OAuth.Facebook.RedirectURI = base + "/api/auth/facebook/callback"
	}
	if C.OAuth.Instagram.RedirectURI == "" {
		C.OAuth.Instagram.RedirectURI = base + "/api/auth/instagram/callback"
	}
	if C.OAuth.TikTok.RedirectURI == "" {
		C.OAuth.TikTok.RedirectURI = base + "/api/auth/tiktok/callback"
	}
}

func fillClient(c *OAuthClient, idEnv, secretEnv, redirectEnv string) {
	if c.ClientID == "" {
		c.ClientID = os.Getenv(idEnv)
	}
	if c.ClientSecret == "" {
		c.ClientSecret = os.Getenv(secretEnv)
	}
	if c.RedirectURI == "" {
		c.RedirectURI = os.Getenv(redirectEnv)
	}
}

func initUpload(C *Config) {
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		C.Upload.Dir = v
	}
	if C.Upload.Dir == "" {
		C.Upload.Dir = "uploads"
	}
	if C.Upload.MaxSizeMB == 0 {
		C.Upload.MaxSizeMB = 100
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		C.Upload.PublicBaseURL = v
	}
	if C.Upload.PublicBaseURL == "" {
		C.Upload.PublicBaseURL = publicBase(C)
	}
	if v := os.Getenv("CREDENTIAL_DIR"); v != "" {
		C.Upload.CredentialDir = v
	}
	if C.Upload.CredentialDir == "" {
		C.Upload.CredentialDir = "."
	}
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}
	if C.RedisClient.Host == "" {
		C.RedisClient.Host = os.Getenv("REDIS_HOST")
	}
	if C.RedisClient.Port == "" {
		C.RedisClient.Port = os.Getenv("REDIS_PORT")
	}
}

func publicBase(C *Config) string {
	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	port := C.App.Port
	if port == 0 {
		port = 3000
	}
	return fmt.Sprintf("%s://localhost:%d", scheme, port)
}
