package config

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sidereusnuntius/golivefyre/livefyre"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	Name      = "golivefyre"
	EnvPrefix = "LIVEFYRE"
)

type Configuration struct {
	// Host is the network host, e.g. "example.fyre.co".
	Host string
	// Key is the network key.
	Key         string
	SystemToken string
	SiteKey     string
	SiteID      string
	Scheme      string
	// Timeout bounds every request to the network.
	Timeout time.Duration
	// SignatureWindow bounds the age of postback signatures. Zero disables the check.
	SignatureWindow time.Duration
	EnforceExpiry   bool
	// QueueDB is the SQLite DSN of the deferral queue. Empty disables deferral.
	QueueDB string
	Workers int
	// Listen is the address the postback server binds to.
	Listen string
	Debug  bool
}

// aliases maps alternative names accepted in files and the environment to
// their canonical key.
var aliases = map[string]string{
	"network":     "host",
	"secret":      "key",
	"network_key": "key",
}

// flags maps configuration keys to the command line flag bound to them.
var flags = map[string]string{
	"host":             "host",
	"key":              "key",
	"system_token":     "system-token",
	"site_key":         "site-key",
	"site_id":          "site-id",
	"scheme":           "scheme",
	"timeout":          "timeout",
	"signature_window": "signature-window",
	"enforce_expiry":   "enforce-expiry",
	"queue_db":         "queue-db",
	"workers":          "workers",
	"listen":           "listen",
	"debug":            "debug",
}

// Flags registers the configuration flags on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to the configuration file (default ./"+Name+".yaml)")
	fs.String("host", "", "network host, e.g. example.fyre.co")
	fs.String("key", "", "network key")
	fs.String("system-token", "", "system token authorizing administrative calls")
	fs.String("site-key", "", "site key signing conversation metadata")
	fs.String("site-id", "", "default site id")
	fs.String("scheme", "http", "scheme used to reach the network")
	fs.Duration("timeout", 10*time.Second, "request timeout")
	fs.Duration("signature-window", 5*time.Minute, "maximum age of postback signatures, 0 disables the check")
	fs.Bool("enforce-expiry", true, "reject tokens past their expires claim")
	fs.String("queue-db", "", "SQLite database of the deferral queue")
	fs.Int("workers", 2, "deferral queue workers")
	fs.String("listen", ":8080", "address of the postback server")
	fs.Bool("debug", false, "log at debug level")
}

// ReadConfig merges, from highest to lowest precedence, the flags set on fs,
// LIVEFYRE_ environment variables, the configuration file and the defaults.
// fs may be nil.
func ReadConfig(fs *pflag.FlagSet) (Configuration, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("scheme", "http")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("signature_window", 5*time.Minute)
	v.SetDefault("enforce_expiry", true)
	v.SetDefault("workers", 2)
	v.SetDefault("listen", ":8080")

	var file string
	if fs != nil {
		for key, name := range flags {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Configuration{}, err
				}
			}
		}
		file, _ = fs.GetString("config")
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Configuration{}, err
		}
	}

	for alias, key := range aliases {
		if !v.IsSet(key) && v.IsSet(alias) {
			v.Set(key, v.Get(alias))
		}
	}

	return Configuration{
		Host:            v.GetString("host"),
		Key:             v.GetString("key"),
		SystemToken:     v.GetString("system_token"),
		SiteKey:         v.GetString("site_key"),
		SiteID:          v.GetString("site_id"),
		Scheme:          v.GetString("scheme"),
		Timeout:         v.GetDuration("timeout"),
		SignatureWindow: v.GetDuration("signature_window"),
		EnforceExpiry:   v.GetBool("enforce_expiry"),
		QueueDB:         v.GetString("queue_db"),
		Workers:         v.GetInt("workers"),
		Listen:          v.GetString("listen"),
		Debug:           v.GetBool("debug"),
	}, nil
}

// ClientOptions translates the configuration into client options.
func (c Configuration) ClientOptions() livefyre.Options {
	window := c.SignatureWindow
	if window == 0 {
		window = -1
	}
	return livefyre.Options{
		Host:            c.Host,
		Key:             c.Key,
		SystemToken:     c.SystemToken,
		SiteKey:         c.SiteKey,
		SiteID:          c.SiteID,
		Scheme:          c.Scheme,
		HTTPClient:      &http.Client{Timeout: c.Timeout},
		SignatureWindow: window,
		AdvisoryExpiry:  !c.EnforceExpiry,
	}
}
