package httpx

import (
	"time"

	"github.com/layzeechat/layzee/pkg/config"
	"github.com/layzeechat/layzee/pkg/logger"
)

type (
	Options struct {
		Https                bool
		HttpsRedirect        bool
		HttpsRedirectAddress string
		HttpsCert            string
		HttpsKey             string
		HttpsDomain          string
		// CertCache is the dir of the issued certificates.
		CertCache    string
		PortRoll     bool
		IdleTimeout  time.Duration
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		Logger       *logger.Logger
		Zone         string
	}
	Option func(*Options)
)

func (o *Options) override(options ...Option) {
	for _, opt := range options {
		opt(o)
	}
}

func (o *Options) IsAutoHttpsCert() bool { return !(o.HttpsCert != "" && o.HttpsKey != "") }

func HttpsRedirect(redirect bool) Option {
	return func(opts *Options) { opts.HttpsRedirect = redirect }
}

func WithPortRoll(roll bool) Option        { return func(opts *Options) { opts.PortRoll = roll } }
func WithZone(zone string) Option          { return func(opts *Options) { opts.Zone = zone } }
func WithLogger(log *logger.Logger) Option { return func(opts *Options) { opts.Logger = log } }
func WithCertCache(dir string) Option      { return func(opts *Options) { opts.CertCache = dir } }
func WithServerConfig(conf config.Server) Option {
	return func(opts *Options) {
		opts.Https = conf.Https
		opts.HttpsCert = conf.Tls.HttpsCert
		opts.HttpsKey = conf.Tls.HttpsKey
		opts.HttpsDomain = conf.Tls.Domain
		opts.HttpsRedirectAddress = conf.Address
		if conf.IdleTimeout > 0 {
			opts.IdleTimeout = conf.IdleTimeout
		}
		if conf.ReadTimeout > 0 {
			opts.ReadTimeout = conf.ReadTimeout
		}
		if conf.WriteTimeout > 0 {
			opts.WriteTimeout = conf.WriteTimeout
		}
	}
}
