package httpx

import (
	"path/filepath"

	"golang.org/x/crypto/acme/autocert"
)

// defaultCertCache is used when the server has no data dir for the certificates.
const defaultCertCache = "certs"

// newCertManager issues Let's Encrypt certificates for the host,
// any host is accepted when it's empty. Certificates are cached in dir.
func newCertManager(host, dir string) *autocert.Manager {
	if dir == "" {
		dir = defaultCertCache
	}
	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache(filepath.Clean(dir)),
	}
	if host != "" {
		m.HostPolicy = autocert.HostWhitelist(host)
	}
	return m
}
