package types

import "fmt"

type SiteMode string

const (
	// ModeComingSoon serves the static placeholder page from the site's
	// public directory.
	ModeComingSoon SiteMode = "coming-soon"

	// ModeProxied forwards traffic to the application process listening on
	// localhost:AppPort.
	ModeProxied SiteMode = "proxied"
)

// DefaultAppPort is assumed whenever a proxied site's port cannot be
// recovered from its configuration.
const DefaultAppPort = 3000

// Site is the in-memory working representation of one managed site during an
// orchestration run. There is no persisted record of a site: the
// authoritative state is the vhost file on disk plus the certificate
// material, and a Site is re-derived from those at the boundary.
type Site struct {
	Domain    string
	EnableWww bool
	Mode      SiteMode
	AppPort   int

	// HasCertificate is derived from the presence of the domain's key and
	// chain files, never stored.
	HasCertificate bool
}

// ServerNames returns the space-separated server_name value for the site.
func (s Site) ServerNames() string {
	if s.EnableWww {
		return s.Domain + " www." + s.Domain
	}
	return s.Domain
}

// Names returns the hostnames this site answers for.
func (s Site) Names() []string {
	if s.EnableWww {
		return []string{s.Domain, "www." + s.Domain}
	}
	return []string{s.Domain}
}

func (s Site) String() string {
	if s.Mode == ModeProxied {
		return fmt.Sprintf("%s (www=%t, proxied :%d)", s.Domain, s.EnableWww, s.AppPort)
	}
	return fmt.Sprintf("%s (www=%t, coming-soon)", s.Domain, s.EnableWww)
}

// ProvisionParams carries everything Provision needs for one run.
type ProvisionParams struct {
	Domain    string
	EnableWww bool
	Mode      SiteMode
	AppPort   int

	// Proxied is the DNS edge-proxy flag for the A record, not the site mode.
	Proxied bool

	// IssueCertificate controls whether the run attempts standalone issuance
	// after the site is reachable over plain HTTP.
	IssueCertificate bool
}

func (p ProvisionParams) Site() Site {
	port := p.AppPort
	if port == 0 {
		port = DefaultAppPort
	}
	return Site{
		Domain:    p.Domain,
		EnableWww: p.EnableWww,
		Mode:      p.Mode,
		AppPort:   port,
	}
}
