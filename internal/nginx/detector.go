package nginx

import (
	"context"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"siteman/internal/sshexec"
	"siteman/internal/types"
	"siteman/logger"
)

// ErrSiteNotFound means no configuration exists for the domain. Callers
// treat it as "no prior configuration", never as fatal.
var ErrSiteNotFound = errors.New("site configuration not found")

var proxyPassPattern = regexp.MustCompile(`proxy_pass\s+http://localhost:([^;\s]*)`)

// Detector re-derives a site's parameters from its live configuration file.
// It exists so cloning and offline-parking can preserve a site's shape
// without any stored record.
type Detector struct {
	ch           sshexec.Channel
	availableDir string
}

func NewDetector(ch sshexec.Channel, availableDir string) *Detector {
	return &Detector{ch: ch, availableDir: availableDir}
}

// Detect reads the domain's configuration back from disk and parses it.
func (d *Detector) Detect(ctx context.Context, domain string) (types.Site, error) {
	configPath := path.Join(d.availableDir, domain)
	res, err := d.ch.Execute(ctx, sshexec.NewCommand("cat", configPath).WithSudo())
	if err != nil {
		return types.Site{}, err
	}
	if !res.Ok() {
		return types.Site{}, ErrSiteNotFound
	}

	return ParseConfig(domain, res.Stdout), nil
}

// ParseConfig recovers (enableWww, mode, appPort) from configuration text.
// Pattern misses degrade to documented defaults instead of failing: a
// proxy directive with an unparsable port falls back to the default port,
// and a missing proxy directive means coming-soon mode.
func ParseConfig(domain, content string) types.Site {
	site := types.Site{
		Domain: domain,
		Mode:   types.ModeComingSoon,
	}

	site.EnableWww = strings.Contains(content, "www."+domain)
	site.HasCertificate = strings.Contains(content, "ssl_certificate ")

	if m := proxyPassPattern.FindStringSubmatch(content); m != nil {
		site.Mode = types.ModeProxied
		port, err := strconv.Atoi(m[1])
		if err != nil || port <= 0 {
			logger.Warn("proxy port did not parse, assuming default",
				zap.String("domain", domain),
				zap.Error(&types.ParseError{Input: m[1], Reason: "proxy_pass port"}))
			port = types.DefaultAppPort
		}
		site.AppPort = port
	}

	return site
}
