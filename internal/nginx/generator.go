package nginx

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"

	"siteman/internal/types"
)

// Generator is a pure mapping from site parameters to vhost text. It never
// touches the remote host; certificate gating happens in the caller.
type Generator struct {
	appsRoot string
	certDir  string
}

func NewGenerator(appsRoot, certDir string) *Generator {
	return &Generator{appsRoot: appsRoot, certDir: certDir}
}

func (g *Generator) appDir(domain string) string {
	return path.Join(g.appsRoot, domain)
}

// CertDir is the directory certificate references are rendered under.
func (g *Generator) CertDir() string { return g.certDir }

// VHost renders the configuration for a site. With ssl=false the site is
// served on port 80 directly (no redirect); with ssl=true port 80 redirects
// and a TLS-terminating server block references the domain's certificate
// files.
func (g *Generator) VHost(site types.Site, ssl bool) (string, error) {
	if strings.TrimSpace(site.Domain) == "" {
		return "", errors.New("domain is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Managed by siteman\n# Site: %s\n\n", site.Domain)

	if !ssl {
		fmt.Fprintf(&b, "server {\n")
		fmt.Fprintf(&b, "    listen 80;\n    listen [::]:80;\n")
		fmt.Fprintf(&b, "    server_name %s;\n\n", site.ServerNames())
		g.writeLogging(&b, site.Domain)
		g.writeLocation(&b, site)
		fmt.Fprintf(&b, "}\n")
		return b.String(), nil
	}

	fmt.Fprintf(&b, "server {\n")
	fmt.Fprintf(&b, "    listen 80;\n    listen [::]:80;\n")
	fmt.Fprintf(&b, "    server_name %s;\n\n", site.ServerNames())
	fmt.Fprintf(&b, "    return 301 https://$server_name$request_uri;\n")
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "server {\n")
	fmt.Fprintf(&b, "    listen 443 ssl http2;\n    listen [::]:443 ssl http2;\n")
	fmt.Fprintf(&b, "    server_name %s;\n\n", site.ServerNames())
	fmt.Fprintf(&b, "    ssl_certificate %s;\n", path.Join(g.certDir, site.Domain, "fullchain.pem"))
	fmt.Fprintf(&b, "    ssl_certificate_key %s;\n", path.Join(g.certDir, site.Domain, "privkey.pem"))
	fmt.Fprintf(&b, "    ssl_protocols TLSv1.2 TLSv1.3;\n")
	fmt.Fprintf(&b, "    ssl_ciphers HIGH:!aNULL:!MD5;\n")
	fmt.Fprintf(&b, "    ssl_prefer_server_ciphers on;\n\n")
	g.writeLogging(&b, site.Domain)
	fmt.Fprintf(&b, "    add_header X-Frame-Options \"SAMEORIGIN\" always;\n")
	fmt.Fprintf(&b, "    add_header X-Content-Type-Options \"nosniff\" always;\n")
	fmt.Fprintf(&b, "    add_header X-XSS-Protection \"1; mode=block\" always;\n\n")
	g.writeLocation(&b, site)
	fmt.Fprintf(&b, "}\n")
	return b.String(), nil
}

func (g *Generator) writeLogging(b *strings.Builder, domain string) {
	fmt.Fprintf(b, "    access_log %s;\n", path.Join(g.appDir(domain), "logs", "access.log"))
	fmt.Fprintf(b, "    error_log %s;\n\n", path.Join(g.appDir(domain), "logs", "error.log"))
}

func (g *Generator) writeLocation(b *strings.Builder, site types.Site) {
	if site.Mode == types.ModeProxied {
		port := site.AppPort
		if port == 0 {
			port = types.DefaultAppPort
		}
		fmt.Fprintf(b, "    location / {\n")
		fmt.Fprintf(b, "        proxy_pass http://localhost:%d;\n", port)
		fmt.Fprintf(b, "        proxy_http_version 1.1;\n")
		fmt.Fprintf(b, "        proxy_set_header Upgrade $http_upgrade;\n")
		fmt.Fprintf(b, "        proxy_set_header Connection 'upgrade';\n")
		fmt.Fprintf(b, "        proxy_set_header Host $host;\n")
		fmt.Fprintf(b, "        proxy_set_header X-Real-IP $remote_addr;\n")
		fmt.Fprintf(b, "        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;\n")
		fmt.Fprintf(b, "        proxy_set_header X-Forwarded-Proto $scheme;\n")
		fmt.Fprintf(b, "        proxy_cache_bypass $http_upgrade;\n")
		fmt.Fprintf(b, "    }\n")
		return
	}

	fmt.Fprintf(b, "    location / {\n")
	fmt.Fprintf(b, "        root %s;\n", path.Join(g.appDir(site.Domain), "public"))
	fmt.Fprintf(b, "        index index.html;\n")
	fmt.Fprintf(b, "        try_files $uri $uri/ =404;\n")
	fmt.Fprintf(b, "    }\n")
}

// ComingSoonPage renders the static placeholder served while a site is
// parked.
func (g *Generator) ComingSoonPage(domain string) string {
	return fmt.Sprintf(comingSoonTemplate, domain, domain)
}

const comingSoonTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Coming Soon - %s</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: white;
        }
        .container {
            text-align: center;
            max-width: 800px;
            padding: 40px;
            background: rgba(255, 255, 255, 0.1);
            backdrop-filter: blur(10px);
            border-radius: 20px;
            border: 1px solid rgba(255, 255, 255, 0.2);
        }
        h1 { font-size: 4rem; font-weight: 700; margin-bottom: 20px; }
        .domain { font-size: 2rem; font-weight: 300; margin-bottom: 30px; opacity: 0.9; }
        .message { font-size: 1.5rem; opacity: 0.8; line-height: 1.6; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Coming Soon</h1>
        <div class="domain">%s</div>
        <div class="message">
            Something amazing is being built here.<br>
            Stay tuned for the launch!
        </div>
    </div>
</body>
</html>
`
