package monitor

import (
	"context"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"siteman/internal/certs"
	"siteman/internal/inventory"
	"siteman/internal/sshexec"
	"siteman/internal/supervisor"
	"siteman/internal/types"
	"siteman/logger"
)

// Collector assembles live status snapshots from remote shell probes. Every
// probe is best effort: a failed probe zeroes its field instead of failing
// the snapshot.
type Collector struct {
	ch  sshexec.Channel
	sup supervisor.Supervisor
	inv *inventory.Discovery
}

func NewCollector(ch sshexec.Channel, sup supervisor.Supervisor, inv *inventory.Discovery) *Collector {
	return &Collector{ch: ch, sup: sup, inv: inv}
}

// SystemStats probes CPU, memory, disk and service state in one pass.
func (c *Collector) SystemStats(ctx context.Context) (types.SystemStats, error) {
	var stats types.SystemStats

	stats.CPUUsage = c.probeFloat(ctx, "top -bn1 | grep 'Cpu(s)' | awk '{print $2}'")
	stats.MemoryUsage = c.probeFloat(ctx, "free | grep Mem | awk '{print ($3/$2) * 100.0}'")
	stats.DiskUsage = c.probeFloat(ctx, "df -h / | tail -1 | awk '{print $5}'")

	stats.NginxRunning = c.serviceActive(ctx, "nginx")
	stats.PostgresqlRunning = c.serviceActive(ctx, "postgresql")

	processes, err := c.sup.List(ctx)
	if err != nil {
		logger.Warn("process listing failed during stats collection", zap.Error(err))
	} else {
		stats.ProcessCount = len(processes)
		stats.ProcessOnline = lo.CountBy(processes, func(p types.Process) bool { return p.Online() })
	}

	return stats, nil
}

// SiteStatuses probes every enabled site: HTTPS reachability, certificate
// expiry and supervisor state.
func (c *Collector) SiteStatuses(ctx context.Context) ([]types.SiteStatus, error) {
	domains, err := c.inv.Domains(ctx)
	if err != nil {
		return nil, err
	}

	processes, err := c.sup.List(ctx)
	if err != nil {
		logger.Warn("process listing failed during site status collection", zap.Error(err))
		processes = nil
	}
	online := lo.SliceToMap(processes, func(p types.Process) (string, bool) {
		return p.Name, p.Online()
	})

	statuses := make([]types.SiteStatus, 0, len(domains))
	for _, domain := range domains {
		status := types.SiteStatus{
			Domain:         domain,
			HTTPSStatus:    c.httpsStatus(ctx, domain),
			SSLDaysLeft:    -1,
			ProcessRunning: online[domain],
		}
		if days, ok := c.sslDaysLeft(ctx, domain); ok {
			status.SSLDaysLeft = days
			status.HasSSL = true
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (c *Collector) httpsStatus(ctx context.Context, domain string) string {
	res, err := c.ch.Execute(ctx, sshexec.NewCommand("curl", "-sk",
		"-o", "/dev/null", "-w", "%{http_code}", "--max-time", "10",
		"https://"+domain))
	if err != nil || !res.Ok() {
		return "N/A"
	}
	return strings.TrimSpace(res.Stdout)
}

// sslDaysLeft inspects the certificate the site actually serves, via a live
// TLS handshake rather than the filesystem.
func (c *Collector) sslDaysLeft(ctx context.Context, domain string) (int, bool) {
	quoted := shellescape.Quote(domain)
	script := "echo | openssl s_client -servername " + quoted + " -connect " + quoted + ":443 2>/dev/null" +
		" | openssl x509 -noout -enddate"
	res, err := c.ch.Execute(ctx, sshexec.Script(script))
	if err != nil || !res.Ok() || strings.TrimSpace(res.Stdout) == "" {
		return 0, false
	}

	days, err := certs.DaysUntilExpiry(res.Stdout, time.Now())
	if err != nil {
		return 0, false
	}
	return days, true
}

func (c *Collector) serviceActive(ctx context.Context, service string) bool {
	res, err := c.ch.Execute(ctx, sshexec.NewCommand("systemctl", "is-active", service))
	return err == nil && res.Ok() && strings.TrimSpace(res.Stdout) == "active"
}

func (c *Collector) probeFloat(ctx context.Context, script string) float64 {
	res, err := c.ch.Execute(ctx, sshexec.Script(script))
	if err != nil || !res.Ok() {
		return 0
	}
	value := strings.TrimSuffix(strings.TrimSpace(res.Stdout), "%")
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
