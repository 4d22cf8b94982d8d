package monitor

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"siteman/internal/inventory"
	"siteman/internal/sshexec"
	"siteman/internal/sshexec/sshexectest"
	"siteman/internal/supervisor"
	"siteman/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(logger.ModeDevelopment)
	os.Exit(m.Run())
}

func newTestCollector(ch *sshexectest.Channel) *Collector {
	sup := supervisor.NewSupervisor(ch, "deployer")
	inv := inventory.NewDiscovery(ch, sup, "/home/deployer/apps", "/etc/nginx/sites-enabled")
	return NewCollector(ch, sup, inv)
}

func TestSystemStats(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		if cmd.Program == "bash" {
			script := cmd.Args[1]
			switch {
			case strings.Contains(script, "Cpu"):
				return sshexec.Result{Stdout: "12.5%\n"}, nil
			case strings.Contains(script, "free"):
				return sshexec.Result{Stdout: "43.7\n"}, nil
			case strings.Contains(script, "df -h"):
				return sshexec.Result{Stdout: "81%\n"}, nil
			}
		}
		if cmd.Program == "systemctl" {
			if cmd.Args[1] == "nginx" {
				return sshexec.Result{Stdout: "active\n"}, nil
			}
			return sshexec.Result{Stdout: "inactive\n", ExitCode: 3}, nil
		}
		if cmd.Program == "pm2" {
			return sshexec.Result{Stdout: `[{"name":"a","pm2_env":{"status":"online"}},{"name":"b","pm2_env":{"status":"stopped"}}]`}, nil
		}
		return sshexec.Result{}, nil
	}

	stats, err := newTestCollector(ch).SystemStats(context.Background())
	assert.NoError(t, err)
	assert.InDelta(t, 12.5, stats.CPUUsage, 0.01)
	assert.InDelta(t, 43.7, stats.MemoryUsage, 0.01)
	assert.InDelta(t, 81.0, stats.DiskUsage, 0.01)
	assert.True(t, stats.NginxRunning)
	assert.False(t, stats.PostgresqlRunning)
	assert.Equal(t, 2, stats.ProcessCount)
	assert.Equal(t, 1, stats.ProcessOnline)
}

func TestSystemStatsProbeFailuresZeroFields(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		return sshexec.Result{Stderr: "probe failed", ExitCode: 1}, nil
	}

	stats, err := newTestCollector(ch).SystemStats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, float64(0), stats.CPUUsage)
	assert.False(t, stats.NginxRunning)
	assert.Equal(t, 0, stats.ProcessCount)
}

func TestSiteStatuses(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		switch cmd.Program {
		case "ls":
			return sshexec.Result{Stdout: "default\nexample.com\n"}, nil
		case "curl":
			return sshexec.Result{Stdout: "200"}, nil
		case "bash":
			if strings.Contains(cmd.Args[1], "s_client") {
				return sshexec.Result{Stdout: "notAfter=Nov 23 12:00:00 2026 GMT\n"}, nil
			}
			return sshexec.Result{}, nil
		case "pm2":
			return sshexec.Result{Stdout: `[{"name":"example.com","pm2_env":{"status":"online"}}]`}, nil
		default:
			return sshexec.Result{}, nil
		}
	}

	statuses, err := newTestCollector(ch).SiteStatuses(context.Background())
	assert.NoError(t, err)
	assert.Len(t, statuses, 1)

	s := statuses[0]
	assert.Equal(t, "example.com", s.Domain)
	assert.Equal(t, "200", s.HTTPSStatus)
	assert.True(t, s.HasSSL)
	assert.True(t, s.SSLDaysLeft > 0)
	assert.True(t, s.ProcessRunning)
}

func TestSiteStatusesNoCertificate(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		switch cmd.Program {
		case "ls":
			return sshexec.Result{Stdout: "example.com\n"}, nil
		case "curl":
			return sshexec.Result{Stderr: "connection refused", ExitCode: 7}, nil
		case "bash":
			return sshexec.Result{Stdout: ""}, nil
		case "pm2":
			return sshexec.Result{Stdout: "[]"}, nil
		default:
			return sshexec.Result{}, nil
		}
	}

	statuses, err := newTestCollector(ch).SiteStatuses(context.Background())
	assert.NoError(t, err)
	assert.Len(t, statuses, 1)
	assert.Equal(t, "N/A", statuses[0].HTTPSStatus)
	assert.False(t, statuses[0].HasSSL)
	assert.Equal(t, -1, statuses[0].SSLDaysLeft)
	assert.False(t, statuses[0].ProcessRunning)
}
