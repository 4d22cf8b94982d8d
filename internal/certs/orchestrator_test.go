package certs

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"siteman/internal/nginx"
	"siteman/internal/sshexec"
	"siteman/internal/sshexec/sshexectest"
	"siteman/internal/types"
	"siteman/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(logger.ModeDevelopment)
	os.Exit(m.Run())
}

const liveDir = "/etc/letsencrypt/live"

func newTestOrchestrator(ch *sshexectest.Channel) *Orchestrator {
	gen := nginx.NewGenerator("/home/deployer/apps", liveDir)
	proxy := nginx.NewReconciler(ch, gen, "/etc/nginx/sites-available", "/etc/nginx/sites-enabled")
	return NewOrchestrator(ch, proxy, gen, liveDir)
}

// issueHandler answers the standard issuance sequence. certbotFails controls
// the certonly outcome; the quarantine listing includes one broken entry.
func issueHandler(certbotFails bool) func(cmd sshexec.Command) (sshexec.Result, error) {
	return func(cmd sshexec.Command) (sshexec.Result, error) {
		switch cmd.Program {
		case "ls":
			return sshexec.Result{Stdout: "default\nexample.com\nstale.conf.backup\n"}, nil
		case "certbot":
			if certbotFails {
				return sshexec.Result{Stderr: "Problem binding to port 80", ExitCode: 1}, nil
			}
			return sshexec.Result{}, nil
		default:
			return sshexec.Result{}, nil
		}
	}
}

func commandLines(ch *sshexectest.Channel) []string {
	lines := make([]string, 0, len(ch.Calls))
	for _, call := range ch.Calls {
		lines = append(lines, call.Cmd.Render())
	}
	return lines
}

func TestIssueHappyPath(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = issueHandler(false)
	orch := newTestOrchestrator(ch)

	site := types.Site{Domain: "example.com", EnableWww: true, Mode: types.ModeProxied, AppPort: 3000}
	err := orch.Issue(context.Background(), site)
	assert.NoError(t, err)

	lines := commandLines(ch)
	joined := strings.Join(lines, "\n")

	assert.Contains(t, joined, "sudo systemctl stop nginx")
	assert.Contains(t, joined, "sudo certbot certonly --standalone -d example.com -d www.example.com --non-interactive --agree-tos --register-unsafely-without-email")
	assert.Contains(t, joined, "sudo systemctl restart nginx")

	// The vhost now terminates TLS.
	written := string(ch.Files["/etc/nginx/sites-available/example.com"])
	assert.Contains(t, written, "ssl_certificate /etc/letsencrypt/live/example.com/fullchain.pem;")
	assert.Contains(t, written, "proxy_pass http://localhost:3000;")

	// The quarantined entry went out and came back.
	assert.Contains(t, joined, "sudo mv /etc/nginx/sites-enabled/stale.conf.backup /etc/nginx/.disabled/stale.conf.backup")
	assert.Contains(t, joined, "sudo mv /etc/nginx/.disabled/stale.conf.backup /etc/nginx/sites-enabled/stale.conf.backup")
}

func TestIssueOrdersStopBeforeCertbot(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = issueHandler(false)
	orch := newTestOrchestrator(ch)

	err := orch.Issue(context.Background(), types.Site{Domain: "example.com", Mode: types.ModeComingSoon})
	assert.NoError(t, err)

	lines := commandLines(ch)
	stopIdx, certbotIdx, restartIdx := -1, -1, -1
	for i, line := range lines {
		switch {
		case strings.Contains(line, "systemctl stop nginx"):
			stopIdx = i
		case strings.Contains(line, "certbot certonly") && certbotIdx == -1:
			certbotIdx = i
		case strings.Contains(line, "systemctl restart nginx"):
			restartIdx = i
		}
	}
	assert.True(t, stopIdx >= 0 && certbotIdx > stopIdx && restartIdx > certbotIdx)
}

func TestIssueFailureStillRestartsAndRestores(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = issueHandler(true)
	orch := newTestOrchestrator(ch)

	err := orch.Issue(context.Background(), types.Site{Domain: "example.com"})

	var issueErr *types.CertificateIssuanceError
	assert.ErrorAs(t, err, &issueErr)
	assert.Contains(t, issueErr.Reason, "Problem binding to port 80")

	joined := strings.Join(commandLines(ch), "\n")
	assert.Contains(t, joined, "sudo systemctl restart nginx")
	assert.Contains(t, joined, "sudo mv /etc/nginx/.disabled/stale.conf.backup /etc/nginx/sites-enabled/stale.conf.backup")

	// No vhost rewrite on failure.
	assert.Empty(t, ch.Files)
}

func TestIssueRejectsMissingCertificateFiles(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		switch cmd.Program {
		case "ls":
			return sshexec.Result{Stdout: "default\n"}, nil
		case "test":
			// certbot exited zero but never wrote the files
			return sshexec.Result{ExitCode: 1}, nil
		default:
			return sshexec.Result{}, nil
		}
	}
	orch := newTestOrchestrator(ch)

	err := orch.Issue(context.Background(), types.Site{Domain: "example.com"})
	var issueErr *types.CertificateIssuanceError
	assert.ErrorAs(t, err, &issueErr)
	assert.Contains(t, issueErr.Reason, "missing after issuance")
}

func TestHasCertificate(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		assert.Equal(t, "test", cmd.Program)
		assert.Equal(t, []string{"-f", "/etc/letsencrypt/live/example.com/fullchain.pem"}, cmd.Args)
		return sshexec.Result{}, nil
	}
	orch := newTestOrchestrator(ch)

	has, err := orch.HasCertificate(context.Background(), "example.com")
	assert.NoError(t, err)
	assert.True(t, has)
}

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		output    string
		expected  int
		expectErr bool
	}{
		{name: "future date", output: "notAfter=Nov 23 12:00:00 2026 GMT\n", expected: 90},
		{name: "padded single-digit day", output: "notAfter=Sep  3 12:00:00 2026 GMT", expected: 9},
		{name: "expired", output: "notAfter=Aug 20 12:00:00 2026 GMT", expected: -5},
		{name: "missing prefix", output: "something else", expectErr: true},
		{name: "garbage timestamp", output: "notAfter=not a date", expectErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			days, err := DaysUntilExpiry(test.output, now)
			if test.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.expected, days)
		})
	}
}
