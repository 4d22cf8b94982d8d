package lifecycle

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"siteman/internal/certs"
	"siteman/internal/dns"
	"siteman/internal/nginx"
	"siteman/internal/sshexec"
	"siteman/internal/sshexec/sshexectest"
	"siteman/internal/supervisor"
	"siteman/internal/types"
	"siteman/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(logger.ModeDevelopment)
	os.Exit(m.Run())
}

type fakeDNSAPI struct {
	records map[string]*types.DNSRecord
	err     error
}

func newFakeDNSAPI() *fakeDNSAPI {
	return &fakeDNSAPI{records: make(map[string]*types.DNSRecord)}
}

func (f *fakeDNSAPI) FindZone(_ context.Context, name string) (*types.Zone, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Zone{ID: "zone-1", Name: name}, nil
}

func (f *fakeDNSAPI) CreateZone(_ context.Context, name string) (*types.Zone, error) {
	return &types.Zone{ID: "zone-1", Name: name}, nil
}

func (f *fakeDNSAPI) FindRecord(_ context.Context, _, recordType, name string) (*types.DNSRecord, error) {
	return f.records[recordType+"/"+name], nil
}

func (f *fakeDNSAPI) CreateRecord(_ context.Context, _ string, rec types.DNSRecord) (*types.DNSRecord, error) {
	rec.ID = "rec-" + rec.Name
	f.records[rec.Type+"/"+rec.Name] = &rec
	return &rec, nil
}

func (f *fakeDNSAPI) UpdateRecord(_ context.Context, _, recordID string, rec types.DNSRecord) (*types.DNSRecord, error) {
	rec.ID = recordID
	f.records[rec.Type+"/"+rec.Name] = &rec
	return &rec, nil
}

func (f *fakeDNSAPI) DeleteRecord(context.Context, string, string) error { return nil }

type scriptedConfirmer struct {
	answers []bool
	asked   int
}

func (s *scriptedConfirmer) Confirm(string) bool {
	if s.asked >= len(s.answers) {
		return false
	}
	answer := s.answers[s.asked]
	s.asked++
	return answer
}

type hostState struct {
	ch      *sshexectest.Channel
	api     *fakeDNSAPI
	hasCert bool

	certbotFails bool
}

// newHost fakes a VPS: enabled sites listing, certificate presence, and the
// site's current vhost readable back from the files written during the test.
func newHost() *hostState {
	h := &hostState{ch: sshexectest.New(), api: newFakeDNSAPI()}
	h.ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		switch cmd.Program {
		case "ls":
			return sshexec.Result{Stdout: "default\n"}, nil
		case "test":
			if h.hasCert {
				return sshexec.Result{}, nil
			}
			return sshexec.Result{ExitCode: 1}, nil
		case "certbot":
			if h.certbotFails {
				return sshexec.Result{Stderr: "rateLimited", ExitCode: 1}, nil
			}
			h.hasCert = true
			return sshexec.Result{}, nil
		case "cat":
			if content, ok := h.ch.Files[cmd.Args[0]]; ok {
				return sshexec.Result{Stdout: string(content)}, nil
			}
			return sshexec.Result{Stderr: "No such file", ExitCode: 1}, nil
		default:
			return sshexec.Result{}, nil
		}
	}
	return h
}

func newTestOrchestrator(h *hostState) *Orchestrator {
	gen := nginx.NewGenerator("/home/deployer/apps", "/etc/letsencrypt/live")
	proxy := nginx.NewReconciler(h.ch, gen, "/etc/nginx/sites-available", "/etc/nginx/sites-enabled")

	return NewOrchestrator(Deps{
		Channel:            h.ch,
		DNS:                dns.NewReconciler(h.api),
		Verifier:           dns.NewVerifier("127.0.0.1:53"),
		Generator:          gen,
		Proxy:              proxy,
		Detector:           nginx.NewDetector(h.ch, "/etc/nginx/sites-available"),
		Certs:              certs.NewOrchestrator(h.ch, proxy, gen, "/etc/letsencrypt/live"),
		Supervisor:         supervisor.NewSupervisor(h.ch, "deployer"),
		ServerIP:           "203.0.113.7",
		DeployUser:         "deployer",
		AppsRoot:           "/home/deployer/apps",
		PropagationTimeout: time.Millisecond,
	})
}

func commandLines(ch *sshexectest.Channel) string {
	lines := make([]string, 0, len(ch.Calls))
	for _, call := range ch.Calls {
		lines = append(lines, call.Cmd.Render())
	}
	return strings.Join(lines, "\n")
}

func TestProvisionHappyPath(t *testing.T) {
	h := newHost()
	orch := newTestOrchestrator(h)

	result := orch.Provision(context.Background(), types.ProvisionParams{
		Domain:    "example.com",
		EnableWww: true,
		Mode:      types.ModeProxied,
		AppPort:   4000,
		Proxied:   true,
	})

	assert.True(t, result.Success())
	assert.Empty(t, result.Warnings)
	assert.NotEqual(t, "", result.RunID.String())

	// Both names converged at the DNS provider.
	assert.NotNil(t, h.api.records["A/example.com"])
	assert.NotNil(t, h.api.records["A/www.example.com"])
	assert.True(t, h.api.records["A/example.com"].Proxied)

	// Placeholder page and vhost landed on disk.
	assert.Contains(t, string(h.ch.Files["/home/deployer/apps/example.com/public/index.html"]), "Coming Soon")
	vhost := string(h.ch.Files["/etc/nginx/sites-available/example.com"])
	assert.Contains(t, vhost, "proxy_pass http://localhost:4000;")
	assert.NotContains(t, vhost, "ssl_certificate")

	joined := commandLines(h.ch)
	assert.Contains(t, joined, "sudo mkdir -p /home/deployer/apps/example.com/public")
	assert.Contains(t, joined, "sudo mkdir -p /home/deployer/apps/example.com/logs")
	assert.Contains(t, joined, "sudo chown -R deployer:deployer /home/deployer/apps/example.com")
	assert.Contains(t, joined, "sudo nginx -t")
	assert.Contains(t, joined, "sudo systemctl reload nginx")
	// No issuance was requested.
	assert.NotContains(t, joined, "certbot")
}

func TestProvisionDNSFailureDegradesToWarning(t *testing.T) {
	h := newHost()
	h.api.err = errors.New("provider unreachable")
	orch := newTestOrchestrator(h)

	result := orch.Provision(context.Background(), types.ProvisionParams{
		Domain: "example.com",
		Mode:   types.ModeComingSoon,
	})

	assert.True(t, result.Success())
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "dns record for example.com not converged")

	// Server-side setup still completed.
	assert.Contains(t, string(h.ch.Files["/etc/nginx/sites-available/example.com"]), "server_name example.com;")
}

func TestProvisionCertificateFailureReportsStep(t *testing.T) {
	h := newHost()
	h.certbotFails = true
	orch := newTestOrchestrator(h)

	result := orch.Provision(context.Background(), types.ProvisionParams{
		Domain:           "example.com",
		Mode:             types.ModeComingSoon,
		Proxied:          true,
		IssueCertificate: true,
	})

	assert.False(t, result.Success())
	assert.Equal(t, StepCertificate, result.FailedStep)
	var issueErr *types.CertificateIssuanceError
	assert.ErrorAs(t, result.Err, &issueErr)
}

func TestProvisionWithIssuanceRewritesForTLS(t *testing.T) {
	h := newHost()
	orch := newTestOrchestrator(h)

	result := orch.Provision(context.Background(), types.ProvisionParams{
		Domain:           "example.com",
		Mode:             types.ModeProxied,
		AppPort:          4000,
		Proxied:          true,
		IssueCertificate: true,
	})

	assert.True(t, result.Success())
	vhost := string(h.ch.Files["/etc/nginx/sites-available/example.com"])
	assert.Contains(t, vhost, "listen 443 ssl http2;")
	assert.Contains(t, vhost, "return 301 https://$server_name$request_uri;")
}

func TestProvisionReRunSkipsIssuance(t *testing.T) {
	h := newHost()
	h.hasCert = true
	orch := newTestOrchestrator(h)

	result := orch.Provision(context.Background(), types.ProvisionParams{
		Domain:           "example.com",
		Mode:             types.ModeComingSoon,
		Proxied:          true,
		IssueCertificate: true,
	})

	assert.True(t, result.Success())
	// The certificate already exists: the vhost references it, no certbot run.
	assert.Contains(t, string(h.ch.Files["/etc/nginx/sites-available/example.com"]), "ssl_certificate")
	assert.NotContains(t, commandLines(h.ch), "certbot")
}

func TestTakeOfflinePreservesShapeAndStopsProcess(t *testing.T) {
	h := newHost()
	h.hasCert = true
	h.ch.Files["/etc/nginx/sites-available/example.com"] = []byte(
		"server_name example.com www.example.com;\n" +
			"ssl_certificate /etc/letsencrypt/live/example.com/fullchain.pem;\n" +
			"proxy_pass http://localhost:4000;\n")
	orch := newTestOrchestrator(h)

	err := orch.TakeOffline(context.Background(), "example.com")
	assert.NoError(t, err)

	vhost := string(h.ch.Files["/etc/nginx/sites-available/example.com"])
	// Placeholder serving, but TLS and the www alias survive.
	assert.Contains(t, vhost, "root /home/deployer/apps/example.com/public;")
	assert.NotContains(t, vhost, "proxy_pass")
	assert.Contains(t, vhost, "ssl_certificate")
	assert.Contains(t, vhost, "www.example.com")

	assert.Contains(t, commandLines(h.ch), "sudo -u deployer -- bash -c 'pm2 stop example.com'")
}

func TestTakeOfflineUnknownSite(t *testing.T) {
	h := newHost()
	orch := newTestOrchestrator(h)

	err := orch.TakeOffline(context.Background(), "missing.com")
	assert.ErrorIs(t, err, nginx.ErrSiteNotFound)
}

func TestRemoveDeclinedDoesNothing(t *testing.T) {
	h := newHost()
	orch := newTestOrchestrator(h)

	err := orch.Remove(context.Background(), "example.com", &scriptedConfirmer{answers: []bool{false}})
	assert.NoError(t, err)
	assert.Empty(t, h.ch.Calls)
}

func TestRemoveKeepsAppDirWhenSecondGateDeclined(t *testing.T) {
	h := newHost()
	orch := newTestOrchestrator(h)

	err := orch.Remove(context.Background(), "example.com", &scriptedConfirmer{answers: []bool{true, false}})
	assert.NoError(t, err)

	joined := commandLines(h.ch)
	assert.Contains(t, joined, "sudo rm -f /etc/nginx/sites-enabled/example.com")
	assert.Contains(t, joined, "sudo rm -f /etc/nginx/sites-available/example.com")
	assert.NotContains(t, joined, "rm -rf /home/deployer/apps/example.com")
}

func TestRemoveFullTeardown(t *testing.T) {
	h := newHost()
	orch := newTestOrchestrator(h)

	err := orch.Remove(context.Background(), "example.com", &scriptedConfirmer{answers: []bool{true, true}})
	assert.NoError(t, err)
	assert.Contains(t, commandLines(h.ch), "sudo rm -rf /home/deployer/apps/example.com")
}

func TestClonePreservesSourceShape(t *testing.T) {
	h := newHost()
	h.ch.Files["/etc/nginx/sites-available/old.com"] = []byte(
		"server_name old.com www.old.com;\nproxy_pass http://localhost:5555;\n")
	orch := newTestOrchestrator(h)

	result := orch.Clone(context.Background(), "old.com", "new.com", true, false, &scriptedConfirmer{answers: []bool{true}})
	assert.True(t, result.Success())

	vhost := string(h.ch.Files["/etc/nginx/sites-available/new.com"])
	assert.Contains(t, vhost, "server_name new.com www.new.com;")
	assert.Contains(t, vhost, "proxy_pass http://localhost:5555;")
}

func TestCloneDeclinedProvisionsNothing(t *testing.T) {
	h := newHost()
	h.ch.Files["/etc/nginx/sites-available/old.com"] = []byte(
		"server_name old.com;\nproxy_pass http://localhost:5555;\n")
	orch := newTestOrchestrator(h)

	result := orch.Clone(context.Background(), "old.com", "new.com", true, false, &scriptedConfirmer{answers: []bool{false}})
	assert.ErrorIs(t, result.Err, ErrCloneDeclined)

	// Only the source detection touched the host.
	assert.NotContains(t, h.ch.Files, "/etc/nginx/sites-available/new.com")
	assert.NotContains(t, commandLines(h.ch), "mkdir")
}

func TestRestartServiceTargets(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		expected string
	}{
		{name: "nginx", target: "nginx", expected: "sudo systemctl restart nginx"},
		{name: "postgresql", target: "postgresql", expected: "sudo systemctl restart postgresql"},
		{name: "every app process", target: "apps", expected: "sudo -u deployer -- bash -c 'pm2 restart all'"},
		{name: "single app process", target: "blog", expected: "sudo -u deployer -- bash -c 'pm2 restart blog'"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHost()
			orch := newTestOrchestrator(h)

			assert.NoError(t, orch.RestartService(context.Background(), test.target))
			assert.Contains(t, commandLines(h.ch), test.expected)
		})
	}
}

func TestRestartAllServicesConfirmed(t *testing.T) {
	h := newHost()
	orch := newTestOrchestrator(h)

	err := orch.RestartAllServices(context.Background(), &scriptedConfirmer{answers: []bool{true}})
	assert.NoError(t, err)

	joined := commandLines(h.ch)
	assert.Contains(t, joined, "sudo systemctl restart nginx")
	assert.Contains(t, joined, "sudo systemctl restart postgresql")
	assert.Contains(t, joined, "sudo -u deployer -- bash -c 'pm2 restart all'")
}

func TestRestartAllServicesDeclined(t *testing.T) {
	h := newHost()
	orch := newTestOrchestrator(h)

	err := orch.RestartAllServices(context.Background(), &scriptedConfirmer{answers: []bool{false}})
	assert.NoError(t, err)
	assert.Empty(t, h.ch.Calls)
}
