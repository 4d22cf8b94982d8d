package nginx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"siteman/internal/sshexec"
	"siteman/internal/sshexec/sshexectest"
	"siteman/internal/types"
)

func newTestReconciler(ch *sshexectest.Channel) *Reconciler {
	gen := NewGenerator(testAppsRoot, testCertDir)
	return NewReconciler(ch, gen, "/etc/nginx/sites-available", "/etc/nginx/sites-enabled")
}

func TestWriteConfigWritesAndEnables(t *testing.T) {
	ch := sshexectest.New()
	rec := newTestReconciler(ch)

	err := rec.WriteConfig(context.Background(), "example.com", "server {}")
	assert.NoError(t, err)
	assert.Equal(t, []byte("server {}"), ch.Files["/etc/nginx/sites-available/example.com"])
	assert.True(t, ch.Executed("ln", "-sf"))
}

func TestValidateSuccess(t *testing.T) {
	ch := sshexectest.New()
	rec := newTestReconciler(ch)

	assert.NoError(t, rec.Validate(context.Background()))
}

func TestValidateFailureWithoutHealableCause(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		if cmd.Program == "nginx" {
			return sshexec.Result{Stderr: `unknown directive "servre" in /etc/nginx/sites-enabled/example.com:1`, ExitCode: 1}, nil
		}
		return sshexec.Result{}, nil
	}
	rec := newTestReconciler(ch)

	err := rec.Validate(context.Background())
	var valErr *types.ConfigValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Output, "unknown directive")
}

func TestValidateSelfHealsUnreadableCertificate(t *testing.T) {
	ch := sshexectest.New()
	nginxCalls := 0
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		switch cmd.Program {
		case "nginx":
			nginxCalls++
			if nginxCalls == 1 {
				stderr := `nginx: [emerg] cannot load certificate "/etc/letsencrypt/live/shop.example.com/fullchain.pem"`
				return sshexec.Result{Stderr: stderr, ExitCode: 1}, nil
			}
			return sshexec.Result{}, nil
		case "cat":
			return sshexec.Result{Stdout: "ssl_certificate x;\nproxy_pass http://localhost:5000;"}, nil
		default:
			return sshexec.Result{}, nil
		}
	}
	rec := newTestReconciler(ch)

	err := rec.Validate(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, nginxCalls)

	rewritten := string(ch.Files["/etc/nginx/sites-available/shop.example.com"])
	assert.NotContains(t, rewritten, "ssl_certificate")
	assert.Contains(t, rewritten, "proxy_pass http://localhost:5000;")
}

func TestQuarantineMovesOnlyBrokenEntries(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		if cmd.Program == "ls" {
			return sshexec.Result{Stdout: "default\nexample.com\nold.site.backup\nlegacy.conf~\nother.com\n"}, nil
		}
		return sshexec.Result{}, nil
	}
	rec := newTestReconciler(ch)

	moved, err := rec.Quarantine(context.Background(), "example.com")
	assert.NoError(t, err)
	assert.Equal(t, []string{"old.site.backup", "legacy.conf~"}, moved)

	var mvTargets []string
	for _, call := range ch.Calls {
		if call.Cmd.Program == "mv" {
			mvTargets = append(mvTargets, strings.Join(call.Cmd.Args, " "))
		}
	}
	assert.Equal(t, []string{
		"/etc/nginx/sites-enabled/old.site.backup /etc/nginx/.disabled/old.site.backup",
		"/etc/nginx/sites-enabled/legacy.conf~ /etc/nginx/.disabled/legacy.conf~",
	}, mvTargets)
}

func TestQuarantineNothingToMove(t *testing.T) {
	ch := sshexectest.New()
	ch.Handler = func(cmd sshexec.Command) (sshexec.Result, error) {
		if cmd.Program == "ls" {
			return sshexec.Result{Stdout: "default\nexample.com\n"}, nil
		}
		return sshexec.Result{}, nil
	}
	rec := newTestReconciler(ch)

	moved, err := rec.Quarantine(context.Background(), "example.com")
	assert.NoError(t, err)
	assert.Empty(t, moved)
	assert.False(t, ch.Executed("mkdir", "-p"))
}

func TestRestoreMovesEntriesBack(t *testing.T) {
	ch := sshexectest.New()
	rec := newTestReconciler(ch)

	err := rec.Restore(context.Background(), []string{"old.site.backup"})
	assert.NoError(t, err)

	last := ch.Calls[len(ch.Calls)-1].Cmd
	assert.Equal(t, "mv", last.Program)
	assert.Equal(t, []string{"/etc/nginx/.disabled/old.site.backup", "/etc/nginx/sites-enabled/old.site.backup"}, last.Args)
}
