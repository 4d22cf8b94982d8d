package dns

import (
	"context"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"siteman/logger"
)

const pollInterval = 10 * time.Second

// Verifier polls ordinary DNS resolution until a name resolves to the
// expected address. It asks a recursive resolver, not the authoritative
// servers, so answers can be stale; a timeout is therefore a warning for
// the caller, never a hard failure.
type Verifier struct {
	client   *dns.Client
	resolver string
}

func NewVerifier(resolver string) *Verifier {
	return &Verifier{
		client:   &dns.Client{Timeout: 5 * time.Second},
		resolver: resolver,
	}
}

// VerifyPropagation returns true once the domain resolves to expectedIP, or
// false when the timeout elapses first. Poll cycles are strictly
// sequential; cancelling the context stops the loop.
func (v *Verifier) VerifyPropagation(ctx context.Context, domain, expectedIP string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		if ok := v.resolvesTo(domain, expectedIP); ok {
			logger.Info("dns propagation confirmed", zap.String("domain", domain), zap.String("ip", expectedIP))
			return true
		}

		if time.Now().After(deadline) {
			logger.Warn("dns propagation not confirmed before timeout; resolver caches may be stale",
				zap.String("domain", domain),
				zap.Duration("timeout", timeout))
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}

func (v *Verifier) resolvesTo(domain, expectedIP string) bool {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeA)

	r, _, err := v.client.Exchange(m, v.resolver)
	if err != nil || r == nil {
		return false
	}

	for _, answer := range r.Answer {
		if a, ok := answer.(*dns.A); ok && a.A.String() == expectedIP {
			return true
		}
	}
	return false
}
