package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes reported by CheckDNS.
const (
	DNSResolves    = "RESOLVES"
	DNSNXDomain    = "NXDOMAIN"
	DNSNoARecord   = "NO_A_RECORD"
	DNSServfail    = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName = "INVALID_NAME"
	DNSIPLiteral   = "IP_LITERAL"
)

type DNSStatus struct {
	Domain        string
	HasAOrAAAA    bool
	IPs           []net.IP
	CNAME         string
	HasNS         bool
	Nameservers   []string
	Class         string
	ResolverError string
}

var dnsTimeout = 3 * time.Second

// CheckDNS explains why a host may be unreachable. It is only a diagnostic and
// never decides up or down.
func CheckDNS(ctx context.Context, domain string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(domain)}
	if s.Domain == "" || strings.Contains(s.Domain, "://") {
		s.Class = DNSInvalidName
		return s
	}
	if ip := net.ParseIP(s.Domain); ip != nil {
		s.HasAOrAAAA = true
		s.IPs = []net.IP{ip}
		s.Class = DNSIPLiteral
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	r := &net.Resolver{} // OS resolver

	ips, err := r.LookupIP(ctx, "ip", s.Domain)
	if err == nil && len(ips) > 0 {
		s.HasAOrAAAA = true
		s.IPs = ips
		s.Class = DNSResolves
	} else if err != nil {
		var de *net.DNSError
		s.ResolverError = err.Error()
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = DNSNXDomain
			} else if de.IsTemporary || de.Timeout() {
				s.Class = DNSServfail
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}

	if ns, err := r.LookupNS(ctx, s.Domain); err == nil && len(ns) > 0 {
		s.HasNS = true
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == DNSNXDomain {
			s.Class = DNSNoARecord
		}
	}

	if s.Class == "" {
		switch {
		case s.HasAOrAAAA:
			s.Class = DNSResolves
		case s.HasNS:
			s.Class = DNSNoARecord
		case s.ResolverError != "":
			s.Class = DNSServfail
		default:
			s.Class = DNSNXDomain
		}
	}
	return s
}

// hostOf extracts the hostname from a URL or host[:port] address.
func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host
	}
	return raw
}
