package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// resolvConfPath is the system resolver configuration consulted when no
// servers are configured explicitly.
const resolvConfPath = "/etc/resolv.conf"

// defaultServers is the public resolver set used as the final fallback.
var defaultServers = []string{"1.1.1.1:53", "8.8.8.8:53", "9.9.9.10:53"}

// Record is one parsed DNS answer. Rdtype is the answer's own record
// type, which may differ from the query type when a CNAME sits in the
// chain.
type Record struct {
	Rdtype uint16
	Value  string
}

// Exchanger performs a single DNS query attempt. Client implements it
// over the network; tests substitute deterministic fakes.
type Exchanger interface {
	Exchange(ctx context.Context, name string, rdtype uint16) ([]Record, error)
}

// Client is the plain-DNS Exchanger. It rotates queries across the
// configured upstream servers and maps wire-level outcomes onto the
// package's sentinel errors.
type Client struct {
	servers []string
	client  *dns.Client
	next    atomic.Uint32
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithServers sets the upstream servers. Entries may be bare hosts or
// "host:port"; bare hosts get port 53.
func WithServers(servers []string) ClientOption {
	return func(c *Client) {
		for _, s := range servers {
			if s = strings.TrimSpace(s); s != "" {
				c.servers = append(c.servers, withDefaultPort(s))
			}
		}
	}
}

// WithQueryTimeout bounds a single query attempt.
func WithQueryTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
		c.client.Dialer = &net.Dialer{Timeout: timeout}
	}
}

// NewClient creates a DNS client. When no servers are configured, the
// system resolv.conf is used, falling back to a public resolver set.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		client: &dns.Client{
			Timeout: 5 * time.Second,
			Dialer:  &net.Dialer{Timeout: 5 * time.Second},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.servers) == 0 {
		c.servers = systemServers()
	}
	return c
}

// systemServers reads resolv.conf, falling back to the public set.
func systemServers() []string {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return append([]string(nil), defaultServers...)
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers
}

// withDefaultPort appends :53 to bare host entries.
func withDefaultPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}

// Exchange performs one query attempt against the next upstream server.
// PTR queries take a literal IP address and are reversed internally.
func (c *Client) Exchange(ctx context.Context, name string, rdtype uint16) ([]Record, error) {
	if len(c.servers) == 0 {
		return nil, ErrNoServers
	}

	fqdn, err := queryName(name, rdtype)
	if err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, rdtype)
	msg.RecursionDesired = true

	server := c.servers[int(c.next.Add(1))%len(c.servers)]
	reply, _, err := c.client.ExchangeContext(ctx, msg, server)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil, fmt.Errorf("%w: %s %s @%s", ErrTimeout, name, dns.TypeToString[rdtype], server)
		}
		return nil, fmt.Errorf("%w: %s @%s: %v", ErrNetwork, name, server, err)
	}

	switch reply.Rcode {
	case dns.RcodeSuccess:
		return parseAnswers(reply), nil
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNXDomain, name)
	case dns.RcodeServerFailure, dns.RcodeRefused:
		return nil, fmt.Errorf("%w: %s %s @%s: %s", ErrServfail, name, dns.TypeToString[rdtype], server, dns.RcodeToString[reply.Rcode])
	default:
		return nil, fmt.Errorf("%w: %s: unexpected rcode %s", ErrNetwork, name, dns.RcodeToString[reply.Rcode])
	}
}

// queryName builds the on-the-wire query name. PTR lookups are given as
// plain IP addresses and converted to in-addr.arpa form here.
func queryName(name string, rdtype uint16) (string, error) {
	if rdtype == dns.TypePTR && !strings.HasSuffix(name, ".arpa.") {
		reversed, err := dns.ReverseAddr(name)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not an address: %v", ErrNetwork, name, err)
		}
		return reversed, nil
	}
	return dns.Fqdn(name), nil
}

// parseAnswers extracts the record values the scanner cares about:
// addresses and names. Other record types in the answer section are
// skipped.
func parseAnswers(reply *dns.Msg) []Record {
	records := make([]Record, 0, len(reply.Answer))
	for _, rr := range reply.Answer {
		switch answer := rr.(type) {
		case *dns.A:
			records = append(records, Record{Rdtype: dns.TypeA, Value: answer.A.String()})
		case *dns.AAAA:
			records = append(records, Record{Rdtype: dns.TypeAAAA, Value: answer.AAAA.String()})
		case *dns.CNAME:
			if host, err := model.NormalizeHost(answer.Target); err == nil {
				records = append(records, Record{Rdtype: dns.TypeCNAME, Value: host})
			}
		case *dns.PTR:
			if host, err := model.NormalizeHost(answer.Ptr); err == nil {
				records = append(records, Record{Rdtype: dns.TypePTR, Value: host})
			}
		case *dns.NS:
			if host, err := model.NormalizeHost(answer.Ns); err == nil {
				records = append(records, Record{Rdtype: dns.TypeNS, Value: host})
			}
		case *dns.MX:
			if host, err := model.NormalizeHost(answer.Mx); err == nil {
				records = append(records, Record{Rdtype: dns.TypeMX, Value: host})
			}
		case *dns.TXT:
			records = append(records, Record{Rdtype: dns.TypeTXT, Value: strings.Join(answer.Txt, "")})
		}
	}
	return records
}
