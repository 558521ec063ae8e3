// Package naming derives the group and sort keys used to cluster and order
// tabs. Both keys come from the same URL parsing; only the domain
// granularity differs between modes.
package naming

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Mode selects how much of the host a group key keeps.
type Mode int

const (
	// Shared collapses a host to its registrable domain, so
	// mail.example.com and www.example.com share a group.
	Shared Mode = iota
	// Granular keeps the full host, subdomains included.
	Granular
)

func (m Mode) String() string {
	if m == Granular {
		return "granular"
	}
	return "shared"
}

// ModeFor maps the enableSubdomainFiltering setting to a mode.
func ModeFor(subdomainFiltering bool) Mode {
	if subdomainFiltering {
		return Granular
	}
	return Shared
}

var (
	ErrNoURL      = errors.New("tab has no url")
	ErrUnparsable = errors.New("url is not parsable")
)

// DomainPolicy reduces a host name to the part that identifies a site.
type DomainPolicy interface {
	Registrable(host string) string
}

// PublicSuffixPolicy uses the public suffix list: news.bbc.co.uk becomes
// bbc.co.uk. IP addresses, single labels and bare suffixes stay as-is.
type PublicSuffixPolicy struct{}

func (PublicSuffixPolicy) Registrable(host string) string {
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// LastLabelsPolicy keeps the last N dot-separated labels of a host.
type LastLabelsPolicy struct {
	N int
}

func (p LastLabelsPolicy) Registrable(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	n := p.N
	if n < 1 {
		n = 2
	}
	labels := strings.Split(host, ".")
	if len(labels) <= n {
		return host
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (DomainPolicy, error) {
	switch name {
	case "", "publicsuffix":
		return PublicSuffixPolicy{}, nil
	case "lastlabels":
		return LastLabelsPolicy{N: 2}, nil
	default:
		return nil, fmt.Errorf("unknown domain policy %q", name)
	}
}

// Deriver computes group and sort keys with a given domain policy.
type Deriver struct {
	Policy DomainPolicy
}

// Default uses the public suffix list.
var Default = Deriver{Policy: PublicSuffixPolicy{}}

type parsed struct {
	scheme string
	host   string
	rest   string // path and query
	opaque string
}

func parse(rawURL string) (parsed, error) {
	if strings.TrimSpace(rawURL) == "" {
		return parsed{}, ErrNoURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return parsed{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if u.Scheme == "" {
		// Bare "x.com/1": read the first segment as the host.
		u, err = url.Parse("//" + rawURL)
		if err != nil || u.Hostname() == "" {
			return parsed{}, fmt.Errorf("%w: %q has no scheme or host", ErrUnparsable, rawURL)
		}
	}
	p := parsed{
		scheme: strings.ToLower(u.Scheme),
		host:   strings.TrimSuffix(strings.ToLower(u.Hostname()), "."),
		rest:   u.EscapedPath(),
		opaque: u.Opaque,
	}
	if u.RawQuery != "" {
		p.rest += "?" + u.RawQuery
	}
	return p, nil
}

func (d Deriver) groupKey(mode Mode, p parsed) string {
	if p.host == "" {
		return p.scheme + ":"
	}
	if mode == Granular {
		return p.host
	}
	policy := d.Policy
	if policy == nil {
		policy = PublicSuffixPolicy{}
	}
	return policy.Registrable(p.host)
}

// GroupName returns the key tabs are clustered by.
func (d Deriver) GroupName(mode Mode, rawURL string) (string, error) {
	p, err := parse(rawURL)
	if err != nil {
		return "", err
	}
	return d.groupKey(mode, p), nil
}

// SortName returns the key tabs are alphabetized by: the group key followed
// by the address without scheme or fragment.
func (d Deriver) SortName(mode Mode, rawURL string) (string, error) {
	p, err := parse(rawURL)
	if err != nil {
		return "", err
	}
	addr := p.host + p.rest
	if p.host == "" {
		addr = p.scheme + ":" + p.opaque + p.rest
	}
	return d.groupKey(mode, p) + " " + addr, nil
}

// GroupName derives a group key with the public suffix policy.
func GroupName(mode Mode, rawURL string) (string, error) {
	return Default.GroupName(mode, rawURL)
}

// SortName derives a sort key with the public suffix policy.
func SortName(mode Mode, rawURL string) (string, error) {
	return Default.SortName(mode, rawURL)
}
