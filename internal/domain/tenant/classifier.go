package tenant

import (
	"net"
	"strings"
)

type Kind int

const (
	KindRoot Kind = iota
	KindCustomDomain
	KindSubdomain
	KindCookieSlug
)

func (k Kind) String() string {
	switch k {
	case KindCustomDomain:
		return "custom-domain"
	case KindSubdomain:
		return "subdomain"
	case KindCookieSlug:
		return "cookie"
	default:
		return "root"
	}
}

// Signals are the raw request inputs the classifier looks at.
type Signals struct {
	Host       string
	Path       string
	HasCookie  bool
	CookieSlug string
}

// Rules describe the deployment: the platform apex domain and the path
// prefixes that always render the root/marketing context on the apex.
type Rules struct {
	PlatformDomain string
	RootPaths      []string
}

// Classification is the winning signal. Value holds the custom domain host,
// the subdomain label or the cookie slug. Ambiguous is set when more than one
// signal was present and precedence had to decide.
type Classification struct {
	Kind      Kind
	Value     string
	Ambiguous bool
}

func (c Classification) Via() ResolvedVia {
	switch c.Kind {
	case KindCustomDomain:
		return ViaCustomDomain
	case KindSubdomain:
		return ViaSubdomain
	case KindCookieSlug:
		return ViaCookie
	default:
		return ViaRoot
	}
}

// Classify maps request signals to exactly one classification. It does no I/O
// and never fails: anything it does not recognise degrades toward Root.
// Precedence is custom domain, then platform subdomain, then slug cookie.
func Classify(sig Signals, rules Rules) Classification {
	host := NormalizeHost(sig.Host)
	platform := NormalizeHost(rules.PlatformDomain)

	cookie := ""
	if sig.HasCookie {
		cookie = strings.ToLower(strings.TrimSpace(sig.CookieSlug))
	}

	hostKind, hostValue := classifyHost(host, platform)
	switch hostKind {
	case KindCustomDomain, KindSubdomain:
		return Classification{Kind: hostKind, Value: hostValue, Ambiguous: cookie != ""}
	}

	// Only the apex (or a host we could not place) may route by cookie.
	if cookie != "" && !isRootPath(sig.Path, rules.RootPaths) {
		return Classification{Kind: KindCookieSlug, Value: cookie}
	}
	return Classification{Kind: KindRoot}
}

func classifyHost(host, platform string) (Kind, string) {
	if host == "" || !validHostname(host) || isLocal(host) {
		return KindRoot, ""
	}
	if platform == "" {
		return KindCustomDomain, host
	}
	if host == platform || host == "www."+platform {
		return KindRoot, ""
	}
	if label, ok := strings.CutSuffix(host, "."+platform); ok {
		if strings.Contains(label, ".") {
			// nested subdomains are not a platform pattern
			return KindRoot, ""
		}
		return KindSubdomain, label
	}
	if !strings.Contains(host, ".") {
		return KindRoot, ""
	}
	return KindCustomDomain, host
}

// NormalizeHost lowercases a Host header value and strips the port and any
// trailing dot.
func NormalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndexByte(h, ':'); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	return strings.TrimSuffix(h, ".")
}

func isLocal(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	return net.ParseIP(strings.Trim(host, "[]")) != nil
}

func validHostname(host string) bool {
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
				return false
			}
		}
	}
	return true
}

func isRootPath(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" || p == "/" {
			continue
		}
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
