package usecase

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

var (
	// Android without "Mobile" is a tablet, so tablets are matched first.
	tabletUA = regexp.MustCompile(`(?i)(tablet|ipad|playbook|silk|kindle)`)
	mobileUA = regexp.MustCompile(`(?i)(mobi|iphone|ipod|android|blackberry|iemobile|opera mini|windows phone|webos)`)
)

type browserRule struct {
	token string
	name  string
}

// Order matters: Chrome before Safari because Chrome UAs also carry "Safari".
var browserRules = []browserRule{
	{"chrome", "Chrome"},
	{"safari", "Safari"},
	{"firefox", "Firefox"},
	{"edge", "Edge"},
	{"opera", "Opera"},
	{"msie", "Internet Explorer"},
	{"trident", "Internet Explorer"},
}

// iOS before macOS: iPad UAs mention "Mac OS X". Android before Linux.
var osRules = []browserRule{
	{"windows", "Windows"},
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"mac os", "macOS"},
	{"macintosh", "macOS"},
	{"linux", "Linux"},
}

var utmKeys = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

// DataEnricher adds device, network and campaign context to a lead's metadata.
// It never fails and never overwrites a key the caller already set.
type DataEnricher struct {
	now func() time.Time
}

func NewDataEnricher() *DataEnricher {
	return &DataEnricher{now: time.Now}
}

func (e *DataEnricher) Enrich(lead entity.Lead, rc entity.RequestContext) entity.Lead {
	out := lead.Clone()
	meta := out.Metadata

	setIfAbsent := func(key string, value any) {
		if s, ok := value.(string); ok && s == "" {
			return
		}
		if _, exists := meta[key]; !exists {
			meta[key] = value
		}
	}

	ua := lead.UserAgent
	if ua == "" {
		ua = rc.UserAgent
		setIfAbsent(entity.MetaUserAgent, ua)
	}
	if ua != "" {
		setIfAbsent(entity.MetaDeviceType, DeviceType(ua))
		setIfAbsent(entity.MetaBrowser, matchRule(ua, browserRules))
		setIfAbsent(entity.MetaOS, matchRule(ua, osRules))
	}

	setIfAbsent(entity.MetaIPAddress, clientIP(rc))
	setIfAbsent(entity.MetaTimezone, strings.TrimSpace(rc.Timezone))

	for k, v := range utmValues(lead) {
		setIfAbsent(k, v)
	}

	stamp := rc.ReceivedAt
	if stamp.IsZero() {
		stamp = e.now()
	}
	setIfAbsent(entity.MetaEnrichedAt, stamp.UTC().Format(time.RFC3339))

	return out
}

// DeviceType classifies a user agent as mobile, tablet or desktop.
func DeviceType(ua string) string {
	lower := strings.ToLower(ua)
	if tabletUA.MatchString(ua) || (strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")) {
		return "tablet"
	}
	if mobileUA.MatchString(ua) {
		return "mobile"
	}
	return "desktop"
}

func matchRule(ua string, rules []browserRule) string {
	lower := strings.ToLower(ua)
	for _, r := range rules {
		if strings.Contains(lower, r.token) {
			return r.name
		}
	}
	return "Unknown"
}

func clientIP(rc entity.RequestContext) string {
	if rc.ForwardedFor != "" {
		first := strings.TrimSpace(strings.Split(rc.ForwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if rc.RemoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(rc.RemoteAddr); err == nil {
		return host
	}
	return rc.RemoteAddr
}

// utmValues prefers the explicit utm block and falls back to the referral URL's query.
func utmValues(lead entity.Lead) map[string]string {
	out := make(map[string]string)
	if lead.UTM != nil {
		vals := []string{lead.UTM.Source, lead.UTM.Medium, lead.UTM.Campaign, lead.UTM.Term, lead.UTM.Content}
		for i, k := range utmKeys {
			if vals[i] != "" {
				out[k] = vals[i]
			}
		}
		return out
	}
	if lead.ReferralURL == "" {
		return out
	}
	u, err := url.Parse(lead.ReferralURL)
	if err != nil {
		return out
	}
	q := u.Query()
	for _, k := range utmKeys {
		if v := q.Get(k); v != "" {
			out[k] = v
		}
	}
	return out
}
