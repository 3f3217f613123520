package entity

import (
	"time"
)

type Intent string

const (
	IntentBuy         Intent = "buy"
	IntentRent        Intent = "rent"
	IntentSell        Intent = "sell"
	IntentPartnership Intent = "partnership"
	IntentInfo        Intent = "info"
	IntentEvaluate    Intent = "evaluate"
	IntentOther       Intent = "other"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentBuy, IntentRent, IntentSell, IntentPartnership, IntentInfo, IntentEvaluate, IntentOther:
		return true
	}
	return false
}

type Source string

const (
	SourceSite      Source = "site"
	SourceWhatsApp  Source = "whatsapp"
	SourceLanding   Source = "landing"
	SourceFacebook  Source = "facebook"
	SourceInstagram Source = "instagram"
	SourceGoogle    Source = "google"
	SourceOther     Source = "other"
)

func (s Source) Valid() bool {
	switch s {
	case SourceSite, SourceWhatsApp, SourceLanding, SourceFacebook, SourceInstagram, SourceGoogle, SourceOther:
		return true
	}
	return false
}

type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Lead is a contact/interest form submission. Only Metadata may change after
// creation, and only by gaining keys.
type Lead struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
	Subject string `json:"subject,omitempty"`

	PropertyID   string `json:"propertyId,omitempty"`
	PropertyCode string `json:"propertyCode,omitempty"`

	Intent Intent `json:"intent,omitempty"`
	Source Source `json:"source,omitempty"`
	UTM    *UTM   `json:"utm,omitempty"`

	ReferralURL string `json:"referralUrl,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`

	AcceptsMarketing *bool `json:"acceptsMarketing,omitempty"`
	AcceptsWhatsApp  *bool `json:"acceptsWhatsapp,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Metadata keys with a meaning for routing or enrichment.
const (
	MetaSkipPrimary = "skipPrimary"
	MetaDeviceType  = "deviceType"
	MetaBrowser     = "browser"
	MetaOS          = "os"
	MetaIPAddress   = "ipAddress"
	MetaTimezone    = "timezone"
	MetaEnrichedAt  = "enrichedAt"
	MetaUserAgent   = "userAgent"
)

// Clone returns a copy whose Metadata map (and optional pointers) are not shared.
func (l Lead) Clone() Lead {
	c := l
	if l.UTM != nil {
		utm := *l.UTM
		c.UTM = &utm
	}
	if l.AcceptsMarketing != nil {
		v := *l.AcceptsMarketing
		c.AcceptsMarketing = &v
	}
	if l.AcceptsWhatsApp != nil {
		v := *l.AcceptsWhatsApp
		c.AcceptsWhatsApp = &v
	}
	c.Metadata = make(map[string]any, len(l.Metadata))
	for k, v := range l.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// SkipPrimary reports whether the caller asked to bypass the primary CRM.
// Accepts a JSON boolean or the string "true".
func (l Lead) SkipPrimary() bool {
	switch v := l.Metadata[MetaSkipPrimary].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// MetaString returns a metadata value when it is a non-empty string.
func (l Lead) MetaString(key string) string {
	if s, ok := l.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// RequestContext carries what the HTTP layer knows about the submitting client.
type RequestContext struct {
	UserAgent    string
	ForwardedFor string
	RemoteAddr   string
	Timezone     string
	ReceivedAt   time.Time
}

// LeadResult is the outcome of one delivery attempt to one sink.
type LeadResult struct {
	Success bool     `json:"success"`
	SinkID  string   `json:"sinkId,omitempty"`
	LeadID  string   `json:"leadId,omitempty"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Queued  bool     `json:"queued,omitempty"`
}
