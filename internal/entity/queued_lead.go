package entity

import "time"

// Dead-letter reasons.
const (
	DeadReasonExhausted = "exhausted"
	DeadReasonRejected  = "rejected"
)

// QueuedLead is a retry-queue entry. It is owned by the queue; callers only
// ever see copies.
type QueuedLead struct {
	ID           string    `json:"id"`
	Lead         Lead      `json:"lead"`
	TargetSinkID string    `json:"targetSinkId"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"maxAttempts"`
	LastAttempt  time.Time `json:"lastAttempt"`
	CreatedAt    time.Time `json:"createdAt"`
	Error        string    `json:"error,omitempty"`

	// DeadReason is set once the entry left the active set.
	DeadReason string `json:"deadReason,omitempty"`
}

func (q QueuedLead) Exhausted() bool {
	return q.Attempts >= q.MaxAttempts
}

func (q QueuedLead) Dead() bool {
	return q.DeadReason != ""
}

// FeatureFlags is an immutable snapshot of the routing switches.
type FeatureFlags struct {
	SalesCRMEnabled  bool `json:"salesCrmEnabled"`
	MarketingEnabled bool `json:"marketingEnabled"`
	SyncSellers      bool `json:"syncSellers"`
	SkipLegacyCRM    bool `json:"skipLegacyCrm"`
}

// RoutableSinks lists every sink these flags can send a lead to. Marketing is
// reachable whenever it is enabled, through a lead's skipPrimary metadata.
func (f FeatureFlags) RoutableSinks() []string {
	var ids []string
	if !f.SkipLegacyCRM {
		ids = append(ids, SinkPropertyCRM)
		if f.SalesCRMEnabled {
			ids = append(ids, SinkSalesCRM)
		}
	}
	if f.MarketingEnabled {
		ids = append(ids, SinkMarketing)
	}
	return ids
}

// FeatureFlagSource hands out the current flag snapshot.
type FeatureFlagSource interface {
	Load() FeatureFlags
}

// StaticFlags is a FeatureFlagSource that never changes.
type StaticFlags FeatureFlags

func (f StaticFlags) Load() FeatureFlags { return FeatureFlags(f) }
