package mail

import "time"

type DeadLetterEmailData struct {
	ID           string
	LeadName     string
	PropertyCode string
	Sink         string
	Reason       string
	Attempts     int
	MaxAttempts  int
	Error        string
	CreatedAt    time.Time
}

type AlertSender struct {
	From   string
	To     string
	dialer dialer
}
