package model

import "time"

// ClientProfile has the user defaults used when a flag is not set.
// Zero values mean unset.
type ClientProfile struct {
	ServerURL      string
	APIType        string
	APIKey         string
	SourceLang     string
	TargetLang     string
	Concurrency    int
	OutputDir      string
	ReconnectDelay time.Duration
	RequestTimeout time.Duration
}
