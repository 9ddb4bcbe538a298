package httpgen

import "time"

const (
	providerName       = "httpgen"
	defaultBaseURL     = "http://localhost:9090/v1"
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxPages    = 5
	maxErrorBody       = 512
)
