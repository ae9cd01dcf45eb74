package core

import (
	"github.com/git-pkgs/npm2maven/client"
)

// Type aliases so registry implementations only import core.
type (
	RateLimiter = client.RateLimiter
	Client      = client.Client
	Option      = client.Option
	URLBuilder  = client.URLBuilder
)

// Function aliases.
var (
	DefaultClient         = client.DefaultClient
	NewClient             = client.NewClient
	WithTimeout           = client.WithTimeout
	WithMaxRetries        = client.WithMaxRetries
	WithRequestsPerSecond = client.WithRequestsPerSecond
	WithToken             = client.WithToken
	BuildURLs             = client.BuildURLs
)
