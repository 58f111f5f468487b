package ratelimit

// SessionCreateConfig contains limits for the unauthenticated session endpoint
type SessionCreateConfig struct {
	Limit         int64 // Sessions allowed per window per client IP
	WindowSeconds int   // Time window in seconds
}

// DefaultSessionCreateConfig is the default session creation limit
var DefaultSessionCreateConfig = SessionCreateConfig{
	Limit:         3,
	WindowSeconds: 60,
}

// GlobalConfig contains global service-wide limits
type GlobalConfig struct {
	Limit         int64 // Total requests per window (all clients)
	WindowSeconds int   // Time window
}

// DefaultGlobalConfig is the default global configuration
var DefaultGlobalConfig = GlobalConfig{
	Limit:         300,
	WindowSeconds: 60,
}
