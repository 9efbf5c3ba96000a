package config

// APIConfig enables the read-only HTTP API when Addr is set.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token is required as a bearer token when set.
	Token string `json:"token"`
}
