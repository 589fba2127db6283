package observability

// Config configures the Prometheus metrics surface.
type Config struct {
	// Enabled turns on metrics collection. Default: false.
	Enabled bool
	// Namespace prefixes every metric name. Default: "regender".
	Namespace string
}

// SetDefaults fills in a zero-valued Config.
func (c *Config) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "regender"
	}
}
