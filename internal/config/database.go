package config

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL            string
	Driver         string
	MigrateOnStart bool
}

// GetConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return c.URL
}

// InMemory reports whether the process keeps its data in memory
func (c *DatabaseConfig) InMemory() bool {
	return c.Driver == DriverMemory
}
