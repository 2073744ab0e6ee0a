package postgres

// AccountStoreConfig holds configuration for the PostgreSQL account store.
// Pool configuration is handled separately via PoolConfig.
type AccountStoreConfig struct {
	// AutoMigrate applies pending schema migrations when the store is created.
	AutoMigrate bool

	// QueryTimeoutSeconds bounds each store operation.
	// Default: 10 seconds. Set to a negative value to rely on context timeouts only.
	QueryTimeoutSeconds int32
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *AccountStoreConfig) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10
	}
}
