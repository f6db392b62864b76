package constants

// Environment selects runtime behavior such as log formatting.
type Environment string

const (
	// Production emits machine-readable JSON logs.
	Production Environment = "production"
	// Development emits colored human-readable logs.
	Development Environment = "development"
)
