package catalog

import "errors"

var (
	ErrInvalidCatalog  = errors.New("catalog: invalid catalog")
	ErrCatalogNotFound = errors.New("catalog: catalog source not found")
	ErrFailedToLoad    = errors.New("catalog: failed to load catalog")
	ErrUpstream        = errors.New("catalog: upstream lookup failed")

	ErrFailedToConnect         = errors.New("catalog: failed to connect to the database")
	ErrFailedToParseDBConfig   = errors.New("catalog: failed to parse db config")
	ErrFailedToApplyMigrations = errors.New("catalog: failed to apply migrations")
	ErrFailedToImport          = errors.New("catalog: failed to import catalog")

	ErrFailedToParseRedisURL = errors.New("catalog: failed to parse redis connection string")
	ErrRedisNotReady         = errors.New("catalog: redis did not become ready within the given time period")

	ErrMissingS3Config     = errors.New("catalog: bucket and region are required")
	ErrMissingPaddleConfig = errors.New("catalog: paddle API key is required")
	ErrMissingBaseURL      = errors.New("catalog: resolver base URL is required")
)
