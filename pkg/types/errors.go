package types

import "errors"

var (
	// ErrConfiguration is returned for missing or invalid connection
	// parameters. It is raised before any store access.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnection is returned when the store is unreachable or rejects the
	// credentials.
	ErrConnection = errors.New("store connection error")

	// ErrQuery is returned when the store rejects a statement.
	ErrQuery = errors.New("store query error")
)
