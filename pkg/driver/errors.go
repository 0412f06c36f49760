package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// classify wraps a driver error with the matching sentinel:
// types.ErrConnection for unreachable servers, rejected credentials,
// transient server states and exhausted retries; types.ErrQuery for
// statements the server refused. Errors already carrying a sentinel are only
// annotated.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, types.ErrConnection) || errors.Is(err, types.ErrQuery) || errors.Is(err, types.ErrConfiguration) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		switch {
		case strings.HasPrefix(neoErr.Code, "Neo.ClientError.Security."),
			strings.HasPrefix(neoErr.Code, "Neo.TransientError."):
			return fmt.Errorf("%w: %s: %w", types.ErrConnection, op, err)
		default:
			return fmt.Errorf("%w: %s: %w", types.ErrQuery, op, err)
		}
	}

	if neo4j.IsUsageError(err) {
		return fmt.Errorf("%w: %s: %w", types.ErrQuery, op, err)
	}

	// Connectivity failures, retry exhaustion, context expiry and plain
	// network errors all mean the store could not be used.
	if neo4j.IsConnectivityError(err) || neo4j.IsTransactionExecutionLimit(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", types.ErrConnection, op, err)
	}

	return fmt.Errorf("%w: %s: %w", types.ErrConnection, op, err)
}
