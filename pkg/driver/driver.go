package driver

import (
	"context"
	"strings"

	"github.com/soundprediction/go-graphrank/pkg/types"
)

// Schema identifies the graph elements the analyses read and write: the
// entity label, the unique key property and the relationship kinds treated
// as one undirected relation.
type Schema struct {
	Label             string
	KeyProperty       string
	RelationshipKinds []string
}

// DefaultSchema is the social graph schema: Person nodes keyed by name,
// connected by FRIENDS_WITH or PARTICIPATES_IN.
func DefaultSchema() Schema {
	return Schema{
		Label:             "Person",
		KeyProperty:       "name",
		RelationshipKinds: []string{"FRIENDS_WITH", "PARTICIPATES_IN"},
	}
}

// GraphStore is an open, scoped connection to the property-graph store.
// Each method runs in its own transaction. Callers must Close the store,
// which releases every resource acquired by Connect.
type GraphStore interface {
	// FetchEdges returns one (source, target) key pair per match of
	// (a:Label)-[:KIND_1|KIND_2|...]-(b:Label), in store order. An undirected
	// match yields each relationship once per orientation. Unknown
	// relationship kinds produce an empty result.
	FetchEdges(ctx context.Context, schema Schema) ([]types.EdgePair, error)

	// SetProperty sets attr = value on the entity whose key equals id and
	// reports whether an entity matched. No match is not an error.
	SetProperty(ctx context.Context, schema Schema, id types.EntityID, attr types.Attribute, value any) (bool, error)

	// GetStats counts entities and relationships per kind.
	GetStats(ctx context.Context, schema Schema) (*GraphStats, error)

	// Close releases the connection.
	Close(ctx context.Context) error
}

// Connector opens scoped store connections.
type Connector interface {
	// Connect acquires a connection and verifies that the store is reachable
	// and accepts the credentials.
	Connect(ctx context.Context) (GraphStore, error)
}

// GraphStats holds statistics about the analysed part of the graph.
type GraphStats struct {
	Entities            int64            `json:"entities"`
	RelationshipsByKind map[string]int64 `json:"relationships_by_kind"`
}

// quoteIdent escapes a label, relationship kind or property key for direct
// inclusion in a Cypher statement.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
