package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soundprediction/go-graphrank/pkg/config"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// Neo4jDriver wraps a Neo4j driver (connection pool) for one database.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver creates a new Neo4j driver instance. No connection is made
// until the driver is used; an unparsable URI wraps types.ErrConfiguration.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create neo4j driver: %w", types.ErrConfiguration, err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jDriver{
		client:   client,
		database: database,
	}, nil
}

// VerifyConnectivity checks that the server is reachable and accepts the
// credentials.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return classify("verify connectivity", n.client.VerifyConnectivity(ctx))
}

// Session opens a session on the configured database. Closing the returned
// store also closes the driver when owned is true.
func (n *Neo4jDriver) Session(ctx context.Context, owned bool) *Neo4jSession {
	return &Neo4jSession{
		driver:  n,
		session: n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database}),
		owned:   owned,
	}
}

// Close closes the Neo4j driver.
func (n *Neo4jDriver) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// Neo4jSession implements GraphStore on a single Neo4j session.
type Neo4jSession struct {
	driver  *Neo4jDriver
	session neo4j.SessionWithContext
	owned   bool
}

var _ GraphStore = (*Neo4jSession)(nil)

// FetchEdges implements GraphStore.
func (s *Neo4jSession) FetchEdges(ctx context.Context, schema Schema) ([]types.EdgePair, error) {
	query := fetchEdgesQuery(schema)

	result, err := s.session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		var edges []types.EdgePair
		for res.Next(ctx) {
			edge, err := edgeFromRecord(res.Record())
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, classify("fetch edges", err)
	}

	edges, _ := result.([]types.EdgePair)
	if edges == nil {
		edges = []types.EdgePair{}
	}
	return edges, nil
}

// fetchEdgesQuery builds the extraction statement. Entities without a key
// cannot be written back, so rows with a null key are not returned.
func fetchEdgesQuery(schema Schema) string {
	kinds := make([]string, len(schema.RelationshipKinds))
	for i, kind := range schema.RelationshipKinds {
		kinds[i] = quoteIdent(kind)
	}
	label := quoteIdent(schema.Label)
	key := quoteIdent(schema.KeyProperty)

	return fmt.Sprintf(`
		MATCH (a:%[1]s)-[:%[2]s]-(b:%[1]s)
		WHERE a.%[3]s IS NOT NULL AND b.%[3]s IS NOT NULL
		RETURN a.%[3]s AS source, b.%[3]s AS target
	`, label, strings.Join(kinds, "|"), key)
}

// recordGetter is the part of *db.Record used to decode rows.
type recordGetter interface {
	Get(key string) (any, bool)
}

// edgeFromRecord validates one result row into a typed pair.
func edgeFromRecord(record recordGetter) (types.EdgePair, error) {
	source, err := stringField(record, "source")
	if err != nil {
		return types.EdgePair{}, err
	}
	target, err := stringField(record, "target")
	if err != nil {
		return types.EdgePair{}, err
	}
	return types.EdgePair{Source: types.EntityID(source), Target: types.EntityID(target)}, nil
}

func stringField(record recordGetter, key string) (string, error) {
	value, found := record.Get(key)
	if !found {
		return "", fmt.Errorf("%w: record has no %q column", types.ErrQuery, key)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: column %q holds %T, want string", types.ErrQuery, key, value)
	}
	return str, nil
}

// SetProperty implements GraphStore.
func (s *Neo4jSession) SetProperty(ctx context.Context, schema Schema, id types.EntityID, attr types.Attribute, value any) (bool, error) {
	query := fmt.Sprintf(`
		MATCH (p:%s {%s: $key})
		SET p.%s = $value
		RETURN count(p) AS matched
	`, quoteIdent(schema.Label), quoteIdent(schema.KeyProperty), quoteIdent(string(attr)))

	result, err := s.session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"key":   string(id),
			"value": value,
		})
		if err != nil {
			return nil, err
		}

		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		matched, _ := record.Get("matched")
		return matched, nil
	})
	if err != nil {
		return false, classify(fmt.Sprintf("set %s on %q", attr, id), err)
	}

	count, _ := result.(int64)
	return count > 0, nil
}

// GetStats implements GraphStore.
func (s *Neo4jSession) GetStats(ctx context.Context, schema Schema) (*GraphStats, error) {
	label := quoteIdent(schema.Label)

	result, err := s.session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		stats := &GraphStats{RelationshipsByKind: make(map[string]int64)}

		entities, err := countQuery(ctx, tx, fmt.Sprintf("MATCH (p:%s) RETURN count(p) AS total", label))
		if err != nil {
			return nil, err
		}
		stats.Entities = entities

		for _, kind := range schema.RelationshipKinds {
			total, err := countQuery(ctx, tx, fmt.Sprintf(
				"MATCH (:%[1]s)-[r:%[2]s]->(:%[1]s) RETURN count(r) AS total", label, quoteIdent(kind)))
			if err != nil {
				return nil, err
			}
			stats.RelationshipsByKind[kind] = total
		}
		return stats, nil
	})
	if err != nil {
		return nil, classify("get stats", err)
	}

	return result.(*GraphStats), nil
}

func countQuery(ctx context.Context, tx neo4j.ManagedTransaction, query string) (int64, error) {
	res, err := tx.Run(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	total, _ := record.Get("total")
	count, _ := total.(int64)
	return count, nil
}

// Close closes the session and, when owned, the driver. Both are attempted
// even if the first fails.
func (s *Neo4jSession) Close(ctx context.Context) error {
	err := s.session.Close(ctx)
	if s.owned {
		if derr := s.driver.Close(ctx); err == nil {
			err = derr
		}
	}
	return err
}

// Neo4jConnector opens a fresh driver and session per Connect call, so every
// extraction or write phase holds the connection only for its own duration.
type Neo4jConnector struct {
	cfg config.DatabaseConfig
}

// NewNeo4jConnector creates a connector for the given connection parameters.
func NewNeo4jConnector(cfg config.DatabaseConfig) *Neo4jConnector {
	return &Neo4jConnector{cfg: cfg}
}

// Connect implements Connector.
func (c *Neo4jConnector) Connect(ctx context.Context) (GraphStore, error) {
	d, err := NewNeo4jDriver(c.cfg.URI, c.cfg.Username, c.cfg.Password, c.cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := d.VerifyConnectivity(ctx); err != nil {
		_ = d.Close(ctx)
		return nil, err
	}

	return d.Session(ctx, true), nil
}
