package driver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/soundprediction/go-graphrank/pkg/types"
)

// MemoryStore is an in-process property graph implementing Connector. It
// mirrors the Neo4j adapter's observable behaviour: undirected matches return
// both orientations of a relationship, unknown keys leave writes unmatched,
// and every Connect opens a session that must be closed.
type MemoryStore struct {
	mu sync.Mutex

	entities map[types.EntityID]map[string]any
	rels     []memoryRel

	connectErr  error
	fetchErr    error
	writeErr    error
	writesLeft  int
	writeFaults bool

	opened int
	closed int
}

type memoryRel struct {
	source types.EntityID
	target types.EntityID
	kind   string
}

var _ Connector = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: make(map[types.EntityID]map[string]any)}
}

// AddEntity adds an entity with the given key if it does not exist yet.
func (m *MemoryStore) AddEntity(id types.EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addEntityLocked(id)
}

func (m *MemoryStore) addEntityLocked(id types.EntityID) {
	if _, ok := m.entities[id]; ok {
		return
	}
	m.entities[id] = make(map[string]any)
}

// AddRelationship adds a relationship of the given kind, creating missing
// endpoints.
func (m *MemoryStore) AddRelationship(source types.EntityID, kind string, target types.EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addEntityLocked(source)
	m.addEntityLocked(target)
	m.rels = append(m.rels, memoryRel{source: source, target: target, kind: kind})
}

// Property returns an entity attribute.
func (m *MemoryStore) Property(id types.EntityID, attr types.Attribute) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	props, ok := m.entities[id]
	if !ok {
		return nil, false
	}
	value, ok := props[string(attr)]
	return value, ok
}

// FailConnect makes every following Connect fail with err; nil clears it.
func (m *MemoryStore) FailConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// FailFetch makes every following FetchEdges fail with err; nil clears it.
func (m *MemoryStore) FailFetch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// FailWritesAfter lets n more writes succeed, then fails every write with
// err. A nil err clears the fault.
func (m *MemoryStore) FailWritesAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
	m.writesLeft = n
	m.writeFaults = err != nil
}

// Sessions reports how many sessions were opened and closed.
func (m *MemoryStore) Sessions() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed
}

// Connect implements Connector.
func (m *MemoryStore) Connect(ctx context.Context) (GraphStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: connect: %w", types.ErrConnection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	m.opened++
	return &memorySession{store: m}, nil
}

type memorySession struct {
	store  *MemoryStore
	closed bool
}

var errSessionClosed = errors.New("session closed")

func (s *memorySession) check(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("%w: %w", types.ErrConnection, errSessionClosed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrConnection, err)
	}
	return nil
}

func (s *memorySession) FetchEdges(ctx context.Context, schema Schema) ([]types.EdgePair, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}

	edges := []types.EdgePair{}
	for _, rel := range m.rels {
		if !slices.Contains(schema.RelationshipKinds, rel.kind) {
			continue
		}
		edges = append(edges, types.EdgePair{Source: rel.source, Target: rel.target})
		if rel.source != rel.target {
			edges = append(edges, types.EdgePair{Source: rel.target, Target: rel.source})
		}
	}
	return edges, nil
}

func (s *memorySession) SetProperty(ctx context.Context, _ Schema, id types.EntityID, attr types.Attribute, value any) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeFaults {
		if m.writesLeft <= 0 {
			return false, m.writeErr
		}
		m.writesLeft--
	}

	props, ok := m.entities[id]
	if !ok {
		return false, nil
	}
	props[string(attr)] = value
	return true, nil
}

func (s *memorySession) GetStats(ctx context.Context, schema Schema) (*GraphStats, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &GraphStats{
		Entities:            int64(len(m.entities)),
		RelationshipsByKind: make(map[string]int64, len(schema.RelationshipKinds)),
	}
	for _, kind := range schema.RelationshipKinds {
		stats.RelationshipsByKind[kind] = 0
	}
	for _, rel := range m.rels {
		if _, ok := stats.RelationshipsByKind[rel.kind]; ok {
			stats.RelationshipsByKind[rel.kind]++
		}
	}
	return stats, nil
}

func (s *memorySession) Close(context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.closed++
	return nil
}
