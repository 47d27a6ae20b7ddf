package schema

import (
	"fmt"
	"sync"
)

// Domain collects the entity definitions of a domain type
type Domain struct {
	domainType DomainType
	entities   *Entities
}

// NewDomain creates an empty domain
func NewDomain(domainType DomainType) *Domain {
	return &Domain{
		domainType: domainType,
		entities: &Entities{
			domainType:  domainType,
			definitions: make(map[string]*EntityDefinition),
		},
	}
}

// Type returns the domain type
func (d *Domain) Type() DomainType {
	return d.domainType
}

// Add builds and registers an entity definition. Foreign keys may only
// reference entity types already added, or the entity type itself.
func (d *Domain) Add(builder *DefinitionBuilder) error {
	return d.entities.add(builder)
}

// Entities returns the registered entity definitions
func (d *Domain) Entities() *Entities {
	return d.entities
}

// Entities is a registry of the entity definitions of one domain
type Entities struct {
	domainType  DomainType
	definitions map[string]*EntityDefinition
	order       []EntityType
	mu          sync.RWMutex
}

func (e *Entities) add(builder *DefinitionBuilder) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entityType := builder.entityType
	if entityType.Domain != string(e.domainType) {
		return ContractViolation("entity type %s belongs to domain %s, not %s", entityType, entityType.Domain, e.domainType)
	}
	if _, exists := e.definitions[entityType.Name]; exists {
		return fmt.Errorf("%w: entity type %s is already defined", ErrContractViolation, entityType)
	}

	definition, err := builder.build(func(referenced EntityType) (*EntityDefinition, bool) {
		if referenced.Domain != string(e.domainType) {
			return nil, false
		}
		def, ok := e.definitions[referenced.Name]
		return def, ok
	})
	if err != nil {
		return fmt.Errorf("definition of %s failed: %w", entityType, err)
	}

	e.definitions[entityType.Name] = definition
	e.order = append(e.order, entityType)
	return nil
}

// Domain returns the domain type
func (e *Entities) Domain() DomainType {
	return e.domainType
}

// Definition returns the definition of the given entity type
func (e *Entities) Definition(entityType EntityType) (*EntityDefinition, bool) {
	if entityType.Domain != string(e.domainType) {
		return nil, false
	}
	return e.ByName(entityType.Name)
}

// ByName returns the definition of the entity type with the given name
func (e *Entities) ByName(name string) (*EntityDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	def, ok := e.definitions[name]
	return def, ok
}

// MustDefinition returns the definition of the given entity type, panicking if undefined
func (e *Entities) MustDefinition(entityType EntityType) *EntityDefinition {
	def, ok := e.Definition(entityType)
	if !ok {
		panic(ContractViolation("undefined entity type: %s", entityType))
	}
	return def
}

// All returns the definitions in registration order
func (e *Entities) All() []*EntityDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*EntityDefinition, 0, len(e.order))
	for _, entityType := range e.order {
		result = append(result, e.definitions[entityType.Name])
	}
	return result
}

// DependencyOrder returns the definitions with referenced entity types before
// the entity types referencing them, safe for creating tables
func (e *Entities) DependencyOrder() ([]*EntityDefinition, error) {
	all := e.All()
	graph := newDependencyGraph()
	for _, def := range all {
		graph.addNode(def.entityType.Name)
		for _, fk := range def.foreignKeys {
			graph.addEdge(def.entityType.Name, fk.foreignKey.ReferencedType().Name)
		}
	}

	names, err := graph.topologicalSort()
	if err != nil {
		return nil, err
	}

	result := make([]*EntityDefinition, 0, len(names))
	for _, name := range names {
		def, _ := e.ByName(name)
		result = append(result, def)
	}
	return result, nil
}

// Stats summarizes the registered definitions
type Stats struct {
	EntityTypes int
	Attributes  int
	ForeignKeys int
}

// Stats returns statistics about the registered definitions
func (e *Entities) Stats() Stats {
	var stats Stats
	for _, def := range e.All() {
		stats.EntityTypes++
		stats.Attributes += len(def.attributes)
		stats.ForeignKeys += len(def.foreignKeys)
	}
	return stats
}
