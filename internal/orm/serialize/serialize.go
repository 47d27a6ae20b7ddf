// Package serialize encodes entities and keys into a compact binary format.
//
// An entity is written as its domain name, entity type name, value count and
// one attribute name and value pair per value, followed by a modified flag
// and, when set, the original values in the same layout. Keys are written as
// domain name, entity type name, primary flag and column name and value
// pairs. Values are msgpack encoded, a foreign key value is the nested
// encoding of the referenced entity.
//
// Decoding resolves the entity definition through a Registry and converts
// every value to the declared type of its attribute.
package serialize

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

var (
	// ErrUnknownAttribute is returned by strict codecs decoding a value of an
	// attribute missing from the entity definition
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrUnknownType is returned when the domain or entity type of encoded
	// data can not be resolved
	ErrUnknownType = errors.New("unknown entity type")
)

// Registry resolves domains by name
type Registry interface {
	Entities(domain schema.DomainType) (*schema.Entities, bool)
}

// DomainRegistry is a Registry of registered domains
type DomainRegistry struct {
	mu      sync.RWMutex
	domains map[schema.DomainType]*schema.Entities
}

// NewRegistry returns a registry holding the given domains
func NewRegistry(domains ...*schema.Entities) *DomainRegistry {
	r := &DomainRegistry{domains: make(map[schema.DomainType]*schema.Entities, len(domains))}
	for _, entities := range domains {
		r.Register(entities)
	}
	return r
}

// Register adds a domain, replacing one registered with the same name
func (r *DomainRegistry) Register(entities *schema.Entities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains[entities.Domain()] = entities
}

// Entities implements Registry
func (r *DomainRegistry) Entities(domain schema.DomainType) (*schema.Entities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities, ok := r.domains[domain]
	return entities, ok
}

// Codec encodes and decodes entities and keys
type Codec struct {
	registry Registry
	strict   bool
}

// Option configures a Codec
type Option func(*Codec)

// Strict makes decoding fail on values of unknown attributes instead of
// dropping them
func Strict(strict bool) Option {
	return func(c *Codec) {
		c.strict = strict
	}
}

// NewCodec returns a codec resolving definitions through registry
func NewCodec(registry Registry, opts ...Option) *Codec {
	c := &Codec{registry: registry}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MarshalEntity encodes e. Foreign key values referencing an entity
// already being encoded are left out, their reference columns still hold
// the key.
func (c *Codec) MarshalEntity(e entity.Entity) ([]byte, error) {
	return c.marshalEntity(e, make(map[entity.Entity]bool))
}

func (c *Codec) marshalEntity(e entity.Entity, path map[entity.Entity]bool) ([]byte, error) {
	path[e] = true
	defer delete(path, e)

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := writeType(enc, e.Type()); err != nil {
		return nil, err
	}
	if err := c.writeEntries(enc, e.Entries(), path); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.Type(), err)
	}
	originals := e.OriginalEntries()
	if err := enc.EncodeBool(len(originals) > 0); err != nil {
		return nil, err
	}
	if len(originals) > 0 {
		if err := c.writeEntries(enc, originals, path); err != nil {
			return nil, fmt.Errorf("failed to encode originals of %s: %w", e.Type(), err)
		}
	}
	return buf.Bytes(), nil
}

func writeType(enc *msgpack.Encoder, entityType schema.EntityType) error {
	if err := enc.EncodeString(entityType.Domain); err != nil {
		return err
	}
	return enc.EncodeString(entityType.Name)
}

func (c *Codec) writeEntries(enc *msgpack.Encoder, entries []entity.Entry, path map[entity.Entity]bool) error {
	included := entries[:0:0]
	for _, entry := range entries {
		if referenced, ok := entry.Value.(entity.Entity); ok && path[referenced] {
			continue
		}
		included = append(included, entry)
	}
	if err := enc.EncodeInt(int64(len(included))); err != nil {
		return err
	}
	for _, entry := range included {
		if err := enc.EncodeString(entry.Attribute.Name()); err != nil {
			return err
		}
		if err := c.writeValue(enc, entry.Value, path); err != nil {
			return fmt.Errorf("attribute %s: %w", entry.Attribute, err)
		}
	}
	return nil
}

func (c *Codec) writeValue(enc *msgpack.Encoder, value any, path map[entity.Entity]bool) error {
	referenced, ok := value.(entity.Entity)
	if !ok {
		return enc.Encode(value)
	}
	data, err := c.marshalEntity(referenced, path)
	if err != nil {
		return err
	}
	return enc.EncodeBytes(data)
}

// UnmarshalEntity decodes an entity encoded by MarshalEntity. The result is
// always a mutable entity.
func (c *Codec) UnmarshalEntity(data []byte) (entity.Entity, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	definition, err := c.readDefinition(dec)
	if err != nil {
		return nil, err
	}
	values, err := c.readEntries(dec, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", definition.Type(), err)
	}
	modified, err := dec.DecodeBool()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", definition.Type(), err)
	}
	var originals []entity.Entry
	if modified {
		if originals, err = c.readEntries(dec, definition); err != nil {
			return nil, fmt.Errorf("failed to decode originals of %s: %w", definition.Type(), err)
		}
	}
	return entity.FromEntries(definition, values, originals)
}

func (c *Codec) readDefinition(dec *msgpack.Decoder) (*schema.EntityDefinition, error) {
	domain, err := dec.DecodeString()
	if err != nil {
		return nil, fmt.Errorf("failed to decode domain: %w", err)
	}
	name, err := dec.DecodeString()
	if err != nil {
		return nil, fmt.Errorf("failed to decode entity type: %w", err)
	}
	entities, ok := c.registry.Entities(schema.DomainType(domain))
	if !ok {
		return nil, fmt.Errorf("%w: domain %s is not registered", ErrUnknownType, domain)
	}
	definition, ok := entities.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not defined in domain %s", ErrUnknownType, name, domain)
	}
	return definition, nil
}

func (c *Codec) readEntries(dec *msgpack.Decoder, definition *schema.EntityDefinition) ([]entity.Entry, error) {
	count, err := dec.DecodeInt()
	if err != nil {
		return nil, err
	}
	entries := make([]entity.Entry, 0, count)
	for i := 0; i < count; i++ {
		name, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		attribute, ok := definition.AttributeByName(name)
		if !ok {
			if c.strict {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, definition.Type(), name)
			}
			if err := dec.Skip(); err != nil {
				return nil, err
			}
			continue
		}
		value, err := c.readValue(dec, attribute)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", attribute.Attribute(), err)
		}
		entries = append(entries, entity.Entry{Attribute: attribute.Attribute(), Value: value})
	}
	return entries, nil
}

func (c *Codec) readValue(dec *msgpack.Decoder, definition schema.AttributeDefinition) (any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	if code == msgpcode.Nil {
		return nil, dec.DecodeNil()
	}
	if _, ok := definition.(*schema.ForeignKeyDefinition); ok {
		data, err := dec.DecodeBytes()
		if err != nil {
			return nil, err
		}
		return c.UnmarshalEntity(data)
	}
	value := reflect.New(definition.Attribute().Type()).Elem()
	if err := dec.DecodeValue(value); err != nil {
		return nil, err
	}
	decoded := value.Interface()
	if err := definition.Attribute().ValidateType(decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// MarshalKey encodes key
func (c *Codec) MarshalKey(key *entity.Key) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := writeType(enc, key.Type()); err != nil {
		return nil, err
	}
	if err := enc.EncodeBool(key.Primary()); err != nil {
		return nil, err
	}
	columns, values := key.Columns(), key.Values()
	if err := enc.EncodeInt(int64(len(columns))); err != nil {
		return nil, err
	}
	for i, column := range columns {
		if err := enc.EncodeString(column.Name()); err != nil {
			return nil, err
		}
		if err := enc.Encode(values[i]); err != nil {
			return nil, fmt.Errorf("failed to encode key of %s: %w", key.Type(), err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalKey decodes a key encoded by MarshalKey
func (c *Codec) UnmarshalKey(data []byte) (*entity.Key, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	definition, err := c.readDefinition(dec)
	if err != nil {
		return nil, err
	}
	primary, err := dec.DecodeBool()
	if err != nil {
		return nil, fmt.Errorf("failed to decode key of %s: %w", definition.Type(), err)
	}
	entries, err := c.readEntries(dec, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key of %s: %w", definition.Type(), err)
	}
	builder := entity.NewKeyBuilder(definition)
	for _, entry := range entries {
		builder.With(entry.Attribute, entry.Value)
	}
	key, err := builder.Build()
	if err != nil {
		return nil, err
	}
	if key.Primary() != primary {
		return nil, schema.ContractViolation("decoded key of %s does not match its primary flag", definition.Type())
	}
	return key, nil
}
