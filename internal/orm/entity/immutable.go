package entity

import (
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// immutable is a frozen entity with all caches computed at construction
type immutable struct {
	state

	primaryKey         *Key
	originalPrimaryKey *Key
	referenced         map[string]*Key
	derived            map[string]any
	str                string
}

// Empty returns an immutable entity holding no values
func Empty(definition *schema.EntityDefinition) Entity {
	e := &immutable{
		state: state{
			definition: definition,
			values:     map[string]any{},
		},
	}
	e.init()
	return e
}

// freeze returns an immutable copy of e, freezing referenced entities
func freeze(e Entity) Entity {
	f := &freezer{
		byPointer: make(map[Entity]*immutable),
		byKey:     NewKeyMap[*immutable](),
	}
	result := f.freeze(e)
	for _, frozen := range f.frozen {
		frozen.init()
	}
	return result
}

// freezer copies an entity graph once per entity, identified by pointer and
// by primary key, so cyclic references terminate
type freezer struct {
	byPointer map[Entity]*immutable
	byKey     *KeyMap[*immutable]
	frozen    []*immutable
}

func (f *freezer) freeze(e Entity) *immutable {
	if im, ok := e.(*immutable); ok {
		return im
	}
	if im, ok := f.byPointer[e]; ok {
		return im
	}
	pk := e.PrimaryKey()
	if pk.Primary() && !pk.IsNull() {
		if im, ok := f.byKey.Get(pk); ok {
			f.byPointer[e] = im
			return im
		}
	}
	im := &immutable{
		state: state{
			definition: e.Definition(),
			values:     make(map[string]any),
		},
	}
	f.byPointer[e] = im
	if pk.Primary() && !pk.IsNull() {
		f.byKey.Put(pk, im)
	}
	f.frozen = append(f.frozen, im)
	for _, entry := range e.Entries() {
		im.values[entry.Attribute.Name()] = f.freezeValue(entry.Value)
	}
	for _, entry := range e.OriginalEntries() {
		if im.original == nil {
			im.original = make(map[string]any)
		}
		im.original[entry.Attribute.Name()] = f.freezeValue(entry.Value)
	}
	return im
}

func (f *freezer) freezeValue(value any) any {
	switch v := value.(type) {
	case Entity:
		return f.freeze(v)
	case []byte:
		return append([]byte(nil), v...)
	default:
		return value
	}
}

// init computes the caches, after the whole graph has been frozen
func (im *immutable) init() {
	im.primaryKey = im.buildPrimaryKey(im.currentValue)
	im.originalPrimaryKey = im.buildPrimaryKey(im.originalValue)
	im.primaryKey.Hash()
	im.originalPrimaryKey.Hash()
	for _, fk := range im.definition.ForeignKeys() {
		if im.referenced == nil {
			im.referenced = make(map[string]*Key)
		}
		key := im.referencedKey(fk)
		if key != nil {
			key.Hash()
		}
		im.referenced[fk.ForeignKey().Name()] = key
	}
	for _, def := range im.definition.Attributes() {
		if derived, ok := def.(*schema.DerivedDefinition); ok && derived.Cacheable() {
			if im.derived == nil {
				im.derived = make(map[string]any)
			}
			im.derived[derived.Attribute().Name()] = derived.Compute(sourceValues(im.Get))
		}
	}
	im.str = defaultString(im)
}

func (im *immutable) Get(attribute schema.Attribute) any {
	def := im.attribute(attribute)
	if derived, ok := def.(*schema.DerivedDefinition); ok {
		if value, ok := im.derived[attribute.Name()]; ok {
			return value
		}
		return derived.Compute(sourceValues(im.Get))
	}
	return im.values[attribute.Name()]
}

func (im *immutable) Original(attribute schema.Attribute) any {
	def := im.attribute(attribute)
	if derived, ok := def.(*schema.DerivedDefinition); ok {
		return derived.Compute(sourceValues(im.Original))
	}
	value, _ := im.originalValue(attribute.Name())
	return value
}

func (im *immutable) IsNull(attribute schema.Attribute) bool {
	if fk, ok := attribute.(*schema.ForeignKey); ok {
		key := im.Key(fk)
		return key == nil || key.IsNull()
	}
	return im.Get(attribute) == nil
}

func (im *immutable) Put(attribute schema.Attribute, _ any) (any, error) {
	return nil, notSupported("put "+attribute.Name(), im.Type())
}

func (im *immutable) Remove(attribute schema.Attribute) (any, error) {
	return nil, notSupported("remove "+attribute.Name(), im.Type())
}

func (im *immutable) Revert(attribute schema.Attribute) error {
	return notSupported("revert "+attribute.Name(), im.Type())
}

func (im *immutable) RevertAll() error {
	return notSupported("revert", im.Type())
}

func (im *immutable) Save(attribute schema.Attribute) error {
	return notSupported("save "+attribute.Name(), im.Type())
}

func (im *immutable) SaveAll() error {
	return notSupported("save", im.Type())
}

func (im *immutable) SetAs(Entity) error {
	return notSupported("set as", im.Type())
}

func (im *immutable) ClearPrimaryKey() error {
	return notSupported("clear primary key", im.Type())
}

func (im *immutable) PrimaryKey() *Key {
	return im.primaryKey
}

func (im *immutable) OriginalPrimaryKey() *Key {
	return im.originalPrimaryKey
}

func (im *immutable) Key(foreignKey *schema.ForeignKey) *Key {
	if _, ok := im.definition.ForeignKey(foreignKey); !ok {
		panic(undefined(im.definition, foreignKey))
	}
	return im.referenced[foreignKey.Name()]
}

func (im *immutable) Entity(foreignKey *schema.ForeignKey) Entity {
	if referenced, _ := im.values[foreignKey.Name()].(Entity); referenced != nil {
		return referenced
	}
	key := im.Key(foreignKey)
	if key == nil {
		return nil
	}
	return freeze(FromKey(key))
}

func (im *immutable) Equal(other Entity) bool {
	if other == nil || other.Type() != im.Type() {
		return false
	}
	return Entity(im) == other || im.primaryKey.Equal(other.PrimaryKey())
}

func (im *immutable) ValuesEqual(other Entity) bool {
	return im.valuesEqual(other)
}

func (im *immutable) Mutable() bool {
	return false
}

func (im *immutable) Copy() Entity {
	values := copyMap(im.values)
	if values == nil {
		values = make(map[string]any)
	}
	return newMutable(im.definition, values, copyMap(im.original))
}

func (im *immutable) DeepCopy() Entity {
	return deepCopy(im)
}

func (im *immutable) Immutable() Entity {
	return im
}

func (im *immutable) String() string {
	return im.str
}
