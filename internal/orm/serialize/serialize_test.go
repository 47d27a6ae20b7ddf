package serialize_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/conduit-lang/entityorm/internal/demo"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
	"github.com/conduit-lang/entityorm/internal/orm/serialize"
)

func put(t *testing.T, e entity.Entity, attribute schema.Attribute, value any) {
	t.Helper()
	_, err := e.Put(attribute, value)
	require.NoError(t, err)
}

func employee(t *testing.T, entities *schema.Entities) entity.Entity {
	t.Helper()
	dept := entity.New(entities.MustDefinition(demo.DeptType))
	put(t, dept, demo.DeptID, 20)
	put(t, dept, demo.DeptName, "RESEARCH")
	put(t, dept, demo.DeptLoc, "DALLAS")

	emp := entity.New(entities.MustDefinition(demo.EmpType))
	put(t, emp, demo.EmpID, 7788)
	put(t, emp, demo.EmpName, "SCOTT")
	put(t, emp, demo.EmpHiredate, time.Date(1987, 4, 19, 0, 0, 0, 0, time.UTC))
	put(t, emp, demo.EmpSalary, 3000.0)
	put(t, emp, demo.EmpDeptFK, dept)
	return emp
}

func TestEntityRoundTrip(t *testing.T) {
	entities := demo.MustEntities()
	codec := serialize.NewCodec(serialize.NewRegistry(entities))

	emp := employee(t, entities)
	put(t, emp, demo.EmpSalary, 3500.0)
	put(t, emp, demo.EmpName, "ADAMS")

	data, err := codec.MarshalEntity(emp)
	require.NoError(t, err)

	decoded, err := codec.UnmarshalEntity(data)
	require.NoError(t, err)

	assert.Equal(t, demo.EmpType, decoded.Type())
	assert.True(t, decoded.Equal(emp))
	assert.Equal(t, "ADAMS", demo.EmpName.Get(decoded))
	assert.Equal(t, 3500.0, demo.EmpSalary.Get(decoded))
	assert.True(t, demo.EmpHiredate.Get(emp).Equal(demo.EmpHiredate.Get(decoded)))
	assert.Equal(t, 20, demo.EmpDeptNo.Get(decoded))
	assert.True(t, decoded.IsNull(demo.EmpCommission))

	assert.True(t, decoded.Modified())
	assert.True(t, decoded.IsModified(demo.EmpSalary))
	assert.Equal(t, 3000.0, decoded.Original(demo.EmpSalary))
	assert.Equal(t, "SCOTT", decoded.Original(demo.EmpName))

	require.True(t, decoded.Loaded(demo.EmpDeptFK))
	dept := decoded.Entity(demo.EmpDeptFK)
	assert.Equal(t, "RESEARCH", demo.DeptName.Get(dept))
	assert.Equal(t, "DALLAS", demo.DeptLoc.Get(dept))
	assert.False(t, dept.Modified())
}

func TestImmutableCycle(t *testing.T) {
	entities := demo.MustEntities()
	codec := serialize.NewCodec(serialize.NewRegistry(entities))

	scott := employee(t, entities)
	king := employee(t, entities)
	put(t, king, demo.EmpID, 7839)
	put(t, king, demo.EmpName, "KING")
	put(t, scott, demo.EmpMgrFK, king)
	put(t, king, demo.EmpMgrFK, scott)

	data, err := codec.MarshalEntity(scott.Immutable())
	require.NoError(t, err)

	decoded, err := codec.UnmarshalEntity(data)
	require.NoError(t, err)
	require.True(t, decoded.Loaded(demo.EmpMgrFK))

	manager := decoded.Entity(demo.EmpMgrFK)
	assert.Equal(t, "KING", demo.EmpName.Get(manager))
	assert.False(t, manager.Loaded(demo.EmpMgrFK))
	assert.Equal(t, 7788, demo.EmpMgr.Get(manager))
	assert.Equal(t, 7788, manager.Key(demo.EmpMgrFK).Value())
}

func TestUnknownAttribute(t *testing.T) {
	entities := demo.MustEntities()
	registry := serialize.NewRegistry(entities)

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.EncodeString(string(demo.Domain)))
	require.NoError(t, enc.EncodeString("dept"))
	require.NoError(t, enc.EncodeInt(2))
	require.NoError(t, enc.EncodeString("deptno"))
	require.NoError(t, enc.Encode(10))
	require.NoError(t, enc.EncodeString("budget"))
	require.NoError(t, enc.Encode(map[string]any{"year": 2024, "amount": 1.5}))
	require.NoError(t, enc.EncodeBool(false))
	data := buf.Bytes()

	_, err := serialize.NewCodec(registry, serialize.Strict(true)).UnmarshalEntity(data)
	assert.ErrorIs(t, err, serialize.ErrUnknownAttribute)

	decoded, err := serialize.NewCodec(registry).UnmarshalEntity(data)
	require.NoError(t, err)
	assert.Equal(t, 10, demo.DeptID.Get(decoded))
	assert.Len(t, decoded.Entries(), 1)
}

func TestDecodeErrors(t *testing.T) {
	entities := demo.MustEntities()
	codec := serialize.NewCodec(serialize.NewRegistry(entities))

	encode := func(domain, entityType string, name string, value any) []byte {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		require.NoError(t, enc.EncodeString(domain))
		require.NoError(t, enc.EncodeString(entityType))
		require.NoError(t, enc.EncodeInt(1))
		require.NoError(t, enc.EncodeString(name))
		require.NoError(t, enc.Encode(value))
		require.NoError(t, enc.EncodeBool(false))
		return buf.Bytes()
	}

	_, err := codec.UnmarshalEntity(encode("hr", "dept", "deptno", 10))
	assert.ErrorIs(t, err, serialize.ErrUnknownType)

	_, err = codec.UnmarshalEntity(encode(string(demo.Domain), "salgrade", "grade", 1))
	assert.ErrorIs(t, err, serialize.ErrUnknownType)

	_, err = codec.UnmarshalEntity(encode(string(demo.Domain), "dept", "dname", 10))
	assert.Error(t, err)

	_, err = codec.UnmarshalEntity(encode(string(demo.Domain), "dept", "annual", 10)[:8])
	assert.Error(t, err)
}

func TestKeyRoundTrip(t *testing.T) {
	entities := demo.MustEntities()
	codec := serialize.NewCodec(serialize.NewRegistry(entities))

	master := entities.MustDefinition(demo.MasterType)
	key, err := entity.KeyOf(master, 1, 2)
	require.NoError(t, err)

	data, err := codec.MarshalKey(key)
	require.NoError(t, err)
	decoded, err := codec.UnmarshalKey(data)
	require.NoError(t, err)
	assert.True(t, decoded.Primary())
	assert.True(t, key.Equal(decoded))
	assert.Equal(t, key.Hash(), decoded.Hash())

	detail := entities.MustDefinition(demo.DetailType)
	byCode, err := entity.NewKeyBuilder(detail).With(demo.DetailMasterCode, 7).Build()
	require.NoError(t, err)
	data, err = codec.MarshalKey(byCode)
	require.NoError(t, err)
	decoded, err = codec.UnmarshalKey(data)
	require.NoError(t, err)
	assert.False(t, decoded.Primary())
	assert.Equal(t, 7, decoded.Get(demo.DetailMasterCode))

	null, err := entity.KeyOf(entities.MustDefinition(demo.DeptType), nil)
	require.NoError(t, err)
	data, err = codec.MarshalKey(null)
	require.NoError(t, err)
	decoded, err = codec.UnmarshalKey(data)
	require.NoError(t, err)
	assert.True(t, decoded.IsNull())
}

func TestRegistry(t *testing.T) {
	registry := serialize.NewRegistry()
	_, ok := registry.Entities(demo.Domain)
	assert.False(t, ok)

	entities := demo.MustEntities()
	registry.Register(entities)
	found, ok := registry.Entities(demo.Domain)
	require.True(t, ok)
	assert.Same(t, entities, found)
}
