package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityorm/internal/demo"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

func TestKeyOf(t *testing.T) {
	entities := demo.MustEntities()
	dept := entities.MustDefinition(demo.DeptType)

	key, err := entity.KeyOf(dept, 10)
	require.NoError(t, err)
	assert.True(t, key.Primary())
	assert.True(t, key.Single())
	assert.False(t, key.Composite())
	assert.False(t, key.IsNull())
	assert.Equal(t, 10, key.Value())
	assert.Equal(t, 10, key.Hash())
	assert.True(t, schema.SameAttribute(demo.DeptID, key.Column()))
	assert.Equal(t, "deptno=10", key.String())

	_, err = entity.KeyOf(dept, "10")
	assert.ErrorIs(t, err, schema.ErrContractViolation)
	_, err = entity.KeyOf(dept, 10, 20)
	assert.ErrorIs(t, err, schema.ErrContractViolation)
	_, err = entity.KeyOf(entities.MustDefinition(demo.LogType), "entry")
	assert.ErrorIs(t, err, schema.ErrContractViolation)
}

func TestNullKey(t *testing.T) {
	entities := demo.MustEntities()
	dept := entities.MustDefinition(demo.DeptType)

	key, err := entity.KeyOf(dept, nil)
	require.NoError(t, err)
	other, err := entity.KeyOf(dept, nil)
	require.NoError(t, err)

	assert.True(t, key.IsNull())
	assert.Equal(t, entity.NullHash, key.Hash())
	assert.True(t, key.Equal(key))
	assert.False(t, key.Equal(other))
	assert.False(t, other.Equal(key))
	assert.Equal(t, "deptno=null", key.String())
}

func TestCompositeKey(t *testing.T) {
	entities := demo.MustEntities()
	master := entities.MustDefinition(demo.MasterType)

	key, err := entity.KeyOf(master, 1, 2)
	require.NoError(t, err)
	assert.True(t, key.Composite())
	assert.Equal(t, 3, key.Hash())
	assert.Equal(t, []any{1, 2}, key.Values())
	assert.Equal(t, 2, key.Get(demo.MasterID2))
	assert.Nil(t, key.Get(demo.MasterCode))
	assert.True(t, key.Contains(demo.MasterID1))
	assert.False(t, key.Contains(demo.MasterCode))
	assert.Equal(t, "id=1, id_2=2", key.String())
	assert.Panics(t, func() { key.Value() })
	assert.Panics(t, func() { key.Column() })

	built, err := entity.NewKeyBuilder(master).
		With(demo.MasterID2, 2).
		With(demo.MasterID1, 1).
		Build()
	require.NoError(t, err)
	assert.True(t, built.Primary())
	assert.Equal(t, []any{1, 2}, built.Values())
	assert.True(t, key.Equal(built))
	assert.True(t, built.Equal(key))
	assert.Equal(t, key.Hash(), built.Hash())

	different, err := entity.KeyOf(master, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, key.Hash(), different.Hash())
	assert.False(t, key.Equal(different))

	partial, err := entity.KeyOf(master, 1, nil)
	require.NoError(t, err)
	assert.True(t, partial.IsNull())
	assert.Equal(t, entity.NullHash, partial.Hash())
}

func TestKeyBuilder(t *testing.T) {
	entities := demo.MustEntities()
	dept := entities.MustDefinition(demo.DeptType)
	master := entities.MustDefinition(demo.MasterType)

	single, err := entity.NewKeyBuilder(dept).With(demo.DeptID, 10).Build()
	require.NoError(t, err)
	primary, err := entity.KeyOf(dept, 10)
	require.NoError(t, err)
	assert.True(t, single.Primary())
	assert.True(t, single.Equal(primary))
	assert.True(t, primary.Equal(single))

	code, err := entity.NewKeyBuilder(master).With(demo.MasterCode, 3).Build()
	require.NoError(t, err)
	assert.False(t, code.Primary())
	assert.True(t, code.Single())
	assert.Equal(t, 3, code.Hash())

	name, err := entity.NewKeyBuilder(dept).With(demo.DeptName, "SALES").Build()
	require.NoError(t, err)
	other, err := entity.NewKeyBuilder(dept).With(demo.DeptName, "SALES").Build()
	require.NoError(t, err)
	assert.Equal(t, name.Hash(), other.Hash())
	assert.True(t, name.Equal(other))

	_, err = entity.NewKeyBuilder(dept).With(demo.EmpID, 1).Build()
	assert.ErrorIs(t, err, schema.ErrContractViolation)
	_, err = entity.NewKeyBuilder(dept).With(demo.DeptID, "10").Build()
	assert.ErrorIs(t, err, schema.ErrContractViolation)
}

func TestKeyMap(t *testing.T) {
	entities := demo.MustEntities()
	dept := entities.MustDefinition(demo.DeptType)

	key := func(id int) *entity.Key {
		k, err := entity.KeyOf(dept, id)
		require.NoError(t, err)
		return k
	}

	m := entity.NewKeyMap[string]()
	m.Put(key(10), "ACCOUNTING")
	m.Put(key(20), "RESEARCH")
	m.Put(key(10), "SALES")

	assert.Equal(t, 2, m.Len())
	value, ok := m.Get(key(10))
	assert.True(t, ok)
	assert.Equal(t, "SALES", value)
	assert.Equal(t, []string{"SALES", "RESEARCH"}, m.Values())

	_, ok = m.Get(key(30))
	assert.False(t, ok)

	m.Delete(key(10))
	assert.Equal(t, 1, m.Len())
	require.Len(t, m.Keys(), 1)
	assert.Equal(t, 20, m.Keys()[0].Value())
}
