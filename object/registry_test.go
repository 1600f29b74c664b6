package object

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_ReturnsExisting(t *testing.T) {
	db := NewDB(nil)

	a, err := db.GetOrCreate("disk-free", KindTest)
	require.NoError(t, err)
	b, err := db.GetOrCreate("disk-free", KindTest)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, KindTest, a.Kind)
	assert.NotNil(t, a.Test)
	assert.NotNil(t, a.Base)
}

func TestGetOrCreate_UpgradesStubInPlace(t *testing.T) {
	db := NewDB(nil)

	stub, err := db.GetOrCreate("later", KindAny)
	require.NoError(t, err)
	require.True(t, stub.IsStub())
	assert.Equal(t, StateAllocated, stub.State)
	assert.Equal(t, 1, db.StubCount())

	real, err := db.GetOrCreate("later", KindRule)
	require.NoError(t, err)
	assert.Same(t, stub, real)
	assert.Equal(t, KindRule, real.Kind)
	assert.NotNil(t, real.Rule)
	assert.Equal(t, 0, db.StubCount())
}

func TestGetOrCreate_KindMismatchRejected(t *testing.T) {
	db := NewDB(nil)

	_, err := db.GetOrCreate("thing", KindTest)
	require.NoError(t, err)

	_, err = db.GetOrCreate("thing", KindRule)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKindMismatch)

	// The original object is untouched.
	assert.NotNil(t, db.Test("thing"))
	assert.Nil(t, db.Rule("thing"))
}

func TestGet_TypedLookups(t *testing.T) {
	db := NewDB(nil)
	_, err := db.GetOrCreate("t", KindTest)
	require.NoError(t, err)

	assert.NotNil(t, db.Test("t"))
	assert.Nil(t, db.Rule("t"))
	assert.Nil(t, db.Action("t"))
	assert.Nil(t, db.Test("missing"))
}

func TestNames_TruncatedAtLimit(t *testing.T) {
	db := NewDB(nil)

	long := strings.Repeat("x", MaxNameLen+10)
	o, err := db.GetOrCreate(long, KindTest)
	require.NoError(t, err)
	assert.Len(t, o.Name, MaxNameLen)

	// Lookups with the long name find the truncated object.
	assert.Same(t, o, db.Test(long))
}

func TestDelete_CleansEdgesAndInstances(t *testing.T) {
	db := NewDB(nil)

	test, err := db.GetOrCreate("t", KindTest)
	require.NoError(t, err)
	rule, err := db.GetOrCreate("r", KindRule)
	require.NoError(t, err)
	comp, err := db.GetOrCreate("c", KindComponent)
	require.NoError(t, err)

	db.AddInput(rule, test)
	db.Contains(comp, test)
	test.CreateInstance("eth0", nil)

	require.True(t, db.Delete("t"))
	assert.Nil(t, db.Test("t"))
	assert.Empty(t, rule.Rule.Inputs)
	assert.Empty(t, comp.Comp.Members)
	assert.Equal(t, StateDeleted, test.State)

	// Deleting again is a no-op.
	assert.False(t, db.Delete("t"))
}

func TestForEach_VisitsKindOnly(t *testing.T) {
	db := NewDB(nil)
	for _, name := range []string{"a", "b"} {
		_, err := db.GetOrCreate(name, KindTest)
		require.NoError(t, err)
	}
	_, err := db.GetOrCreate("r", KindRule)
	require.NoError(t, err)

	var tests []string
	db.ForEach(KindTest, func(o *Object) { tests = append(tests, o.Name) })
	assert.ElementsMatch(t, []string{"a", "b"}, tests)
}

func TestInstance_CreateAndDelete(t *testing.T) {
	db := NewDB(nil)
	o, err := db.GetOrCreate("t", KindTest)
	require.NoError(t, err)
	o.State = StateEnabled
	o.Flags = DefaultFlags | FlagNoResultStats

	in := o.CreateInstance("eth0", "ctx")
	require.NotNil(t, in)
	assert.Equal(t, "t:eth0", in.Key())
	assert.Equal(t, o.State, in.State)
	assert.Equal(t, o.Flags, in.Flags)
	assert.Equal(t, "ctx", in.Context)

	// Re-creating the same name returns the existing instance.
	assert.Same(t, in, o.CreateInstance("eth0", "other"))

	assert.True(t, o.DeleteInstance("eth0"))
	assert.False(t, o.DeleteInstance("eth0"))
	assert.False(t, o.DeleteInstance(""))
}
