package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vigil/object"
)

func TestSeedScenario_ForwardReferenceAndReady(t *testing.T) {
	e, c := newTestEngine(t)

	// Rule first: both the input test and the action do not exist yet.
	require.NoError(t, e.RuleCreate("R", "T", "A"))

	e.db.Lock()
	stubs := e.db.StubCount()
	e.db.Unlock()
	assert.Equal(t, 2, stubs)

	// chain_ready on a still-missing test is a no-op.
	require.NoError(t, e.TestChainReady("T"))
	e.db.Lock()
	assert.Nil(t, e.db.Test("T"))
	e.db.Unlock()

	// Creating the real objects upgrades the stubs in place.
	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.ActionCreate("A", countingAction(), nil))

	e.db.Lock()
	assert.Equal(t, 0, e.db.StubCount(), "no stub remains")
	rule := e.db.Rule("R")
	require.Len(t, rule.Rule.Inputs, 1)
	assert.Same(t, e.db.Test("T"), rule.Rule.Inputs[0])
	require.Len(t, rule.Rule.Actions, 1)
	assert.Same(t, e.db.Action("A"), rule.Rule.Actions[0])
	e.db.Unlock()

	// One chain_ready pass enables test, rule and action together.
	require.NoError(t, e.TestChainReady("T"))
	e.db.Lock()
	assert.Equal(t, object.StateEnabled, e.db.Test("T").State)
	assert.Equal(t, object.StateEnabled, e.db.Rule("R").State)
	assert.Equal(t, object.StateEnabled, e.db.Action("A").State)
	e.db.Unlock()

	// And the wiring works end to end.
	require.NoError(t, e.TestNotify("T", "", object.ResultFail, 0))
	assert.Equal(t, object.ResultFail, c.ruleResult("R"))
}

func TestForwardReference_KindMismatchDropped(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.RuleCreate("R", "T", ""))
	require.NoError(t, e.TestCreateNotification("T"))

	// The name is now a test; asking for it as an action is refused and
	// the request dropped.
	err := e.ActionCreate("T", countingAction(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, object.ErrKindMismatch)
}

func TestDeleteTest_DetachesFromRule(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.RuleCreate("R", "T", ""))
	require.NoError(t, e.TestDelete("T"))

	e.db.Lock()
	defer e.db.Unlock()
	assert.Nil(t, e.db.Test("T"))
	assert.Empty(t, e.db.Rule("R").Rule.Inputs)
}

func TestBuiltins_Registered(t *testing.T) {
	e, _ := newTestEngine(t)

	e.db.Lock()
	defer e.db.Unlock()
	assert.NotNil(t, e.db.Component(ComponentSystem))
	assert.NotNil(t, e.db.Component(ComponentStandbyRP))
	for _, name := range []string{
		ActionReload, ActionSwitchover, ActionReloadStandby,
		ActionScheduledReload, ActionScheduledSwitchover, ActionNoop,
	} {
		assert.NotNil(t, e.db.Action(name), name)
	}

	// The engine's self-monitoring rules are silent.
	cpu := e.db.Rule(cpuWarnRule)
	require.NotNil(t, cpu)
	assert.NotZero(t, cpu.Flags&object.FlagSilent)
}
