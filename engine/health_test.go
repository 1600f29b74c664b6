package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vigil/object"
)

// wireHealthComponent builds component C over two notification-test-fed
// rules with the given severities.
func wireHealthComponent(t *testing.T, e *Engine, sevCrit, sevMed object.Severity) {
	t.Helper()
	require.NoError(t, e.TestCreateNotification("TC"))
	require.NoError(t, e.TestCreateNotification("TM"))
	require.NoError(t, e.RuleCreate("RC", "TC", ""))
	require.NoError(t, e.RuleCreate("RM", "TM", ""))
	require.NoError(t, e.RuleSetSeverity("RC", sevCrit))
	require.NoError(t, e.RuleSetSeverity("RM", sevMed))
	require.NoError(t, e.ComponentCreate("C"))
	require.NoError(t, e.ComponentContainsMany("C", "RC", "RM"))
	require.NoError(t, e.ComponentEnable("C"))
	require.NoError(t, e.TestChainReady("TC"))
	require.NoError(t, e.TestChainReady("TM"))
}

func TestSeedScenario_HealthMath(t *testing.T) {
	e, _ := newTestEngine(t)
	wireHealthComponent(t, e, object.SeverityCritical, object.SeverityMedium)

	h, err := e.ComponentHealthGet("C")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), h)

	// Both rules fail: 1000 - 500 - 100.
	require.NoError(t, e.TestNotify("TC", "", object.ResultFail, 0))
	require.NoError(t, e.TestNotify("TM", "", object.ResultFail, 0))
	h, _ = e.ComponentHealthGet("C")
	assert.Equal(t, int64(400), h)

	// Medium recovers.
	require.NoError(t, e.TestNotify("TM", "", object.ResultPass, 0))
	h, _ = e.ComponentHealthGet("C")
	assert.Equal(t, int64(500), h)

	// Critical recovers.
	require.NoError(t, e.TestNotify("TC", "", object.ResultPass, 0))
	h, _ = e.ComponentHealthGet("C")
	assert.Equal(t, int64(1000), h)
}

func TestHealth_RepeatedFailsCountOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	wireHealthComponent(t, e, object.SeverityCritical, object.SeverityMedium)

	// Only the pass-to-fail boundary moves health; repeated fails do
	// not compound.
	require.NoError(t, e.TestNotify("TC", "", object.ResultFail, 0))
	require.NoError(t, e.TestNotify("TC", "", object.ResultFail, 0))
	require.NoError(t, e.TestNotify("TC", "", object.ResultFail, 0))

	h, _ := e.ComponentHealthGet("C")
	assert.Equal(t, int64(500), h)
}

func TestHealth_ClampedAtBounds(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T1"))
	require.NoError(t, e.TestCreateNotification("T2"))
	require.NoError(t, e.RuleCreate("R1", "T1", ""))
	require.NoError(t, e.RuleCreate("R2", "T2", ""))
	require.NoError(t, e.RuleSetSeverity("R1", object.SeverityCatastrophic))
	require.NoError(t, e.RuleSetSeverity("R2", object.SeverityCritical))
	require.NoError(t, e.ComponentCreate("C"))
	require.NoError(t, e.ComponentContainsMany("C", "R1", "R2"))
	require.NoError(t, e.ComponentEnable("C"))
	require.NoError(t, e.TestChainReady("T1"))
	require.NoError(t, e.TestChainReady("T2"))

	// Catastrophic takes health to zero; another failure cannot push it
	// below.
	require.NoError(t, e.TestNotify("T1", "", object.ResultFail, 0))
	require.NoError(t, e.TestNotify("T2", "", object.ResultFail, 0))
	h, _ := e.ComponentHealthGet("C")
	assert.Equal(t, int64(0), h)

	// Recovery is clamped at the top as well.
	require.NoError(t, e.TestNotify("T1", "", object.ResultPass, 0))
	require.NoError(t, e.TestNotify("T2", "", object.ResultPass, 0))
	h, _ = e.ComponentHealthGet("C")
	assert.Equal(t, int64(1000), h)
}

func TestHealth_NoResultStatsRulesDoNotContribute(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.RuleCreate("R", "T", ""))
	require.NoError(t, e.RuleSetSeverity("R", object.SeverityCritical))
	require.NoError(t, e.RuleSetFlags("R", object.DefaultFlags|object.FlagNoResultStats))
	require.NoError(t, e.ComponentCreate("C"))
	require.NoError(t, e.ComponentContains("C", "R"))
	require.NoError(t, e.ComponentEnable("C"))
	require.NoError(t, e.TestChainReady("T"))

	require.NoError(t, e.TestNotify("T", "", object.ResultFail, 0))
	h, _ := e.ComponentHealthGet("C")
	assert.Equal(t, int64(1000), h)
}

func TestHealth_PositiveSeverity(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("TC"))
	require.NoError(t, e.TestCreateNotification("TP"))
	require.NoError(t, e.RuleCreate("RC", "TC", ""))
	require.NoError(t, e.RuleCreate("RP", "TP", ""))
	require.NoError(t, e.RuleSetSeverity("RC", object.SeverityCritical))
	require.NoError(t, e.RuleSetSeverity("RP", object.SeverityPositive))
	require.NoError(t, e.ComponentCreate("C"))
	require.NoError(t, e.ComponentContainsMany("C", "RC", "RP"))
	require.NoError(t, e.ComponentEnable("C"))
	require.NoError(t, e.TestChainReady("TC"))
	require.NoError(t, e.TestChainReady("TP"))

	// A failing positive rule lowers health like any other failure.
	require.NoError(t, e.TestNotify("TC", "", object.ResultFail, 0))
	require.NoError(t, e.TestNotify("TP", "", object.ResultFail, 0))
	h, _ := e.ComponentHealthGet("C")
	assert.Equal(t, int64(300), h)

	// A positive rule proven passing again raises health by its
	// magnitude.
	require.NoError(t, e.TestNotify("TP", "", object.ResultPass, 0))
	h, _ = e.ComponentHealthGet("C")
	assert.Equal(t, int64(500), h)

	require.NoError(t, e.TestNotify("TC", "", object.ResultPass, 0))
	h, _ = e.ComponentHealthGet("C")
	assert.Equal(t, int64(1000), h)
}

func TestHealth_SetOverridesAndClamps(t *testing.T) {
	e, c := newTestEngine(t)
	require.NoError(t, e.ComponentCreate("C"))
	require.NoError(t, e.ComponentEnable("C"))

	require.NoError(t, e.ComponentHealthSet("C", 2500))
	h, _ := e.ComponentHealthGet("C")
	assert.Equal(t, int64(1000), h)

	require.NoError(t, e.ComponentHealthSet("C", 250))
	h, _ = e.ComponentHealthGet("C")
	assert.Equal(t, int64(250), h)
	assert.Equal(t, int64(250), c.lastHealth("C"))
}

func TestCompHealthTest_ReadsComponentHealth(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.ComponentCreate("C"))
	require.NoError(t, e.ComponentEnable("C"))
	require.NoError(t, e.ComponentHealthSet("C", 700))
	require.NoError(t, e.TestCreateCompHealth("CH", "C"))
	require.NoError(t, e.TestChainReady("CH"))

	e.db.Lock()
	in := e.db.Test("CH").Base
	e.db.Unlock()

	e.runPolled(in)

	e.db.Lock()
	defer e.db.Unlock()
	assert.Equal(t, object.ResultValue, in.LastResult)
	assert.Equal(t, int64(700), in.LastValue)
}
