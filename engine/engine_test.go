package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vigil/object"
)

// capture records callback traffic for assertions.
type capture struct {
	mu      sync.Mutex
	actions map[string]int
	rules   map[string]object.Result
	health  map[string]int64
	alerts  []string
}

func (c *capture) actionCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions[name]
}

func (c *capture) ruleResult(name string) object.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rules[name]
}

func (c *capture) lastHealth(comp string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health[comp]
}

func newTestEngine(t *testing.T) (*Engine, *capture) {
	t.Helper()
	c := &capture{
		actions: map[string]int{},
		rules:   map[string]object.Result{},
		health:  map[string]int64{},
	}
	e := New(Config{Workers: 2}, Callbacks{
		RuleResult: func(name, instance string, result object.Result) {
			c.mu.Lock()
			defer c.mu.Unlock()
			key := name
			if instance != "" {
				key = name + ":" + instance
			}
			c.rules[key] = result
		},
		ActionResult: func(name, instance string, result object.Result) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.actions[name]++
		},
		ComponentHealth: func(name string, health int64) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.health[name] = health
		},
		UserAlert: func(text string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.alerts = append(c.alerts, text)
		},
	})
	t.Cleanup(e.Stop)
	return e, c
}

// countingAction returns a pass action whose invocations are counted by
// the ActionResult callback.
func countingAction() object.ActionFunc {
	return func(string, any) object.Result { return object.ResultPass }
}

func TestSeedScenario_PolledThreshold(t *testing.T) {
	e, c := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.RuleCreate("R1", "T", ""))
	require.NoError(t, e.RuleSetType("R1", object.OpLessThanN, 20, 0))
	require.NoError(t, e.RuleCreate("R2", "R1", "X"))
	require.NoError(t, e.RuleSetType("R2", object.OpNInRow, 4, 0))
	require.NoError(t, e.ActionCreate("X", countingAction(), nil))
	require.NoError(t, e.TestChainReady("T"))

	e.Start()

	for _, v := range []int64{25, 18, 19, 17, 15, 30} {
		require.NoError(t, e.TestNotify("T", "", object.ResultValue, v))
	}

	// Four consecutive sub-20 values (18, 19, 17, 15) trip R2 once; the
	// 30 recovers it.
	require.Eventually(t, func() bool {
		return c.actionCount("X") == 1
	}, 3*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, c.actionCount("X"), "action must fire exactly once")
	assert.Equal(t, object.ResultPass, c.ruleResult("R2"))
}

func TestSeedScenario_NotificationAutopass(t *testing.T) {
	e, c := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.TestSetAutopass("T", 80*time.Millisecond))
	require.NoError(t, e.RuleCreate("R", "T", ""))
	require.NoError(t, e.TestChainReady("T"))

	e.Start()

	require.NoError(t, e.TestNotify("T", "", object.ResultFail, 0))
	assert.Equal(t, object.ResultFail, c.ruleResult("R"))

	// With no further notifications the test auto-passes after the
	// delay and the downstream rule toggles back.
	require.Eventually(t, func() bool {
		return c.ruleResult("R") == object.ResultPass
	}, 3*time.Second, 10*time.Millisecond)
}

func TestAutopass_NewFailResetsWindow(t *testing.T) {
	e, c := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.TestSetAutopass("T", 120*time.Millisecond))
	require.NoError(t, e.RuleCreate("R", "T", ""))
	require.NoError(t, e.TestChainReady("T"))

	e.Start()

	require.NoError(t, e.TestNotify("T", "", object.ResultFail, 0))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, e.TestNotify("T", "", object.ResultFail, 0))
	time.Sleep(80 * time.Millisecond)

	// The second fail restarted the window, so it has not expired yet.
	assert.Equal(t, object.ResultFail, c.ruleResult("R"))

	require.Eventually(t, func() bool {
		return c.ruleResult("R") == object.ResultPass
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSeedScenario_LogicalCombinator(t *testing.T) {
	e, c := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("TX"))
	require.NoError(t, e.TestCreateNotification("TY"))
	require.NoError(t, e.RuleCreate("X", "TX", ""))
	require.NoError(t, e.RuleCreate("Y", "TY", ""))
	require.NoError(t, e.RuleSetType("Y", object.OpEqualToN, 0, 0))
	require.NoError(t, e.RuleCreate("Both", "X", "Alert"))
	require.NoError(t, e.RuleAddInput("Both", "Y"))
	require.NoError(t, e.RuleSetType("Both", object.OpAnd, 0, 0))
	require.NoError(t, e.ActionCreate("Alert", countingAction(), nil))
	require.NoError(t, e.TestChainReady("TX"))
	require.NoError(t, e.TestChainReady("TY"))

	e.Start()

	require.NoError(t, e.TestNotify("TX", "", object.ResultPass, 0))
	require.NoError(t, e.TestNotify("TY", "", object.ResultValue, 0))

	// X passes, Y fails on its zero value, so the AND fails and the
	// action runs.
	assert.Equal(t, object.ResultFail, c.ruleResult("Both"))
	require.Eventually(t, func() bool {
		return c.actionCount("Alert") == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestUserAlertAction(t *testing.T) {
	e, c := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.ActionCreateUserAlert("Shout", "disk nearly full"))
	require.NoError(t, e.RuleCreate("R", "T", "Shout"))
	require.NoError(t, e.RuleSetFlags("R", object.DefaultFlags|object.FlagTriggerAlways))
	require.NoError(t, e.TestChainReady("T"))

	e.Start()
	require.NoError(t, e.TestNotify("T", "", object.ResultFail, 0))

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.alerts) == 1 && c.alerts[0] == "disk nearly full"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestInstancePairing_SameNamedOnly(t *testing.T) {
	e, c := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.RuleCreate("R", "T", ""))
	require.NoError(t, e.InstanceCreate("T", "eth0", nil))
	require.NoError(t, e.InstanceCreate("T", "eth1", nil))
	require.NoError(t, e.InstanceCreate("R", "eth0", nil))
	require.NoError(t, e.InstanceCreate("R", "eth1", nil))
	require.NoError(t, e.TestChainReady("T"))

	require.NoError(t, e.TestNotify("T", "eth0", object.ResultFail, 0))

	assert.Equal(t, object.ResultFail, c.ruleResult("R:eth0"))
	assert.Equal(t, object.ResultInvalid, c.ruleResult("R:eth1"),
		"the unpaired instance must not be evaluated")
}

func TestInstanceFanIn_AnyInstanceTriggersBaseRule(t *testing.T) {
	e, c := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.RuleCreate("R", "T", ""))
	require.NoError(t, e.InstanceCreate("T", "eth0", nil))
	require.NoError(t, e.TestChainReady("T"))

	require.NoError(t, e.TestNotify("T", "eth0", object.ResultFail, 0))
	assert.Equal(t, object.ResultFail, c.ruleResult("R"))
}

func TestEnableDisable_RoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	flags, err := e.TestGetFlags("T")
	require.NoError(t, err)

	require.NoError(t, e.TestEnable("T", ""))
	require.NoError(t, e.TestDisable("T", ""))

	after, err := e.TestGetFlags("T")
	require.NoError(t, err)
	assert.Equal(t, flags, after, "flags unchanged by enable/disable")

	e.db.Lock()
	o := e.db.Test("T")
	assert.Equal(t, object.StateDisabled, o.State)
	assert.Equal(t, int64(0), o.Base.Stats.Runs, "stats unchanged")
	e.db.Unlock()
}

func TestSetFlags_GetFlagsIdentity(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.TestCreateNotification("T"))

	flags, err := e.TestGetFlags("T")
	require.NoError(t, err)
	require.NoError(t, e.TestSetFlags("T", flags))

	after, err := e.TestGetFlags("T")
	require.NoError(t, err)
	assert.Equal(t, flags, after)
}

func TestChainReady_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.TestCreateNotification("T"))
	require.NoError(t, e.RuleCreate("R", "T", "A"))
	require.NoError(t, e.ActionCreate("A", countingAction(), nil))

	require.NoError(t, e.TestChainReady("T"))
	snap1 := e.Snapshot()
	require.NoError(t, e.TestChainReady("T"))
	snap2 := e.Snapshot()
	assert.Equal(t, snap1, snap2)
}

func TestNameTruncation_CollisionRejected(t *testing.T) {
	e, _ := newTestEngine(t)

	long := "this-name-is-well-over-the-limit-for-object-names"
	short, truncated := object.TruncateName(long)
	require.True(t, truncated)

	require.NoError(t, e.TestCreateNotification(short))
	err := e.TestCreateNotification(long)
	require.Error(t, err)
	assert.ErrorIs(t, err, object.ErrTruncated)
}
