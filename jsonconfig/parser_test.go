package jsonconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vigil/engine"
	"github.com/teranos/vigil/object"
)

func newApplier(t *testing.T) (*Applier, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Config{}, engine.Callbacks{})
	t.Cleanup(eng.Stop)
	return New(eng, nil, nil, nil), eng
}

func TestApply_FullBatch(t *testing.T) {
	a, eng := newApplier(t)

	batch := `{
		"comp": {"name": "Storage"},
		"test": {"name": "DiskFree", "polled": false, "comp": "Storage", "description": "free disk blocks"},
		"action": {"name": "CleanTmp"},
		"rule": {"name": "DiskLow", "input": "DiskFree", "action": "CleanTmp",
			"operator": "SWDIAG_RULE_LESS_THAN_N", "n": 20,
			"severity": "SWDIAG_SEVERITY_HIGH", "comp": "Storage"},
		"ready": ["DiskFree"]
	}`
	require.NoError(t, a.Apply("mod", []byte(batch)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()

	test := db.Test("DiskFree")
	require.NotNil(t, test)
	assert.Equal(t, object.StateEnabled, test.State)
	assert.Equal(t, "free disk blocks", test.Description)

	rule := db.Rule("DiskLow")
	require.NotNil(t, rule)
	assert.Equal(t, object.OpLessThanN, rule.Rule.Op)
	assert.Equal(t, int64(20), rule.Rule.N)
	assert.Equal(t, object.SeverityHigh, rule.Rule.Severity)
	assert.Equal(t, object.StateEnabled, rule.State)

	// The comp attribute means membership, not description.
	comp := db.Component("Storage")
	require.NotNil(t, comp)
	names := make([]string, 0, len(comp.Comp.Members))
	for _, m := range comp.Comp.Members {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"DiskFree", "DiskLow"}, names)
	assert.Empty(t, rule.Description)
}

func TestApply_ExplicitSeverityNone(t *testing.T) {
	a, eng := newApplier(t)

	batch := `{
		"test": {"name": "T", "polled": false},
		"rule": {"name": "Quiet", "input": "T",
			"severity": "SWDIAG_SEVERITY_NONE"}
	}`
	require.NoError(t, a.Apply("mod", []byte(batch)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()
	rule := db.Rule("Quiet")
	require.NotNil(t, rule)
	assert.Equal(t, object.SeverityNone, rule.Rule.Severity,
		"an explicit SWDIAG_SEVERITY_NONE must override the default")
}

func TestApply_UnknownAttributeAbortsCommandNotBatch(t *testing.T) {
	a, eng := newApplier(t)

	batch := `{
		"test": {"name": "Bad", "polled": false, "bogus": 1},
		"comp": {"name": "Survives"}
	}`
	require.NoError(t, a.Apply("mod", []byte(batch)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()
	assert.Nil(t, db.Test("Bad"), "command with unknown attribute is aborted")
	assert.NotNil(t, db.Component("Survives"), "rest of the batch still applies")
}

func TestApply_ResultCommandFeedsNotificationTest(t *testing.T) {
	a, eng := newApplier(t)

	setup := `{
		"test": {"name": "Probe", "polled": false},
		"ready": ["Probe"]
	}`
	require.NoError(t, a.Apply("mod", []byte(setup)))

	require.NoError(t, a.Apply("mod", []byte(`{"result": {"test": "Probe", "result": "fail"}}`)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()
	assert.Equal(t, object.ResultFail, db.Test("Probe").Base.LastResult)
}

func TestApply_ResultValue(t *testing.T) {
	a, eng := newApplier(t)

	require.NoError(t, a.Apply("mod", []byte(`{"test": {"name": "P", "polled": false}, "ready": ["P"]}`)))
	require.NoError(t, a.Apply("mod", []byte(`{"result": {"test": "P", "result": "value", "value": 42}}`)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()
	assert.Equal(t, object.ResultValue, db.Test("P").Base.LastResult)
	assert.Equal(t, int64(42), db.Test("P").Base.LastValue)
}

func TestApply_IntervalForms(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want object.QueueID
	}{
		{"fast keyword", `{"test": {"name": "T", "polled": true, "interval": "fast"}}`, object.QueueFast},
		{"slow keyword", `{"test": {"name": "T", "polled": true, "interval": "slow"}}`, object.QueueSlow},
		{"custom ms", `{"test": {"name": "T", "polled": true, "interval": 42000}}`, object.QueueUser},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, eng := newApplier(t)
			require.NoError(t, a.Apply("mod", []byte(tc.doc)))

			// Without a module runner the test degrades to
			// notification kind; intervals are validated either way.
			db := eng.DB()
			db.Lock()
			defer db.Unlock()
			assert.NotNil(t, db.Test("T"))
		})
	}
}

func TestApply_InvalidIntervalRejected(t *testing.T) {
	a, eng := newApplier(t)
	require.NoError(t, a.Apply("mod", []byte(`{"test": {"name": "T", "polled": true, "interval": "sometimes"}}`)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()
	assert.Nil(t, db.Test("T"))
}

func TestApply_CompHealthTest(t *testing.T) {
	a, eng := newApplier(t)
	batch := `{
		"comp": {"name": "Net"},
		"test": {"name": "NetHealth", "health": "Net"}
	}`
	require.NoError(t, a.Apply("mod", []byte(batch)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()
	test := db.Test("NetHealth")
	require.NotNil(t, test)
	assert.Equal(t, object.TestCompHealth, test.Test.Kind)
	assert.Equal(t, "Net", test.Test.CompName)
}

func TestApply_CompParentNesting(t *testing.T) {
	a, eng := newApplier(t)
	batch := `{
		"comp": [{"name": "Parent"}, {"name": "Child", "parent": "Parent"}]
	}`
	require.NoError(t, a.Apply("mod", []byte(batch)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()
	parent := db.Component("Parent")
	require.NotNil(t, parent)
	require.Len(t, parent.Comp.Members, 1)
	assert.Equal(t, "Child", parent.Comp.Members[0].Name)
}

func TestApply_InstanceCreateDelete(t *testing.T) {
	a, eng := newApplier(t)

	require.NoError(t, a.Apply("mod", []byte(`{"test": {"name": "T", "polled": false}}`)))
	require.NoError(t, a.Apply("mod", []byte(`{"instance": {"name": "eth0", "object": "T"}}`)))

	db := eng.DB()
	db.Lock()
	assert.NotNil(t, db.Test("T").Instance("eth0"))
	db.Unlock()

	require.NoError(t, a.Apply("mod", []byte(`{"instance": {"name": "eth0", "object": "T", "delete": true}}`)))
	db.Lock()
	defer db.Unlock()
	assert.Nil(t, db.Test("T").Instance("eth0"))
}

func TestApply_EmailAlertAction(t *testing.T) {
	a, eng := newApplier(t)
	batch := `{"email": {"name": "PageOps", "subject": "disk failure", "to": "ops@example.com"}}`
	require.NoError(t, a.Apply("mod", []byte(batch)))

	db := eng.DB()
	db.Lock()
	defer db.Unlock()
	act := db.Action("PageOps")
	require.NotNil(t, act)
	assert.NotNil(t, act.Action.Handler)
}

func TestApply_MalformedBatchRejected(t *testing.T) {
	a, _ := newApplier(t)
	assert.Error(t, a.Apply("mod", []byte(`["not", "an", "object"]`)))
	assert.Error(t, a.Apply("mod", []byte(`{"test": `)))
}
