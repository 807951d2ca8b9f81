package jelastic

import (
	"context"
	"fmt"
	"testing"

	"github.com/crmarques/jelapi/faults"
	"github.com/crmarques/jelapi/internal/testkit"
)

func envInfoFixture(status EnvStatus) map[string]any {
	return map[string]any{
		"env": map[string]any{
			"envName":           "demo",
			"shortdomain":       "demo",
			"domain":            "demo.example.net",
			"hardwareNodeGroup": "eu-1",
			"ishaenabled":       false,
			"appid":             "a1b2c3",
			"createdOn":         "2024-03-01 10:20:30",
			"displayName":       "Demo",
			"status":            int(status),
			"extdomains":        []any{"www.example.org"},
			"sslstate":          true,
		},
		"envGroups": []any{"team"},
		"nodeGroups": []any{
			map[string]any{
				"name":               "cp",
				"nodeType":           "nginxphp",
				"displayName":        "App",
				"isSLBAccessEnabled": true,
				"diskLimit":          10240,
			},
			map[string]any{
				"name":        "sqldb",
				"displayName": "Database",
			},
		},
		"nodes": []any{
			nodeFixture(1, "cp", "nginxphp", 1, 8),
			nodeFixture(2, "sqldb", "mysql", 2, 4),
		},
	}
}

func nodeFixture(id int, group string, nodeType string, fixed int, flexible int) map[string]any {
	return map[string]any{
		"id":                id,
		"nodeGroup":         group,
		"nodeType":          nodeType,
		"intIP":             fmt.Sprintf("10.0.0.%d", id),
		"url":               fmt.Sprintf("http://node%d-demo.example.net", id),
		"ismaster":          true,
		"fixedCloudlets":    fixed,
		"flexibleCloudlets": flexible,
		"diskLimit":         20480,
	}
}

// newTestEnvironment returns the "demo" environment and a caller whose
// recorded calls were reset after the initial fetch.
func newTestEnvironment(t *testing.T, status EnvStatus) (*Environment, *testkit.Caller) {
	t.Helper()

	caller := testkit.NewCaller().On(fnGetEnvInfo, envInfoFixture(status))
	env, err := NewClient(caller).Environment(context.Background(), "demo")
	if err != nil {
		t.Fatalf("Environment returned error: %v", err)
	}
	caller.Reset()
	return env, caller
}

func mustGroup(t *testing.T, env *Environment, name string) *NodeGroup {
	t.Helper()
	group, ok := env.NodeGroup(name)
	if !ok {
		t.Fatalf("expected node group %q", name)
	}
	return group
}

func assertCategory(t *testing.T, err error, category faults.ErrorCategory) {
	t.Helper()
	if !faults.IsCategory(err, category) {
		t.Fatalf("expected %s, got %v", category, err)
	}
}

func assertNoCalls(t *testing.T, caller *testkit.Caller) {
	t.Helper()
	if calls := caller.Functions(); len(calls) != 0 {
		t.Fatalf("expected no remote call, got %v", calls)
	}
}

func assertFunctions(t *testing.T, caller *testkit.Caller, want ...string) {
	t.Helper()
	got := caller.Functions()
	if len(got) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("expected calls %v, got %v", want, got)
		}
	}
}

func lastArgs(t *testing.T, caller *testkit.Caller, function string) map[string]any {
	t.Helper()
	call, ok := caller.Last(function)
	if !ok {
		t.Fatalf("expected a call to %s, got %v", function, caller.Functions())
	}
	return call.Args
}
