package jelastic

import (
	"context"
	"testing"

	"github.com/crmarques/jelapi/faults"
	"github.com/google/go-cmp/cmp"
)

func topologyReply(nodes ...any) map[string]any {
	return map[string]any{
		"result": 0,
		"response": map[string]any{
			"env": map[string]any{
				"envName":           "demo",
				"shortdomain":       "demo",
				"domain":            "demo.example.net",
				"hardwareNodeGroup": "eu-1",
				"appid":             "a1b2c3",
				"createdOn":         "2024-03-01 10:20:30",
				"sslstate":          true,
			},
			"nodes": nodes,
		},
	}
}

func topologyEntries(t *testing.T, args map[string]any) map[string]map[string]any {
	t.Helper()
	entries, ok := args["nodes"].([]map[string]any)
	if !ok {
		t.Fatalf("expected node entries, got %#v", args["nodes"])
	}
	byGroup := make(map[string]map[string]any, len(entries))
	for _, entry := range entries {
		byGroup[entry["nodeGroup"].(string)] = entry
	}
	return byGroup
}

func TestTopologyAddNode(t *testing.T) {
	t.Parallel()

	env, caller := newTestEnvironment(t, StatusRunning)
	caller.On(fnChangeTopology, topologyReply(
		nodeFixture(1, "cp", "nginxphp", 1, 8),
		nodeFixture(3, "cp", "nginxphp", 1, 8),
		nodeFixture(2, "sqldb", "mysql", 2, 4),
	))
	group := mustGroup(t, env, "cp")
	added := NewNode(1, 8)
	group.AddNode(added)

	if err := env.Save(context.Background()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	assertFunctions(t, caller, fnChangeTopology)

	args := lastArgs(t, caller, fnChangeTopology)
	entries := topologyEntries(t, args)
	if entries["cp"]["count"] != 2 || entries["sqldb"]["count"] != 1 {
		t.Fatalf("unexpected counts %v / %v", entries["cp"]["count"], entries["sqldb"]["count"])
	}
	if entries["cp"]["flexibleCloudlets"] != 8 || entries["cp"]["diskLimit"] != 10240 {
		t.Fatalf("unexpected cp entry %v", entries["cp"])
	}
	if _, sent := entries["cp"]["env"]; sent {
		t.Fatalf("expected env vars not to be sent before being fetched")
	}
	topologyEnv := args["env"].(map[string]any)
	if topologyEnv["region"] != "eu-1" || topologyEnv["sslstate"] != true {
		t.Fatalf("unexpected env entry %v", topologyEnv)
	}

	if added.ID() != 3 || added.IntIP() != "10.0.0.3" {
		t.Fatalf("expected new node to take id 3, got %d (%s)", added.ID(), added.IntIP())
	}
	if len(group.Nodes()) != 2 {
		t.Fatalf("expected two nodes, got %d", len(group.Nodes()))
	}
	if env.Diverged() {
		t.Fatalf("expected environment to match remote, changed=%v", env.ChangedFields())
	}

	caller.Reset()
	if err := env.Save(context.Background()); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}
	assertNoCalls(t, caller)
}

func TestTopologyKeepsDesiredConfiguration(t *testing.T) {
	t.Parallel()

	env, caller := newTestEnvironment(t, StatusRunning)
	caller.On(fnChangeTopology, topologyReply(
		nodeFixture(1, "cp", "nginxphp", 1, 8),
		nodeFixture(2, "sqldb", "mysql", 2, 4),
		nodeFixture(5, "nosqldb", "redis", 1, 4),
	)).
		On(fnApplyNodeGroupData, map[string]any{"result": 0}).
		On(fnSetCloudletsCountByID, map[string]any{"result": 0}).
		On(fnAddMountPointByGroup, map[string]any{"result": 0})

	cache := NewNodeGroup("nosqldb", "redis", WithDisplayName("Cache"))
	cache.SetSLBAccessEnabled(true)
	cache.AddNode(NewNode(1, 4))
	if err := env.AttachNodeGroup(cache); err != nil {
		t.Fatalf("AttachNodeGroup returned error: %v", err)
	}
	database := mustGroup(t, env, "sqldb").Nodes()[0]
	if err := cache.AddMountPoint(context.Background(), NewMountPoint("/data", database, "/exports")); err != nil {
		t.Fatalf("AddMountPoint returned error: %v", err)
	}
	mustGroup(t, env, "cp").Nodes()[0].SetFixedCloudlets(2)

	if err := env.Save(context.Background()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	assertFunctions(t, caller, fnChangeTopology, fnSetCloudletsCountByID, fnApplyNodeGroupData, fnAddMountPointByGroup)

	if diff := cmp.Diff(map[string]any{"isSLBAccessEnabled": true}, lastArgs(t, caller, fnApplyNodeGroupData)["data"]); diff != "" {
		t.Fatalf("expected SLB access to be applied on the new group (-want +got):\n%s", diff)
	}
	if got := lastArgs(t, caller, fnSetCloudletsCountByID)["fixedCloudlets"]; got != 2 {
		t.Fatalf("expected desired fixed cloudlets to survive the rebuild, got %v", got)
	}
	node, err := env.NodeByNodeGroup("nosqldb")
	if err != nil {
		t.Fatalf("NodeByNodeGroup returned error: %v", err)
	}
	if node.ID() != 5 || node.NodeGroup() != "nosqldb" {
		t.Fatalf("unexpected node %d in %s", node.ID(), node.NodeGroup())
	}
	if !cache.Synced() || env.Diverged() {
		t.Fatalf("expected the new group to be synchronized, changed=%v", env.ChangedFields())
	}
}

func TestTopologyDetachNodeGroup(t *testing.T) {
	t.Parallel()

	env, caller := newTestEnvironment(t, StatusRunning)
	caller.On(fnChangeTopology, topologyReply(nodeFixture(1, "cp", "nginxphp", 1, 8)))

	if err := env.DetachNodeGroup("sqldb"); err != nil {
		t.Fatalf("DetachNodeGroup returned error: %v", err)
	}
	if err := env.Save(context.Background()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	entries := topologyEntries(t, lastArgs(t, caller, fnChangeTopology))
	if _, ok := entries["sqldb"]; ok || len(entries) != 1 {
		t.Fatalf("expected only cp to be sent, got %v", entries)
	}
	if _, ok := env.NodeGroup("sqldb"); ok {
		t.Fatalf("expected sqldb to be gone")
	}
}

func TestTopologySSLStateChange(t *testing.T) {
	t.Parallel()

	env, caller := newTestEnvironment(t, StatusRunning)
	reply := topologyReply(
		nodeFixture(1, "cp", "nginxphp", 1, 8),
		nodeFixture(2, "sqldb", "mysql", 2, 4),
	)
	reply["response"].(map[string]any)["env"].(map[string]any)["sslstate"] = false
	caller.On(fnChangeTopology, reply)

	env.SetSSLState(false)
	if err := env.Save(context.Background()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	assertFunctions(t, caller, fnChangeTopology)
	if env.SSLState() || env.Diverged() {
		t.Fatalf("expected SSL to be disabled and synchronized")
	}
}

func TestTopologyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply map[string]any
	}{
		{
			name:  "response_error",
			reply: map[string]any{"result": 0, "response": map[string]any{"error": "not enough resources"}},
		},
		{
			name:  "unknown_node_group",
			reply: topologyReply(nodeFixture(9, "storage", "storage", 1, 1)),
		},
		{
			name:  "missing_response",
			reply: map[string]any{"result": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, caller := newTestEnvironment(t, StatusRunning)
			caller.On(fnChangeTopology, tt.reply)

			mustGroup(t, env, "cp").SetDiskLimit(20480)
			assertCategory(t, env.Save(context.Background()), faults.RemoteCallError)
			if !env.Diverged() {
				t.Fatalf("expected environment to still diverge")
			}
		})
	}
}
