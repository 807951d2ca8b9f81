package apply

import (
	"context"
	"testing"

	"github.com/crmarques/jelapi/faults"
	"github.com/crmarques/jelapi/internal/testkit"
	"github.com/crmarques/jelapi/jelastic"
	"github.com/google/go-cmp/cmp"
)

const (
	getEnvInfo          = "Environment.Control.GetEnvInfo"
	setEnvDisplayName   = "Environment.Control.SetEnvDisplayName"
	applyNodeGroupData  = "Environment.Control.ApplyNodeGroupData"
	setCloudletsCount   = "Environment.Control.SetCloudletsCountById"
	getEnvVars          = "Environment.Control.GetContainerEnvVarsByGroup"
	setEnvVars          = "Environment.Control.SetContainerEnvVarsByGroup"
	getMountPoints      = "Environment.File.GetMountPoints"
	addMountPoint       = "Environment.File.AddMountPointByGroup"
	statusRunningNumber = 1
)

func envInfo() map[string]any {
	return map[string]any{
		"env": map[string]any{
			"envName":           "shop",
			"shortdomain":       "shop",
			"domain":            "shop.example.net",
			"hardwareNodeGroup": "eu-1",
			"ishaenabled":       false,
			"appid":             "f00d",
			"createdOn":         "2024-05-02 08:00:00",
			"displayName":       "Shop",
			"status":            statusRunningNumber,
			"extdomains":        []any{},
			"sslstate":          false,
		},
		"envGroups": []any{},
		"nodeGroups": []any{
			map[string]any{"name": "cp", "nodeType": "nginxphp", "displayName": "App", "diskLimit": 10240},
			map[string]any{"name": "sqldb", "nodeType": "mysql", "displayName": "Database", "diskLimit": 20480},
		},
		"nodes": []any{
			map[string]any{
				"id": 11, "nodeGroup": "cp", "nodeType": "nginxphp", "intIP": "10.1.0.11",
				"url": "http://node11-shop.example.net", "ismaster": true,
				"fixedCloudlets": 1, "flexibleCloudlets": 8,
			},
			map[string]any{
				"id": 12, "nodeGroup": "sqldb", "nodeType": "mysql", "intIP": "10.1.0.12",
				"url": "http://node12-shop.example.net", "ismaster": true,
				"fixedCloudlets": 2, "flexibleCloudlets": 4,
			},
		},
	}
}

func newEnvironment(t *testing.T) (*jelastic.Environment, *testkit.Caller) {
	t.Helper()

	caller := testkit.NewCaller().On(getEnvInfo, envInfo())
	env, err := jelastic.NewClient(caller).Environment(context.Background(), "shop")
	if err != nil {
		t.Fatalf("Environment returned error: %v", err)
	}
	caller.Reset()
	return env, caller
}

func decodeDocument(t *testing.T, raw string) Document {
	t.Helper()

	document, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	return document
}

const scalarDocument = `
environment: shop
fields:
  displayName: Shop 2
node-groups:
  cp:
    fields:
      displayName: Web
    nodes:
      - id: 11
        fields:
          flexibleCloudlets: 16
`

func TestPlanReportsChangesWithoutWrites(t *testing.T) {
	t.Parallel()

	env, caller := newEnvironment(t)
	changes, err := Plan(context.Background(), env, decodeDocument(t, scalarDocument))
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}

	want := Changes{
		{Resource: "shop", Fields: []string{"displayName"}},
		{Resource: "shop/cp", Fields: []string{"displayName"}},
		{Resource: "shop/cp/11", Fields: []string{"flexibleCloudlets"}},
	}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Fatalf("unexpected changes (-want +got):\n%s", diff)
	}
	if calls := caller.Calls(); len(calls) != 0 {
		t.Fatalf("expected no remote calls, got %v", caller.Functions())
	}
}

func TestApplySavesEnvironment(t *testing.T) {
	t.Parallel()

	env, caller := newEnvironment(t)
	caller.On(setEnvDisplayName, map[string]any{}).
		On(applyNodeGroupData, map[string]any{}).
		On(setCloudletsCount, map[string]any{})

	if _, err := Apply(context.Background(), env, decodeDocument(t, scalarDocument)); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	want := []string{setEnvDisplayName, applyNodeGroupData, setCloudletsCount}
	if diff := cmp.Diff(want, caller.Functions()); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}
	if env.Diverged() {
		t.Fatal("expected environment to match its baseline after apply")
	}

	call, _ := caller.Last(setCloudletsCount)
	if call.Args["flexibleCloudlets"] != 16 {
		t.Fatalf("expected 16 flexible cloudlets, got %#v", call.Args["flexibleCloudlets"])
	}

	caller.Reset()
	changes, err := Apply(context.Background(), env, decodeDocument(t, scalarDocument))
	if err != nil {
		t.Fatalf("second Apply returned error: %v", err)
	}
	if len(changes) != 0 || len(caller.Calls()) != 0 {
		t.Fatalf("expected second apply to be a no-op, got %v and calls %v", changes, caller.Functions())
	}
}

func TestApplyFlexibleCloudletsReduction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		allow     string
		wantErr   bool
		wantCalls []string
	}{
		{name: "denied", allow: "false", wantErr: true},
		{name: "allowed", allow: "true", wantCalls: []string{setCloudletsCount}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, caller := newEnvironment(t)
			caller.On(setCloudletsCount, map[string]any{})
			document := decodeDocument(t, `
environment: shop
node-groups:
  cp:
    nodes:
      - id: 11
        allow-reduction: `+tt.allow+`
        fields:
          flexibleCloudlets: 2
`)
			_, err := Apply(context.Background(), env, document)
			if tt.wantErr {
				if !faults.IsCategory(err, faults.ObjectStateError) {
					t.Fatalf("expected object state error, got %v", err)
				}
				if len(caller.Calls()) != 0 {
					t.Fatalf("expected no calls, got %v", caller.Functions())
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply returned error: %v", err)
			}
			if diff := cmp.Diff(tt.wantCalls, caller.Functions()); diff != "" {
				t.Fatalf("unexpected calls (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanFetchesLazyCollections(t *testing.T) {
	t.Parallel()

	env, caller := newEnvironment(t)
	caller.On(getEnvVars, map[string]any{"object": map[string]any{"MODE": "dev"}}).
		On(getMountPoints, map[string]any{"array": []any{}})

	document := decodeDocument(t, `
environment: shop
node-groups:
  cp:
    env-vars:
      MODE: prod
    mount-points:
      - path: /data
        source-node-group: sqldb
        source-path: /var/lib/data
        read-only: true
`)

	changes, err := Plan(context.Background(), env, document)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	want := Changes{{Resource: "shop/cp", Fields: []string{"envVars", "mountPoints"}}}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Fatalf("unexpected changes (-want +got):\n%s", diff)
	}

	caller.On(setEnvVars, map[string]any{}).On(addMountPoint, map[string]any{})
	if err := env.Save(context.Background()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	call, ok := caller.Last(addMountPoint)
	if !ok {
		t.Fatal("expected mount point to be added")
	}
	if call.Args["sourceNodeId"] != 12 || call.Args["readOnly"] != true {
		t.Fatalf("unexpected mount point arguments %#v", call.Args)
	}
	if caller.Count(getEnvVars) != 1 {
		t.Fatalf("expected env vars to be fetched once, got %d", caller.Count(getEnvVars))
	}
}

func TestPlanErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		document string
		category faults.ErrorCategory
	}{
		{
			name:     "other environment",
			document: "environment: blog\n",
			category: faults.ValidationError,
		},
		{
			name:     "unknown node group",
			document: "environment: shop\nnode-groups:\n  nosqldb: {}\n",
			category: faults.ObjectStateError,
		},
		{
			name:     "unknown node",
			document: "environment: shop\nnode-groups:\n  cp:\n    nodes:\n      - id: 99\n",
			category: faults.ObjectStateError,
		},
		{
			name:     "read only field",
			document: "environment: shop\nfields:\n  domain: other.example.net\n",
			category: faults.ObjectStateError,
		},
		{
			name:     "type mismatch",
			document: "environment: shop\nfields:\n  displayName: 5\n",
			category: faults.TypeMismatchError,
		},
		{
			name:     "unknown status",
			document: "environment: shop\nfields:\n  status: frozen\n",
			category: faults.TypeMismatchError,
		},
		{
			name:     "mount point without source",
			document: "environment: shop\nnode-groups:\n  cp:\n    mount-points:\n      - path: /data\n        source-path: /srv\n",
			category: faults.ValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, caller := newEnvironment(t)
			caller.On(getMountPoints, map[string]any{"array": []any{}})
			_, err := Plan(context.Background(), env, decodeDocument(t, tt.document))
			if !faults.IsCategory(err, tt.category) {
				t.Fatalf("expected %s, got %v", tt.category, err)
			}
		})
	}
}

func TestExecuteDryRun(t *testing.T) {
	t.Parallel()

	caller := testkit.NewCaller().On(getEnvInfo, envInfo())
	changes, err := Execute(
		context.Background(),
		Dependencies{Client: jelastic.NewClient(caller)},
		decodeDocument(t, "environment: shop\nfields:\n  status: stopped\n"),
		ExecuteOptions{DryRun: true},
	)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if diff := cmp.Diff(Changes{{Resource: "shop", Fields: []string{"status"}}}, changes); diff != "" {
		t.Fatalf("unexpected changes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{getEnvInfo}, caller.Functions()); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}
}

func TestExecuteRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := Execute(context.Background(), Dependencies{}, Document{Environment: "shop"}, ExecuteOptions{})
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
