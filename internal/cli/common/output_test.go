package common

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/crmarques/jelapi/faults"
	"github.com/google/go-cmp/cmp"

	"github.com/spf13/cobra"
)

func TestWriteOutputSuppressesNilPayload(t *testing.T) {
	t.Parallel()

	command := &cobra.Command{}
	stdout := &bytes.Buffer{}
	command.SetOut(stdout)

	var value any
	if err := WriteOutput(command, OutputJSON, value, nil); err != nil {
		t.Fatalf("WriteOutput returned error: %v", err)
	}
	if got := stdout.String(); got != "" {
		t.Fatalf("expected empty output for nil payload, got %q", got)
	}
}

func TestWriteOutputRendersNonNilPayload(t *testing.T) {
	t.Parallel()

	command := &cobra.Command{}
	stdout := &bytes.Buffer{}
	command.SetOut(stdout)

	if err := WriteOutput(command, OutputJSON, map[string]any{"ok": true}, nil); err != nil {
		t.Fatalf("WriteOutput returned error: %v", err)
	}
	if got := stdout.String(); got == "" {
		t.Fatal("expected non-empty output for non-nil payload")
	}
}

func TestValidateOutputFormatForCommandPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		path    string
		format  string
		wantErr bool
	}{
		{name: "structured command json", path: "jelctl env get", format: OutputJSON, wantErr: false},
		{name: "text only command auto", path: "jelctl nodegroup read-file", format: OutputAuto, wantErr: false},
		{name: "text only command text", path: "jelctl nodegroup read-file", format: OutputText, wantErr: false},
		{name: "text only command json rejected", path: "jelctl nodegroup read-file", format: OutputJSON, wantErr: true},
		{name: "yaml default command yaml", path: "jelctl config show", format: OutputYAML, wantErr: false},
		{name: "yaml default command text", path: "jelctl config show", format: OutputText, wantErr: false},
		{name: "yaml default command json rejected", path: "jelctl config show", format: OutputJSON, wantErr: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateOutputFormatForCommandPath(testCase.path, testCase.format)
			if (err != nil) != testCase.wantErr {
				t.Fatalf("ValidateOutputFormatForCommandPath(%q, %q) error=%v, wantErr=%t", testCase.path, testCase.format, err, testCase.wantErr)
			}
		})
	}
}

func TestFilterJQ(t *testing.T) {
	t.Parallel()

	reply := map[string]any{
		"result": json.Number("0"),
		"infos": []any{
			map[string]any{"env": map[string]any{"envName": "shop", "status": 1}},
			map[string]any{"env": map[string]any{"envName": "blog", "status": 2}},
		},
	}

	testCases := []struct {
		name       string
		expression string
		want       any
	}{
		{name: "empty expression", expression: " ", want: reply},
		{name: "single result", expression: ".result", want: float64(0)},
		{name: "several results", expression: ".infos[].env.envName", want: []any{"shop", "blog"}},
		{name: "no result", expression: ".infos[] | select(.env.status == 5)", want: nil},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := FilterJQ(context.Background(), reply, testCase.expression)
			if err != nil {
				t.Fatalf("FilterJQ returned error: %v", err)
			}
			if diff := cmp.Diff(testCase.want, got); diff != "" {
				t.Fatalf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterJQRejectsInvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := FilterJQ(context.Background(), map[string]any{}, ".[")
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseAssignments(t *testing.T) {
	t.Parallel()

	got, err := ParseAssignments([]string{"envName=shop", "env.region=eu-1", "count:=2", `nodes:=[{"count":1}]`})
	if err != nil {
		t.Fatalf("ParseAssignments returned error: %v", err)
	}
	want := map[string]any{
		"envName": "shop",
		"env":     map[string]any{"region": "eu-1"},
		"count":   float64(2),
		"nodes":   []any{map[string]any{"count": float64(1)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected arguments (-want +got):\n%s", diff)
	}

	for _, invalid := range [][]string{{"novalue"}, {"=x"}, {"a=1", "a.b=2"}, {"n:=nope"}} {
		if _, err := ParseAssignments(invalid); !faults.IsCategory(err, faults.ValidationError) {
			t.Fatalf("expected validation error for %v, got %v", invalid, err)
		}
	}
}

func TestResolveNameInput(t *testing.T) {
	t.Parallel()

	if name, err := ResolveNameInput("environment", "", []string{"shop"}, true); err != nil || name != "shop" {
		t.Fatalf("expected positional name, got %q, %v", name, err)
	}
	if name, err := ResolveNameInput("environment", "shop", []string{"shop"}, true); err != nil || name != "shop" {
		t.Fatalf("expected matching flag and argument to be accepted, got %q, %v", name, err)
	}
	if _, err := ResolveNameInput("environment", "blog", []string{"shop"}, true); err == nil {
		t.Fatal("expected mismatch error")
	}
	if _, err := ResolveNameInput("environment", "", nil, true); err == nil {
		t.Fatal("expected required error")
	}
}
