package attr

import (
	"errors"
	"slices"
	"testing"

	"github.com/crmarques/jelapi/faults"
	"github.com/google/go-cmp/cmp"
)

type member struct {
	diverged bool
}

func (m *member) Diverged() bool {
	return m.diverged
}

var testSchema = NewSchema(
	"widget",
	Field{Name: "id", ReadOnly: true, Check: Int},
	Field{Name: "name", Check: String},
	Field{Name: "tags", Check: StringList},
	Field{Name: "notes", Diff: DiffIgnored, Check: String},
	Field{Name: "members", Diff: DiffDeep, Check: Of[List[*member]]()},
	Field{Name: "vars", Lazy: true, Check: StringMap},
)

func newRemoteWidget(t *testing.T) *Record {
	t.Helper()

	record := NewRecord(testSchema, OriginRemote)
	mustLoad(t, record, "id", 7)
	mustLoad(t, record, "name", "initial")
	mustLoad(t, record, "tags", []string{"a", "b"})
	mustLoad(t, record, "members", List[*member]{{}, {}})
	record.TakeSnapshot()
	return record
}

func mustLoad(t *testing.T, record *Record, name string, value any) {
	t.Helper()
	if err := record.Load(name, value); err != nil {
		t.Fatalf("Load(%q) returned error: %v", name, err)
	}
}

func assertCategory(t *testing.T, err error, category faults.ErrorCategory) {
	t.Helper()
	if !faults.IsCategory(err, category) {
		t.Fatalf("expected %s, got %v", category, err)
	}
}

func TestRecordSetRejections(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)

	assertCategory(t, record.Set("id", 8), faults.ObjectStateError)
	assertCategory(t, record.Set("name", 8), faults.TypeMismatchError)
	assertCategory(t, record.Set("missing", "x"), faults.ObjectStateError)
	assertCategory(t, record.Load("id", "eight"), faults.TypeMismatchError)

	if got := Value[int](record, "id"); got != 7 {
		t.Fatalf("expected read-only id to stay 7, got %d", got)
	}
	if got := Value[string](record, "name"); got != "initial" {
		t.Fatalf("expected rejected write to leave name untouched, got %q", got)
	}
}

func TestRecordFromRemoteDoesNotDiverge(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	if record.Diverged() {
		t.Fatalf("expected fresh remote record not to diverge, changed=%v", record.ChangedFields())
	}
	if !record.Synced() {
		t.Fatal("expected remote record to be synced after snapshot")
	}
}

func TestRecordLocalAlwaysDivergesUntilSnapshot(t *testing.T) {
	t.Parallel()

	record := NewRecord(testSchema, OriginLocal)
	if !record.Diverged() {
		t.Fatal("expected never synchronized record to diverge")
	}
	if record.FetchState("vars") != Fetched {
		t.Fatalf("expected local lazy field to start fetched, got %s", record.FetchState("vars"))
	}

	record.TakeSnapshot()
	if record.Diverged() {
		t.Fatalf("expected record not to diverge after snapshot, changed=%v", record.ChangedFields())
	}
}

func TestRecordScalarDivergence(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)

	if err := record.Set("name", "initial"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if record.Diverged() {
		t.Fatal("expected equal assignment not to diverge")
	}

	if err := record.Set("name", "changed"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if !record.Diverged() {
		t.Fatal("expected different assignment to diverge")
	}
	if diff := cmp.Diff([]string{"name"}, record.ChangedFields()); diff != "" {
		t.Fatalf("unexpected changed fields (-want +got):\n%s", diff)
	}

	if err := record.Set("name", "initial"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if record.Diverged() {
		t.Fatal("expected re-assigning the original value to restore convergence")
	}
}

func TestRecordShallowCollectionDivergence(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)

	tags := Value[[]string](record, "tags")
	tags[0] = "mutated"
	if !record.Diverged() {
		t.Fatal("expected in-place mutation of a list to diverge from the copied baseline")
	}

	if err := record.Set("tags", []string{"a", "b"}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if record.Diverged() {
		t.Fatal("expected equal list not to diverge")
	}

	if err := record.Set("tags", []string{"a"}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if !record.Changed("tags") {
		t.Fatal("expected shorter list to be changed")
	}
}

func TestRecordIgnoredFieldNeverDiverges(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	if err := record.Set("notes", "anything"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if record.Diverged() {
		t.Fatal("expected ignored field not to contribute to divergence")
	}
}

func TestRecordDeepCollectionDivergence(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	members := Value[List[*member]](record, "members")

	extra := &member{}
	if err := record.Set("members", append(slices.Clone(members), extra)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if !record.Diverged() {
		t.Fatal("expected appended member to diverge")
	}

	if err := record.Set("members", members); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if record.Diverged() {
		t.Fatal("expected removing the appended member to restore convergence")
	}

	if err := record.Set("members", members[:1]); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if !record.Diverged() {
		t.Fatal("expected removing one of two members to diverge")
	}

	if err := record.Set("members", members); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	members[1].diverged = true
	if !record.Diverged() {
		t.Fatal("expected diverged member to make the collection diverge")
	}
}

func TestRecordDivergedIsPure(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	if err := record.Set("name", "changed"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	for range 3 {
		if !record.Diverged() {
			t.Fatal("expected repeated Diverged calls to keep reporting divergence")
		}
	}
	baseline, ok := record.Baseline("name")
	if !ok || baseline != "initial" {
		t.Fatalf("expected baseline to stay initial, got %v ok=%t", baseline, ok)
	}
}

func TestRecordTakeSnapshotSubset(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	if err := record.Set("name", "changed"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := record.Set("tags", []string{"z"}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	record.TakeSnapshot("name")
	record.TakeSnapshot("name")
	if record.Changed("name") {
		t.Fatal("expected snapshotted field to converge")
	}
	if !record.Changed("tags") {
		t.Fatal("expected unrelated field to keep its baseline")
	}
}

func TestRecordEnsureFetchedOnce(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	if record.FetchState("vars") != NotFetched {
		t.Fatalf("expected remote lazy field to start not fetched, got %s", record.FetchState("vars"))
	}

	calls := 0
	fetch := func() (any, error) {
		calls++
		return map[string]string{"A": "1"}, nil
	}
	for range 3 {
		if err := record.EnsureFetched("vars", fetch); err != nil {
			t.Fatalf("EnsureFetched returned error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", calls)
	}
	if record.Diverged() {
		t.Fatal("expected fetched field to be snapshotted")
	}

	vars := Value[map[string]string](record, "vars")
	vars["B"] = "2"
	if !record.Diverged() {
		t.Fatal("expected mutation of fetched map to diverge")
	}
}

func TestRecordEnsureFetchedFailureKeepsNotFetched(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	boom := errors.New("boom")
	err := record.EnsureFetched("vars", func() (any, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if record.FetchState("vars") != NotFetched {
		t.Fatalf("expected failed fetch to reset state, got %s", record.FetchState("vars"))
	}

	err = record.EnsureFetched("vars", func() (any, error) { return 12, nil })
	assertCategory(t, err, faults.TypeMismatchError)
	if record.FetchState("vars") != NotFetched {
		t.Fatalf("expected rejected value to reset state, got %s", record.FetchState("vars"))
	}
}

func TestRecordEnsureFetchedReentrant(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	var inner error
	err := record.EnsureFetched("vars", func() (any, error) {
		inner = record.EnsureFetched("vars", func() (any, error) { return map[string]string{}, nil })
		if record.FetchState("vars") != Fetching {
			t.Errorf("expected fetching state during fetch, got %s", record.FetchState("vars"))
		}
		assertCategory(t, record.Set("vars", map[string]string{}), faults.ObjectStateError)
		return map[string]string{"A": "1"}, nil
	})
	if err != nil {
		t.Fatalf("EnsureFetched returned error: %v", err)
	}
	assertCategory(t, inner, faults.ObjectStateError)
}

func TestRecordBlindLocalValue(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	if err := record.Set("vars", map[string]string{"A": "guess"}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if !record.Diverged() {
		t.Fatal("expected a blind value on a never fetched field to diverge")
	}

	called := false
	err := record.EnsureFetched("vars", func() (any, error) {
		called = true
		return map[string]string{}, nil
	})
	assertCategory(t, err, faults.ObjectStateError)
	if called {
		t.Fatal("expected fetch not to overwrite a locally seeded value")
	}

	if err := record.Set("vars", map[string]string(nil)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if record.Diverged() {
		t.Fatal("expected clearing the blind value to restore convergence")
	}
}

func TestRecordAssume(t *testing.T) {
	t.Parallel()

	record := newRemoteWidget(t)
	if err := record.Set("vars", map[string]string{"A": "1"}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	record.Assume("vars", map[string]string{})
	if record.FetchState("vars") != Fetched {
		t.Fatalf("expected assumed field to be fetched, got %s", record.FetchState("vars"))
	}
	if !record.Changed("vars") {
		t.Fatal("expected value to diverge from the assumed empty baseline")
	}
}

func TestRecordAdoptKeepsDesiredValues(t *testing.T) {
	t.Parallel()

	record := NewRecord(testSchema, OriginLocal)
	if err := record.Set("name", "desired"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	record.Adopt(map[string]any{"name": "remote"})

	if !record.Synced() {
		t.Fatal("expected adopted record to be synced")
	}
	if got := Value[string](record, "name"); got != "desired" {
		t.Fatalf("expected desired value to survive, got %q", got)
	}
	if diff := cmp.Diff([]string{"name"}, record.ChangedFields()); diff != "" {
		t.Fatalf("unexpected changed fields (-want +got):\n%s", diff)
	}

	record.Forget()
	if record.Synced() || !record.Diverged() {
		t.Fatal("expected forgotten record to diverge")
	}
}
