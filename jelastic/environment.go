package jelastic

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/crmarques/jelapi/attr"
	"github.com/crmarques/jelapi/connector"
)

const (
	maxEnvNameLength = 33
	createdOnLayout  = "2006-01-02 15:04:05"
)

var environmentSchema = attr.NewSchema(
	"environment",
	attr.Field{Name: "envName", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "shortdomain", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "domain", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "hardwareNodeGroup", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "ishaenabled", ReadOnly: true, Check: attr.Bool},
	attr.Field{Name: "appid", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "createdOn", ReadOnly: true, Check: attr.Optional(attr.Time)},
	attr.Field{Name: "displayName", Check: attr.String},
	attr.Field{Name: "envGroups", Check: attr.StringList},
	attr.Field{Name: "extdomains", Check: attr.StringList},
	attr.Field{Name: "status", Check: attr.Of[EnvStatus]()},
	attr.Field{Name: "sslstate", Check: attr.Bool},
	attr.Field{Name: "nodeGroups", Diff: attr.DiffDeep, Check: attr.Of[attr.Map[string, *NodeGroup]]()},
)

// Environment is the root of a resource tree.
type Environment struct {
	resource
	scope *envScope
}

// decodeEnvironment builds an environment from a GetEnvInfo reply, or from
// one entry of GetEnvs.
func decodeEnvironment(client *Client, info map[string]any) (*Environment, error) {
	envData, err := connector.Object(info, "env")
	if err != nil {
		return nil, err
	}
	envName, err := connector.String(envData, "envName")
	if err != nil {
		return nil, err
	}
	if envName == "" {
		return nil, malformedReply("environment without envName")
	}

	env := &Environment{
		resource: resource{record: attr.NewRecord(environmentSchema, attr.OriginRemote)},
		scope:    newEnvScope(client, envName),
	}
	if err := env.loadReadOnly(envData); err != nil {
		return nil, err
	}
	if err := env.loadMutable(envData); err != nil {
		return nil, err
	}

	envGroups, err := connector.Strings(info, "envGroups")
	if err != nil {
		return nil, err
	}
	if envGroups == nil {
		envGroups = []string{}
	}
	env.mustLoad("envGroups", envGroups)

	groups, err := decodeNodeGroups(env.scope, info)
	if err != nil {
		return nil, err
	}
	env.mustLoad("nodeGroups", groups)

	env.scope.status = env.Status()
	env.scope.index(groups)
	env.record.TakeSnapshot()
	return env, nil
}

func decodeNodeGroups(scope *envScope, info map[string]any) (attr.Map[string, *NodeGroup], error) {
	groupItems, err := connector.Objects(info, "nodeGroups")
	if err != nil {
		return nil, err
	}
	nodeItems, err := connector.Objects(info, "nodes")
	if err != nil {
		return nil, err
	}

	nodesByGroup := map[string]attr.List[*Node]{}
	firstNode := map[string]map[string]any{}
	var order []string
	for _, data := range nodeItems {
		groupName, err := connector.String(data, "nodeGroup")
		if err != nil {
			return nil, err
		}
		node, err := decodeNode(scope, groupName, data)
		if err != nil {
			return nil, err
		}
		if _, seen := firstNode[groupName]; !seen {
			firstNode[groupName] = data
			order = append(order, groupName)
		}
		nodesByGroup[groupName] = append(nodesByGroup[groupName], node)
	}

	groups := attr.Map[string, *NodeGroup]{}
	for _, data := range groupItems {
		name, err := connector.String(data, "name")
		if err != nil {
			return nil, err
		}
		group, err := decodeNodeGroup(scope, data, nodesByGroup[name], firstNode[name])
		if err != nil {
			return nil, err
		}
		groups[name] = group
	}
	// Nodes of groups missing from the nodeGroups description.
	for _, name := range order {
		if _, ok := groups[name]; ok {
			continue
		}
		group, err := decodeNodeGroup(scope, map[string]any{"name": name}, nodesByGroup[name], firstNode[name])
		if err != nil {
			return nil, err
		}
		groups[name] = group
	}
	return groups, nil
}

func (e *Environment) loadReadOnly(envData map[string]any) error {
	values := make([]fieldValue, 0, 7)
	for _, name := range []string{"envName", "shortdomain", "domain", "hardwareNodeGroup", "appid"} {
		value, err := connector.String(envData, name)
		if err != nil {
			return err
		}
		values = append(values, fieldValue{name, value})
	}
	ha, err := connector.Bool(envData, "ishaenabled")
	if err != nil {
		return err
	}
	values = append(values, fieldValue{"ishaenabled", ha})

	createdOn, err := connector.String(envData, "createdOn")
	if err != nil {
		return err
	}
	if createdOn != "" {
		parsed, err := time.Parse(createdOnLayout, createdOn)
		if err != nil {
			return malformedReply("createdOn %q: %v", createdOn, err)
		}
		values = append(values, fieldValue{"createdOn", parsed})
	}
	return e.loadAll(values...)
}

func (e *Environment) loadMutable(envData map[string]any) error {
	displayName, err := connector.String(envData, "displayName")
	if err != nil {
		return err
	}
	code, err := connector.IntOr(envData, "status", int(StatusUnknown))
	if err != nil {
		return err
	}
	extDomains, err := connector.Strings(envData, "extdomains")
	if err != nil {
		return err
	}
	if extDomains == nil {
		extDomains = []string{}
	}
	sslState, err := connector.Bool(envData, "sslstate")
	if err != nil {
		return err
	}
	return e.loadAll(
		fieldValue{"displayName", displayName},
		fieldValue{"status", statusFromCode(code)},
		fieldValue{"extdomains", extDomains},
		fieldValue{"sslstate", sslState},
	)
}

func (e *Environment) EnvName() string {
	return attr.Value[string](e.record, "envName")
}

func (e *Environment) ShortDomain() string {
	return attr.Value[string](e.record, "shortdomain")
}

func (e *Environment) Domain() string {
	return attr.Value[string](e.record, "domain")
}

// HardwareNodeGroup is the region the environment runs in.
func (e *Environment) HardwareNodeGroup() string {
	return attr.Value[string](e.record, "hardwareNodeGroup")
}

func (e *Environment) IsHAEnabled() bool {
	return attr.Value[bool](e.record, "ishaenabled")
}

func (e *Environment) AppID() string {
	return attr.Value[string](e.record, "appid")
}

// CreatedOn is the zero time when the platform did not report it.
func (e *Environment) CreatedOn() time.Time {
	return attr.Value[time.Time](e.record, "createdOn")
}

func (e *Environment) DisplayName() string {
	return attr.Value[string](e.record, "displayName")
}

func (e *Environment) SetDisplayName(displayName string) {
	e.mustSet("displayName", displayName)
}

func (e *Environment) EnvGroups() []string {
	return slices.Clone(attr.Value[[]string](e.record, "envGroups"))
}

func (e *Environment) SetEnvGroups(groups []string) {
	e.mustSet("envGroups", cloneStrings(groups))
}

func (e *Environment) ExtDomains() []string {
	return slices.Clone(attr.Value[[]string](e.record, "extdomains"))
}

func (e *Environment) SetExtDomains(domains []string) {
	e.mustSet("extdomains", cloneStrings(domains))
}

func (e *Environment) Status() EnvStatus {
	return attr.Value[EnvStatus](e.record, "status")
}

// SetStatus records the desired status. Only running, stopped and sleeping
// can be requested; the next save reports other targets.
func (e *Environment) SetStatus(status EnvStatus) {
	e.mustSet("status", status)
}

func (e *Environment) SSLState() bool {
	return attr.Value[bool](e.record, "sslstate")
}

func (e *Environment) SetSSLState(enabled bool) {
	e.mustSet("sslstate", enabled)
}

func (e *Environment) nodeGroups() attr.Map[string, *NodeGroup] {
	return attr.Value[attr.Map[string, *NodeGroup]](e.record, "nodeGroups")
}

// NodeGroups returns the node groups by name.
func (e *Environment) NodeGroups() map[string]*NodeGroup {
	return maps.Clone(e.nodeGroups())
}

func (e *Environment) NodeGroup(name string) (*NodeGroup, bool) {
	group, ok := e.nodeGroups()[name]
	return group, ok
}

// AttachNodeGroup adds a node group, created by the next save.
func (e *Environment) AttachNodeGroup(group *NodeGroup) error {
	groups := e.nodeGroups()
	if _, exists := groups[group.Name()]; exists {
		return objectStateError("%s: node group %s already exists", e.EnvName(), group.Name())
	}
	group.attach(e.scope)
	updated := maps.Clone(groups)
	updated[group.Name()] = group
	e.mustSet("nodeGroups", updated)
	return nil
}

// DetachNodeGroup removes a node group, destroyed by the next save.
func (e *Environment) DetachNodeGroup(name string) error {
	groups := e.nodeGroups()
	if _, exists := groups[name]; !exists {
		return objectStateError("%s: no node group %s", e.EnvName(), name)
	}
	updated := maps.Clone(groups)
	delete(updated, name)
	e.mustSet("nodeGroups", updated)
	return nil
}

// NodeByNodeGroup returns the first node of a node group.
func (e *Environment) NodeByNodeGroup(name string) (*Node, error) {
	group, ok := e.nodeGroups()[name]
	if !ok {
		return nil, objectStateError("%s: no node group %s", e.EnvName(), name)
	}
	nodes := group.nodes()
	if len(nodes) == 0 {
		return nil, objectStateError("%s: node group %s has no node", e.EnvName(), name)
	}
	return nodes[0], nil
}

func (e *Environment) String() string {
	return fmt.Sprintf("environment %s <https://%s>", e.EnvName(), e.Domain())
}

// Save pushes every change of the environment and of its node groups. All
// guards of the tree run before the first write.
func (e *Environment) Save(ctx context.Context) error {
	return e.save(ctx, e.EnvName(), saveSteps{validate: e.validate, persist: e.persist})
}

func (e *Environment) validate() error {
	groups := e.nodeGroups()
	if len(groups) == 0 {
		return objectStateError("%s: an environment needs at least one node group", e.EnvName())
	}
	if err := e.validateStatus(); err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		if err := groups[name].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Environment) validateStatus() error {
	if !e.record.Changed("status") {
		return nil
	}
	target := e.Status()
	switch target {
	case StatusRunning, StatusSleeping:
		return nil
	case StatusStopped:
		if e.scope.status != StatusRunning {
			return objectStateError("%s: cannot stop an environment that is %s", e.EnvName(), e.scope.status)
		}
		return nil
	default:
		return objectStateError("%s: status %s cannot be requested", e.EnvName(), target)
	}
}

func (e *Environment) persist(ctx context.Context) error {
	if err := e.saveDisplayName(ctx); err != nil {
		return err
	}
	if err := e.saveEnvGroups(ctx); err != nil {
		return err
	}
	if err := e.saveExtDomains(ctx); err != nil {
		return err
	}
	if err := e.saveStatus(ctx); err != nil {
		return err
	}
	return e.saveTopologyAndNodeGroups(ctx)
}

func (e *Environment) saveDisplayName(ctx context.Context) error {
	if !e.record.Changed("displayName") {
		return nil
	}
	displayName := e.DisplayName()
	if _, err := e.scope.call(ctx, fnSetEnvDisplayName, map[string]any{"displayName": displayName}); err != nil {
		return err
	}
	e.record.Assume("displayName", displayName)
	return nil
}

func (e *Environment) saveEnvGroups(ctx context.Context) error {
	if !e.record.Changed("envGroups") {
		return nil
	}
	groups := e.EnvGroups()
	if _, err := e.scope.call(ctx, fnSetEnvGroup, map[string]any{"envGroups": groups}); err != nil {
		return err
	}
	e.record.Assume("envGroups", groups)
	return nil
}

func (e *Environment) saveExtDomains(ctx context.Context) error {
	if !e.record.Changed("extdomains") {
		return nil
	}
	current := e.ExtDomains()
	baseline, _ := e.record.Baseline("extdomains")
	previous, _ := baseline.([]string)

	for _, domain := range previous {
		if slices.Contains(current, domain) {
			continue
		}
		if _, err := e.scope.call(ctx, fnRemoveExtDomain, map[string]any{"extdomain": domain}); err != nil {
			return err
		}
	}
	for _, domain := range current {
		if slices.Contains(previous, domain) {
			continue
		}
		if _, err := e.scope.call(ctx, fnBindExtDomain, map[string]any{"extdomain": domain}); err != nil {
			return err
		}
	}
	e.record.Assume("extdomains", current)
	return nil
}

func (e *Environment) saveStatus(ctx context.Context) error {
	if !e.record.Changed("status") {
		return nil
	}
	target := e.Status()
	var function string
	switch target {
	case StatusRunning:
		function = fnStartEnv
	case StatusStopped:
		function = fnStopEnv
	case StatusSleeping:
		function = fnSleepEnv
	default:
		return objectStateError("%s: status %s cannot be requested", e.EnvName(), target)
	}
	if _, err := e.scope.call(ctx, function, nil); err != nil {
		return err
	}
	e.record.Assume("status", target)
	e.scope.status = target
	return nil
}

func (e *Environment) saveTopologyAndNodeGroups(ctx context.Context) error {
	if e.topologyNeeded() {
		if err := e.changeTopology(ctx); err != nil {
			return err
		}
	}
	groups := e.nodeGroups()
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		if err := groups[name].saveAttached(ctx); err != nil {
			return err
		}
	}
	e.record.Assume("nodeGroups", groups)
	return nil
}

// Start starts the environment immediately, leaving other changes pending.
func (e *Environment) Start(ctx context.Context) error {
	return e.applyStatus(ctx, StatusRunning)
}

// Stop stops a running environment immediately.
func (e *Environment) Stop(ctx context.Context) error {
	return e.applyStatus(ctx, StatusStopped)
}

// Sleep puts the environment to sleep immediately.
func (e *Environment) Sleep(ctx context.Context) error {
	return e.applyStatus(ctx, StatusSleeping)
}

func (e *Environment) applyStatus(ctx context.Context, status EnvStatus) error {
	e.SetStatus(status)
	if err := e.validateStatus(); err != nil {
		return err
	}
	return e.saveStatus(ctx)
}

// Refresh reloads the environment from the platform, discarding local
// changes.
func (e *Environment) Refresh(ctx context.Context) error {
	fresh, err := e.scope.client.Environment(ctx, e.EnvName())
	if err != nil {
		return err
	}
	*e = *fresh
	return nil
}

// Clone clones the environment under a new name and returns the clone.
func (e *Environment) Clone(ctx context.Context, name string) (*Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, objectStateError("%s: clone name is required", e.EnvName())
	}
	if len(name) > maxEnvNameLength {
		return nil, objectStateError("%s: environment names cannot be longer than %d characters", e.EnvName(), maxEnvNameLength)
	}
	if _, err := e.scope.caller.Call(ctx, fnCloneEnv, map[string]any{
		"srcEnvName": e.EnvName(),
		"dstEnvName": name,
	}); err != nil {
		return nil, err
	}
	return e.scope.client.Environment(ctx, name)
}

// SumStats returns the usage statistics over the last duration.
func (e *Environment) SumStats(ctx context.Context, duration time.Duration) ([]any, error) {
	if duration <= 0 {
		return nil, objectStateError("%s: statistics duration must be positive", e.EnvName())
	}
	body, err := e.scope.call(ctx, fnGetSumStat, map[string]any{"duration": int(duration / time.Second)})
	if err != nil {
		return nil, err
	}
	stats, err := connector.List(body, "stats")
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []any{}
	}
	return stats, nil
}

func cloneStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return slices.Clone(values)
}
