package jelastic

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/crmarques/jelapi/attr"
	"github.com/crmarques/jelapi/connector"
	"github.com/crmarques/jelapi/faults"
	"github.com/go-logr/logr"
)

// topologyNeeded reports whether the environment structure changed: node
// groups added or removed, SSL state, or a structural change in a group.
func (e *Environment) topologyNeeded() bool {
	if e.record.Changed("sslstate") {
		return true
	}
	baseline, _ := e.record.Baseline("nodeGroups")
	previous, _ := baseline.(attr.Map[string, *NodeGroup])
	current := e.nodeGroups()
	if len(previous) != len(current) {
		return true
	}
	for name, group := range current {
		if previous[name] != group {
			return true
		}
		if group.structuralChangePending() {
			return true
		}
	}
	return false
}

func (e *Environment) topologyEnv() map[string]any {
	return map[string]any{
		"displayName": e.DisplayName(),
		"ishaenabled": e.IsHAEnabled(),
		"region":      e.HardwareNodeGroup(),
		"shortdomain": e.ShortDomain(),
		"sslstate":    e.SSLState(),
	}
}

// topologyEntry describes the node group as ChangeTopology expects it. Lazy
// collections are only sent once known.
func (g *NodeGroup) topologyEntry() map[string]any {
	nodes := g.nodes()
	entry := map[string]any{
		"nodeGroup":   g.Name(),
		"nodeType":    g.NodeType(),
		"count":       len(nodes),
		"diskLimit":   g.DiskLimit(),
		"displayName": g.DisplayName(),
	}
	if len(nodes) > 0 {
		entry["fixedCloudlets"] = nodes[0].FixedCloudlets()
		entry["flexibleCloudlets"] = nodes[0].FlexibleCloudlets()
	}
	if image := g.Image(); image != "" {
		entry["image"] = image
	}
	if g.record.FetchState("links") == attr.Fetched {
		entry["links"] = attr.Value[[]string](g.record, "links")
	}
	if g.record.FetchState("envVars") == attr.Fetched {
		entry["env"] = attr.Value[map[string]string](g.record, "envVars")
	}
	if g.record.FetchState("containerVolumes") == attr.Fetched {
		volumes := attr.Value[attr.List[*ContainerVolume]](g.record, "containerVolumes")
		paths := make([]string, 0, len(volumes))
		for _, containerVolume := range volumes {
			paths = append(paths, containerVolume.Path())
		}
		entry["volumes"] = paths
	}
	return entry
}

// changeTopology pushes the desired structure in one bulk call, then rebuilds
// the tree from the canonical reply while keeping the desired configuration
// of every child, so that the following per-group saves apply it.
func (e *Environment) changeTopology(ctx context.Context) error {
	groups := e.nodeGroups()
	names := slices.Sorted(maps.Keys(groups))
	entries := make([]map[string]any, 0, len(names))
	for _, name := range names {
		entries = append(entries, groups[name].topologyEntry())
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("changing topology", "nodeGroups", names)
	body, err := e.scope.call(ctx, fnChangeTopology, map[string]any{
		"env":   e.topologyEnv(),
		"nodes": entries,
	})
	if err != nil {
		return err
	}
	response, err := connector.Object(body, "response")
	if err != nil {
		return err
	}
	if connector.Has(response, "error") {
		return faults.RemoteCall(fmt.Sprintf("ChangeTopology of %s failed: %v", e.EnvName(), response["error"]), nil)
	}
	return e.rebuildTopology(response)
}

func (e *Environment) rebuildTopology(response map[string]any) error {
	envData, err := connector.Object(response, "env")
	if err != nil {
		return err
	}
	if err := e.loadReadOnly(envData); err != nil {
		return err
	}
	sslState, err := connector.Bool(envData, "sslstate")
	if err != nil {
		return err
	}
	e.mustSet("sslstate", sslState)
	e.record.Assume("sslstate", sslState)

	replyNodes, err := connector.Objects(response, "nodes")
	if err != nil {
		return err
	}

	groups := e.nodeGroups()
	known := map[int]*Node{}
	for _, group := range groups {
		for _, node := range group.nodes() {
			if node.ID() != 0 {
				known[node.ID()] = node
			}
		}
	}

	// Reply nodes per group, in reply order.
	matched := map[*Node]map[string]any{}
	unmatched := map[string][]map[string]any{}
	for _, data := range replyNodes {
		id, err := connector.Int(data, "id")
		if err != nil {
			return err
		}
		groupName, err := connector.String(data, "nodeGroup")
		if err != nil {
			return err
		}
		if _, ok := groups[groupName]; !ok {
			return malformedReply("node %d belongs to unknown node group %q", id, groupName)
		}
		if node, ok := known[id]; ok {
			matched[node] = data
			continue
		}
		unmatched[groupName] = append(unmatched[groupName], data)
	}

	for name, group := range groups {
		existing := group.Synced()
		pending := unmatched[name]
		rebuilt := make(attr.List[*Node], 0, len(group.nodes())+len(pending))

		for _, node := range group.nodes() {
			data, ok := matched[node]
			if !ok && node.ID() == 0 && len(pending) > 0 {
				data, pending, ok = pending[0], pending[1:], true
			}
			if !ok {
				continue
			}
			if err := node.adopt(e.scope, name, data); err != nil {
				return err
			}
			rebuilt = append(rebuilt, node)
		}
		for _, data := range pending {
			node, err := decodeNode(e.scope, name, data)
			if err != nil {
				return err
			}
			rebuilt = append(rebuilt, node)
		}

		group.adoptTopology(e.scope, rebuilt, existing)
	}

	e.scope.index(groups)
	return nil
}

// adopt takes the remote identity and cloudlets of a node from a topology
// reply while keeping the desired cloudlets as current values.
func (n *Node) adopt(scope *envScope, group string, data map[string]any) error {
	fixed, flexible := n.FixedCloudlets(), n.FlexibleCloudlets()
	if err := n.load(data); err != nil {
		return err
	}
	remote := map[string]any{
		"fixedCloudlets":    n.FixedCloudlets(),
		"flexibleCloudlets": n.FlexibleCloudlets(),
	}
	n.mustSet("fixedCloudlets", fixed)
	n.mustSet("flexibleCloudlets", flexible)
	n.record.Adopt(remote)
	n.scope = scope
	n.group = group
	return nil
}

// adoptTopology records what ChangeTopology wrote for the node group as its
// baseline. Mount points and SLB access are not part of the topology: new
// groups start from an empty remote state for them, existing groups keep
// theirs.
func (g *NodeGroup) adoptTopology(scope *envScope, nodes attr.List[*Node], existing bool) {
	g.mustSet("nodes", nodes)
	g.attach(scope)

	baseline := map[string]any{
		"nodes":       nodes,
		"displayName": g.DisplayName(),
		"diskLimit":   g.DiskLimit(),
	}
	if g.record.FetchState("links") == attr.Fetched {
		baseline["links"] = attr.Value[[]string](g.record, "links")
	}
	if g.record.FetchState("envVars") == attr.Fetched {
		baseline["envVars"] = attr.Value[map[string]string](g.record, "envVars")
	}
	if g.record.FetchState("containerVolumes") == attr.Fetched {
		volumes := attr.Value[attr.List[*ContainerVolume]](g.record, "containerVolumes")
		for _, containerVolume := range volumes {
			containerVolume.record.TakeSnapshot()
		}
		baseline["containerVolumes"] = volumes
	}
	if !existing {
		baseline["isSLBAccessEnabled"] = false
		baseline["mountPoints"] = attr.List[*MountPoint]{}
	}
	g.record.Adopt(baseline)
}
