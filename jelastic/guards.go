package jelastic

import (
	"github.com/crmarques/jelapi/attr"
)

// Guards run before any write of the resource they protect and report
// ObjectState errors.

func checkFlexibleReduction(n *Node) error {
	baseline, ok := n.record.Baseline("flexibleCloudlets")
	if !ok {
		return nil
	}
	previous, _ := baseline.(int)
	if n.FlexibleCloudlets() >= previous || n.allowFlexibleReduction {
		return nil
	}
	return objectStateError(
		"%s: lowering flexible cloudlets from %d to %d requires AllowFlexibleCloudletsReduction",
		n.label(), previous, n.FlexibleCloudlets(),
	)
}

// checkBlindWrites rejects lazy fields holding a value while their remote
// state was never fetched.
func checkBlindWrites(r *resource, label string, names ...string) error {
	for _, name := range names {
		if r.record.FetchState(name) == attr.Fetched {
			continue
		}
		if !r.record.Changed(name) {
			continue
		}
		return objectStateError("%s: %s was set without being fetched first; its remote value would be overwritten", label, name)
	}
	return nil
}

func checkEnvVarsWipeOut(g *NodeGroup) error {
	baseline, ok := g.record.Baseline("envVars")
	if !ok {
		return nil
	}
	previous, _ := baseline.(map[string]string)
	current := attr.Value[map[string]string](g.record, "envVars")
	if len(previous) > 0 && len(current) == 0 {
		return objectStateError("%s: refusing to remove all %d environment variables", g.label(), len(previous))
	}
	return nil
}

func checkDuplicatePaths(label string, kind string, paths []string) error {
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if _, exists := seen[path]; exists {
			return objectStateError("%s: duplicate %s path %q", label, kind, path)
		}
		seen[path] = struct{}{}
	}
	return nil
}

func checkMountPointSources(g *NodeGroup, mountPoints []*MountPoint) error {
	for _, mountPoint := range mountPoints {
		if mountPoint.Synced() {
			continue
		}
		ref, ok := g.scope.lookupNode(mountPoint.SourceNodeID())
		if !ok {
			return objectStateError("%s: source node %d of mount point %s is not in the environment",
				g.label(), mountPoint.SourceNodeID(), mountPoint.Path())
		}
		if ref.group == g.Name() {
			return objectStateError("%s: mount point %s must be sourced from another node group",
				g.label(), mountPoint.Path())
		}
	}
	return nil
}
