package apply

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/crmarques/jelapi/jelastic"
	"github.com/go-logr/logr"
)

type Dependencies struct {
	Client *jelastic.Client
}

type ExecuteOptions struct {
	DryRun bool
}

// Change lists the diverged fields of one resource of the tree.
type Change struct {
	Resource string   `json:"resource" yaml:"resource"`
	Fields   []string `json:"fields" yaml:"fields"`
}

type Changes []Change

// Execute fetches the environment of the document, stages the document onto
// it and saves it unless options.DryRun is set.
func Execute(ctx context.Context, deps Dependencies, document Document, options ExecuteOptions) (Changes, error) {
	if deps.Client == nil {
		return nil, validationError("client is not configured", nil)
	}
	env, err := deps.Client.Environment(ctx, document.Environment)
	if err != nil {
		return nil, err
	}
	if options.DryRun {
		return Plan(ctx, env, document)
	}
	return Apply(ctx, env, document)
}

// Plan stages the document onto env and reports what a save would change.
// Lazy collections named by the document are fetched.
func Plan(ctx context.Context, env *jelastic.Environment, document Document) (Changes, error) {
	if document.Environment != "" && document.Environment != env.EnvName() {
		return nil, validationError(
			fmt.Sprintf("document targets environment %q, not %q", document.Environment, env.EnvName()),
			nil,
		)
	}
	if err := setFields(env, document.Fields); err != nil {
		return nil, fmt.Errorf("environment %s: %w", env.EnvName(), err)
	}
	for _, name := range slices.Sorted(maps.Keys(document.NodeGroups)) {
		group, ok := env.NodeGroup(name)
		if !ok {
			return nil, objectStateError(fmt.Sprintf("environment %s has no node group %q", env.EnvName(), name))
		}
		if err := stageNodeGroup(ctx, env, group, document.NodeGroups[name]); err != nil {
			return nil, err
		}
	}
	return collectChanges(env), nil
}

// Apply stages the document then saves the environment.
func Apply(ctx context.Context, env *jelastic.Environment, document Document) (Changes, error) {
	changes, err := Plan(ctx, env, document)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		logr.FromContextOrDiscard(ctx).V(1).Info("environment already matches the document", "environment", env.EnvName())
		return changes, nil
	}
	if err := env.Save(ctx); err != nil {
		return changes, err
	}
	return changes, nil
}

// fieldSetter is implemented by every resource of the tree.
type fieldSetter interface {
	SetField(name string, value any) error
}

func setFields(target fieldSetter, fields map[string]any) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		value, err := normalizeValue(name, fields[name])
		if err != nil {
			return err
		}
		if err := target.SetField(name, value); err != nil {
			return err
		}
	}
	return nil
}

func stageNodeGroup(ctx context.Context, env *jelastic.Environment, group *jelastic.NodeGroup, document NodeGroupDocument) error {
	if err := setFields(group, document.Fields); err != nil {
		return fmt.Errorf("node group %s: %w", group.Name(), err)
	}

	if document.EnvVars != nil {
		if _, err := group.EnvVars(ctx); err != nil {
			return err
		}
		group.SetEnvVars(document.EnvVars)
	}
	if document.Links != nil {
		if _, err := group.Links(ctx); err != nil {
			return err
		}
		group.SetLinks(*document.Links)
	}
	if document.ContainerVolumes != nil {
		if err := stageContainerVolumes(ctx, group, *document.ContainerVolumes); err != nil {
			return err
		}
	}
	if document.MountPoints != nil {
		if err := stageMountPoints(ctx, env, group, *document.MountPoints); err != nil {
			return err
		}
	}

	nodes := map[int]*jelastic.Node{}
	for _, node := range group.Nodes() {
		nodes[node.ID()] = node
	}
	for _, nodeDocument := range document.Nodes {
		node, ok := nodes[nodeDocument.ID]
		if !ok {
			return objectStateError(fmt.Sprintf("node group %s has no node %d", group.Name(), nodeDocument.ID))
		}
		if err := setFields(node, nodeDocument.Fields); err != nil {
			return fmt.Errorf("node %d: %w", node.ID(), err)
		}
		if nodeDocument.AllowReduction {
			node.AllowFlexibleCloudletsReduction()
		}
	}
	return nil
}

func stageContainerVolumes(ctx context.Context, group *jelastic.NodeGroup, paths []string) error {
	current, err := group.ContainerVolumes(ctx)
	if err != nil {
		return err
	}
	for _, containerVolume := range current {
		if !slices.Contains(paths, containerVolume.Path()) {
			if err := group.RemoveContainerVolume(ctx, containerVolume.Path()); err != nil {
				return err
			}
		}
	}
	for _, path := range paths {
		if slices.ContainsFunc(current, func(v *jelastic.ContainerVolume) bool { return v.Path() == path }) {
			continue
		}
		if _, err := group.AddContainerVolume(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func stageMountPoints(ctx context.Context, env *jelastic.Environment, group *jelastic.NodeGroup, documents []MountPointDocument) error {
	current, err := group.MountPoints(ctx)
	if err != nil {
		return err
	}

	for _, mountPoint := range current {
		wanted := slices.ContainsFunc(documents, func(document MountPointDocument) bool {
			return document.matches(mountPoint)
		})
		if !wanted {
			if err := group.RemoveMountPoint(ctx, mountPoint.Path()); err != nil {
				return err
			}
		}
	}
	for _, document := range documents {
		if slices.ContainsFunc(current, document.matches) {
			continue
		}
		source, err := document.source(env)
		if err != nil {
			return err
		}
		opts := []jelastic.MountPointOption{jelastic.WithMountName(document.Name)}
		if document.ReadOnly {
			opts = append(opts, jelastic.WithReadOnlyMount())
		}
		mountPoint := jelastic.NewMountPoint(document.Path, source, document.SourcePath, opts...)
		if err := group.AddMountPoint(ctx, mountPoint); err != nil {
			return err
		}
	}
	return nil
}

func (d MountPointDocument) matches(mountPoint *jelastic.MountPoint) bool {
	if d.Path != mountPoint.Path() || d.SourcePath != mountPoint.SourcePath() || d.ReadOnly != mountPoint.ReadOnly() {
		return false
	}
	if d.SourceNodeID != 0 {
		return d.SourceNodeID == mountPoint.SourceNodeID()
	}
	return d.SourceNodeGroup == mountPoint.SourceNodeGroup()
}

func (d MountPointDocument) source(env *jelastic.Environment) (*jelastic.Node, error) {
	if d.SourceNodeID != 0 {
		for _, group := range env.NodeGroups() {
			for _, node := range group.Nodes() {
				if node.ID() == d.SourceNodeID {
					return node, nil
				}
			}
		}
		return nil, objectStateError(fmt.Sprintf("mount point %s: no node %d in environment %s", d.Path, d.SourceNodeID, env.EnvName()))
	}
	if d.SourceNodeGroup == "" {
		return nil, validationError(fmt.Sprintf("mount point %s requires source-node-group or source-node-id", d.Path), nil)
	}
	return env.NodeByNodeGroup(d.SourceNodeGroup)
}

func collectChanges(env *jelastic.Environment) Changes {
	changes := Changes{}
	if fields := withoutChildren(env.ChangedFields(), "nodeGroups"); len(fields) > 0 {
		changes = append(changes, Change{Resource: env.EnvName(), Fields: fields})
	}
	groups := env.NodeGroups()
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		group := groups[name]
		prefix := env.EnvName() + "/" + name
		fields := group.ChangedFields()
		if !group.Synced() {
			changes = append(changes, Change{Resource: prefix, Fields: []string{"created"}})
			continue
		}
		if fields = withoutChildren(fields, "nodes"); len(fields) > 0 {
			changes = append(changes, Change{Resource: prefix, Fields: fields})
		}
		for _, node := range group.Nodes() {
			if !node.Synced() {
				changes = append(changes, Change{Resource: prefix + "/new", Fields: []string{"created"}})
				continue
			}
			if fields := node.ChangedFields(); len(fields) > 0 {
				changes = append(changes, Change{Resource: fmt.Sprintf("%s/%d", prefix, node.ID()), Fields: fields})
			}
		}
	}
	return changes
}

// withoutChildren drops a deep collection field when its only change comes
// from members reported on their own.
func withoutChildren(fields []string, collection string) []string {
	return slices.DeleteFunc(fields, func(name string) bool { return name == collection })
}
