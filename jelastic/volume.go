package jelastic

import (
	"fmt"

	"github.com/crmarques/jelapi/attr"
	"github.com/crmarques/jelapi/connector"
)

// volume holds what mount points and container volumes share: a path on the
// nodes of one node group.
type volume struct {
	resource
	scope *envScope
	group string
}

func (v *volume) Path() string {
	return attr.Value[string](v.record, "path")
}

// NodeGroup returns the name of the node group the volume is defined on.
func (v *volume) NodeGroup() string {
	return v.group
}

func (v *volume) attach(scope *envScope, group string) {
	v.scope = scope
	v.group = group
}

var containerVolumeSchema = attr.NewSchema(
	"containerVolume",
	attr.Field{Name: "path", ReadOnly: true, Check: attr.String},
)

// ContainerVolume is a volume declared on the containers of a node group.
type ContainerVolume struct {
	volume
}

func NewContainerVolume(path string) *ContainerVolume {
	containerVolume := &ContainerVolume{volume: volume{resource: resource{
		record: attr.NewRecord(containerVolumeSchema, attr.OriginLocal),
	}}}
	containerVolume.mustLoad("path", path)
	return containerVolume
}

func decodeContainerVolume(scope *envScope, group string, path string) *ContainerVolume {
	containerVolume := NewContainerVolume(path)
	containerVolume.attach(scope, group)
	containerVolume.record.TakeSnapshot()
	return containerVolume
}

func (c *ContainerVolume) String() string {
	return fmt.Sprintf("container volume %s on %s", c.Path(), c.group)
}

var mountPointSchema = attr.NewSchema(
	"mountPoint",
	attr.Field{Name: "path", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "name", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "sourceNodeId", ReadOnly: true, Check: attr.Int},
	attr.Field{Name: "sourcePath", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "readOnly", ReadOnly: true, Check: attr.Bool},
)

// MountPoint mounts a path exported by a node of another node group.
type MountPoint struct {
	volume
}

type MountPointOption func(*MountPoint)

func WithMountName(name string) MountPointOption {
	return func(m *MountPoint) {
		m.mustLoad("name", name)
	}
}

func WithReadOnlyMount() MountPointOption {
	return func(m *MountPoint) {
		m.mustLoad("readOnly", true)
	}
}

// NewMountPoint describes a mount of sourcePath from source onto path. It is
// created remotely by saving the node group it gets added to.
func NewMountPoint(path string, source *Node, sourcePath string, opts ...MountPointOption) *MountPoint {
	sourceNodeID := 0
	if source != nil {
		sourceNodeID = source.ID()
	}
	mountPoint := &MountPoint{volume: volume{resource: resource{
		record: attr.NewRecord(mountPointSchema, attr.OriginLocal),
	}}}
	mountPoint.mustLoad("path", path)
	mountPoint.mustLoad("name", "")
	mountPoint.mustLoad("sourceNodeId", sourceNodeID)
	mountPoint.mustLoad("sourcePath", sourcePath)
	mountPoint.mustLoad("readOnly", false)
	for _, opt := range opts {
		opt(mountPoint)
	}
	return mountPoint
}

func decodeMountPoint(scope *envScope, group string, data map[string]any) (*MountPoint, error) {
	path, err := connector.String(data, "path")
	if err != nil {
		return nil, err
	}
	name, err := connector.String(data, "name")
	if err != nil {
		return nil, err
	}
	sourcePath, err := connector.String(data, "sourcePath")
	if err != nil {
		return nil, err
	}
	sourceNodeID, err := connector.Int(data, "sourceNodeId")
	if err != nil {
		return nil, err
	}
	readOnly, err := connector.Bool(data, "readOnly")
	if err != nil {
		return nil, err
	}

	if _, ok := scope.lookupNode(sourceNodeID); !ok {
		return nil, objectStateError("%s/%s: mount point %s refers to node %d, which is not in the environment",
			scope.envName, group, path, sourceNodeID)
	}

	mountPoint := &MountPoint{volume: volume{
		resource: resource{record: attr.NewRecord(mountPointSchema, attr.OriginRemote)},
		scope:    scope,
		group:    group,
	}}
	if err := mountPoint.loadAll(
		fieldValue{"path", path},
		fieldValue{"name", name},
		fieldValue{"sourceNodeId", sourceNodeID},
		fieldValue{"sourcePath", sourcePath},
		fieldValue{"readOnly", readOnly},
	); err != nil {
		return nil, err
	}
	mountPoint.record.TakeSnapshot()
	return mountPoint, nil
}

func (m *MountPoint) Name() string {
	return attr.Value[string](m.record, "name")
}

func (m *MountPoint) SourceNodeID() int {
	return attr.Value[int](m.record, "sourceNodeId")
}

func (m *MountPoint) SourcePath() string {
	return attr.Value[string](m.record, "sourcePath")
}

func (m *MountPoint) ReadOnly() bool {
	return attr.Value[bool](m.record, "readOnly")
}

// SourceNode resolves the source node within the environment.
func (m *MountPoint) SourceNode() (*Node, bool) {
	if m.scope == nil {
		return nil, false
	}
	ref, ok := m.scope.lookupNode(m.SourceNodeID())
	if !ok {
		return nil, false
	}
	return ref.node, true
}

// SourceNodeGroup returns the name of the node group of the source node, or
// "" when it cannot be resolved.
func (m *MountPoint) SourceNodeGroup() string {
	if m.scope == nil {
		return ""
	}
	ref, ok := m.scope.lookupNode(m.SourceNodeID())
	if !ok {
		return ""
	}
	return ref.group
}

func (m *MountPoint) String() string {
	return fmt.Sprintf("mount point %s on %s from %s on node %d", m.Path(), m.group, m.SourcePath(), m.SourceNodeID())
}
