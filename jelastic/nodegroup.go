package jelastic

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/crmarques/jelapi/attr"
	"github.com/crmarques/jelapi/connector"
)

// Standard node group names.
const (
	NodeGroupLoadBalancer      = "bl"
	NodeGroupApplicationServer = "cp"
	NodeGroupCache             = "cache"
	NodeGroupSQLDatabase       = "sqldb"
	NodeGroupNoSQLDatabase     = "nosqldb"
	NodeGroupStorage           = "storage"
)

const defaultRedeployTag = "latest"

var nodeGroupSchema = attr.NewSchema(
	"nodeGroup",
	attr.Field{Name: "name", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "nodeType", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "image", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "displayName", Check: attr.String},
	attr.Field{Name: "isSLBAccessEnabled", Check: attr.Bool},
	attr.Field{Name: "diskLimit", Check: attr.Int},
	attr.Field{Name: "nodes", Diff: attr.DiffDeep, Check: attr.Of[attr.List[*Node]]()},
	attr.Field{Name: "envVars", Lazy: true, Check: attr.StringMap},
	attr.Field{Name: "links", Lazy: true, Check: attr.StringList},
	attr.Field{Name: "containerVolumes", Lazy: true, Diff: attr.DiffDeep, Check: attr.Of[attr.List[*ContainerVolume]]()},
	attr.Field{Name: "mountPoints", Lazy: true, Diff: attr.DiffDeep, Check: attr.Of[attr.List[*MountPoint]]()},
)

// lazyNodeGroupFields are fetched on first access.
var lazyNodeGroupFields = []string{"envVars", "links", "containerVolumes", "mountPoints"}

// NodeGroup is a set of nodes of the same type within an environment.
type NodeGroup struct {
	resource
	scope *envScope
}

type NodeGroupOption func(*NodeGroup)

// WithImage sets the docker image of a node group created locally.
func WithImage(image string) NodeGroupOption {
	return func(g *NodeGroup) {
		g.mustLoad("image", image)
	}
}

func WithDisplayName(displayName string) NodeGroupOption {
	return func(g *NodeGroup) {
		g.mustSet("displayName", displayName)
	}
}

// NewNodeGroup builds a node group to be created by the next topology change
// of the environment it gets attached to.
func NewNodeGroup(name string, nodeType string, opts ...NodeGroupOption) *NodeGroup {
	group := &NodeGroup{resource: resource{record: attr.NewRecord(nodeGroupSchema, attr.OriginLocal)}}
	group.mustLoad("name", name)
	group.mustLoad("nodeType", nodeType)
	group.mustLoad("image", "")
	group.mustSet("displayName", "")
	group.mustSet("isSLBAccessEnabled", false)
	group.mustSet("diskLimit", 0)
	group.mustSet("nodes", attr.List[*Node]{})
	group.mustSet("envVars", map[string]string{})
	group.mustSet("links", []string{})
	group.mustSet("containerVolumes", attr.List[*ContainerVolume]{})
	group.mustSet("mountPoints", attr.List[*MountPoint]{})
	for _, opt := range opts {
		opt(group)
	}
	return group
}

// decodeNodeGroup builds a node group from the description returned by the
// environment info, with the nodes already decoded. Node type and disk limit
// fall back to the first node when the group does not carry them.
func decodeNodeGroup(scope *envScope, data map[string]any, nodes attr.List[*Node], firstNode map[string]any) (*NodeGroup, error) {
	group := &NodeGroup{
		resource: resource{record: attr.NewRecord(nodeGroupSchema, attr.OriginRemote)},
		scope:    scope,
	}
	if err := group.load(data, nodes, firstNode); err != nil {
		return nil, err
	}
	group.record.TakeSnapshot()
	return group, nil
}

func (g *NodeGroup) load(data map[string]any, nodes attr.List[*Node], firstNode map[string]any) error {
	name, err := connector.String(data, "name")
	if err != nil {
		return err
	}
	if name == "" {
		return malformedReply("node group without name")
	}
	nodeType, err := connector.String(data, "nodeType")
	if err != nil {
		return err
	}
	if nodeType == "" && len(nodes) > 0 {
		nodeType = nodes[0].NodeType()
	}
	image, err := connector.String(data, "image")
	if err != nil {
		return err
	}
	displayName, err := connector.String(data, "displayName")
	if err != nil {
		return err
	}
	slb, err := connector.Bool(data, "isSLBAccessEnabled")
	if err != nil {
		return err
	}
	diskLimit, err := connector.IntOr(data, "diskLimit", 0)
	if err != nil {
		return err
	}
	if !connector.Has(data, "diskLimit") && firstNode != nil {
		if diskLimit, err = connector.IntOr(firstNode, "diskLimit", 0); err != nil {
			return err
		}
	}
	if nodes == nil {
		nodes = attr.List[*Node]{}
	}
	return g.loadAll(
		fieldValue{"name", name},
		fieldValue{"nodeType", nodeType},
		fieldValue{"image", image},
		fieldValue{"displayName", displayName},
		fieldValue{"isSLBAccessEnabled", slb},
		fieldValue{"diskLimit", diskLimit},
		fieldValue{"nodes", nodes},
	)
}

func (g *NodeGroup) Name() string {
	return attr.Value[string](g.record, "name")
}

func (g *NodeGroup) NodeType() string {
	return attr.Value[string](g.record, "nodeType")
}

func (g *NodeGroup) Image() string {
	return attr.Value[string](g.record, "image")
}

func (g *NodeGroup) DisplayName() string {
	return attr.Value[string](g.record, "displayName")
}

func (g *NodeGroup) SetDisplayName(displayName string) {
	g.mustSet("displayName", displayName)
}

func (g *NodeGroup) SLBAccessEnabled() bool {
	return attr.Value[bool](g.record, "isSLBAccessEnabled")
}

func (g *NodeGroup) SetSLBAccessEnabled(enabled bool) {
	g.mustSet("isSLBAccessEnabled", enabled)
}

// DiskLimit is expressed in megabytes. Changing it requires a topology
// change of the environment.
func (g *NodeGroup) DiskLimit() int {
	return attr.Value[int](g.record, "diskLimit")
}

func (g *NodeGroup) SetDiskLimit(limit int) {
	g.mustSet("diskLimit", limit)
}

func (g *NodeGroup) Nodes() []*Node {
	return slices.Clone(g.nodes())
}

func (g *NodeGroup) nodes() attr.List[*Node] {
	return attr.Value[attr.List[*Node]](g.record, "nodes")
}

// AddNode attaches a node, created remotely by the next environment save.
func (g *NodeGroup) AddNode(node *Node) {
	node.scope = g.scope
	node.group = g.Name()
	g.mustSet("nodes", append(slices.Clone(g.nodes()), node))
}

func (g *NodeGroup) RemoveNode(node *Node) error {
	nodes := g.nodes()
	idx := slices.Index(nodes, node)
	if idx < 0 {
		return objectStateError("%s: %s is not part of the node group", g.label(), node)
	}
	g.mustSet("nodes", slices.Delete(slices.Clone(nodes), idx, idx+1))
	return nil
}

// EnvVars returns a copy of the container variables of the node group,
// fetching them on first access.
func (g *NodeGroup) EnvVars(ctx context.Context) (map[string]string, error) {
	if err := g.record.EnsureFetched("envVars", func() (any, error) { return g.fetchEnvVars(ctx) }); err != nil {
		return nil, err
	}
	return maps.Clone(attr.Value[map[string]string](g.record, "envVars")), nil
}

// SetEnvVars replaces the container variables. Variables must have been
// fetched before, or the next save fails.
func (g *NodeGroup) SetEnvVars(vars map[string]string) {
	if vars == nil {
		vars = map[string]string{}
	}
	g.mustSet("envVars", maps.Clone(vars))
}

// Links returns the inbound links of the node group, as "group:alias".
func (g *NodeGroup) Links(ctx context.Context) ([]string, error) {
	if err := g.record.EnsureFetched("links", func() (any, error) { return g.fetchLinks(ctx) }); err != nil {
		return nil, err
	}
	return slices.Clone(attr.Value[[]string](g.record, "links")), nil
}

// SetLinks replaces the inbound links. Changing them requires a topology
// change of the environment.
func (g *NodeGroup) SetLinks(links []string) {
	if links == nil {
		links = []string{}
	}
	g.mustSet("links", slices.Clone(links))
}

func (g *NodeGroup) ContainerVolumes(ctx context.Context) ([]*ContainerVolume, error) {
	volumes, err := g.containerVolumes(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(volumes), nil
}

func (g *NodeGroup) containerVolumes(ctx context.Context) (attr.List[*ContainerVolume], error) {
	if err := g.record.EnsureFetched("containerVolumes", func() (any, error) { return g.fetchContainerVolumes(ctx) }); err != nil {
		return nil, err
	}
	return attr.Value[attr.List[*ContainerVolume]](g.record, "containerVolumes"), nil
}

func (g *NodeGroup) AddContainerVolume(ctx context.Context, path string) (*ContainerVolume, error) {
	volumes, err := g.containerVolumes(ctx)
	if err != nil {
		return nil, err
	}
	containerVolume := NewContainerVolume(path)
	containerVolume.attach(g.scope, g.Name())
	g.mustSet("containerVolumes", append(slices.Clone(volumes), containerVolume))
	return containerVolume, nil
}

func (g *NodeGroup) RemoveContainerVolume(ctx context.Context, path string) error {
	volumes, err := g.containerVolumes(ctx)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(volumes, func(v *ContainerVolume) bool { return v.Path() == path })
	if idx < 0 {
		return objectStateError("%s: no container volume at %s", g.label(), path)
	}
	g.mustSet("containerVolumes", slices.Delete(slices.Clone(volumes), idx, idx+1))
	return nil
}

func (g *NodeGroup) MountPoints(ctx context.Context) ([]*MountPoint, error) {
	mountPoints, err := g.mountPoints(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(mountPoints), nil
}

func (g *NodeGroup) mountPoints(ctx context.Context) (attr.List[*MountPoint], error) {
	if err := g.record.EnsureFetched("mountPoints", func() (any, error) { return g.fetchMountPoints(ctx) }); err != nil {
		return nil, err
	}
	return attr.Value[attr.List[*MountPoint]](g.record, "mountPoints"), nil
}

// AddMountPoint attaches a mount point, created by the next save. Duplicate
// paths are reported by that save.
func (g *NodeGroup) AddMountPoint(ctx context.Context, mountPoint *MountPoint) error {
	mountPoints, err := g.mountPoints(ctx)
	if err != nil {
		return err
	}
	mountPoint.attach(g.scope, g.Name())
	g.mustSet("mountPoints", append(slices.Clone(mountPoints), mountPoint))
	return nil
}

func (g *NodeGroup) RemoveMountPoint(ctx context.Context, path string) error {
	mountPoints, err := g.mountPoints(ctx)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(mountPoints, func(m *MountPoint) bool { return m.Path() == path })
	if idx < 0 {
		return objectStateError("%s: no mount point at %s", g.label(), path)
	}
	g.mustSet("mountPoints", slices.Delete(slices.Clone(mountPoints), idx, idx+1))
	return nil
}

// ReadFile returns the content of a file of the node group.
func (g *NodeGroup) ReadFile(ctx context.Context, path string) (string, error) {
	if err := g.requireRemote(); err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", objectStateError("%s: file path is required", g.label())
	}
	body, err := g.scope.call(ctx, fnReadFile, map[string]any{
		"nodeGroup": g.Name(),
		"path":      path,
	})
	if err != nil {
		return "", err
	}
	return connector.String(body, "body")
}

// Redeploy redeploys the containers of the node group to a docker tag,
// "latest" when tag is empty.
func (g *NodeGroup) Redeploy(ctx context.Context, tag string) error {
	if err := g.requireRemote(); err != nil {
		return err
	}
	if strings.TrimSpace(tag) == "" {
		tag = defaultRedeployTag
	}
	_, err := g.scope.call(ctx, fnRedeployContainersByGroup, map[string]any{
		"nodeGroup": g.Name(),
		"tag":       tag,
	})
	return err
}

func (g *NodeGroup) String() string {
	return "node group " + g.Name()
}

func (g *NodeGroup) label() string {
	if g.scope == nil {
		return g.Name()
	}
	return g.scope.envName + "/" + g.Name()
}

func (g *NodeGroup) requireRemote() error {
	if g.scope == nil {
		return objectStateError("%s is not attached to an environment", g)
	}
	if !g.Synced() {
		return objectStateError("%s does not exist remotely yet", g.label())
	}
	return nil
}

// attach binds the node group and its children to an environment scope.
func (g *NodeGroup) attach(scope *envScope) {
	g.scope = scope
	name := g.Name()
	for _, node := range g.nodes() {
		node.scope = scope
		node.group = name
	}
	for _, containerVolume := range attr.Value[attr.List[*ContainerVolume]](g.record, "containerVolumes") {
		containerVolume.attach(scope, name)
	}
	for _, mountPoint := range attr.Value[attr.List[*MountPoint]](g.record, "mountPoints") {
		mountPoint.attach(scope, name)
	}
}

// Save pushes the changes of the node group and of its children. Structural
// changes (nodes added or removed, disk limit, links) go through the
// environment topology and are rejected here.
func (g *NodeGroup) Save(ctx context.Context) error {
	if !g.Diverged() {
		return nil
	}
	if g.scope == nil {
		return objectStateError("%s is not attached to an environment", g)
	}
	if g.structuralChangePending() {
		return objectStateError("%s: nodes, disk limit or links changed; save the environment instead", g.label())
	}
	return g.saveAttached(ctx)
}

// saveAttached is used by the environment once the topology matches.
func (g *NodeGroup) saveAttached(ctx context.Context) error {
	return g.save(ctx, g.label(), saveSteps{validate: g.validate, persist: g.persist})
}

func (g *NodeGroup) structuralChangePending() bool {
	if !g.Synced() {
		return true
	}
	if g.record.Changed("diskLimit") || g.record.Changed("links") {
		return true
	}
	return g.nodesRestructured()
}

// nodesRestructured reports whether nodes were added or removed since the
// last snapshot, leaving aside changes of the nodes themselves.
func (g *NodeGroup) nodesRestructured() bool {
	baseline, _ := g.record.Baseline("nodes")
	previous, _ := baseline.(attr.List[*Node])
	current := g.nodes()
	if len(previous) != len(current) {
		return true
	}
	for _, node := range current {
		if !slices.Contains(previous, node) {
			return true
		}
	}
	return false
}

func (g *NodeGroup) validate() error {
	if len(g.nodes()) == 0 {
		return objectStateError("%s: a node group needs at least one node", g.label())
	}
	if err := checkBlindWrites(&g.resource, g.label(), lazyNodeGroupFields...); err != nil {
		return err
	}
	if err := checkEnvVarsWipeOut(g); err != nil {
		return err
	}

	volumes := attr.Value[attr.List[*ContainerVolume]](g.record, "containerVolumes")
	volumePaths := make([]string, 0, len(volumes))
	for _, containerVolume := range volumes {
		volumePaths = append(volumePaths, containerVolume.Path())
	}
	if err := checkDuplicatePaths(g.label(), "container volume", volumePaths); err != nil {
		return err
	}

	mountPoints := attr.Value[attr.List[*MountPoint]](g.record, "mountPoints")
	mountPaths := make([]string, 0, len(mountPoints))
	for _, mountPoint := range mountPoints {
		mountPaths = append(mountPaths, mountPoint.Path())
	}
	if err := checkDuplicatePaths(g.label(), "mount point", mountPaths); err != nil {
		return err
	}
	if g.scope != nil {
		if err := checkMountPointSources(g, mountPoints); err != nil {
			return err
		}
	}

	for _, node := range g.nodes() {
		if err := checkFlexibleReduction(node); err != nil {
			return err
		}
	}
	return nil
}

func (g *NodeGroup) persist(ctx context.Context) error {
	if err := g.applyData(ctx); err != nil {
		return err
	}
	if err := g.saveEnvVars(ctx); err != nil {
		return err
	}
	for _, node := range g.nodes() {
		if err := node.Save(ctx); err != nil {
			return err
		}
	}
	if err := g.saveContainerVolumes(ctx); err != nil {
		return err
	}
	return g.saveMountPoints(ctx)
}

func (g *NodeGroup) applyData(ctx context.Context) error {
	data := map[string]any{}
	for _, name := range []string{"displayName", "isSLBAccessEnabled"} {
		if g.record.Changed(name) {
			data[name] = g.record.Get(name)
		}
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := g.scope.call(ctx, fnApplyNodeGroupData, map[string]any{
		"nodeGroup": g.Name(),
		"data":      data,
	}); err != nil {
		return err
	}
	for name, value := range data {
		g.record.Assume(name, value)
	}
	return nil
}

func (g *NodeGroup) saveEnvVars(ctx context.Context) error {
	if g.record.FetchState("envVars") != attr.Fetched || !g.record.Changed("envVars") {
		return nil
	}
	vars := attr.Value[map[string]string](g.record, "envVars")
	if _, err := g.scope.call(ctx, fnSetContainerEnvVarsByGroup, map[string]any{
		"nodeGroup": g.Name(),
		"data":      vars,
	}); err != nil {
		return err
	}
	g.record.Assume("envVars", vars)
	return nil
}

func (g *NodeGroup) saveContainerVolumes(ctx context.Context) error {
	if g.record.FetchState("containerVolumes") != attr.Fetched || !g.record.Changed("containerVolumes") {
		return nil
	}
	current := attr.Value[attr.List[*ContainerVolume]](g.record, "containerVolumes")
	baseline, _ := g.record.Baseline("containerVolumes")
	previous, _ := baseline.(attr.List[*ContainerVolume])

	for _, containerVolume := range previous {
		if slices.Contains(current, containerVolume) {
			continue
		}
		if _, err := g.scope.call(ctx, fnRemoveContainerVolumeByGroup, map[string]any{
			"nodeGroup": g.Name(),
			"path":      containerVolume.Path(),
		}); err != nil {
			return err
		}
		containerVolume.record.Forget()
	}
	for _, containerVolume := range current {
		if containerVolume.Synced() {
			continue
		}
		if _, err := g.scope.call(ctx, fnAddContainerVolumeByGroup, map[string]any{
			"nodeGroup": g.Name(),
			"path":      containerVolume.Path(),
		}); err != nil {
			return err
		}
		containerVolume.record.TakeSnapshot()
	}
	g.record.Assume("containerVolumes", current)
	return nil
}

func (g *NodeGroup) saveMountPoints(ctx context.Context) error {
	if g.record.FetchState("mountPoints") != attr.Fetched || !g.record.Changed("mountPoints") {
		return nil
	}
	current := attr.Value[attr.List[*MountPoint]](g.record, "mountPoints")
	baseline, _ := g.record.Baseline("mountPoints")
	previous, _ := baseline.(attr.List[*MountPoint])

	for _, mountPoint := range previous {
		if slices.Contains(current, mountPoint) {
			continue
		}
		if _, err := g.scope.call(ctx, fnRemoveMountPointByGroup, map[string]any{
			"nodeGroup": g.Name(),
			"path":      mountPoint.Path(),
		}); err != nil {
			return err
		}
		mountPoint.record.Forget()
	}
	for _, mountPoint := range current {
		if mountPoint.Synced() {
			continue
		}
		if _, err := g.scope.call(ctx, fnAddMountPointByGroup, map[string]any{
			"nodeGroup":    g.Name(),
			"path":         mountPoint.Path(),
			"sourceNodeId": mountPoint.SourceNodeID(),
			"sourcePath":   mountPoint.SourcePath(),
			"name":         mountPoint.Name(),
			"readOnly":     mountPoint.ReadOnly(),
		}); err != nil {
			return err
		}
		mountPoint.record.TakeSnapshot()
	}
	g.record.Assume("mountPoints", current)
	return nil
}

func (g *NodeGroup) fetchEnvVars(ctx context.Context) (any, error) {
	if err := g.requireRemote(); err != nil {
		return nil, err
	}
	if !g.scope.envVarsReadable() {
		return nil, objectStateError("%s: environment variables cannot be read while the environment is %s",
			g.label(), g.scope.status)
	}
	body, err := g.scope.call(ctx, fnGetContainerEnvVarsByGroup, map[string]any{"nodeGroup": g.Name()})
	if err != nil {
		return nil, err
	}
	return connector.StringMap(body, "object")
}

func (g *NodeGroup) fetchLinks(ctx context.Context) (any, error) {
	if err := g.requireRemote(); err != nil {
		return nil, err
	}
	body, err := g.scope.call(ctx, fnGetNodeGroups, nil)
	if err != nil {
		return nil, err
	}
	items, err := connector.Objects(body, "object")
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		name, err := connector.String(item, "name")
		if err != nil {
			return nil, err
		}
		if name != g.Name() {
			continue
		}
		links, err := connector.Strings(item, "links")
		if err != nil {
			return nil, err
		}
		if links == nil {
			links = []string{}
		}
		return links, nil
	}
	return []string{}, nil
}

func (g *NodeGroup) fetchContainerVolumes(ctx context.Context) (any, error) {
	if err := g.requireRemote(); err != nil {
		return nil, err
	}
	body, err := g.scope.call(ctx, fnGetContainerVolumesByGroup, map[string]any{"nodeGroup": g.Name()})
	if err != nil {
		return nil, err
	}
	paths, err := connector.Strings(body, "object")
	if err != nil {
		return nil, err
	}
	volumes := make(attr.List[*ContainerVolume], 0, len(paths))
	for _, path := range paths {
		volumes = append(volumes, decodeContainerVolume(g.scope, g.Name(), path))
	}
	return volumes, nil
}

func (g *NodeGroup) fetchMountPoints(ctx context.Context) (any, error) {
	if err := g.requireRemote(); err != nil {
		return nil, err
	}
	body, err := g.scope.call(ctx, fnGetMountPoints, map[string]any{"nodeGroup": g.Name()})
	if err != nil {
		return nil, err
	}
	items, err := connector.Objects(body, "array")
	if err != nil {
		return nil, err
	}
	mountPoints := make(attr.List[*MountPoint], 0, len(items))
	for _, item := range items {
		mountPoint, err := decodeMountPoint(g.scope, g.Name(), item)
		if err != nil {
			return nil, err
		}
		mountPoints = append(mountPoints, mountPoint)
	}
	return mountPoints, nil
}
