package jelastic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crmarques/jelapi/attr"
	"github.com/crmarques/jelapi/connector"
	"github.com/crmarques/jelapi/faults"
)

var nodeSchema = attr.NewSchema(
	"node",
	attr.Field{Name: "id", ReadOnly: true, Check: attr.Int},
	attr.Field{Name: "intIP", ReadOnly: true, Check: attr.Optional(attr.IPv4)},
	attr.Field{Name: "nodeType", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "url", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "isMaster", ReadOnly: true, Check: attr.Bool},
	attr.Field{Name: "fixedCloudlets", Check: attr.Int},
	attr.Field{Name: "flexibleCloudlets", Check: attr.Int},
)

// Node is a single container of a node group.
type Node struct {
	resource
	scope *envScope
	group string

	allowFlexibleReduction bool
}

// NewNode builds a node to be created by the next topology change of the
// environment it gets attached to.
func NewNode(fixedCloudlets int, flexibleCloudlets int) *Node {
	node := &Node{resource: resource{record: attr.NewRecord(nodeSchema, attr.OriginLocal)}}
	node.mustLoad("id", 0)
	node.mustLoad("nodeType", "")
	node.mustLoad("url", "")
	node.mustLoad("isMaster", false)
	node.mustSet("fixedCloudlets", fixedCloudlets)
	node.mustSet("flexibleCloudlets", flexibleCloudlets)
	return node
}

func decodeNode(scope *envScope, group string, data map[string]any) (*Node, error) {
	node := &Node{
		resource: resource{record: attr.NewRecord(nodeSchema, attr.OriginRemote)},
		scope:    scope,
		group:    group,
	}
	if err := node.load(data); err != nil {
		return nil, err
	}
	node.record.TakeSnapshot()
	return node, nil
}

// load copies the remote representation into the record, without touching
// the baseline.
func (n *Node) load(data map[string]any) error {
	id, err := connector.Int(data, "id")
	if err != nil {
		return err
	}
	intIP, err := connector.String(data, "intIP")
	if err != nil {
		return err
	}
	nodeType, err := connector.String(data, "nodeType")
	if err != nil {
		return err
	}
	url, err := connector.String(data, "url")
	if err != nil {
		return err
	}
	isMaster, err := connector.Bool(data, "ismaster")
	if err != nil {
		return err
	}
	fixed, err := connector.IntOr(data, "fixedCloudlets", 0)
	if err != nil {
		return err
	}
	flexible, err := connector.IntOr(data, "flexibleCloudlets", 0)
	if err != nil {
		return err
	}

	values := []fieldValue{
		{"id", id},
		{"nodeType", nodeType},
		{"url", url},
		{"isMaster", isMaster},
		{"fixedCloudlets", fixed},
		{"flexibleCloudlets", flexible},
	}
	if intIP != "" {
		values = append(values, fieldValue{"intIP", intIP})
	}
	return n.loadAll(values...)
}

func (n *Node) ID() int {
	return attr.Value[int](n.record, "id")
}

func (n *Node) IntIP() string {
	return attr.Value[string](n.record, "intIP")
}

func (n *Node) NodeType() string {
	return attr.Value[string](n.record, "nodeType")
}

func (n *Node) URL() string {
	return attr.Value[string](n.record, "url")
}

func (n *Node) IsMaster() bool {
	return attr.Value[bool](n.record, "isMaster")
}

// NodeGroup returns the name of the node group the node belongs to.
func (n *Node) NodeGroup() string {
	return n.group
}

func (n *Node) FixedCloudlets() int {
	return attr.Value[int](n.record, "fixedCloudlets")
}

func (n *Node) SetFixedCloudlets(count int) {
	n.mustSet("fixedCloudlets", count)
}

func (n *Node) FlexibleCloudlets() int {
	return attr.Value[int](n.record, "flexibleCloudlets")
}

func (n *Node) SetFlexibleCloudlets(count int) {
	n.mustSet("flexibleCloudlets", count)
}

// AllowFlexibleCloudletsReduction lets the next Save lower the flexible
// cloudlets. The permission is consumed by that Save, whatever its outcome.
func (n *Node) AllowFlexibleCloudletsReduction() {
	n.allowFlexibleReduction = true
}

func (n *Node) FlexibleCloudletsReductionAllowed() bool {
	return n.allowFlexibleReduction
}

func (n *Node) String() string {
	return fmt.Sprintf("node %d", n.ID())
}

func (n *Node) label() string {
	if n.scope == nil {
		return n.String()
	}
	return fmt.Sprintf("%s/%s/%d", n.scope.envName, n.group, n.ID())
}

// Save pushes cloudlet changes. Nodes are created and removed through the
// topology of their environment.
func (n *Node) Save(ctx context.Context) error {
	defer func() { n.allowFlexibleReduction = false }()
	return n.save(ctx, n.label(), saveSteps{validate: n.validate, persist: n.persist})
}

func (n *Node) validate() error {
	if n.scope == nil {
		return objectStateError("%s is not attached to an environment", n)
	}
	if n.ID() == 0 {
		return objectStateError("%s/%s: new nodes are created by saving the environment", n.scope.envName, n.group)
	}
	return checkFlexibleReduction(n)
}

func (n *Node) persist(ctx context.Context) error {
	if !n.record.Changed("fixedCloudlets") && !n.record.Changed("flexibleCloudlets") {
		return nil
	}
	fixed, flexible := n.FixedCloudlets(), n.FlexibleCloudlets()
	if _, err := n.scope.call(ctx, fnSetCloudletsCountByID, map[string]any{
		"nodeid":            n.ID(),
		"count":             1,
		"fixedCloudlets":    fixed,
		"flexibleCloudlets": flexible,
	}); err != nil {
		return err
	}
	n.record.Assume("fixedCloudlets", fixed)
	n.record.Assume("flexibleCloudlets", flexible)
	return nil
}

// CommandResponse is the outcome of one command executed on a node.
type CommandResponse struct {
	NodeID int    `json:"nodeId" yaml:"nodeId"`
	Result int    `json:"result" yaml:"result"`
	Out    string `json:"out" yaml:"out"`
	ErrOut string `json:"errOut,omitempty" yaml:"errOut,omitempty"`
}

// ExecuteCommands runs shell commands on the node and returns one response
// per command.
func (n *Node) ExecuteCommands(ctx context.Context, commands ...string) ([]CommandResponse, error) {
	if err := n.requireRemote(); err != nil {
		return nil, err
	}
	if len(commands) == 0 {
		return nil, objectStateError("%s: no command to execute", n.label())
	}

	commandList := make([]map[string]string, 0, len(commands))
	for _, command := range commands {
		if strings.TrimSpace(command) == "" {
			return nil, objectStateError("%s: empty command", n.label())
		}
		commandList = append(commandList, map[string]string{"command": command, "params": ""})
	}
	encoded, err := json.Marshal(commandList)
	if err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "failed to encode command list", err)
	}

	body, err := n.scope.call(ctx, fnExecCmdByID, map[string]any{
		"nodeId":      n.ID(),
		"commandList": string(encoded),
		"sayYes":      true,
	})
	if err != nil {
		return nil, err
	}

	items, err := connector.Objects(body, "responses")
	if err != nil {
		return nil, err
	}
	responses := make([]CommandResponse, 0, len(items))
	for _, item := range items {
		response := CommandResponse{NodeID: n.ID()}
		if response.Result, err = connector.IntOr(item, "result", 0); err != nil {
			return nil, err
		}
		if response.Out, err = connector.String(item, "out"); err != nil {
			return nil, err
		}
		if response.ErrOut, err = connector.String(item, "errOut"); err != nil {
			return nil, err
		}
		responses = append(responses, response)
	}
	return responses, nil
}

// ExecuteCommand runs a single command and returns its response.
func (n *Node) ExecuteCommand(ctx context.Context, command string) (CommandResponse, error) {
	responses, err := n.ExecuteCommands(ctx, command)
	if err != nil {
		return CommandResponse{}, err
	}
	if len(responses) != 1 {
		return CommandResponse{}, faults.RemoteCall(
			fmt.Sprintf("%s: expected one command response, got %d", n.label(), len(responses)),
			nil,
		)
	}
	return responses[0], nil
}

// ReadFile returns the content of a file of the node.
func (n *Node) ReadFile(ctx context.Context, path string) (string, error) {
	if err := n.requireRemote(); err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", objectStateError("%s: file path is required", n.label())
	}
	body, err := n.scope.call(ctx, fnReadFile, map[string]any{
		"nodeid": n.ID(),
		"path":   path,
	})
	if err != nil {
		return "", err
	}
	return connector.String(body, "body")
}

func (n *Node) requireRemote() error {
	if n.scope == nil {
		return objectStateError("%s is not attached to an environment", n)
	}
	if n.ID() == 0 {
		return objectStateError("%s/%s: node does not exist remotely yet", n.scope.envName, n.group)
	}
	return nil
}
