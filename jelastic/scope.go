package jelastic

import (
	"context"

	"github.com/crmarques/jelapi/attr"
	"github.com/crmarques/jelapi/connector"
)

// envScope is the arena of one environment tree. Children hold the scope and
// the name of their node group instead of pointers to their owners; the
// environment keeps the scope current.
type envScope struct {
	caller  connector.Caller
	client  *Client
	envName string
	// status is the last status known to be applied remotely.
	status EnvStatus
	nodes  map[int]nodeRef
}

type nodeRef struct {
	group string
	node  *Node
}

func newEnvScope(client *Client, envName string) *envScope {
	return &envScope{
		caller:  client.caller,
		client:  client,
		envName: envName,
		nodes:   map[int]nodeRef{},
	}
}

func (s *envScope) call(ctx context.Context, function string, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	args["envName"] = s.envName
	return s.caller.Call(ctx, function, args)
}

// index rebuilds the node lookup from the node groups of the environment.
func (s *envScope) index(groups attr.Map[string, *NodeGroup]) {
	s.nodes = make(map[int]nodeRef, len(s.nodes))
	for name, group := range groups {
		for _, node := range group.Nodes() {
			if node.ID() == 0 {
				continue
			}
			s.nodes[node.ID()] = nodeRef{group: name, node: node}
		}
	}
}

func (s *envScope) lookupNode(id int) (nodeRef, bool) {
	ref, ok := s.nodes[id]
	return ref, ok
}

// envVarsReadable reports whether container variables can be read, which the
// platform only allows on live environments.
func (s *envScope) envVarsReadable() bool {
	switch s.status {
	case StatusRunning, StatusCreating, StatusCloning:
		return true
	default:
		return false
	}
}
