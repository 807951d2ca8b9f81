package jelastic

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/jelapi/connector"
	"github.com/crmarques/jelapi/faults"
)

// Client is the entry point of the resource tree. It is safe to share
// between goroutines as long as the caller is; the trees it returns are not.
type Client struct {
	caller connector.Caller
}

func NewClient(caller connector.Caller) *Client {
	return &Client{caller: caller}
}

// Call issues a raw remote call.
func (c *Client) Call(ctx context.Context, function string, args map[string]any) (map[string]any, error) {
	return c.caller.Call(ctx, function, args)
}

// Environment fetches one environment with its node groups and nodes.
func (c *Client) Environment(ctx context.Context, envName string) (*Environment, error) {
	envName = strings.TrimSpace(envName)
	if envName == "" {
		return nil, faults.NewTypedError(faults.ValidationError, "environment name is required", nil)
	}
	body, err := c.caller.Call(ctx, fnGetEnvInfo, map[string]any{"envName": envName})
	if err != nil {
		return nil, err
	}
	return decodeEnvironment(c, body)
}

// Environments fetches every environment of the account by name.
func (c *Client) Environments(ctx context.Context) (map[string]*Environment, error) {
	body, err := c.caller.Call(ctx, fnGetEnvs, map[string]any{})
	if err != nil {
		return nil, err
	}
	infos, err := connector.Objects(body, "infos")
	if err != nil {
		return nil, err
	}
	envs := make(map[string]*Environment, len(infos))
	for _, info := range infos {
		env, err := decodeEnvironment(c, info)
		if err != nil {
			return nil, err
		}
		envs[env.EnvName()] = env
	}
	return envs, nil
}

// EnvGroups fetches every environment group by name.
func (c *Client) EnvGroups(ctx context.Context) (map[string]*EnvGroup, error) {
	body, err := c.caller.Call(ctx, fnGetGroups, map[string]any{})
	if err != nil {
		return nil, err
	}
	items, err := connector.Objects(body, "array")
	if err != nil {
		return nil, err
	}
	groups := make(map[string]*EnvGroup, len(items))
	for _, item := range items {
		group, err := decodeEnvGroup(c, item)
		if err != nil {
			return nil, err
		}
		groups[group.Name()] = group
	}
	return groups, nil
}

func (c *Client) EnvGroup(ctx context.Context, name string) (*EnvGroup, error) {
	groups, err := c.EnvGroups(ctx)
	if err != nil {
		return nil, err
	}
	group, ok := groups[name]
	if !ok {
		return nil, faults.NewTypedError(faults.NotFoundError, fmt.Sprintf("environment group %q not found", name), nil)
	}
	return group, nil
}

// NewEnvGroup builds an environment group created by its first Save.
func (c *Client) NewEnvGroup(name string) *EnvGroup {
	return newEnvGroup(c, strings.TrimSpace(name))
}

// UserInfo returns the account of the session, which also checks the
// connection.
func (c *Client) UserInfo(ctx context.Context) (map[string]any, error) {
	return c.caller.Call(ctx, fnGetUserInfo, map[string]any{})
}
