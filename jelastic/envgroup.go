package jelastic

import (
	"context"
	"maps"
	"strings"

	"github.com/crmarques/jelapi/attr"
	"github.com/crmarques/jelapi/connector"
)

var envGroupSchema = attr.NewSchema(
	"envGroup",
	attr.Field{Name: "id", ReadOnly: true, Check: attr.Int},
	attr.Field{Name: "name", ReadOnly: true, Check: attr.String},
	attr.Field{Name: "color", Check: attr.Optional(attr.HexColor)},
	attr.Field{Name: "isIsolated", Check: attr.Bool},
	attr.Field{Name: "visibility", Check: attr.Of[Visibility]()},
)

// EnvGroup is an environment group. Nested groups use "parent/child" names.
type EnvGroup struct {
	resource
	client  *Client
	deleted bool
}

func newEnvGroup(client *Client, name string) *EnvGroup {
	group := &EnvGroup{
		resource: resource{record: attr.NewRecord(envGroupSchema, attr.OriginLocal)},
		client:   client,
	}
	group.mustLoad("id", 0)
	group.mustLoad("name", name)
	group.mustSet("isIsolated", false)
	group.mustSet("visibility", VisibilityShow)
	return group
}

func decodeEnvGroup(client *Client, data map[string]any) (*EnvGroup, error) {
	id, err := connector.Int(data, "id")
	if err != nil {
		return nil, err
	}
	name, err := connector.String(data, "name")
	if err != nil {
		return nil, err
	}
	color, err := connector.String(data, "color")
	if err != nil {
		return nil, err
	}
	isolated, err := connector.Bool(data, "isIsolated")
	if err != nil {
		return nil, err
	}
	visibility, err := connector.IntOr(data, "visibility", int(VisibilityShow))
	if err != nil {
		return nil, err
	}
	if _, known := visibilityNames[Visibility(visibility)]; !known {
		visibility = int(VisibilityShow)
	}

	group := &EnvGroup{
		resource: resource{record: attr.NewRecord(envGroupSchema, attr.OriginRemote)},
		client:   client,
	}
	values := []fieldValue{
		{"id", id},
		{"name", name},
		{"isIsolated", isolated},
		{"visibility", Visibility(visibility)},
	}
	if color != "" {
		values = append(values, fieldValue{"color", color})
	}
	if err := group.loadAll(values...); err != nil {
		return nil, err
	}
	group.record.TakeSnapshot()
	return group, nil
}

func (g *EnvGroup) ID() int {
	return attr.Value[int](g.record, "id")
}

func (g *EnvGroup) Name() string {
	return attr.Value[string](g.record, "name")
}

// Color is "" when the group has no color.
func (g *EnvGroup) Color() string {
	return attr.Value[string](g.record, "color")
}

// SetColor accepts "#rrggbb", or "" to clear the color.
func (g *EnvGroup) SetColor(color string) error {
	if color == "" {
		return g.record.Set("color", nil)
	}
	return g.record.Set("color", color)
}

func (g *EnvGroup) Isolated() bool {
	return attr.Value[bool](g.record, "isIsolated")
}

func (g *EnvGroup) SetIsolated(isolated bool) {
	g.mustSet("isIsolated", isolated)
}

func (g *EnvGroup) Visibility() Visibility {
	return attr.Value[Visibility](g.record, "visibility")
}

func (g *EnvGroup) SetVisibility(visibility Visibility) {
	g.mustSet("visibility", visibility)
}

func (g *EnvGroup) String() string {
	return "environment group " + g.Name()
}

// Save creates the group, or edits the fields that changed.
func (g *EnvGroup) Save(ctx context.Context) error {
	if g.deleted {
		return objectStateError("%s was deleted", g)
	}
	return g.save(ctx, g.Name(), saveSteps{validate: g.validate, persist: g.persist})
}

func (g *EnvGroup) validate() error {
	if strings.TrimSpace(g.Name()) == "" {
		return objectStateError("environment group name is required")
	}
	return nil
}

func (g *EnvGroup) persist(ctx context.Context) error {
	changed := g.record.ChangedFields()
	data := make(map[string]any, len(changed))
	written := make(map[string]any, len(changed))
	for _, name := range changed {
		written[name] = g.record.Get(name)
		switch name {
		case "visibility":
			data[name] = int(g.Visibility())
		case "color":
			data[name] = g.Color()
		default:
			data[name] = g.record.Get(name)
		}
	}

	function := fnCreateGroup
	if g.Synced() {
		function = fnEditGroup
	}
	if _, err := g.client.caller.Call(ctx, function, map[string]any{
		"groupName": g.Name(),
		"data":      data,
	}); err != nil {
		return err
	}
	g.record.Adopt(written)
	return nil
}

// Delete removes the group remotely. The group cannot be saved afterwards.
func (g *EnvGroup) Delete(ctx context.Context) error {
	if g.deleted {
		return objectStateError("%s was already deleted", g)
	}
	if !g.Synced() {
		return objectStateError("%s does not exist remotely", g)
	}
	if _, err := g.client.caller.Call(ctx, fnRemoveGroup, map[string]any{"groupName": g.Name()}); err != nil {
		return err
	}
	g.record.Forget()
	g.deleted = true
	return nil
}

// Children returns the groups nested under this one, at any depth.
func (g *EnvGroup) Children(ctx context.Context) (map[string]*EnvGroup, error) {
	groups, err := g.client.EnvGroups(ctx)
	if err != nil {
		return nil, err
	}
	prefix := g.Name() + "/"
	maps.DeleteFunc(groups, func(name string, _ *EnvGroup) bool {
		return !strings.HasPrefix(name, prefix)
	})
	return groups, nil
}
