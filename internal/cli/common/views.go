package common

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/crmarques/jelapi/jelastic"
)

type EnvironmentView struct {
	Name        string          `json:"name" yaml:"name"`
	DisplayName string          `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Status      string          `json:"status" yaml:"status"`
	Domain      string          `json:"domain" yaml:"domain"`
	ShortDomain string          `json:"shortDomain,omitempty" yaml:"shortDomain,omitempty"`
	Region      string          `json:"region,omitempty" yaml:"region,omitempty"`
	AppID       string          `json:"appId,omitempty" yaml:"appId,omitempty"`
	HAEnabled   bool            `json:"haEnabled" yaml:"haEnabled"`
	SSL         bool            `json:"ssl" yaml:"ssl"`
	CreatedOn   string          `json:"createdOn,omitempty" yaml:"createdOn,omitempty"`
	EnvGroups   []string        `json:"envGroups,omitempty" yaml:"envGroups,omitempty"`
	ExtDomains  []string        `json:"extDomains,omitempty" yaml:"extDomains,omitempty"`
	NodeGroups  []NodeGroupView `json:"nodeGroups,omitempty" yaml:"nodeGroups,omitempty"`
}

type NodeGroupView struct {
	Name             string     `json:"name" yaml:"name"`
	NodeType         string     `json:"nodeType,omitempty" yaml:"nodeType,omitempty"`
	Image            string     `json:"image,omitempty" yaml:"image,omitempty"`
	DisplayName      string     `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	SLBAccessEnabled bool       `json:"slbAccessEnabled" yaml:"slbAccessEnabled"`
	DiskLimit        int        `json:"diskLimit,omitempty" yaml:"diskLimit,omitempty"`
	Nodes            []NodeView `json:"nodes" yaml:"nodes"`
}

type NodeView struct {
	ID                int    `json:"id" yaml:"id"`
	NodeType          string `json:"nodeType,omitempty" yaml:"nodeType,omitempty"`
	IntIP             string `json:"intIP,omitempty" yaml:"intIP,omitempty"`
	URL               string `json:"url,omitempty" yaml:"url,omitempty"`
	Master            bool   `json:"master" yaml:"master"`
	FixedCloudlets    int    `json:"fixedCloudlets" yaml:"fixedCloudlets"`
	FlexibleCloudlets int    `json:"flexibleCloudlets" yaml:"flexibleCloudlets"`
}

func NewEnvironmentView(env *jelastic.Environment) EnvironmentView {
	view := EnvironmentView{
		Name:        env.EnvName(),
		DisplayName: env.DisplayName(),
		Status:      env.Status().String(),
		Domain:      env.Domain(),
		ShortDomain: env.ShortDomain(),
		Region:      env.HardwareNodeGroup(),
		AppID:       env.AppID(),
		HAEnabled:   env.IsHAEnabled(),
		SSL:         env.SSLState(),
		EnvGroups:   env.EnvGroups(),
		ExtDomains:  env.ExtDomains(),
	}
	if created := env.CreatedOn(); !created.IsZero() {
		view.CreatedOn = created.Format("2006-01-02T15:04:05Z07:00")
	}

	groups := env.NodeGroups()
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		view.NodeGroups = append(view.NodeGroups, NewNodeGroupView(groups[name]))
	}
	return view
}

func NewNodeGroupView(group *jelastic.NodeGroup) NodeGroupView {
	view := NodeGroupView{
		Name:             group.Name(),
		NodeType:         group.NodeType(),
		Image:            group.Image(),
		DisplayName:      group.DisplayName(),
		SLBAccessEnabled: group.SLBAccessEnabled(),
		DiskLimit:        group.DiskLimit(),
		Nodes:            []NodeView{},
	}
	for _, node := range group.Nodes() {
		view.Nodes = append(view.Nodes, NewNodeView(node))
	}
	return view
}

func NewNodeView(node *jelastic.Node) NodeView {
	return NodeView{
		ID:                node.ID(),
		NodeType:          node.NodeType(),
		IntIP:             node.IntIP(),
		URL:               node.URL(),
		Master:            node.IsMaster(),
		FixedCloudlets:    node.FixedCloudlets(),
		FlexibleCloudlets: node.FlexibleCloudlets(),
	}
}

func RenderEnvironmentList(w io.Writer, views []EnvironmentView) error {
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(table, "NAME\tSTATUS\tDOMAIN\tDISPLAY NAME"); err != nil {
		return err
	}
	for _, view := range views {
		if _, err := fmt.Fprintf(table, "%s\t%s\t%s\t%s\n", view.Name, view.Status, view.Domain, view.DisplayName); err != nil {
			return err
		}
	}
	return table.Flush()
}

func RenderEnvironment(w io.Writer, view EnvironmentView) error {
	lines := []string{
		"name: " + view.Name,
		"display name: " + view.DisplayName,
		"status: " + view.Status,
		"domain: " + view.Domain,
		"region: " + view.Region,
		"ssl: " + strconv.FormatBool(view.SSL),
	}
	if len(view.EnvGroups) > 0 {
		lines = append(lines, "env groups: "+strings.Join(view.EnvGroups, ", "))
	}
	if len(view.ExtDomains) > 0 {
		lines = append(lines, "external domains: "+strings.Join(view.ExtDomains, ", "))
	}
	if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
		return err
	}

	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(table, "GROUP\tNODE\tTYPE\tIP\tCLOUDLETS"); err != nil {
		return err
	}
	for _, group := range view.NodeGroups {
		for _, node := range group.Nodes {
			if _, err := fmt.Fprintf(
				table,
				"%s\t%d\t%s\t%s\t%d/%d\n",
				group.Name,
				node.ID,
				node.NodeType,
				node.IntIP,
				node.FixedCloudlets,
				node.FlexibleCloudlets,
			); err != nil {
				return err
			}
		}
	}
	return table.Flush()
}

// LookupNode finds a node of env by id across its node groups.
func LookupNode(env *jelastic.Environment, id int) (*jelastic.Node, error) {
	for _, group := range env.NodeGroups() {
		for _, node := range group.Nodes() {
			if node.ID() == id {
				return node, nil
			}
		}
	}
	return nil, NotFoundError("environment %s has no node %d", env.EnvName(), id)
}

func LookupNodeGroup(env *jelastic.Environment, name string) (*jelastic.NodeGroup, error) {
	group, ok := env.NodeGroup(name)
	if !ok {
		return nil, NotFoundError("environment %s has no node group %q", env.EnvName(), name)
	}
	return group, nil
}

func ParseNodeID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, ValidationError(fmt.Sprintf("invalid node id %q", raw), err)
	}
	return id, nil
}
