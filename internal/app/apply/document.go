package apply

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/crmarques/jelapi/faults"
	"github.com/crmarques/jelapi/jelastic"
	"go.yaml.in/yaml/v3"
)

// Document is the desired state of one environment. Fields maps are applied
// by field name; collections left out of the document are not touched.
type Document struct {
	Environment string                       `json:"environment" yaml:"environment"`
	Fields      map[string]any               `json:"fields,omitempty" yaml:"fields,omitempty"`
	NodeGroups  map[string]NodeGroupDocument `json:"node-groups,omitempty" yaml:"node-groups,omitempty"`
}

type NodeGroupDocument struct {
	Fields           map[string]any        `json:"fields,omitempty" yaml:"fields,omitempty"`
	EnvVars          map[string]string     `json:"env-vars,omitempty" yaml:"env-vars,omitempty"`
	Links            *[]string             `json:"links,omitempty" yaml:"links,omitempty"`
	ContainerVolumes *[]string             `json:"container-volumes,omitempty" yaml:"container-volumes,omitempty"`
	MountPoints      *[]MountPointDocument `json:"mount-points,omitempty" yaml:"mount-points,omitempty"`
	Nodes            []NodeDocument        `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

type MountPointDocument struct {
	Path            string `json:"path" yaml:"path"`
	Name            string `json:"name,omitempty" yaml:"name,omitempty"`
	SourceNodeGroup string `json:"source-node-group,omitempty" yaml:"source-node-group,omitempty"`
	SourceNodeID    int    `json:"source-node-id,omitempty" yaml:"source-node-id,omitempty"`
	SourcePath      string `json:"source-path" yaml:"source-path"`
	ReadOnly        bool   `json:"read-only,omitempty" yaml:"read-only,omitempty"`
}

type NodeDocument struct {
	ID             int            `json:"id" yaml:"id"`
	Fields         map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
	AllowReduction bool           `json:"allow-reduction,omitempty" yaml:"allow-reduction,omitempty"`
}

// Decode reads a YAML or JSON document. Unknown keys are rejected.
func Decode(data []byte) (Document, error) {
	var document Document
	if len(bytes.TrimSpace(data)) == 0 {
		return document, validationError("desired state document is empty", nil)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&document); err != nil {
		return Document{}, validationError("invalid desired state document", err)
	}
	var extra any
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		return Document{}, validationError("desired state document must contain a single document", err)
	}

	document.Environment = strings.TrimSpace(document.Environment)
	if document.Environment == "" {
		return Document{}, validationError("desired state document requires an environment", nil)
	}
	return document, nil
}

// normalizeValue maps document representations onto the types of the object
// model. Values of any other shape are passed through and rejected by the
// field checks.
func normalizeValue(field string, value any) (any, error) {
	switch typed := value.(type) {
	case float64:
		if typed == math.Trunc(typed) {
			return int(typed), nil
		}
	case []any:
		values := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				return value, nil
			}
			values = append(values, text)
		}
		return values, nil
	case map[string]any:
		values := make(map[string]string, len(typed))
		for key, item := range typed {
			text, ok := item.(string)
			if !ok {
				return value, nil
			}
			values[key] = text
		}
		return values, nil
	case string:
		if field == "status" {
			status, err := jelastic.ParseEnvStatus(typed)
			if err != nil {
				return nil, faults.TypeMismatch("field \"status\"", err)
			}
			return status, nil
		}
	}
	return value, nil
}

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func objectStateError(message string) error {
	return faults.ObjectState(message, nil)
}
