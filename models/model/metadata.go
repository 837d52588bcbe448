package model

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-yolov5/inference"
)

// Metadata keys written by the YOLOv5 ONNX exporter.
const (
	MetadataKeyNames  = "names"
	MetadataKeyStride = "stride"
)

// Metadata is the descriptive information of a detection model.
type Metadata struct {
	inference.ModelMetadata `yaml:",inline"`
	// Stride is the largest feature map stride, or 0 when not recorded.
	Stride int `json:"stride" yaml:"stride"`
	// Classes maps class ids to labels.
	Classes map[int]string `json:"classes" yaml:"classes"`
}

var nameEntry = regexp.MustCompile(`(\d+)\s*:\s*(?:'([^']*)'|"([^"]*)")`)

// ParseMetadata extracts the stride and class labels from raw model metadata.
//
// Both entries are optional. A present but unreadable entry is a configuration error.
func ParseMetadata(raw inference.ModelMetadata) (Metadata, error) {
	md := Metadata{ModelMetadata: raw, Classes: map[int]string{}}

	if s, ok := raw.Custom[MetadataKeyStride]; ok && strings.TrimSpace(s) != "" {
		stride, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return Metadata{}, Configurationf("metadata %s=%q is not an integer", MetadataKeyStride, s)
		}
		md.Stride = stride
	}

	if s, ok := raw.Custom[MetadataKeyNames]; ok {
		classes, err := ParseClassNames(s)
		if err != nil {
			return Metadata{}, err
		}
		md.Classes = classes
	}
	return md, nil
}

// ParseClassNames reads a dictionary literal such as {0: 'person', 1: 'bicycle'}.
func ParseClassNames(s string) (map[int]string, error) {
	body := strings.TrimSpace(s)
	if body == "" || body == "{}" {
		return map[int]string{}, nil
	}
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return nil, Configurationf("metadata %s is not a dictionary: %q", MetadataKeyNames, s)
	}
	matches := nameEntry.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil, Configurationf("metadata %s has no entries: %q", MetadataKeyNames, s)
	}
	out := make(map[int]string, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, Configurationf("metadata %s has a bad class id %q", MetadataKeyNames, m[1])
		}
		label := m[2]
		if label == "" {
			label = m[3]
		}
		out[id] = label
	}
	return out, nil
}

// ClassName returns the label of id, or the decimal id when it has none.
func (m Metadata) ClassName(id int) string {
	if name, ok := m.Classes[id]; ok && name != "" {
		return name
	}
	return strconv.Itoa(id)
}

// ClassIDs returns the known class ids in ascending order.
func (m Metadata) ClassIDs() []int {
	ids := make([]int, 0, len(m.Classes))
	for id := range m.Classes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
