package diffmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// ManifestFileName is the name of the JSON manifest at the root of every
// patch archive.
const ManifestFileName = ".bireus"

// SupportedProtocol is the patch-task protocol version CompareTask stamps
// onto every DiffHead it produces, and the only value PatchTask accepts.
const SupportedProtocol = 1

// DiffHead is the patch manifest at the top of a patch archive: which
// repository, which versions, and the single synthetic root DiffItem
// describing the whole tree transition.
type DiffHead struct {
	Repository    string
	BaseVersion   string
	TargetVersion string
	// Protocol is the patch-task protocol version this archive was produced
	// for. PatchTask refuses to apply an archive whose Protocol it does not
	// recognize (bierrors.ProtocolMismatch).
	Protocol int
	Items    []*DiffItem
}

// Root returns the single synthetic root DiffItem, or an error if the
// manifest is malformed (Items must contain exactly one element).
func (h *DiffHead) Root() (*DiffItem, error) {
	if len(h.Items) != 1 {
		return nil, fmt.Errorf("diffmodel: DiffHead must have exactly one root item, got %d", len(h.Items))
	}
	return h.Items[0], nil
}

// Validate checks structural invariants: exactly one root item, whose
// legality (and that of its descendants) holds.
func (h *DiffHead) Validate() error {
	root, err := h.Root()
	if err != nil {
		return err
	}
	if root.Name != "" {
		return fmt.Errorf("diffmodel: root item must have an empty name, got %q", root.Name)
	}
	if root.Action != ActionDelta {
		return fmt.Errorf("diffmodel: root item action must be delta, got %q", root.Action)
	}
	return root.Validate()
}

// diffHeadWire mirrors the fixed key order spec.md §4.2 mandates for the
// head: repository, base_version, target_version, items. Protocol is an
// addition this implementation needs (see SPEC_FULL.md §3) and is appended
// last so it never disturbs the mandated prefix ordering.
type diffHeadWire struct {
	Repository    string      `json:"repository"`
	BaseVersion   string      `json:"base_version"`
	TargetVersion string      `json:"target_version"`
	Items         []*DiffItem `json:"items"`
	Protocol      int         `json:"protocol"`
}

// MarshalJSON writes keys in the mandated order.
func (h *DiffHead) MarshalJSON() ([]byte, error) {
	items := h.Items
	if items == nil {
		items = []*DiffItem{}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	writeField(&buf, "repository", h.Repository, true)
	writeField(&buf, "base_version", h.BaseVersion, false)
	writeField(&buf, "target_version", h.TargetVersion, false)

	buf.WriteString(`,"items":`)
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	buf.Write(itemsJSON)

	buf.WriteString(fmt.Sprintf(`,"protocol":%d`, h.Protocol))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts any key order via a shadow struct.
func (h *DiffHead) UnmarshalJSON(data []byte) error {
	var w diffHeadWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	h.Repository = w.Repository
	h.BaseVersion = w.BaseVersion
	h.TargetVersion = w.TargetVersion
	h.Items = w.Items
	if h.Items == nil {
		h.Items = []*DiffItem{}
	}
	h.Protocol = w.Protocol
	return nil
}

// LoadDiffHead reads and parses the .bireus manifest at path.
func LoadDiffHead(path string) (*DiffHead, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var head DiffHead
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	return &head, nil
}

// WriteDiffHead serializes head and writes it to path (typically
// "<patch-root>/.bireus").
func WriteDiffHead(head *DiffHead, path string) error {
	data, err := json.Marshal(head)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
