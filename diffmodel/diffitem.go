// Package diffmodel implements the recursive DiffHead/DiffItem structural
// diff manifest described by the patch pipeline, including its exact JSON
// wire format.
package diffmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ItemType distinguishes a file node from a directory node.
type ItemType string

const (
	TypeFile      ItemType = "file"
	TypeDirectory ItemType = "directory"
)

// Action is the transition a DiffItem records between base and target.
type Action string

const (
	ActionAdd       Action = "add"
	ActionRemove    Action = "remove"
	ActionUnchanged Action = "unchanged"
	ActionDelta     Action = "delta"
	ActionBSDiff    Action = "bsdiff"
	ActionZipDelta  Action = "zipdelta"
)

// legalActions enforces the action legality matrix from the data model:
// directories may only add/remove/delta, files may add/remove/unchanged/
// bsdiff/zipdelta.
var legalActions = map[ItemType]map[Action]bool{
	TypeFile: {
		ActionAdd: true, ActionRemove: true, ActionUnchanged: true,
		ActionBSDiff: true, ActionZipDelta: true,
	},
	TypeDirectory: {
		ActionAdd: true, ActionRemove: true, ActionDelta: true,
	},
}

// DiffItem is one file or directory node inside a DiffHead's tree. It is a
// tagged-variant record rather than a type hierarchy: Type and Action
// select which of the remaining fields are meaningful, per the legality
// matrix enforced by Validate.
type DiffItem struct {
	Type     ItemType
	Name     string
	Action   Action
	BaseCRC  string // hex CRC32, or #EMPTY / #ZIPFILE; files only
	TargetCRC string // hex CRC32, or #EMPTY / #ZIPFILE; files only
	Items    []*DiffItem
}

// Validate checks Type/Action legality, that directories carry no CRC, and
// that unchanged files have equal base/target CRCs, recursively. It does
// not check which of BaseCRC/TargetCRC is set for add, remove, bsdiff or
// zipdelta items, nor whether the referenced files actually exist on disk.
func (d *DiffItem) Validate() error {
	if !legalActions[d.Type][d.Action] {
		return fmt.Errorf("diffmodel: action %q is not legal for type %q (item %q)", d.Action, d.Type, d.Name)
	}
	if d.Type == TypeDirectory && (d.BaseCRC != "" || d.TargetCRC != "") {
		return fmt.Errorf("diffmodel: directory %q must not carry a CRC", d.Name)
	}
	if d.Action == ActionUnchanged && d.Type == TypeFile && d.BaseCRC != d.TargetCRC {
		return fmt.Errorf("diffmodel: unchanged file %q must have equal base/target CRC", d.Name)
	}
	for _, child := range d.Items {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// diffItemWire is the exact field order spec.md §4.2 mandates for JSON
// serialization: type, name, action, items, base_crc, target_crc — with
// base_crc/target_crc present only for type==file.
type diffItemWire struct {
	Type      ItemType        `json:"type"`
	Name      string          `json:"name"`
	Action    Action          `json:"action"`
	Items     []*DiffItem     `json:"items"`
	BaseCRC   *string         `json:"base_crc,omitempty"`
	TargetCRC *string         `json:"target_crc,omitempty"`
}

// MarshalJSON writes keys in the fixed order the manifest format mandates,
// so loading a .bireus file and re-serializing it produces byte-equal
// output.
func (d *DiffItem) MarshalJSON() ([]byte, error) {
	items := d.Items
	if items == nil {
		items = []*DiffItem{}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField(&buf, "type", string(d.Type), true)
	writeField(&buf, "name", d.Name, false)
	writeField(&buf, "action", string(d.Action), false)

	buf.WriteString(`,"items":`)
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	buf.Write(itemsJSON)

	if d.Type == TypeFile {
		buf.WriteString(`,"base_crc":`)
		b, err := json.Marshal(d.BaseCRC)
		if err != nil {
			return nil, err
		}
		buf.Write(b)

		buf.WriteString(`,"target_crc":`)
		t, err := json.Marshal(d.TargetCRC)
		if err != nil {
			return nil, err
		}
		buf.Write(t)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key, value string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	b, _ := json.Marshal(value)
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString(`":`)
	buf.Write(b)
}

// UnmarshalJSON accepts any key order (JSON objects are unordered) via a
// shadow struct.
func (d *DiffItem) UnmarshalJSON(data []byte) error {
	var w diffItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	d.Type = w.Type
	d.Name = w.Name
	d.Action = w.Action
	d.Items = w.Items
	if w.BaseCRC != nil {
		d.BaseCRC = *w.BaseCRC
	}
	if w.TargetCRC != nil {
		d.TargetCRC = *w.TargetCRC
	}
	if d.Items == nil {
		d.Items = []*DiffItem{}
	}
	return nil
}
