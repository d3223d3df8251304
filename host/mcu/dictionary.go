package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"spider/protocol"
)

// Dictionary is the MCU's self-description returned by identify.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]any            `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]any `json:"enumerations,omitempty"`

	commands  map[string]message
	responses map[int]message
}

type message struct {
	id     int
	format protocol.Format
}

// ParseDictionary decodes raw identify data, inflating it when it is
// zlib-compressed.
func ParseDictionary(raw []byte) (*Dictionary, error) {
	data := raw
	if len(raw) >= 2 && raw[0] == 0x78 {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("inflate dictionary: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("inflate dictionary: %w", err)
		}
	}

	d := &Dictionary{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	d.commands = make(map[string]message, len(d.Commands))
	for s, id := range d.Commands {
		f, err := protocol.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		d.commands[f.Name] = message{id: id, format: f}
	}
	d.responses = make(map[int]message, len(d.Responses))
	for s, id := range d.Responses {
		f, err := protocol.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		d.responses[id] = message{id: id, format: f}
	}
	return d, nil
}

// Command looks a command up by name.
func (d *Dictionary) Command(name string) (int, protocol.Format, error) {
	m, ok := d.commands[name]
	if !ok {
		return 0, protocol.Format{}, fmt.Errorf("mcu has no command %q", name)
	}
	return m.id, m.format, nil
}

// HasCommand reports whether the firmware implements name.
func (d *Dictionary) HasCommand(name string) bool {
	_, ok := d.commands[name]
	return ok
}

// Response looks a response up by message id.
func (d *Dictionary) Response(id int) (protocol.Format, bool) {
	m, ok := d.responses[id]
	return m.format, ok
}

// CommandNames returns the command names in sorted order.
func (d *Dictionary) CommandNames() []string {
	names := make([]string, 0, len(d.commands))
	for n := range d.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
