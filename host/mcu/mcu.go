// Package mcu talks to a Klipper-protocol microcontroller: it retrieves the
// command dictionary and sends commands by name.
package mcu

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"spider/protocol"
)

// Bootstrap message ids, fixed before the dictionary is known.
const (
	identifyResponseID = 0
	identifyID         = 1
	identifyChunk      = 40
	maxDictionary      = 1 << 20
)

// Client is a connection to one MCU.
type Client struct {
	transport *protocol.Transport
	dict      *Dictionary
	raw       []byte
	logger    *slog.Logger
}

// Connect takes ownership of port and retrieves the MCU dictionary.
func Connect(ctx context.Context, port io.ReadWriteCloser, logger *slog.Logger) (*Client, error) {
	c := &Client{
		transport: protocol.NewTransport(port, logger),
		logger:    logger,
	}
	if err := c.identify(ctx); err != nil {
		c.transport.Close()
		return nil, err
	}
	logger.Info("mcu identified",
		"version", c.dict.Version,
		"build", c.dict.BuildVersions,
		"commands", len(c.dict.Commands),
		"bytes", len(c.raw))
	return c, nil
}

func (c *Client) identify(ctx context.Context) error {
	f, err := protocol.ParseFormat("identify_response offset=%u data=%*s")
	if err != nil {
		return err
	}
	var raw []byte
	for len(raw) < maxDictionary {
		payload := protocol.AppendUint(nil, identifyID)
		payload = protocol.AppendUint(payload, uint32(len(raw)))
		payload = protocol.AppendUint(payload, identifyChunk)
		if err := c.transport.Send(ctx, payload); err != nil {
			return fmt.Errorf("identify at offset %d: %w", len(raw), err)
		}
		args, err := c.receive(ctx, identifyResponseID, f)
		if err != nil {
			return fmt.Errorf("identify at offset %d: %w", len(raw), err)
		}
		if off := args["offset"].(int64); off != int64(len(raw)) {
			return fmt.Errorf("identify: offset %d, want %d", off, len(raw))
		}
		chunk := args["data"].([]byte)
		raw = append(raw, chunk...)
		if len(chunk) < identifyChunk {
			break
		}
	}
	dict, err := ParseDictionary(raw)
	if err != nil {
		return err
	}
	c.raw = raw
	c.dict = dict
	return nil
}

// receive waits for a response with the given id, skipping any others.
func (c *Client) receive(ctx context.Context, id int, f protocol.Format) (map[string]any, error) {
	for {
		payload, err := c.transport.Receive(ctx)
		if err != nil {
			return nil, err
		}
		r := protocol.NewReader(payload)
		got, err := r.Uint()
		if err != nil {
			return nil, err
		}
		if int(got) != id {
			c.logger.Debug("skipping response", "id", got, "want", id)
			continue
		}
		return f.Decode(r)
	}
}

// Dictionary returns the identify data.
func (c *Client) Dictionary() *Dictionary { return c.dict }

// Send encodes and sends command name. It returns once the MCU has
// acknowledged it.
func (c *Client) Send(ctx context.Context, name string, args map[string]any) error {
	id, f, err := c.dict.Command(name)
	if err != nil {
		return err
	}
	payload, err := f.Encode(id, args)
	if err != nil {
		return err
	}
	c.logger.Debug("send", "cmd", name, "args", args)
	return c.transport.Send(ctx, payload)
}

// Query sends command name and waits for the named response.
func (c *Client) Query(ctx context.Context, name string, args map[string]any, response string) (map[string]any, error) {
	id, f, err := c.responseByName(response)
	if err != nil {
		return nil, err
	}
	if err := c.Send(ctx, name, args); err != nil {
		return nil, err
	}
	return c.receive(ctx, id, f)
}

func (c *Client) responseByName(name string) (int, protocol.Format, error) {
	for _, id := range c.dict.Responses {
		if f, ok := c.dict.Response(id); ok && f.Name == name {
			return id, f, nil
		}
	}
	return 0, protocol.Format{}, fmt.Errorf("mcu has no response %q", name)
}

// Close closes the transport and the port.
func (c *Client) Close() error {
	return c.transport.Close()
}
