// Package plugin holds the compile-time registry of message rewriting plugins.
package plugin

import (
	"context"
	"net/http"
	"sort"

	"github.com/vovakirdan/chatgate/internal/core"
)

// Plugin is the common part of every registered plugin.
type Plugin interface {
	Name() string
}

// Incoming rewrites backend room events before they are classified.
type Incoming interface {
	Plugin
	TransformIncoming(ev *core.RoomEvent)
}

// Outgoing rewrites text typed by the IRC client before it is sent. The
// returned notices are shown to the client.
type Outgoing interface {
	Plugin
	TransformOutgoing(ctx context.Context, text string) (string, []string)
}

// Settings configure a single plugin.
type Settings struct {
	Enabled  bool
	Endpoint string
}

type factory func(Settings, *http.Client) Plugin

// registry enumerates every plugin the gateway knows about.
var registry = []struct {
	name string
	new  factory
}{
	{name: SmileysName, new: func(Settings, *http.Client) Plugin { return NewSmileys() }},
	{name: ShortenerName, new: func(s Settings, c *http.Client) Plugin { return NewShortener(s.Endpoint, c) }},
}

// Names lists all registered plugins.
func Names() []string {
	out := make([]string, 0, len(registry))
	for _, r := range registry {
		out = append(out, r.name)
	}
	return out
}

// Chain is the ordered set of enabled plugins.
type Chain struct {
	incoming []Incoming
	outgoing []Outgoing
	loaded   []string
	disabled []string
}

// Load instantiates the plugins enabled in settings.
func Load(settings map[string]Settings, client *http.Client) *Chain {
	if client == nil {
		client = http.DefaultClient
	}
	c := &Chain{}
	for _, r := range registry {
		s := settings[r.name]
		if !s.Enabled {
			c.disabled = append(c.disabled, r.name)
			continue
		}
		c.Add(r.new(s, client))
	}
	sort.Strings(c.disabled)
	return c
}

// Add appends p to the chain.
func (c *Chain) Add(p Plugin) {
	if in, ok := p.(Incoming); ok {
		c.incoming = append(c.incoming, in)
	}
	if out, ok := p.(Outgoing); ok {
		c.outgoing = append(c.outgoing, out)
	}
	c.loaded = append(c.loaded, p.Name())
}

func (c *Chain) Loaded() []string {
	if c == nil {
		return nil
	}
	return c.loaded
}

func (c *Chain) Disabled() []string {
	if c == nil {
		return nil
	}
	return c.disabled
}

// ApplyIncoming runs every incoming plugin on ev in registration order.
func (c *Chain) ApplyIncoming(ev *core.RoomEvent) {
	if c == nil {
		return
	}
	for _, p := range c.incoming {
		p.TransformIncoming(ev)
	}
}

// ApplyOutgoing runs every outgoing plugin on text and collects their notices.
func (c *Chain) ApplyOutgoing(ctx context.Context, text string) (string, []string) {
	if c == nil {
		return text, nil
	}
	var notices []string
	for _, p := range c.outgoing {
		var n []string
		text, n = p.TransformOutgoing(ctx, text)
		notices = append(notices, n...)
	}
	return text, notices
}
