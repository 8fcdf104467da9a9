package flags

import (
	"flag"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.arctag.dev/arctag"
	"go.arctag.dev/arctag/notifications"
	"go.arctag.dev/arctag/researchlink"
)

var _ flag.Value = (*extensionsParser)(nil)
var _ flag.Value = (*collisionParser)(nil)
var _ flag.Value = (*researchLinkParser)(nil)
var _ flag.Value = (*notificationsParser)(nil)

type extensionsParser struct{ exts []string }

func (e *extensionsParser) Set(value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fmt.Errorf("empty extension")
	}
	if !strings.HasPrefix(value, ".") {
		value = "." + value
	}
	if !slices.Contains(e.exts, value) {
		e.exts = append(e.exts, value)
	}
	return nil
}
func (e extensionsParser) String() string {
	return strings.Join(e.exts, ", ")
}

type collisionParser arctag.CollisionPolicy

func (c *collisionParser) Set(value string) error {
	p := arctag.CollisionPolicy(value)
	if !p.IsValid() {
		return fmt.Errorf("unknown collision policy %q", value)
	}
	*c = collisionParser(p)
	return nil
}
func (c *collisionParser) String() string {
	if c == nil {
		return ""
	}
	return string(*c)
}

type researchLinkParser struct{ *researchlink.Builder }

func (r *researchLinkParser) Set(value string) error {
	name, value, _ := strings.Cut(value, " ")
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	return r.AddSource(name, value)
}
func (r researchLinkParser) String() string {
	if r.Builder == nil {
		return ""
	}
	var names []string
	for name := range r.IterSources() {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// AddDefaultResearchLinks adds the default sources if none were configured.
func AddDefaultResearchLinks(b *researchlink.Builder) error {
	if b.Len() > 0 {
		return nil
	}
	for _, d := range researchlink.Defaults {
		if err := b.AddSource(d[0], d[1]); err != nil {
			return fmt.Errorf("add default %s: %w", d[0], err)
		}
	}
	return nil
}

type notificationsParser struct{ *notifications.Notifications }

func (n *notificationsParser) Set(value string) error {
	return n.Parse(value)
}
func (n notificationsParser) String() string {
	if n.Notifications == nil {
		return ""
	}
	var parts []string
	n.IterMappings(func(e notifications.Event, uri string) {
		url, _ := url.Parse(uri)
		parts = append(parts, fmt.Sprintf("%s: %s://%s/...", e, url.Scheme, url.Host))
	})
	return strings.Join(parts, ", ")
}
