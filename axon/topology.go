package axon

import "sort"

// BoxInfo describes one inbox in a topology snapshot.
type BoxInfo struct {
	Name   string `json:"name"`
	Queued int    `json:"queued"`
	Size   int    `json:"size,omitempty"`
}

// ComponentInfo describes one registered component.
type ComponentInfo struct {
	ID       ID        `json:"id"`
	Name     string    `json:"name"`
	State    string    `json:"state"`
	Kind     string    `json:"kind"`
	Parent   ID        `json:"parent,omitempty"`
	Children []ID      `json:"children,omitempty"`
	Inboxes  []BoxInfo `json:"inboxes"`
	Outboxes []string  `json:"outboxes"`
}

// LinkageInfo describes one linkage.
type LinkageInfo struct {
	ID          LinkageID `json:"id"`
	Source      string    `json:"source"`
	Sink        string    `json:"sink"`
	Passthrough string    `json:"passthrough"`
	Owner       ID        `json:"owner,omitempty"`
}

// Topology is a point-in-time snapshot of a scheduler.
type Topology struct {
	Components []ComponentInfo   `json:"components"`
	Linkages   []LinkageInfo     `json:"linkages"`
	Services   map[string]string `json:"services"`
	Runnable   int               `json:"runnable"`
	Waiting    int               `json:"waiting"`
}

// Topology snapshots every component, linkage and service.
func (s *Scheduler) Topology() Topology {
	t := Topology{
		Services: make(map[string]string),
		Runnable: len(s.runQueue),
		Waiting:  len(s.waiting),
	}
	for _, id := range s.sortedIDs() {
		c := s.components[id]
		info := ComponentInfo{
			ID:       id,
			Name:     c.name,
			State:    c.state.String(),
			Kind:     c.kind(),
			Parent:   c.parent,
			Children: append([]ID(nil), c.children...),
		}
		for name, mb := range c.inboxes {
			info.Inboxes = append(info.Inboxes, BoxInfo{Name: name, Queued: mb.len(), Size: mb.size})
		}
		sort.Slice(info.Inboxes, func(i, j int) bool { return info.Inboxes[i].Name < info.Inboxes[j].Name })
		for name := range c.outboxes {
			info.Outboxes = append(info.Outboxes, name)
		}
		sort.Strings(info.Outboxes)
		t.Components = append(t.Components, info)
	}
	for _, l := range s.po.all() {
		t.Linkages = append(t.Linkages, LinkageInfo{
			ID:          l.ID,
			Source:      l.Source.String(),
			Sink:        l.Sink.String(),
			Passthrough: l.Passthrough.String(),
			Owner:       l.Owner,
		})
	}
	for _, name := range s.tracker.Services() {
		t.Services[name] = s.tracker.services[name].String()
	}
	return t
}

func (c *component) kind() string {
	switch {
	case c.props.adaptive != nil:
		return "adaptive"
	case c.thread != nil:
		return "threaded"
	default:
		return "plain"
	}
}
