package axon

import "sort"

// postoffice is the registry of every linkage in a scheduler. Links are
// indexed by source box, in registration order, and by sink box.
type postoffice struct {
	linkages map[LinkageID]*Linkage
	bySource map[boxKey][]*Linkage
	bySink   map[boxKey][]*Linkage
	nextID   LinkageID
}

func newPostoffice() *postoffice {
	return &postoffice{
		linkages: make(map[LinkageID]*Linkage),
		bySource: make(map[boxKey][]*Linkage),
		bySink:   make(map[boxKey][]*Linkage),
	}
}

func (p *postoffice) link(src, dst Endpoint, kind PassthroughKind, owner ID) *Linkage {
	p.nextID++
	l := &Linkage{ID: p.nextID, Source: src, Sink: dst, Passthrough: kind, Owner: owner}
	p.linkages[l.ID] = l
	p.bySource[l.sourceKey()] = append(p.bySource[l.sourceKey()], l)
	p.bySink[l.sinkKey()] = append(p.bySink[l.sinkKey()], l)
	return l
}

func (p *postoffice) get(id LinkageID) (*Linkage, bool) {
	l, ok := p.linkages[id]
	return l, ok
}

func (p *postoffice) unlink(id LinkageID) (*Linkage, bool) {
	l, ok := p.linkages[id]
	if !ok {
		return nil, false
	}
	delete(p.linkages, id)
	p.bySource[l.sourceKey()] = without(p.bySource[l.sourceKey()], l)
	if len(p.bySource[l.sourceKey()]) == 0 {
		delete(p.bySource, l.sourceKey())
	}
	p.bySink[l.sinkKey()] = without(p.bySink[l.sinkKey()], l)
	if len(p.bySink[l.sinkKey()]) == 0 {
		delete(p.bySink, l.sinkKey())
	}
	return l, true
}

// unlinkWhere removes every linkage for which match is true and returns them.
func (p *postoffice) unlinkWhere(match func(*Linkage) bool) []*Linkage {
	var ids []LinkageID
	for id, l := range p.linkages {
		if match(l) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	removed := make([]*Linkage, 0, len(ids))
	for _, id := range ids {
		if l, ok := p.unlink(id); ok {
			removed = append(removed, l)
		}
	}
	return removed
}

// unlinkComponent drops every linkage mentioning id or owned by it.
func (p *postoffice) unlinkComponent(id ID) []*Linkage {
	return p.unlinkWhere(func(l *Linkage) bool {
		return l.mentions(id) || l.Owner == id
	})
}

// unlinkBox drops every linkage that reads from or writes to the box.
func (p *postoffice) unlinkBox(key boxKey) []*Linkage {
	return p.unlinkWhere(func(l *Linkage) bool {
		return l.sourceKey() == key || l.sinkKey() == key
	})
}

func (p *postoffice) outgoing(key boxKey) []*Linkage { return p.bySource[key] }

func (p *postoffice) incoming(key boxKey) []*Linkage { return p.bySink[key] }

func (p *postoffice) all() []*Linkage {
	out := make([]*Linkage, 0, len(p.linkages))
	for _, l := range p.linkages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func without(ls []*Linkage, l *Linkage) []*Linkage {
	for i, x := range ls {
		if x == l {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}
