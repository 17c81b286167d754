package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lguibr/kamaelia/axon"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	stateStyles = map[string]lipgloss.Style{
		axon.Runnable.String(): lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		axon.Paused.String():   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		axon.Created.String():  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	}

	passthroughArrows = map[string]string{
		axon.Normal.String():   "->",
		axon.Inbound.String():  "=>",
		axon.Outbound.String(): "=>",
	}
)

// ClearScreen moves the cursor home and clears the terminal.
func ClearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}

// Topology renders a snapshot as a components panel followed by linkage
// and service panels. Children are indented under their parent.
func Topology(top axon.Topology) string {
	var sections []string
	sections = append(sections, titleStyle.Render(fmt.Sprintf(
		"%d components, %d linkages, %d runnable, %d waiting",
		len(top.Components), len(top.Linkages), top.Runnable, top.Waiting)))
	sections = append(sections, panelStyle.Render(components(top.Components)))
	if len(top.Linkages) > 0 {
		sections = append(sections, panelStyle.Render(linkages(top.Linkages)))
	}
	if len(top.Services) > 0 {
		sections = append(sections, panelStyle.Render(services(top.Services)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func components(infos []axon.ComponentInfo) string {
	byID := make(map[axon.ID]axon.ComponentInfo, len(infos))
	for _, c := range infos {
		byID[c.ID] = c
	}
	lines := []string{headerStyle.Render("components")}
	var walk func(c axon.ComponentInfo, depth int)
	walk = func(c axon.ComponentInfo, depth int) {
		lines = append(lines, componentLine(c, depth))
		for _, child := range c.Children {
			if ci, ok := byID[child]; ok {
				walk(ci, depth+1)
			}
		}
	}
	for _, c := range infos {
		if _, hasParent := byID[c.Parent]; c.Parent != 0 && hasParent {
			continue
		}
		walk(c, 0)
	}
	return strings.Join(lines, "\n")
}

func componentLine(c axon.ComponentInfo, depth int) string {
	state := c.State
	if st, ok := stateStyles[state]; ok {
		state = st.Render(state)
	}
	var boxes []string
	for _, b := range c.Inboxes {
		if b.Queued > 0 {
			boxes = append(boxes, fmt.Sprintf("%s[%d]", b.Name, b.Queued))
		}
	}
	line := fmt.Sprintf("%s%s %s %s %s", strings.Repeat("  ", depth), c.ID, c.Name, mutedStyle.Render(c.Kind), state)
	if len(boxes) > 0 {
		line += " " + mutedStyle.Render(strings.Join(boxes, " "))
	}
	return line
}

func linkages(infos []axon.LinkageInfo) string {
	lines := []string{headerStyle.Render("linkages")}
	for _, l := range infos {
		arrow, ok := passthroughArrows[l.Passthrough]
		if !ok {
			arrow = "->"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", l.Source, arrow, l.Sink))
	}
	return strings.Join(lines, "\n")
}

func services(m map[string]string) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := []string{headerStyle.Render("services")}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s %s", name, mutedStyle.Render(m[name])))
	}
	return strings.Join(lines, "\n")
}
