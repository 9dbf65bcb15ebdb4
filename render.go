package optfactory

import (
	"fmt"
	"sort"
	"strings"
)

type renderItem struct {
	name      string
	value     string
	isDefault bool
	section   bool
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case fmt.Stringer:
		return typed.String()
	case string:
		return typed
	}
	return fmt.Sprintf("%v", value)
}

// renderInline formats items as {a: 1 (default), b: 3}. Sections never carry
// the (default) marker.
func renderInline(items []renderItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.name + ": " + item.value
		if item.isDefault && !item.section {
			parts[i] += " (default)"
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// renderTable formats items as a fixed-width two column table sorted by
// name.
func renderTable(items []renderItem) string {
	const row = "%-50s|  %-30s\n"
	sorted := append([]renderItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	var b strings.Builder
	b.WriteString("\nOptions\n=======\n")
	fmt.Fprintf(&b, row, "Name", "Value")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, item := range sorted {
		value := item.value
		if item.isDefault && !item.section {
			value += "\t(default)"
		}
		fmt.Fprintf(&b, row, item.name, value)
	}
	return b.String()
}

func (o *Options) renderItems() []renderItem {
	items := make([]renderItem, 0, len(o.keys))
	for _, key := range o.keys {
		value := o.values[key]
		_, section := value.(*Options)
		items = append(items, renderItem{
			name:      key,
			value:     formatValue(value),
			isDefault: !o.explicit[key],
			section:   section,
		})
	}
	return items
}

func (o *Options) String() string { return renderInline(o.renderItems()) }

// AsTable renders the top-level values as a fixed-width table.
func (o *Options) AsTable() string { return renderTable(o.renderItems()) }

func (m *MutableOptions) renderItems() []renderItem {
	items := make([]renderItem, 0, len(m.schema.keys))
	for _, key := range m.schema.keys {
		item := renderItem{name: key}
		if section, ok := m.sections[key]; ok {
			item.section = true
			item.value = section.String()
		} else if value, err := m.Get(key); err != nil {
			item.value = fmt.Sprintf("<error: %v>", err)
		} else {
			_, explicit := m.data[key]
			item.value = formatValue(value)
			item.isDefault = !explicit
		}
		items = append(items, item)
	}
	return items
}

// String resolves every option; values that fail to resolve render as
// <error: ...>.
func (m *MutableOptions) String() string { return renderInline(m.renderItems()) }

// AsTable renders the top-level values as a fixed-width table.
func (m *MutableOptions) AsTable() string { return renderTable(m.renderItems()) }
