package tasklist

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// checklistPattern matches "- [ ] name", "* [x] name" and bare "[ ] name".
	checklistPattern = regexp.MustCompile(`^\s*[-*]?\s*\[([xX ])\]\s*(.+)$`)

	// metadataPattern matches a whole-line HTML comment.
	metadataPattern = regexp.MustCompile(`^\s*<!--\s*(.*?)\s*-->\s*$`)
)

// metadata accumulates comment annotations until the next checklist item.
type metadata struct {
	category *Category
	order    int
	group    string
	files    []string
}

// Parse parses a task-list document into tasks in document order.
//
// HTML-comment lines preceding a checklist item attach metadata to that item;
// blank lines between the comments and the item are skipped. Any other line
// discards pending metadata. Unrecognized metadata is ignored.
func Parse(doc string) []Task {
	var tasks []Task
	var pending metadata

	for i, raw := range strings.Split(doc, "\n") {
		line := strings.TrimSuffix(raw, "\r")

		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := metadataPattern.FindStringSubmatch(line); m != nil {
			pending.apply(m[1])
			continue
		}

		m := checklistPattern.FindStringSubmatch(line)
		if m == nil {
			pending = metadata{}
			continue
		}

		name := strings.TrimSpace(m[2])
		if name == "" {
			pending = metadata{}
			continue
		}

		task := Task{
			Name: name,
			Line: i + 1,
		}
		if m[1] != " " {
			task.Status = StatusComplete
		}
		if pending.category != nil {
			task.Category = *pending.category
		}
		task.DependencyOrder = pending.order
		task.GroupID = pending.group
		task.TargetFiles = pending.files

		tasks = append(tasks, task)
		pending = metadata{}
	}

	return tasks
}

// apply merges one comment body such as
// "category: independent, group: api, files: a.go, b.go" into m.
func (m *metadata) apply(body string) {
	key := ""
	for _, segment := range strings.Split(body, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		value := segment
		if k, v, ok := strings.Cut(segment, ":"); ok && isMetadataKey(k) {
			key = strings.ToLower(strings.TrimSpace(k))
			value = strings.TrimSpace(v)
		} else if key != "files" {
			// Only file lists continue across commas.
			key = ""
			continue
		}

		switch key {
		case "category":
			switch strings.ToLower(value) {
			case "fundamental":
				c := Fundamental
				m.category = &c
			case "independent":
				c := Independent
				m.category = &c
			}
		case "order":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				m.order = n
			}
		case "group":
			m.group = value
		case "files":
			if value != "" {
				m.files = append(m.files, value)
			}
		}
	}
}

func isMetadataKey(k string) bool {
	switch strings.ToLower(strings.TrimSpace(k)) {
	case "category", "order", "group", "files":
		return true
	}
	return false
}
