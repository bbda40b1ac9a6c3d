package keep

import (
	"fmt"
	"strings"
	"time"
)

// Note is a remote note as fetched for one sync. Content is already
// flattened for checklists.
type Note struct {
	RemoteID  string
	Title     string
	Content   string
	Labels    []string
	Pinned    bool
	Archived  bool
	Trashed   bool
	Color     *string
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// Empty reports a note with neither a title nor content. Whitespace counts
// as content.
func (n Note) Empty() bool {
	return n.Title == "" && n.Content == ""
}

type ListItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// FlattenChecklist renders items as "[x] text" / "[ ] text" lines in order.
func FlattenChecklist(items []ListItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		box := "[ ]"
		if it.Checked {
			box = "[x]"
		}
		lines = append(lines, box+" "+it.Text)
	}
	return strings.Join(lines, "\n")
}

const (
	noteTypeList = "list"
)

// wireNote is the bridge's JSON representation of a note.
type wireNote struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Title    string     `json:"title"`
	Text     string     `json:"text"`
	Items    []ListItem `json:"items"`
	Labels   []string   `json:"labels"`
	Pinned   bool       `json:"pinned"`
	Archived bool       `json:"archived"`
	Trashed  bool       `json:"trashed"`
	Color    string     `json:"color"`
	Created  string     `json:"created"`
	Updated  string     `json:"updated"`
}

func (w wireNote) toNote() (Note, error) {
	n := Note{
		RemoteID: w.ID,
		Title:    w.Title,
		Content:  w.Text,
		Labels:   w.Labels,
		Pinned:   w.Pinned,
		Archived: w.Archived,
		Trashed:  w.Trashed,
	}
	if strings.EqualFold(w.Type, noteTypeList) {
		n.Content = FlattenChecklist(w.Items)
	}
	if n.Labels == nil {
		n.Labels = []string{}
	}
	if c := strings.TrimSpace(w.Color); c != "" {
		n.Color = &c
	}

	var err error
	if n.CreatedAt, err = parseTimestamp(w.Created); err != nil {
		return Note{}, fmt.Errorf("note %s: created: %w", w.ID, err)
	}
	if n.UpdatedAt, err = parseTimestamp(w.Updated); err != nil {
		return Note{}, fmt.Errorf("note %s: updated: %w", w.ID, err)
	}
	return n, nil
}

// Timestamps without a zone are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", v)
}
