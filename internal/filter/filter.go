// Package filter narrows and orders an item list for display.
package filter

import (
	"fmt"
	"sort"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
)

type Completion string

const (
	CompletionAll       Completion = "all"
	CompletionCompleted Completion = "completed"
	CompletionPending   Completion = "pending"
)

type Sort string

const (
	SortNone     Sort = "none"
	SortPriority Sort = "priority"
	SortDue      Sort = "due"
)

func ParseCompletion(s string) (Completion, error) {
	switch c := Completion(s); c {
	case "":
		return CompletionAll, nil
	case CompletionAll, CompletionCompleted, CompletionPending:
		return c, nil
	}
	return "", fmt.Errorf("unknown completion filter %q", s)
}

func ParseSort(s string) (Sort, error) {
	switch o := Sort(s); o {
	case "":
		return SortNone, nil
	case SortNone, SortPriority, SortDue:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// View is the user's current filter selection. The zero value shows
// everything in list order.
type View struct {
	Completion Completion
	Tag        string
	Sort       Sort
}

// ToggleTag selects tag, or clears it when it is already selected.
func (v *View) ToggleTag(tag string) {
	if v.Tag == tag {
		v.Tag = ""
		return
	}
	v.Tag = tag
}

// Apply returns the matching items as a new slice. Items that compare equal
// under the chosen sort keep their list order.
func (v View) Apply(items []model.Item) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		switch v.Completion {
		case CompletionCompleted:
			if !it.Completed {
				continue
			}
		case CompletionPending:
			if it.Completed {
				continue
			}
		}
		if v.Tag != "" && !it.HasTag(v.Tag) {
			continue
		}
		out = append(out, it)
	}

	switch v.Sort {
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		})
	case SortDue:
		// Dates come as ISO-8601 strings, so they order lexically; undated last.
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].DueAt, out[j].DueAt
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return *a < *b
		})
	}
	return out
}

// Tags lists the distinct tags across items in first-seen order.
func Tags(items []model.Item) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, it := range items {
		for _, t := range it.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	return tags
}
