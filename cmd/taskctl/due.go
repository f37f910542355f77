package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const dueLayout = "2006-01-02"

var dueParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDue accepts a calendar date or a phrase like "next friday".
func parseDue(text string, now time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if t, err := time.Parse(dueLayout, text); err == nil {
		return t.Format(dueLayout), nil
	}

	r, err := dueParser.Parse(text, now)
	if err != nil {
		return "", fmt.Errorf("parse due date %q: %w", text, err)
	}
	if r == nil {
		return "", fmt.Errorf("unrecognised due date %q", text)
	}
	return r.Time.Format(dueLayout), nil
}
