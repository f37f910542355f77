package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/store"
)

// Drafts are tasks written down locally, never sent to the server.
func draftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Keep local task drafts",
	}

	var (
		tags     []string
		priority string
		due      string
	)
	add := &cobra.Command{
		Use:   "add [title]",
		Short: "Save a draft task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return errors.New("title is required")
			}

			now := time.Now().UTC()
			item := model.Item{
				ID:        now.UnixMilli(),
				Type:      model.TypeTask,
				Title:     title,
				Tags:      tags,
				CreatedAt: now.Format(time.RFC3339),
				UpdatedAt: now.Format(time.RFC3339),
			}
			if priority != "" {
				p := model.Priority(priority)
				item.Priority = &p
			}
			if due != "" {
				d, err := parseDue(due, time.Now())
				if err != nil {
					return err
				}
				item.DueAt = &d
			}
			if err := item.Validate(); err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			item.ProjectID = a.Projects.Current()
			if err := store.AppendAndSave(cmd.Context(), a.KV, store.KeyDrafts, item); err != nil {
				return fmt.Errorf("save draft: %w", err)
			}
			success("draft saved")
			return nil
		},
	}
	add.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag (repeatable)")
	add.Flags().StringVarP(&priority, "priority", "p", "", "baja, media or alta")
	add.Flags().StringVarP(&due, "due", "d", "", `Due date: 2006-01-02 or "next friday"`)

	list := &cobra.Command{
		Use:   "list",
		Short: "Show saved drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			drafts, err := store.ReadList[model.Item](cmd.Context(), a.KV, store.KeyDrafts)
			if err != nil {
				return err
			}
			fmt.Println(renderDrafts(drafts))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := store.OverwriteList[model.Item](cmd.Context(), a.KV, store.KeyDrafts, nil); err != nil {
				return err
			}
			success("drafts cleared")
			return nil
		},
	}

	cmd.AddCommand(add, list, clearCmd)
	return cmd
}
