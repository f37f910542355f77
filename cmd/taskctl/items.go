package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/task-sync-client/internal/filter"
	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/store"
	"github.com/BuzzLyutic/task-sync-client/internal/worker"
)

type viewFlags struct {
	completion string
	tag        string
	sort       string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.completion, "completion", "c", "all", "all, completed or pending")
	cmd.Flags().StringVarP(&f.tag, "tag", "t", "", "Only items with this tag")
	cmd.Flags().StringVarP(&f.sort, "sort", "s", "none", "none, priority or due")
}

func (f *viewFlags) view() (filter.View, error) {
	completion, err := filter.ParseCompletion(f.completion)
	if err != nil {
		return filter.View{}, err
	}
	order, err := filter.ParseSort(f.sort)
	if err != nil {
		return filter.View{}, err
	}
	return filter.View{Completion: completion, Tag: f.tag, Sort: order}, nil
}

func itemsCmd() *cobra.Command {
	var (
		flags   viewFlags
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "items",
		Short: "Show tasks for the active scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := flags.view()
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			scope := a.Projects.Scope()
			var items []model.Item
			if offline {
				items, err = store.ReadList[model.Item](cmd.Context(), a.KV, worker.SnapshotKey(scope))
				if err != nil {
					return fmt.Errorf("read snapshot: %w", err)
				}
			} else {
				if err := requireLogin(a); err != nil {
					return err
				}
				a.Start(cmd.Context())
				scope, items = a.Scope(), a.Items()
			}

			fmt.Println(renderItems(scope, view.Apply(items)))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&offline, "offline", false, "Show the last saved snapshot instead of fetching")
	return cmd
}

func watchCmd() *cobra.Command {
	var flags viewFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the active scope's tasks live until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := flags.view()
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireLogin(a); err != nil {
				return err
			}

			var mu sync.Mutex
			a.OnItems(func(scope model.Scope, items []model.Item) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Print(clearScreen)
				fmt.Println(renderItems(scope, view.Apply(items)))
				fmt.Println(mutedStyle.Render(fmt.Sprintf("push: %s  (ctrl+c to quit)", a.Conn.State())))
			})
			a.Start(cmd.Context())

			<-cmd.Context().Done()
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
