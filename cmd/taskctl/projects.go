package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List, create and select projects",
		RunE:  runProjectsList,
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a project and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireLogin(a); err != nil {
				return err
			}

			desc, _ := cmd.Flags().GetString("description")
			var descPtr *string
			if desc != "" {
				descPtr = &desc
			}
			p, err := a.Projects.Create(cmd.Context(), args[0], descPtr)
			if err != nil {
				return err
			}
			success(fmt.Sprintf("created project #%d %s (now active)", p.ID, p.Name))
			return nil
		},
	}
	create.Flags().StringP("description", "d", "", "Project description")

	use := &cobra.Command{
		Use:   "use [id|personal]",
		Short: "Select the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id *int64
			if args[0] != "personal" {
				n, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid project id %q", args[0])
				}
				id = &n
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.Projects.SetCurrent(cmd.Context(), id); err != nil {
				return err
			}
			success("active scope: " + a.Projects.Scope().String())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{Use: "list", Short: "List projects", RunE: runProjectsList})
	cmd.AddCommand(create)
	cmd.AddCommand(use)
	return cmd
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)
	if err := requireLogin(a); err != nil {
		return err
	}

	a.Projects.Fetch(cmd.Context())
	fmt.Println(renderProjects(a.Projects.List(), a.Projects.Current()))
	return nil
}
