package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BuzzLyutic/task-sync-client/internal/api"
	"github.com/BuzzLyutic/task-sync-client/internal/model"
)

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("TASKSYNC_PASSWORD")
			}
			if email == "" || password == "" {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return errors.New("--email and --password (or TASKSYNC_PASSWORD) are required")
				}
				if err := promptCredentials(&email, &password); err != nil {
					return err
				}
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.Session.Login(cmd.Context(), model.Credentials{Email: email, Password: password}); err != nil {
				if errors.Is(err, api.ErrUnauthorized) {
					return errors.New("invalid email or password")
				}
				return err
			}

			if u, ok := a.Session.User(); ok {
				success(fmt.Sprintf("logged in as %s", u.Email))
			} else {
				success("logged in")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	return cmd
}

func promptCredentials(email, password *string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(email).
				Validate(required("email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(required("password")),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("login prompt: %w", err)
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			a.Logout(cmd.Context())
			success("logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := requireLogin(a); err != nil {
				return err
			}
			u, err := a.API.Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch profile: %w", err)
			}
			fmt.Println(renderProfile(u))
			return nil
		},
	}
}
