package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docmirror/pkg/auth"
	"docmirror/pkg/config"
	"docmirror/pkg/session"
	"docmirror/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored session cookies for the http driver",
	Long: `Manage the session cookies the http driver sends.

A cookie is copied by you from a browser session that has already signed in
and passed verification. It is stored using:
  - the system keychain, when available
  - an encrypted file (passphrase from DOCMIRROR_PASSPHRASE)

DOCMIRROR_COOKIE overrides any stored cookie for a single run.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a session cookie",
	Example: `  docmirror auth login
  docmirror auth login work-laptop`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove a stored session cookie",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored session cookies, masked",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	site := config.DefaultConfig().Source.Site
	if cfg, err := config.Load(configFile, nil); err == nil {
		site = cfg.Source.Site
	}

	ctx := cmd.Context()
	prompter := session.NewTerminalPrompter()

	auth.ShowCookieExtractionGuide(site)
	if !confirm(ctx, prompter, "Ready to paste the cookie? [Y/n] ", true) {
		fmt.Println("\nRun 'docmirror auth login' when you're ready.")
		return nil
	}

	name := "default"
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if existing, _ := manager.Retrieve(name); existing != nil {
		if !confirm(ctx, prompter, fmt.Sprintf("A cookie named '%s' exists. Replace it? [y/N] ", name), false) {
			return nil
		}
	}

	var cookie string
	for {
		raw, err := prompter.ReadSecret(ctx, "Cookie (hidden): ")
		if err != nil {
			return err
		}
		cookie = auth.NormalizeCookie(raw)
		if strings.Contains(cookie, "=") {
			break
		}
		fmt.Println("That does not look like a Cookie header; expected name=value pairs separated by ';'.")
		auth.ShowQuickExtractGuide()
	}

	userAgent, err := prompter.Ask(ctx, "User-Agent of that browser (Enter to use the configured one): ")
	if err != nil {
		return err
	}

	cred := &auth.Credential{Name: name, Cookie: cookie, UserAgent: userAgent}
	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("failed to store cookie: %w", err)
	}

	shown := auth.Sanitize(cred)
	ui.PrintSuccess(fmt.Sprintf("Stored '%s' (%s)", shown.Name, shown.Cookie))
	fmt.Println("\nUse it with:")
	if name == "default" {
		fmt.Println("  docmirror sync --driver http")
	} else {
		fmt.Printf("  docmirror sync --driver http --account %s\n", name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		creds, err := manager.List()
		if err != nil || len(creds) == 0 {
			ui.PrintWarning("No stored cookies")
			return nil
		}
		fmt.Println("Select the cookie to remove:")
		for i, c := range creds {
			fmt.Printf("  %d. %s\n", i+1, c.Name)
		}
		fmt.Printf("  0. Cancel\n\n")

		answer, err := session.NewTerminalPrompter().Ask(cmd.Context(), "Choice: ")
		if err != nil {
			return err
		}
		var choice int
		fmt.Sscanf(answer, "%d", &choice)
		if choice < 1 || choice > len(creds) {
			return nil
		}
		name = creds[choice-1].Name
	}

	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove '%s': %w", name, err)
	}
	ui.PrintSuccess("Removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list cookies: %w", err)
	}
	if len(creds) == 0 {
		ui.PrintInfo("No stored cookies", "use 'docmirror auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored session cookies (newest first)")
	fmt.Println()
	for i, c := range creds {
		s := auth.Sanitize(c)
		fmt.Printf("%d. %s\n", i+1, s.Name)
		fmt.Printf("   Cookie: %s\n", s.Cookie)
		if s.UserAgent != "" {
			fmt.Printf("   User-Agent: %s\n", s.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n\n", s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}
