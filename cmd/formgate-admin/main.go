// ABOUTME: Admin CLI for formgate settings management
// ABOUTME: Sets the admin password digest and the two webhook URLs

package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/formgate/formgate/internal/config"
	"github.com/formgate/formgate/internal/gate"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "set-password":
		err = cmdSetPassword()
	case "set-webhooks":
		err = cmdSetWebhooks(args)
	case "show":
		err = cmdShow()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: formgate-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  set-password                    Set the admin password (prompts)")
	fmt.Println("  set-webhooks --submit U --read U  Set the webhook URLs")
	fmt.Println("  show                            Show current settings")
	fmt.Println()
	fmt.Println("The config file location is taken from FORMGATE_CONFIG or the")
	fmt.Println("default path used by the formgate server.")
}

// openSettings locates the settings store via the server config.
func openSettings() (*config.SettingsStore, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return config.OpenSettings(cfg.Settings.Path, cfg.Settings.KeyFile)
}

// getConfigPath mirrors the server's config resolution.
func getConfigPath() string {
	if envPath := os.Getenv("FORMGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "formgate.yaml"
		}
		configDir = homeDir + "/.config"
	}
	return configDir + "/formgate/formgate.yaml"
}

func cmdSetPassword() error {
	password, err := readPassword("New admin password: ")
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	store, err := openSettings()
	if err != nil {
		return err
	}

	// Only the digest is persisted; the plaintext never touches disk
	if err := store.Write(func(s *config.Settings) {
		s.AdminPassword = gate.Digest(password)
	}); err != nil {
		return err
	}

	color.Green("Admin password updated")
	return nil
}

// readPassword reads without echo when stdin is a terminal, falling back to
// plain line reads for piped input.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdSetWebhooks(args []string) error {
	fs := flag.NewFlagSet("set-webhooks", flag.ExitOnError)
	submitURL := fs.String("submit", "", "submit webhook URL")
	readURL := fs.String("read", "", "read webhook URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *submitURL == "" && *readURL == "" {
		return fmt.Errorf("nothing to set: pass --submit and/or --read")
	}

	for _, raw := range []string{*submitURL, *readURL} {
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid webhook URL: %s", raw)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("webhook URL must be http or https: %s", raw)
		}
	}

	store, err := openSettings()
	if err != nil {
		return err
	}

	if err := store.Write(func(s *config.Settings) {
		if *submitURL != "" {
			s.SubmitWebhookURL = *submitURL
		}
		if *readURL != "" {
			s.ReadWebhookURL = *readURL
		}
	}); err != nil {
		return err
	}

	color.Green("Webhook URLs updated")
	return nil
}

func cmdShow() error {
	store, err := openSettings()
	if err != nil {
		return err
	}

	settings, err := store.Read()
	if err != nil {
		return err
	}

	label := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("%s %s\n", label("Submit webhook:"), orUnset(settings.SubmitWebhookURL))
	fmt.Printf("%s %s\n", label("Read webhook:  "), orUnset(settings.ReadWebhookURL))
	if settings.AdminPassword != "" {
		fmt.Printf("%s set\n", label("Admin password:"))
	} else {
		fmt.Printf("%s %s\n", label("Admin password:"), color.YellowString("not configured"))
	}
	return nil
}

func orUnset(v string) string {
	if v == "" {
		return color.YellowString("not configured")
	}
	return v
}
