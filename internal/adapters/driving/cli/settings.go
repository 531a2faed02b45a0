package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driving"
	"github.com/custodia-labs/mirae/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage device preferences",
	Long: `View and configure preferences stored on this device: what a new
session opens, autosave behaviour, the clock format, and the theme.

Use subcommands to change a single preference or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current preferences",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all preferences step by step.`,
	RunE:  runSettingsWizard,
}

var settingsStartupCmd = &cobra.Command{
	Use:   "startup [last|home]",
	Short: "Set what a new session opens",
	Long: `Set what a new session opens.

Available positions:
  last - Reopen the last opened page
  home - Always start on the home view

Without an argument, choose interactively.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsStartup,
}

var settingsThemeCmd = &cobra.Command{
	Use:   "theme [light|dark|glass]",
	Short: "Set the colour theme",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsTheme,
}

var settingsTimeFormatCmd = &cobra.Command{
	Use:   "time-format [12h|24h]",
	Short: "Set the clock format",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsTimeFormat,
}

var settingsAutosaveCmd = &cobra.Command{
	Use:   "autosave [on|off]",
	Short: "Enable or disable autosave",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsAutosave,
}

var settingsDelaysCmd = &cobra.Command{
	Use:   "delays [title-ms] [content-ms]",
	Short: "Set the autosave debounce delays in milliseconds",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsDelays,
}

var settingsOwnerCmd = &cobra.Command{
	Use:   "owner [owner-id]",
	Short: "Set the default owner",
	Long:  `Set the owner used when --owner is not given. An empty id clears it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsOwner,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsStartupCmd)
	settingsCmd.AddCommand(settingsThemeCmd)
	settingsCmd.AddCommand(settingsTimeFormatCmd)
	settingsCmd.AddCommand(settingsAutosaveCmd)
	settingsCmd.AddCommand(settingsDelaysCmd)
	settingsCmd.AddCommand(settingsOwnerCmd)
	rootCmd.AddCommand(settingsCmd)
}

// preferencesService returns the preferences service for the device store.
func preferencesService() (driving.PreferencesService, error) {
	if appRuntime == nil || appRuntime.Device == nil {
		return nil, errors.New("preferences not configured")
	}
	return services.NewPreferencesService(appRuntime.Device), nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	prefsService, err := preferencesService()
	if err != nil {
		return err
	}

	prefs, err := prefsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get preferences: %w", err)
	}

	cmd.Println("Current Preferences")
	cmd.Println("===================")
	cmd.Println()

	cmd.Println("[Startup]")
	cmd.Printf("  Opens: %s\n", prefs.Startup.Description())
	if last := prefsService.LastOpenedPage(); last != "" {
		cmd.Printf("  Last opened: %s\n", last)
	}
	cmd.Println()

	cmd.Println("[Editor]")
	if prefs.Autosave.Enabled {
		cmd.Println("  Autosave: on")
	} else {
		cmd.Println("  Autosave: off")
	}
	cmd.Printf("  Title delay: %s\n", prefs.Autosave.TitleDelay)
	cmd.Printf("  Content delay: %s\n", prefs.Autosave.ContentDelay)
	cmd.Println()

	cmd.Println("[Display]")
	cmd.Printf("  Time format: %s\n", prefs.TimeFormat)
	cmd.Printf("  Theme: %s\n", prefs.Theme)
	cmd.Println()

	cmd.Println("[Identity]")
	if owner := appRuntime.Device.GetString(keyDefaultOwner); owner != "" {
		cmd.Printf("  Owner: %s\n", owner)
	} else {
		cmd.Println("  Owner: (not set)")
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	prefsService, err := preferencesService()
	if err != nil {
		return err
	}

	cmd.Println("Mirae Settings Wizard")
	cmd.Println("=====================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	// Step 1: Startup position
	cmd.Println("Step 1: What should a new session open?")
	cmd.Println("---------------------------------------")
	position := chooseStartupPosition(cmd, reader, 1)
	if err := prefsService.SetStartupPosition(position); err != nil {
		return fmt.Errorf("failed to set startup position: %w", err)
	}
	cmd.Printf("Startup set to: %s\n\n", position.Description())

	// Step 2: Autosave
	cmd.Println("Step 2: Autosave")
	cmd.Println("----------------")
	cmd.Print("Enable autosave? [Y/n]: ")
	enabled := !strings.EqualFold(readLine(reader), "n")
	if err := prefsService.SetAutosave(enabled); err != nil {
		return fmt.Errorf("failed to set autosave: %w", err)
	}
	cmd.Println()

	// Step 3: Theme
	cmd.Println("Step 3: Select Theme")
	cmd.Println("--------------------")
	theme := chooseTheme(cmd, reader, 1)
	if err := prefsService.SetTheme(theme); err != nil {
		return fmt.Errorf("failed to set theme: %w", err)
	}
	cmd.Println()

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	cmd.Println("All preferences are saved.")
	return nil
}

func runSettingsStartup(cmd *cobra.Command, args []string) error {
	prefsService, err := preferencesService()
	if err != nil {
		return err
	}

	var position domain.StartupPosition
	if len(args) == 1 {
		position = domain.StartupPosition(args[0])
	} else {
		position = chooseStartupPosition(cmd, bufio.NewReader(cmd.InOrStdin()), 0)
		if position == "" {
			return errors.New("invalid selection")
		}
	}

	if err := prefsService.SetStartupPosition(position); err != nil {
		return fmt.Errorf("failed to set startup position: %w", err)
	}
	cmd.Printf("Startup set to: %s\n", position.Description())
	return nil
}

func runSettingsTheme(cmd *cobra.Command, args []string) error {
	prefsService, err := preferencesService()
	if err != nil {
		return err
	}

	var theme domain.Theme
	if len(args) == 1 {
		theme = domain.Theme(args[0])
	} else {
		theme = chooseTheme(cmd, bufio.NewReader(cmd.InOrStdin()), 0)
		if theme == "" {
			return errors.New("invalid selection")
		}
	}

	if err := prefsService.SetTheme(theme); err != nil {
		return fmt.Errorf("failed to set theme: %w", err)
	}
	cmd.Printf("Theme set to: %s\n", theme)
	return nil
}

func runSettingsTimeFormat(cmd *cobra.Command, args []string) error {
	prefsService, err := preferencesService()
	if err != nil {
		return err
	}

	format := domain.TimeFormat(args[0])
	if err := prefsService.SetTimeFormat(format); err != nil {
		return fmt.Errorf("failed to set time format: %w", err)
	}
	cmd.Printf("Time format set to: %s\n", format)
	return nil
}

func runSettingsAutosave(cmd *cobra.Command, args []string) error {
	prefsService, err := preferencesService()
	if err != nil {
		return err
	}

	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes":
		enabled = true
	case "off", "false", "no":
		enabled = false
	default:
		return fmt.Errorf("autosave must be on or off, got %q: %w", args[0], domain.ErrInvalidInput)
	}

	if err := prefsService.SetAutosave(enabled); err != nil {
		return fmt.Errorf("failed to set autosave: %w", err)
	}
	if enabled {
		cmd.Println("Autosave enabled")
	} else {
		cmd.Println("Autosave disabled")
	}
	return nil
}

func runSettingsDelays(cmd *cobra.Command, args []string) error {
	prefsService, err := preferencesService()
	if err != nil {
		return err
	}

	title, err := parseMillis(args[0])
	if err != nil {
		return err
	}
	content, err := parseMillis(args[1])
	if err != nil {
		return err
	}

	if err := prefsService.SetAutosaveDelays(title, content); err != nil {
		return fmt.Errorf("failed to set autosave delays: %w", err)
	}
	cmd.Printf("Autosave delays set to: title %s, content %s\n", title, content)
	return nil
}

func runSettingsOwner(cmd *cobra.Command, args []string) error {
	if appRuntime == nil || appRuntime.Device == nil {
		return errors.New("preferences not configured")
	}

	owner := strings.TrimSpace(args[0])
	if owner == "" {
		if err := appRuntime.Device.Delete(keyDefaultOwner); err != nil {
			return fmt.Errorf("failed to clear owner: %w", err)
		}
		cmd.Println("Default owner cleared")
		return nil
	}

	if err := appRuntime.Device.Set(keyDefaultOwner, owner); err != nil {
		return fmt.Errorf("failed to set owner: %w", err)
	}
	cmd.Printf("Default owner set to: %s\n", owner)
	return nil
}

// Helper functions.

func chooseStartupPosition(cmd *cobra.Command, reader *bufio.Reader, defaultVal int) domain.StartupPosition {
	positions := domain.AllStartupPositions()
	for i, p := range positions {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	printChoicePrompt(cmd, defaultVal)
	idx := parseChoice(readLine(reader), len(positions), defaultVal)
	if idx == 0 {
		return ""
	}
	return positions[idx-1]
}

func chooseTheme(cmd *cobra.Command, reader *bufio.Reader, defaultVal int) domain.Theme {
	themes := domain.AllThemes()
	for i, t := range themes {
		cmd.Printf("  %d. %s\n", i+1, t)
	}
	printChoicePrompt(cmd, defaultVal)
	idx := parseChoice(readLine(reader), len(themes), defaultVal)
	if idx == 0 {
		return ""
	}
	return themes[idx-1]
}

func printChoicePrompt(cmd *cobra.Command, defaultVal int) {
	if defaultVal > 0 {
		cmd.Printf("\nEnter choice [%d]: ", defaultVal)
		return
	}
	cmd.Print("\nEnter choice: ")
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.Atoi(s)
	if err != nil || ms < 1 {
		return 0, fmt.Errorf("delay must be a positive number of milliseconds, got %q: %w", s, domain.ErrInvalidInput)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
