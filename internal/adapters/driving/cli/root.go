// Package cli provides the cobra command tree for the mirae binary.
//
// One-shot commands run a document session on a manual event loop: the
// session loads, the command runs, and every remote call is drained before
// the process exits. The repl command runs the same session on a real
// event loop with wall-clock autosave.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mirae/internal/adapters/driven/eventloop"
	"github.com/custodia-labs/mirae/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
	"github.com/custodia-labs/mirae/internal/core/services"
	"github.com/custodia-labs/mirae/internal/logger"
)

// keyDefaultOwner names the owner used when --owner is not given.
const keyDefaultOwner = "identity.owner"

var version = "dev"

var (
	ownerFlag   string
	verboseFlag bool
)

// Runtime holds the stores the commands run against.
type Runtime struct {
	// Store is the remote entity store.
	Store driven.EntityStore

	// Device holds device preferences and the last opened page.
	Device driven.ConfigStore
}

// appRuntime is set by SetRuntime before Execute.
var appRuntime *Runtime

// SetRuntime sets the stores for all commands.
func SetRuntime(r *Runtime) {
	appRuntime = r
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "mirae",
	Short: "Notes with optimistic sync and autosave",
	Long: `Mirae keeps a local session over your pages and folders.

Edits apply immediately and sync in the background. Use the repl command
for an interactive session with autosave, or the one-shot commands below
for scripting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "owner id (defaults to "+keyDefaultOwner+")")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose logging to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// resolveOwner returns --owner, or the configured default owner.
func resolveOwner() (string, error) {
	if ownerFlag != "" {
		return ownerFlag, nil
	}
	if appRuntime != nil && appRuntime.Device != nil {
		if owner := appRuntime.Device.GetString(keyDefaultOwner); owner != "" {
			return owner, nil
		}
	}
	return "", fmt.Errorf("%w: pass --owner or set %s", domain.ErrNoOwner, keyDefaultOwner)
}

// oneShot is a loaded session on a manual loop.
type oneShot struct {
	session *services.Session
	loop    *eventloop.Manual
}

// drain runs queued work, including remote calls, until nothing is left.
func (o *oneShot) drain() {
	o.loop.RunUntilIdle()
}

// withSession opens a session for the resolved owner, waits for the first
// load, runs fn, then commits and drains. The first alert raised is returned.
func withSession(ctx context.Context, fn func(o *oneShot) error) error {
	if appRuntime == nil || appRuntime.Store == nil || appRuntime.Device == nil {
		return errors.New("session not configured")
	}
	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	loop := eventloop.NewManual(time.Now())
	session, err := services.NewSession(ctx, services.SessionConfig{
		Store:  appRuntime.Store,
		Loop:   loop,
		Device: appRuntime.Device,
		Tab:    memory.NewConfigStore(),
	})
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	o := &oneShot{session: session, loop: loop}

	session.IdentityLoading(false)
	session.OwnerChanged(owner)
	o.drain()
	if err := firstAlert(session); err != nil {
		return err
	}

	runErr := fn(o)
	o.drain()
	session.Close()
	o.drain()

	if runErr != nil {
		return runErr
	}
	return firstAlert(session)
}

func firstAlert(s *services.Session) error {
	alerts := s.Alerts()
	if len(alerts) == 0 {
		return nil
	}
	return alerts[0].Err
}
