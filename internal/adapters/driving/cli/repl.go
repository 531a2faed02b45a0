package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/mirae/internal/adapters/driven/eventloop"
	"github.com/custodia-labs/mirae/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/services"
	"github.com/custodia-labs/mirae/internal/logger"
)

var replLog = logger.Scope("repl")

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session with autosave",
	Long: `Start an interactive document session.

Edits autosave after a short pause. Leaving a page before its edits are
saved asks whether to discard them.

Commands:
  ls               List pages (> marks the open page)
  folders          List folders
  open <id>        Open a page
  home             Go to the home view
  next, prev       Open the next or previous page
  new [title]      Create and open a page
  title <text>     Set the title of the open page
  write <text>     Replace the content of the open page
  append <text>    Append a line to the open page
  save             Save the open page now
  rm [id]          Delete a page (the open page by default)
  status           Show the open page and save state
  quit             Save and exit`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// configWatcher is implemented by device stores that can report edits made
// outside the process.
type configWatcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// repl drives a session on a running loop. Methods named on* run on the loop.
type repl struct {
	out         io.Writer
	in          *bufio.Reader
	interactive bool
	loop        *eventloop.Loop
	session     *services.Session
}

func runRepl(cmd *cobra.Command, _ []string) error {
	if appRuntime == nil || appRuntime.Store == nil || appRuntime.Device == nil {
		return errors.New("session not configured")
	}
	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	loop := eventloop.New()
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	var session *services.Session
	var startErr error
	if err := loop.Do(func() {
		session, startErr = services.NewSession(ctx, services.SessionConfig{
			Store:  appRuntime.Store,
			Loop:   loop,
			Device: appRuntime.Device,
			Tab:    memory.NewConfigStore(),
		})
		if startErr != nil {
			return
		}
		session.IdentityLoading(false)
		session.OwnerChanged(owner)
	}); err != nil {
		return err
	}
	if startErr != nil {
		return fmt.Errorf("starting session: %w", startErr)
	}
	if err := loop.Settle(); err != nil {
		return err
	}

	r := &repl{
		out:         cmd.OutOrStdout(),
		in:          bufio.NewReader(cmd.InOrStdin()),
		interactive: isTerminal(cmd.InOrStdin()),
		loop:        loop,
		session:     session,
	}

	var watchers sync.WaitGroup
	if w, ok := appRuntime.Device.(configWatcher); ok {
		watchers.Add(1)
		go func() {
			defer watchers.Done()
			if err := w.Watch(ctx, func() { loop.Post(r.onPreferencesChanged) }); err != nil {
				replLog.Warn("preferences will not reload: %v", err)
			}
		}()
	}

	r.printAlerts()
	runErr := r.run()

	if err := loop.Do(session.Close); err != nil && runErr == nil {
		runErr = err
	}
	if err := loop.Settle(); err != nil && runErr == nil {
		runErr = err
	}
	r.printAlerts()

	cancel()
	watchers.Wait()
	<-loopDone
	return runErr
}

// run reads commands until quit or end of input.
func (r *repl) run() error {
	for {
		if r.interactive {
			fmt.Fprint(r.out, "> ")
		}
		line, readErr := r.in.ReadString('\n')
		line = strings.TrimSpace(line)

		if line != "" {
			quit, err := r.execute(line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

// execute runs one command line. It reports whether the repl should exit.
func (r *repl) execute(line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	if name == "quit" || name == "exit" {
		return true, nil
	}

	var cmdErr error
	if err := r.loop.Do(func() { cmdErr = r.onCommand(name, arg) }); err != nil {
		return true, err
	}

	if errors.Is(cmdErr, domain.ErrNavigationPending) {
		cmdErr = r.resolvePending()
	}
	if cmdErr != nil {
		fmt.Fprintf(r.out, "Error: %v\n", cmdErr)
	}
	r.printAlerts()
	return false, nil
}

// resolvePending asks whether to discard unsaved edits and completes or
// abandons the held navigation.
func (r *repl) resolvePending() error {
	if r.interactive {
		fmt.Fprint(r.out, "Discard unsaved changes? [y/N]: ")
	}
	answer := strings.ToLower(readLine(r.in))

	var err error
	doErr := r.loop.Do(func() {
		if answer == "y" || answer == "yes" {
			err = r.navigated(r.session.ConfirmDiscard())
			return
		}
		err = r.session.CancelNavigation()
		if err == nil {
			fmt.Fprintln(r.out, "Stayed on the current page")
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (r *repl) onCommand(name, arg string) error {
	s := r.session
	switch name {
	case "help":
		fmt.Fprintln(r.out, "Commands: ls folders open home next prev new title write append save rm status quit")
		return nil
	case "ls":
		r.onList()
		return nil
	case "folders":
		for _, f := range s.Folders() {
			fmt.Fprintf(r.out, "  %s  %s\n", f.ID, f.Name)
		}
		return nil
	case "open":
		if arg == "" {
			return errors.New("usage: open <id>")
		}
		return r.navigated(s.OpenPage(arg))
	case "home":
		return r.navigated(s.GoHome())
	case "next":
		return r.navigated(s.NextPage())
	case "prev":
		return r.navigated(s.PrevPage())
	case "new":
		page, err := s.NewPage(domain.NewPageInput{Title: arg})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Opened new page %s\n", page.DisplayTitle())
		return nil
	case "title":
		return s.EditTitle(arg)
	case "write":
		return s.EditContent(arg)
	case "append":
		page, ok := s.CurrentPage()
		if !ok {
			return domain.ErrNoOpenPage
		}
		content := arg
		if page.Content != "" {
			content = page.Content + "\n" + arg
		}
		return s.EditContent(content)
	case "save":
		return s.Save()
	case "rm":
		id := arg
		if id == "" {
			current, ok := s.Phase().CurrentPageID()
			if !ok {
				return domain.ErrNoOpenPage
			}
			id = current
		}
		return s.DeletePage(id)
	case "status":
		r.onStatus()
		return nil
	default:
		return fmt.Errorf("unknown command %q, try help", name)
	}
}

// navigated prints where the session ended up after a navigation.
func (r *repl) navigated(err error) error {
	if err != nil {
		return err
	}
	if page, ok := r.session.CurrentPage(); ok {
		fmt.Fprintf(r.out, "Opened %s\n", page.DisplayTitle())
		return nil
	}
	fmt.Fprintln(r.out, "Home")
	return nil
}

func (r *repl) onList() {
	pages := r.session.Pages()
	if len(pages) == 0 {
		fmt.Fprintln(r.out, "No pages found.")
		return
	}
	current, _ := r.session.Phase().CurrentPageID()
	for _, p := range pages {
		marker := " "
		if p.ID == current {
			marker = ">"
		}
		fmt.Fprintf(r.out, "%s %s  %s\n", marker, p.ID, p.DisplayTitle())
	}
}

func (r *repl) onStatus() {
	page, ok := r.session.CurrentPage()
	if !ok {
		fmt.Fprintf(r.out, "Viewing: %s\n", r.session.Phase())
		return
	}
	fmt.Fprintf(r.out, "Viewing: %s (%s)\n", page.DisplayTitle(), page.ID)
	fmt.Fprintf(r.out, "Status:  %s\n", r.session.SaveState().Description())
}

// onPreferencesChanged applies autosave preferences edited outside the process.
func (r *repl) onPreferencesChanged() {
	prefs, err := r.session.Preferences().Get()
	if err != nil {
		replLog.Warn("reading preferences: %v", err)
		return
	}
	r.session.SetAutosave(prefs.Autosave.Enabled)
	r.session.SetAutosaveDelays(prefs.Autosave.TitleDelay, prefs.Autosave.ContentDelay)
	replLog.Debug("preferences reloaded")
}

// printAlerts prints and dismisses alerts raised since the last call.
func (r *repl) printAlerts() {
	_ = r.loop.Do(func() {
		for _, a := range r.session.Alerts() {
			if a.Retryable {
				fmt.Fprintf(r.out, "Warning: %v (save or reload to retry)\n", a.Err)
			} else {
				fmt.Fprintf(r.out, "Warning: %v\n", a.Err)
			}
		}
		r.session.DismissAlerts()
	})
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
