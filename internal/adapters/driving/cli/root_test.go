package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mirae/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mirae/internal/core/domain"
)

const testOwner = "alice"

// testRuntime holds the in-memory stores a test runs commands against.
type testRuntime struct {
	store  *memory.EntityStore
	device *memory.ConfigStore
}

func setupTestRuntime(t *testing.T) *testRuntime {
	t.Helper()
	rt := &testRuntime{
		store:  memory.NewEntityStore(),
		device: memory.NewConfigStore(),
	}
	SetRuntime(&Runtime{Store: rt.store, Device: rt.device})
	t.Cleanup(func() {
		SetRuntime(nil)
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})
	return rt
}

// resetFlags restores every flag to its default. Flag variables are package
// globals and keep their values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeAs runs a command as the test owner.
func executeAs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execute(t, append(args, "--owner", testOwner)...)
}

func (rt *testRuntime) seedPage(t *testing.T, title, content string) domain.Page {
	t.Helper()
	page, err := rt.store.CreatePage(context.Background(), testOwner, domain.NewPageInput{Title: title, Content: content})
	require.NoError(t, err)
	return *page
}

func (rt *testRuntime) seedFolder(t *testing.T, name string) domain.Folder {
	t.Helper()
	folder, err := rt.store.CreateFolder(context.Background(), testOwner, name)
	require.NoError(t, err)
	return *folder
}

func (rt *testRuntime) pages(t *testing.T) []domain.Page {
	t.Helper()
	pages, err := rt.store.ListPages(context.Background(), testOwner)
	require.NoError(t, err)
	return pages
}

func (rt *testRuntime) page(t *testing.T, id string) domain.Page {
	t.Helper()
	for _, p := range rt.pages(t) {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("page %s not in store", id)
	return domain.Page{}
}

// createdID extracts the id from a "Created ..." line.
func createdID(t *testing.T, out, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if id, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(id)
		}
	}
	t.Fatalf("no %q line in output:\n%s", prefix, out)
	return ""
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	commands := rootCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	for _, name := range []string{"pages", "folders", "open", "home", "status", "settings", "repl", "version"} {
		assert.Contains(t, commandNames, name)
	}
}

func TestResolveOwner(t *testing.T) {
	rt := setupTestRuntime(t)

	tests := []struct {
		name    string
		flag    string
		stored  string
		want    string
		wantErr bool
	}{
		{name: "flag wins", flag: "bob", stored: "carol", want: "bob"},
		{name: "stored default", stored: "carol", want: "carol"},
		{name: "none set", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ownerFlag = tt.flag
			defer func() { ownerFlag = "" }()
			if tt.stored != "" {
				require.NoError(t, rt.device.Set(keyDefaultOwner, tt.stored))
			} else {
				require.NoError(t, rt.device.Delete(keyDefaultOwner))
			}

			got, err := resolveOwner()

			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrNoOwner)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithSession_NotConfigured(t *testing.T) {
	SetRuntime(nil)

	_, err := execute(t, "pages", "list", "--owner", testOwner)

	assert.EqualError(t, err, "session not configured")
}

func TestWithSession_LoadFailureIsReturned(t *testing.T) {
	setupTestRuntime(t)
	SetRuntime(&Runtime{Store: failingStore{memory.NewEntityStore()}, Device: memory.NewConfigStore()})

	_, err := executeAs(t, "pages", "list")

	assert.ErrorIs(t, err, domain.ErrLoadFailed)
}

// failingStore fails every list call.
type failingStore struct {
	*memory.EntityStore
}

func (failingStore) ListPages(context.Context, string) ([]domain.Page, error) {
	return nil, assert.AnError
}
