// Package cmdutil provides shared utilities for postmaster commands.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marmos91/postmaster/internal/cli/output"
	"github.com/marmos91/postmaster/internal/cli/prompt"
	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/config"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/extensions"
	"github.com/marmos91/postmaster/pkg/extensions/autoreply"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	NoColor    bool
	// As is the account administration commands act as.
	As string
}

// BuiltinExtensions returns the extensions shipped with the binary.
func BuiltinExtensions() []extensions.Extension {
	return []extensions.Extension{autoreply.New()}
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// Session is an offline administration session on the configured database.
type Session struct {
	Config  *config.Config
	Store   store.Store
	Runtime *runtime.Runtime
	// Actor is the account every operation is checked against.
	Actor *models.Account
}

// OpenSession loads the configuration, opens the store and resolves the
// acting account. Logs go to stderr so they never mix with command output.
func OpenSession(ctx context.Context) (*Session, error) {
	cfg, err := config.MustLoad(Flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.Logging.Output = "stderr"
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}

	s, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sess, err := newSession(ctx, cfg, s, Flags.As)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return sess, nil
}

func newSession(ctx context.Context, cfg *config.Config, s store.Store, as string) (*Session, error) {
	rt, err := runtime.New(s, cfg.RuntimeOptions(BuiltinExtensions()...))
	if err != nil {
		return nil, err
	}
	if err := rt.SettingsWatcher().LoadInitial(ctx); err != nil {
		return nil, fmt.Errorf("failed to load runtime settings: %w", err)
	}

	if as == "" {
		as = cfg.Admin.Username
	}
	actor, err := s.GetAccount(ctx, as)
	if errors.Is(err, models.ErrAccountNotFound) {
		return nil, fmt.Errorf("account %q not found; start the server once to create the administrator or pass --as", as)
	}
	if err != nil {
		return nil, err
	}
	if !actor.Enabled {
		return nil, fmt.Errorf("account %q is disabled", actor.Username)
	}

	// Mutations made from the CLI are audited and reach enabled extensions
	// the same way they do on the server.
	rt.AuditRecorder().Start()
	if err := rt.Extensions().LoadFromStore(ctx); err != nil {
		rt.AuditRecorder().Stop()
		rt.Extensions().Shutdown(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to load extensions: %w", err)
	}

	return &Session{Config: cfg, Store: s, Runtime: rt, Actor: actor}, nil
}

// NewSessionForTest builds a session on an already opened store.
func NewSessionForTest(ctx context.Context, cfg *config.Config, s store.Store, as string) (*Session, error) {
	return newSession(ctx, cfg, s, as)
}

// Close stops the audit recorder, unloads extensions and releases the store.
func (s *Session) Close() error {
	s.Runtime.AuditRecorder().Stop()
	s.Runtime.Extensions().Shutdown(context.Background())
	return s.Store.Close()
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// PrintOutput prints data in the selected format. Empty results print
// emptyMsg in table format.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format == output.FormatTable && isEmpty {
		_, _ = fmt.Fprintln(w, emptyMsg)
		return nil
	}
	return output.Print(w, format, data, tableRenderer)
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	output.Success(os.Stdout, msg, !Flags.NoColor)
}

// PrintResourceWithSuccess prints a resource as JSON/YAML, or a success
// message in table format.
func PrintResourceWithSuccess(w io.Writer, data any, successMsg string) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		PrintSuccess(successMsg)
		return nil
	}
}

// RunDeleteWithConfirmation prompts for confirmation (unless force is true) and runs deleteFn.
func RunDeleteWithConfirmation(resourceType, name string, force bool, deleteFn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s '%s'?", resourceType, name), force)
	if err != nil {
		return HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := deleteFn(); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s '%s' deleted successfully", resourceType, name))
	return nil
}

// ParseRole accepts the role names as stored or their short forms
// ("super", "domain", "user").
func ParseRole(s string) (models.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "superadmins", "superadmin", "super":
		return models.RoleSuperAdmin, nil
	case "domainadmins", "domainadmin", "domain":
		return models.RoleDomainAdmin, nil
	case "simpleusers", "simpleuser", "user", "":
		return models.RoleSimpleUser, nil
	}
	return "", fmt.Errorf("unknown role %q (use SuperAdmins, DomainAdmins or SimpleUsers)", s)
}

// BoolToYesNo converts a boolean to "yes" or "no" string.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns the value if not empty, otherwise returns the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// HandleAbort checks if error is an abort (Ctrl+C) and prints a message.
// Returns nil for abort (user cancelled), otherwise returns the original error.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}
