package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jrife/vault/registry"
	"github.com/jrife/vault/storage/backend"
	"github.com/jrife/vault/transform"
	"github.com/jrife/vault/transform/links"
	"github.com/jrife/vault/utils/log"
	"github.com/jrife/vault/vault"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootFlags struct {
	path       string
	key        string
	kind       string
	quota      int64
	debounce   time.Duration
	compress   bool
	checksum   bool
	passphrase string
	verbose    bool
}

// session holds what every subcommand operates on
type session struct {
	flags    rootFlags
	env      *backend.Environment
	registry *registry.Registry
	vault    *vault.Engine
}

func defaultPath() string {
	if path := os.Getenv(backend.PersistentPathEnv); path != "" {
		return path
	}

	return "vault.db"
}

func newRootCommand() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:          "vault",
		Short:        "Inspect and edit a vault file",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&s.flags.path, "path", defaultPath(), "Path to the vault file. Defaults to $"+backend.PersistentPathEnv+" or ./vault.db")
	flags.StringVar(&s.flags.key, "key", vault.DefaultKey, "Key the record set is stored under")
	flags.StringVar(&s.flags.kind, "kind", backend.Persistent.String(), "Backend kind: persistent, session or ephemeral")
	flags.Int64Var(&s.flags.quota, "quota", backend.DefaultQuotaBytes, "Capacity of the vault file in bytes")
	flags.DurationVar(&s.flags.debounce, "debounce", 0, "Write coalescing delay")
	flags.BoolVar(&s.flags.compress, "compress", false, "Compress the record set")
	flags.BoolVar(&s.flags.checksum, "checksum", false, "Checksum the record set")
	flags.StringVar(&s.flags.passphrase, "passphrase", "", "Encrypt the record set with a key derived from this passphrase")
	flags.BoolVarP(&s.flags.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		newSetCommand(s),
		newGetCommand(s),
		newRemoveCommand(s),
		newHasCommand(s),
		newTTLCommand(s),
		newExtendCommand(s),
		newKeysCommand(s),
		newCleanupCommand(s),
		newStatsCommand(s),
		newClearCommand(s),
	)

	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.OutputPaths = []string{"stderr"}

	if verbose {
		config = zap.NewDevelopmentConfig()
	}

	return config.Build()
}

func (s *session) pipeline(logger *zap.Logger) (*transform.Pipeline, error) {
	chain := []transform.Link{}

	if s.flags.verbose {
		chain = append(chain, links.Logger(logger))
	}

	if s.flags.compress {
		chain = append(chain, links.Snappy())
	}

	if s.flags.passphrase != "" {
		cipher, err := links.NewCipher(links.KeyFromPassphrase(s.flags.passphrase, []byte("vault:"+s.flags.key)))

		if err != nil {
			return nil, err
		}

		chain = append(chain, cipher)
	}

	if s.flags.checksum {
		chain = append(chain, links.Checksum())
	}

	return transform.New(chain...), nil
}

// run wraps a subcommand so that the vault is open while it runs
func (s *session) run(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := s.open(cmd); err != nil {
			return err
		}

		defer func() {
			err = multierr.Append(err, s.close(cmd))
		}()

		return fn(cmd, args)
	}
}

func (s *session) open(cmd *cobra.Command) error {
	kind, err := backend.ParseKind(s.flags.kind)

	if err != nil {
		return err
	}

	logger, err := newLogger(s.flags.verbose)

	if err != nil {
		return fmt.Errorf("could not create logger: %w", err)
	}

	ctx := log.WithFields(log.WithLogger(cmd.Context(), logger), zap.String("command", cmd.Name()))
	cmd.SetContext(ctx)
	logger, _ = log.LoggerFromContext(ctx, logger)

	pipeline, err := s.pipeline(logger)

	if err != nil {
		return err
	}

	s.env = backend.NewEnvironment(backend.EnvironmentConfig{
		PersistentPath: s.flags.path,
		QuotaBytes:     s.flags.quota,
		Logger:         logger,
	})
	s.registry = registry.New(registry.Config{Logger: logger})
	s.vault = s.registry.GetOrCreate(kind, s.flags.key, vault.Config{
		MaxSizeBytes: int(s.flags.quota),
		Debounce:     s.flags.debounce,
		Pipeline:     pipeline,
		// a file the CLI cannot open is an error, not an empty vault
		DisableFallback: kind == backend.Persistent,
		Logger:          logger,
		Environment:     s.env,
	})

	if !s.vault.Available() {
		err := fmt.Errorf("could not open %s: %w", s.flags.path, vault.ErrUnavailable)

		return multierr.Append(err, s.close(cmd))
	}

	return nil
}

func (s *session) close(cmd *cobra.Command) error {
	if s.env == nil {
		return nil
	}

	logger, _ := log.LoggerFromContext(cmd.Context(), zap.NewNop())
	err := multierr.Append(s.registry.DisposeAll(), s.env.Close())

	if syncErr := logger.Sync(); syncErr != nil {
		logger.Debug("could not sync logger", zap.Error(syncErr))
	}

	s.env = nil

	return err
}
