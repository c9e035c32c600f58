package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jrife/vault/stats"
	"github.com/jrife/vault/utils/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNotFound = errors.New("not found")

// parseValue stores valid JSON as is and anything else as a string
func parseValue(arg string) interface{} {
	if json.Valid([]byte(arg)) {
		return json.RawMessage(arg)
	}

	return arg
}

func newSetCommand(s *session) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value. VALUE is stored as JSON if it parses, otherwise as a string",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			logger, _ := log.LoggerFromContext(cmd.Context(), zap.NewNop())
			logger.Debug("set", zap.String("key", args[0]), zap.Duration("ttl", ttl))

			if ttl != 0 {
				return s.vault.SetItemWithTTL(args[0], parseValue(args[1]), ttl)
			}

			return s.vault.SetItem(args[0], parseValue(args[1]))
		}),
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Expire the value after this long")

	return cmd
}

func newGetCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print a value as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			var value json.RawMessage

			ok, err := s.vault.GetItem(args[0], &value)

			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("%s: %w", args[0], errNotFound)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(value))

			return nil
		}),
	}
}

func newRemoveCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY",
		Short: "Remove a value",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			ok, err := s.vault.RemoveItem(args[0])

			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("%s: %w", args[0], errNotFound)
			}

			return nil
		}),
	}
}

func newHasCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "has KEY",
		Short: "Print whether a live value is stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			ok, err := s.vault.HasItem(args[0])

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ok)

			return nil
		}),
	}
}

func newTTLCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "ttl KEY",
		Short: "Print how long a value has left",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			remaining, ok, err := s.vault.GetRemainingTTL(args[0])

			if err != nil {
				return err
			}

			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "none")

				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), remaining)

			return nil
		}),
	}
}

func newExtendCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "extend KEY DURATION",
		Short: "Push back the expiry of a value",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			delta, err := time.ParseDuration(args[1])

			if err != nil {
				return err
			}

			ok, err := s.vault.ExtendTTL(args[0], delta)

			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("%s: %w", args[0], errNotFound)
			}

			return nil
		}),
	}
}

func newKeysCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the keys of every live value",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			keys, err := s.vault.GetAllKeys()

			if err != nil {
				return err
			}

			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}

			return nil
		}),
	}
}

func newCleanupCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired values",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			removed, err := s.vault.CleanupExpiredItems()

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired items\n", removed)

			return nil
		}),
	}
}

func newStatsCommand(s *session) *cobra.Command {
	var metrics bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print how much of its size limit the vault uses",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			if !metrics {
				fmt.Fprintln(cmd.OutOrStdout(), stats.Collect(s.vault))

				return nil
			}

			registry := prometheus.NewRegistry()

			if err := registry.Register(stats.NewCollector(s.vault, prometheus.Labels{"vault": s.vault.Identity()})); err != nil {
				return err
			}

			families, err := registry.Gather()

			if err != nil {
				return err
			}

			lines := []string{}

			for _, family := range families {
				for _, metric := range family.GetMetric() {
					lines = append(lines, fmt.Sprintf("%s %g", family.GetName(), metric.GetGauge().GetValue()))
				}
			}

			sort.Strings(lines)
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))

			return nil
		}),
	}

	cmd.Flags().BoolVar(&metrics, "metrics", false, "Print the values of the exported metrics")

	return cmd
}

func newClearCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every value",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			return s.vault.Clear()
		}),
	}
}
