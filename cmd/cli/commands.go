package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keshon/server-companion/internal/config"
	"github.com/keshon/server-companion/internal/leveling"
	"github.com/keshon/server-companion/internal/storage"
	v "github.com/keshon/server-companion/internal/version"
)

type storeFlags struct {
	driver string
	path   string
}

func newRootCmd() *cobra.Command {
	flags := &storeFlags{}
	root := &cobra.Command{
		Use:           "companion-cli",
		Short:         fmt.Sprintf("Administer %s data", v.AppName),
		Version:       v.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("driver") {
				flags.driver = cfg.StorageDriver
			}
			if !cmd.Flags().Changed("path") {
				flags.path = cfg.StoragePath
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.driver, "driver", "json", "storage driver (json|sqlite), defaults to STORAGE_DRIVER")
	root.PersistentFlags().StringVar(&flags.path, "path", "datastore.json", "storage path, defaults to STORAGE_PATH")

	root.AddCommand(
		newImportCmd(flags),
		newGuildsCmd(flags),
		newProfileCmd(flags),
		newLeaderboardCmd(flags),
		newLevelsCmd(),
	)
	return root
}

func withStore(flags *storeFlags, fn func(ctx context.Context, s storage.Store) error) error {
	s, err := storage.Open(flags.driver, flags.path, zerolog.Nop())
	if err != nil {
		return err
	}
	runErr := fn(context.Background(), s)
	if err := s.Close(); err != nil && runErr == nil {
		return fmt.Errorf("close store: %w", err)
	}
	return runErr
}

// importFile is the YAML layout accepted by the import command.
type importFile struct {
	Guilds map[string]struct {
		Config      *storage.GuildConfig    `yaml:"config"`
		RoleRewards storage.RoleRewardTable `yaml:"role_rewards"`
	} `yaml:"guilds"`
}

func newImportCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Load guild configuration and role rewards from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var file importFile
			if err := yaml.Unmarshal(raw, &file); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			ids := make([]string, 0, len(file.Guilds))
			for id, g := range file.Guilds {
				if g.Config != nil {
					if err := validateConfig(*g.Config); err != nil {
						return fmt.Errorf("guild %s: %w", id, err)
					}
				}
				ids = append(ids, id)
			}
			sort.Strings(ids)

			return withStore(flags, func(ctx context.Context, s storage.Store) error {
				for _, id := range ids {
					g := file.Guilds[id]
					if g.Config != nil {
						if err := s.SetGuildConfig(ctx, id, *g.Config); err != nil {
							return err
						}
					}
					if g.RoleRewards != nil {
						if err := s.SetRoleRewards(ctx, id, g.RoleRewards); err != nil {
							return err
						}
					}
					fmt.Fprintf(cmd.OutOrStdout(), "imported guild %s (%d role rewards)\n", id, len(g.RoleRewards))
				}
				return nil
			})
		},
	}
}

func validateConfig(c storage.GuildConfig) error {
	switch c.AIMode {
	case "", storage.AIModeDisabled, storage.AIModeContext, storage.AIModeListen:
	default:
		return fmt.Errorf("unknown ai_mode %q", c.AIMode)
	}
	if c.XPPerMessage < 0 {
		return fmt.Errorf("xp_per_message must not be negative")
	}
	return nil
}

func newGuildsCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "guilds",
		Short: "List guilds with stored data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(flags, func(ctx context.Context, s storage.Store) error {
				ids, err := s.GuildIDs(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "GUILD\tXP\tAI MODE\tREWARDS")
				for _, id := range ids {
					cfg, err := s.GuildConfig(ctx, id)
					if err != nil {
						return err
					}
					rewards, err := s.RoleRewards(ctx, id)
					if err != nil {
						return err
					}
					mode := cfg.AIMode
					if !cfg.AIEnabled || mode == "" {
						mode = storage.AIModeDisabled
					}
					fmt.Fprintf(w, "%s\t%t\t%s\t%d\n", id, cfg.XPEnabled, mode, len(rewards))
				}
				return w.Flush()
			})
		},
	}
}

func newProfileCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <guild-id> <user-id>",
		Short: "Show one member's XP profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(ctx context.Context, s storage.Store) error {
				p, err := s.Profile(ctx, args[1], args[0])
				if err != nil {
					return err
				}
				printProfile(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func printProfile(out io.Writer, p storage.UserProfile) {
	level, into, span := leveling.Progress(p.TotalXP)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "user\t%s\n", p.UserID)
	if p.DisplayName != "" {
		fmt.Fprintf(w, "name\t%s\n", p.DisplayName)
	}
	fmt.Fprintf(w, "level\t%d (%d/%d to next)\n", level, into, span)
	fmt.Fprintf(w, "total xp\t%d\n", p.TotalXP)
	fmt.Fprintf(w, "messages\t%d\n", p.MessageCount)
	if p.LastMessageAt != nil {
		fmt.Fprintf(w, "last award\t%s\n", p.LastMessageAt.UTC().Format("2006-01-02 15:04:05"))
	}
	if len(p.GrantedRoles) > 0 {
		fmt.Fprintf(w, "reward roles\t%v\n", p.GrantedRoles)
	}
	w.Flush()
}

func newLeaderboardCmd(flags *storeFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard <guild-id>",
		Short: "List members by total XP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(ctx context.Context, s storage.Store) error {
				top, err := s.Leaderboard(ctx, args[0], limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "#\tUSER\tNAME\tLEVEL\tXP")
				for i, p := range top {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", i+1, p.UserID, p.DisplayName, p.Level, p.TotalXP)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "rows to show, 0 for all")
	return cmd
}

func newLevelsCmd() *cobra.Command {
	var maxLevel int
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the XP required for each level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LEVEL\tTOTAL XP\tTO NEXT")
			for n := 0; n <= maxLevel; n++ {
				xp := leveling.XPForLevel(n)
				fmt.Fprintf(w, "%d\t%d\t%d\n", n, xp, leveling.XPForLevel(n+1)-xp)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&maxLevel, "max", 20, "highest level to print")
	return cmd
}
