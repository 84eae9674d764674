package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"devecho/generator"
	"devecho/store"
)

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Show or change the post tone",
}

var toneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available tones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tones, err := openTones()
		if err != nil {
			return err
		}
		current := tones.Get()
		for _, name := range generator.Tones() {
			marker := " "
			if name == current {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		return nil
	},
}

var toneGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current tone",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tones, err := openTones()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tones.Get())
		return nil
	},
}

var toneSetCmd = &cobra.Command{
	Use:   "set <tone>",
	Short: "Change the tone used for new runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToLower(strings.TrimSpace(args[0]))
		if !generator.IsTone(name) {
			return fmt.Errorf("unknown tone %q; choose one of: %s", args[0], strings.Join(generator.Tones(), ", "))
		}
		tones, err := openTones()
		if err != nil {
			return err
		}
		if err := tones.Set(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tone set to %s\n", name)
		return nil
	},
}

func init() {
	toneCmd.AddCommand(toneListCmd, toneGetCmd, toneSetCmd)
}

func openTones() (*store.ToneStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewToneStore(cfg.TonePath), nil
}
