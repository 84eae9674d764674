// Package cli defines the Cobra commands of the devecho binary.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"devecho/config"
)

var (
	configPath string
	envFile    string
	verbose    bool
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "devecho",
	Short: "Turn repositories, articles and topics into LinkedIn posts",
	Long: `devecho collects source material (a GitHub repository, a web page or a
search topic), asks a language model to draft posts about it with a
write-and-critique loop, and publishes the chosen draft to LinkedIn.

Run "devecho serve" for the chat bot, or "devecho generate" for a one-shot run.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.json", "path to config file (.json or .yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(toneCmd)
	rootCmd.AddCommand(publishCmd)
}

// loadConfig reads the dotenv file and then the config file.
func loadConfig() (config.Config, error) {
	if err := config.LoadEnv(envFile); err != nil {
		return config.Config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}
	return config.Load(configPath)
}

// infoLogger discards component chatter unless -v is set.
func infoLogger() *log.Logger {
	if verbose {
		return log.Default()
	}
	return log.New(io.Discard, "", 0)
}
