package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"devecho/pipeline"
)

var (
	genInstructions string
	genContent      string
	genAudience     string
	genDrafts       int
	genUser         string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate drafts once and print them as JSON",
	Long: `Run the collect, retrieve and refine stages for one input without the chat
bot. The drafts are stored like a bot run, so "devecho publish" can post one.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genInstructions, "instructions", "", "what the posts should be about")
	generateCmd.Flags().StringVar(&genContent, "content", "", "a GitHub repository URL, a web page URL or a topic")
	generateCmd.Flags().StringVar(&genAudience, "audience", pipeline.DefaultAudience, "target audience")
	generateCmd.Flags().IntVar(&genDrafts, "drafts", 3, "number of drafts")
	generateCmd.Flags().StringVar(&genUser, "user", "cli-local", "user key the drafts are stored under")
	_ = generateCmd.MarkFlagRequired("instructions")
	_ = generateCmd.MarkFlagRequired("content")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, infoLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	stderr := cmd.ErrOrStderr()
	res, err := a.runner.Run(cmd.Context(), pipeline.Request{
		UserID:       genUser,
		Instructions: genInstructions,
		Content:      genContent,
		Audience:     genAudience,
		DraftCount:   genDrafts,
	}, func(stage pipeline.Stage, i, total int) {
		fmt.Fprintf(stderr, "[%d/%d] %s\n", i, total, stage)
	})
	if err != nil {
		return err
	}
	if res.Warning != nil {
		fmt.Fprintf(stderr, "warning: %v\n", res.Warning)
	}

	out, err := json.MarshalIndent(res.Posts, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
