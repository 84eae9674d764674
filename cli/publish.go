package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"devecho/publisher"
)

var (
	pubToken string
	pubDraft int
	pubUser  string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a generated draft to LinkedIn",
	Long: `Publish one draft of the latest run stored for --user. The access token is
read from --token or LINKEDIN_ACCESS_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&pubToken, "token", "", "LinkedIn access token")
	publishCmd.Flags().IntVar(&pubDraft, "draft", 1, "draft number to publish (1-based)")
	publishCmd.Flags().StringVar(&pubUser, "user", "cli-local", "user key the drafts are stored under")
}

func runPublish(cmd *cobra.Command, args []string) error {
	token := pubToken
	if token == "" {
		token = os.Getenv("LINKEDIN_ACCESS_TOKEN")
	}
	if token == "" {
		return errors.New("--token or LINKEDIN_ACCESS_TOKEN is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.LinkedIn.Verbose = cfg.LinkedIn.Verbose || verbose
	a, err := buildApp(cfg, infoLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	posts, err := a.runner.LatestPosts(ctx, pubUser)
	if err != nil {
		return err
	}
	if pubDraft < 1 || pubDraft > len(posts) {
		return fmt.Errorf("draft %d out of range, the latest run has %d drafts", pubDraft, len(posts))
	}

	who, err := a.publisher.FetchIdentity(ctx, token)
	if err != nil {
		return err
	}
	text := publisher.Compose(posts[pubDraft-1].Content, cfg.LinkedIn.Attribution)
	res, err := a.publisher.PublishPost(ctx, token, who.ID, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "published as %s\n", who.Name)
	fmt.Fprintln(cmd.OutOrStdout(), res.ID)
	return nil
}
