package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/manwarsd/dreamboard/internal/generation"
	"github.com/manwarsd/dreamboard/internal/orchestrator"
)

var validateCmd = &cobra.Command{
	Use:   "validate <story-id>",
	Short: "Check whether a story can be generated and merged",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var generateCmd = &cobra.Command{
	Use:   "generate <story-id>",
	Short: "Generate videos for every scene marked for generation",
	Args:  cobra.ExactArgs(1),
	RunE:  batchRunE(orchestrator.ActionGenerate),
}

var imagesCmd = &cobra.Command{
	Use:   "images <story-id>",
	Short: "Generate images for every scene with an image prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  batchRunE(orchestrator.ActionImages),
}

var mergeCmd = &cobra.Command{
	Use:   "merge <story-id>",
	Short: "Merge the selected scene videos into the final video",
	Args:  cobra.ExactArgs(1),
	RunE:  batchRunE(orchestrator.ActionMerge),
}

func init() {
	rootCmd.AddCommand(validateCmd, generateCmd, imagesCmd, mergeCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.stories.GetStory(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report := generation.Validate(st)
	checks := []struct {
		name string
		err  error
	}{
		{"generate", report.CheckGenerate()},
		{"images", generation.ValidateImages(st).Check()},
		{"merge", report.CheckMerge()},
	}

	failed := 0
	for _, c := range checks {
		if c.err != nil {
			failed++
			fmt.Fprintf(out, "%-9s no: %v\n", c.name, c.err)
			continue
		}
		fmt.Fprintf(out, "%-9s ok\n", c.name)
	}
	if failed == len(checks) {
		return errors.New("story is not ready for any batch")
	}
	return nil
}

// batchRunE runs one batch in the foreground and prints its summary.
func batchRunE(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		res, err := a.orch.Run(ctx, args[0], action)
		if err != nil {
			var verr *generation.ValidationError
			if errors.As(err, &verr) {
				return fmt.Errorf("%s refused: %w", action, err)
			}
			return errors.New(orchestrator.UserMessage(err))
		}

		out := cmd.OutOrStdout()
		for _, o := range res.Summary.Scenes {
			fmt.Fprintln(out, o.Message)
		}
		if res.FinalVideo != nil {
			fmt.Fprintf(out, "Final video: %s\n  %s\n", res.FinalVideo.Name, res.FinalVideo.SignedURI)
		}

		parts := []string{fmt.Sprintf("%d processed", res.Summary.Processed)}
		if res.Summary.Failed > 0 {
			parts = append(parts, fmt.Sprintf("%d failed", res.Summary.Failed))
		}
		if res.Summary.Skipped > 0 {
			parts = append(parts, fmt.Sprintf("%d not processed", res.Summary.Skipped))
		}
		fmt.Fprintf(out, "%s finished in %s: %s\n", action, time.Since(start).Round(time.Millisecond), strings.Join(parts, ", "))
		return nil
	}
}
