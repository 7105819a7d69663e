package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/manwarsd/dreamboard/internal/catalog"
)

var (
	storyTitle       string
	storyDescription string
	storyShowYAML    bool

	sceneVideoPrompt string
	sceneImagePrompt string
	sceneTransition  string
	sceneRegenerate  bool
	sceneExclude     bool
)

var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Create, list and inspect stories",
}

var storyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stories",
	Args:  cobra.NoArgs,
	RunE:  runStoryList,
}

var storyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty story",
	Args:  cobra.NoArgs,
	RunE:  runStoryCreate,
}

var storyShowCmd = &cobra.Command{
	Use:   "show <story-id>",
	Short: "Show a story and its scenes",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoryShow,
}

var storyAddSceneCmd = &cobra.Command{
	Use:   "add-scene <story-id>",
	Short: "Append a scene to a story",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoryAddScene,
}

var storyDeleteCmd = &cobra.Command{
	Use:   "delete <story-id>",
	Short: "Delete a story",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoryDelete,
}

func init() {
	storyCreateCmd.Flags().StringVar(&storyTitle, "title", "", "Story title (required)")
	storyCreateCmd.Flags().StringVar(&storyDescription, "description", "", "Story description")
	storyCreateCmd.MarkFlagRequired("title")

	storyShowCmd.Flags().BoolVar(&storyShowYAML, "yaml", false, "Print the whole story as YAML")

	storyAddSceneCmd.Flags().StringVar(&sceneVideoPrompt, "video-prompt", "", "Video generation prompt")
	storyAddSceneCmd.Flags().StringVar(&sceneImagePrompt, "image-prompt", "", "Image generation prompt")
	storyAddSceneCmd.Flags().StringVar(&sceneTransition, "transition", "", "Transition into the next scene")
	storyAddSceneCmd.Flags().BoolVar(&sceneRegenerate, "generate", true, "Mark the scene for the next video batch")
	storyAddSceneCmd.Flags().BoolVar(&sceneExclude, "exclude", false, "Leave the scene out of the merge")

	storyCmd.AddCommand(storyListCmd, storyCreateCmd, storyShowCmd, storyAddSceneCmd, storyDeleteCmd)
	rootCmd.AddCommand(storyCmd)
}

func runStoryList(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	infos, err := a.stories.ListStories(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stories yet. Create one with: dreamboard story create --title \"...\"")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSCENES\tFINAL\tUPDATED")
	for _, info := range infos {
		final := "-"
		if info.HasFinalVideo {
			final = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", info.ID, info.Title, info.SceneCount, final, humanize.Time(info.UpdatedAt))
	}
	return w.Flush()
}

func runStoryCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.stories.CreateStory(cmd.Context(), storyTitle, storyDescription)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created story %s (%s)\n", st.Title, st.ID)
	return nil
}

func runStoryShow(cmd *cobra.Command, args []string) error {
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
	if storyShowYAML {
		return writeYAML(out, st)
	}

	fmt.Fprintf(out, "%s (%s)\n", st.Title, st.ID)
	if st.Description != "" {
		fmt.Fprintf(out, "%s\n", st.Description)
	}
	fmt.Fprintf(out, "Created %s, updated %s\n\n", humanize.Time(st.CreatedAt), humanize.Time(st.UpdatedAt))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSCENE ID\tVIDEOS\tSELECTED\tGENERATE\tMERGE\tTRANSITION\tPROMPT")
	for _, s := range st.Scenes {
		vs := s.VideoSettings
		selected := "-"
		if vs.Selected != nil {
			selected = vs.Selected.Name
		}
		transition := string(vs.Transition)
		if transition == "" {
			transition = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%t\t%t\t%s\t%s\n",
			s.Number, s.ID, len(vs.GeneratedVideos), selected,
			vs.RegenerateVideo, vs.IncludeVideoSegment, transition, shorten(vs.Prompt, 40))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if fv := st.FinalVideo(); fv != nil {
		fmt.Fprintf(out, "\nFinal video: %s\n  %s\n", fv.Name, fv.SignedURI)
	}
	return nil
}

func runStoryAddScene(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	include := !sceneExclude
	patch := catalog.ScenePatch{
		RegenerateVideo:     &sceneRegenerate,
		IncludeVideoSegment: &include,
	}
	if sceneVideoPrompt != "" {
		patch.VideoPrompt = &sceneVideoPrompt
	}
	if sceneImagePrompt != "" {
		patch.ImagePrompt = &sceneImagePrompt
	}
	if sceneTransition != "" {
		patch.Transition = &sceneTransition
	}

	sc, err := a.stories.AddScene(cmd.Context(), args[0], patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added scene %d (%s)\n", sc.Number, sc.ID)
	return nil
}

func runStoryDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.stories.DeleteStory(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted story %s\n", args[0])
	return nil
}

// writeYAML prints v as YAML under its JSON field names and in field order.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	plainStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// plainStyle drops the flow and quoting styles the JSON input carried.
func plainStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		plainStyle(c)
	}
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
