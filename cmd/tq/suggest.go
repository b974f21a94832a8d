package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"va-tasks/pkg/suggest"
)

var (
	suggestThreshold float64
	suggestTopK      int
	suggestNoSplit   bool

	applyID       string
	applySubtasks []string

	feedbackID       string
	feedbackType     string
	feedbackAccepted bool
	feedbackRejected bool
	feedbackTasks    []int64
	feedbackSubtasks []string
	feedbackReason   string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Propose combining near-duplicate tasks and splitting compound ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := suggest.Options{
			Threshold:    cli.cfg.Suggest.Threshold,
			TopK:         cli.cfg.Suggest.TopK,
			IncludeSplit: cli.cfg.Suggest.IncludeSplit,
		}
		if cmd.Flags().Changed("threshold") {
			opts.Threshold = suggestThreshold
		}
		if cmd.Flags().Changed("top-k") {
			opts.TopK = suggestTopK
		}
		if suggestNoSplit {
			opts.IncludeSplit = false
		}
		out, err := cli.engine.Suggest(cmd.Context(), opts)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply an accepted suggestion",
}

var applyCombineCmd = &cobra.Command{
	Use:   "combine <task-id> <task-id>",
	Short: "Merge two tasks into the one with the shorter title",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := parseID(args[0])
		if err != nil {
			return err
		}
		b, err := parseID(args[1])
		if err != nil {
			return err
		}
		res, err := cli.engine.Apply(cmd.Context(), suggest.ApplyRequest{
			ID: applyID, Type: suggest.KindCombine, TaskIDs: []int64{a, b},
		})
		if err != nil {
			return err
		}
		printJSON(map[string]any{"ok": true, "result": res})
		return nil
	},
}

var applySplitCmd = &cobra.Command{
	Use:   "split <task-id>",
	Short: "Create one child task per --subtask",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		res, err := cli.engine.Apply(cmd.Context(), suggest.ApplyRequest{
			ID: applyID, Type: suggest.KindSplit, TaskID: &id, ChosenSubtasks: applySubtasks,
		})
		if err != nil {
			return err
		}
		printJSON(map[string]any{"ok": true, "result": res})
		return nil
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record an accept or reject verdict on a suggestion",
	RunE: func(cmd *cobra.Command, args []string) error {
		if feedbackAccepted == feedbackRejected {
			return fmt.Errorf("exactly one of --accepted or --rejected is required")
		}
		req := suggest.FeedbackRequest{
			ID:             feedbackID,
			Type:           suggest.Kind(feedbackType),
			Accepted:       feedbackAccepted,
			TaskIDs:        feedbackTasks,
			ChosenSubtasks: feedbackSubtasks,
			Reason:         feedbackReason,
		}
		if req.Type == suggest.KindSplit && len(feedbackTasks) == 1 {
			req.TaskID = &feedbackTasks[0]
			req.TaskIDs = nil
		}
		res, err := cli.engine.Feedback(cmd.Context(), req)
		if err != nil {
			return err
		}
		printJSON(map[string]any{"ok": true, "touched": res.Touched})
		return nil
	},
}

func init() {
	suggestCmd.Flags().Float64Var(&suggestThreshold, "threshold", 0, "minimum cosine similarity for combine, 0..1")
	suggestCmd.Flags().IntVar(&suggestTopK, "top-k", 0, "maximum suggestions, 1..20")
	suggestCmd.Flags().BoolVar(&suggestNoSplit, "no-split", false, "omit split suggestions")

	applyCmd.PersistentFlags().StringVar(&applyID, "id", "", "suggestion id")
	_ = applyCmd.MarkPersistentFlagRequired("id")
	applySplitCmd.Flags().StringArrayVar(&applySubtasks, "subtask", nil, "subtask title (repeatable)")
	_ = applySplitCmd.MarkFlagRequired("subtask")
	applyCmd.AddCommand(applyCombineCmd, applySplitCmd)

	feedbackCmd.Flags().StringVar(&feedbackID, "id", "", "suggestion id")
	feedbackCmd.Flags().StringVar(&feedbackType, "type", "", "combine or split")
	feedbackCmd.Flags().BoolVar(&feedbackAccepted, "accepted", false, "the suggestion was accepted")
	feedbackCmd.Flags().BoolVar(&feedbackRejected, "rejected", false, "the suggestion was rejected")
	feedbackCmd.Flags().Int64SliceVar(&feedbackTasks, "task", nil, "task id (repeatable)")
	feedbackCmd.Flags().StringArrayVar(&feedbackSubtasks, "subtask", nil, "chosen subtask (repeatable)")
	feedbackCmd.Flags().StringVar(&feedbackReason, "reason", "", "free-form reason")
	_ = feedbackCmd.MarkFlagRequired("id")
	_ = feedbackCmd.MarkFlagRequired("type")
}
