package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"va-tasks/internal/api"
	"va-tasks/pkg/quickentry"
	"va-tasks/pkg/task"
)

const journalSource = "tq"

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Task operations (create, list, get, update, delete)",
}

var (
	taskTitle    string
	taskNotes    string
	taskChannel  string
	taskDue      string
	taskPriority string
	taskProject  string
	taskContext  []string
	taskPeople   []string
	taskLinks    []string
	taskStatus   string
	taskParent   int64
	taskEstimate int

	listStatus string
	listOpen   bool
	listLimit  int
	listOffset int
	listFormat string

	ingestChannel string
	ingestLinks   []string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a task",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			taskTitle = args[0]
		}
		t := &task.Task{
			Title:    taskTitle,
			Notes:    taskNotes,
			Channel:  taskChannel,
			Priority: strings.ToUpper(taskPriority),
			Project:  taskProject,
			Context:  taskContext,
			People:   taskPeople,
			Links:    taskLinks,
			Status:   task.Status(taskStatus),
		}
		if taskDue != "" {
			due, err := time.Parse(time.RFC3339, taskDue)
			if err != nil {
				return fmt.Errorf("--due: %w", err)
			}
			t.Due = &due
		}
		if cmd.Flags().Changed("parent") {
			t.ParentID = &taskParent
		}
		if cmd.Flags().Changed("estimate") {
			t.EstimatedMinutes = &taskEstimate
		}
		created, err := task.Create(cmd.Context(), cli.stores.Tasks, t)
		if err != nil {
			return err
		}
		journal(cmd, api.EventTaskCreated, map[string]any{"task_id": created.ID, "title": created.Title})
		printJSON(created)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := task.Filter{Status: task.Status(listStatus), Open: listOpen, Limit: listLimit, Offset: listOffset}
		if f.Status != "" && !f.Status.Valid() {
			return fmt.Errorf("unknown status %q", f.Status)
		}
		tasks, err := cli.stores.Tasks.List(cmd.Context(), f)
		if err != nil {
			return err
		}
		if listFormat == "short" {
			printShortTasks(tasks)
			return nil
		}
		printJSON(tasks)
		return nil
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		t, err := cli.stores.Tasks.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		printJSON(t)
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the fields given as flags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		p, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}
		t, err := task.Update(cmd.Context(), cli.stores.Tasks, id, p)
		if err != nil {
			return err
		}
		journal(cmd, api.EventTaskUpdated, map[string]any{"task_id": id, "status": string(t.Status)})
		printJSON(t)
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task; its children are detached",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := cli.stores.Tasks.Delete(cmd.Context(), id); err != nil {
			return err
		}
		journal(cmd, api.EventTaskDeleted, map[string]any{"task_id": id})
		printJSON(map[string]bool{"deleted": true})
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <text>",
	Short: `Quick-capture a task, e.g. "Email Joel tomorrow 4pm #Acme @email +Joel p1"`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		parsed := quickentry.Parse(text, time.Now(), cli.cfg.Location())
		created, err := task.Create(cmd.Context(), cli.stores.Tasks, &task.Task{
			Title:    parsed.Title,
			Due:      parsed.Due,
			Priority: parsed.Priority,
			Project:  parsed.Project,
			Context:  parsed.Context,
			People:   parsed.People,
			Links:    ingestLinks,
			Channel:  ingestChannel,
		})
		if err != nil {
			return err
		}
		journal(cmd, api.EventTaskCreated, map[string]any{"task_id": created.ID, "title": created.Title, "channel": created.Channel})
		printJSON(created)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{taskCreateCmd, taskUpdateCmd} {
		c.Flags().StringVar(&taskTitle, "title", "", "task title")
		c.Flags().StringVar(&taskNotes, "notes", "", "free-form notes")
		c.Flags().StringVar(&taskChannel, "channel", "cli", "capture channel")
		c.Flags().StringVar(&taskDue, "due", "", "due time, RFC 3339")
		c.Flags().StringVar(&taskPriority, "priority", "", "P0 (highest) to P3")
		c.Flags().StringVar(&taskProject, "project", "", "project name")
		c.Flags().StringSliceVar(&taskContext, "context", nil, "context tags")
		c.Flags().StringSliceVar(&taskPeople, "people", nil, "people involved")
		c.Flags().StringSliceVar(&taskLinks, "link", nil, "related links")
		c.Flags().StringVar(&taskStatus, "status", "", "inbox, planned, in_progress, done or delegated")
		c.Flags().Int64Var(&taskParent, "parent", 0, "parent task id")
		c.Flags().IntVar(&taskEstimate, "estimate", 0, "estimated minutes")
	}

	taskListCmd.Flags().StringVar(&listStatus, "status", "", "only tasks with this status")
	taskListCmd.Flags().BoolVar(&listOpen, "open", false, "exclude done tasks")
	taskListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum tasks")
	taskListCmd.Flags().IntVar(&listOffset, "offset", 0, "skip this many tasks")
	taskListCmd.Flags().StringVar(&listFormat, "format", "json", "json or short")

	ingestCmd.Flags().StringVar(&ingestChannel, "channel", "cli", "capture channel")
	ingestCmd.Flags().StringSliceVar(&ingestLinks, "link", nil, "related links")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskGetCmd, taskUpdateCmd, taskDeleteCmd)
}

// patchFromFlags builds a patch from only the flags set on the command line.
func patchFromFlags(cmd *cobra.Command) (task.Patch, error) {
	var p task.Patch
	fl := cmd.Flags()
	if fl.Changed("title") {
		p.Title = &taskTitle
	}
	if fl.Changed("notes") {
		p.Notes = &taskNotes
	}
	if fl.Changed("channel") {
		p.Channel = &taskChannel
	}
	if fl.Changed("due") {
		due, err := time.Parse(time.RFC3339, taskDue)
		if err != nil {
			return p, fmt.Errorf("--due: %w", err)
		}
		p.Due = &due
	}
	if fl.Changed("priority") {
		pr := strings.ToUpper(taskPriority)
		p.Priority = &pr
	}
	if fl.Changed("project") {
		p.Project = &taskProject
	}
	if fl.Changed("context") {
		p.Context = &taskContext
	}
	if fl.Changed("people") {
		p.People = &taskPeople
	}
	if fl.Changed("link") {
		p.Links = &taskLinks
	}
	if fl.Changed("status") {
		st := task.Status(taskStatus)
		p.Status = &st
	}
	if fl.Changed("parent") {
		p.ParentID = &taskParent
	}
	if fl.Changed("estimate") {
		p.EstimatedMinutes = &taskEstimate
	}
	return p, nil
}

func journal(cmd *cobra.Command, eventType string, content map[string]any) {
	if _, err := cli.events.Append(cmd.Context(), eventType, journalSource, content, nil); err != nil {
		cli.log.Warn("journal append failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func truncStr(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func printShortTasks(tasks []task.Task) {
	for _, t := range tasks {
		fmt.Printf("%-6d  %-12s  %-3s  %s\n", t.ID, t.Status, t.Priority, truncStr(t.Title, 60))
	}
}
