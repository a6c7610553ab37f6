package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect loading tasks",
	Long:  `List loading tasks and their recent runs.`,
}

func init() {
	rootCmd.AddCommand(taskCmd)
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}

		var tasks []models.Task
		if err := database.Order("created_at").Find(&tasks).Error; err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tACTIVE\tNEXT_RUN")
		for _, task := range tasks {
			schedule := task.Crontab
			if schedule == "" && task.IntervalSeconds != nil {
				schedule = fmt.Sprintf("every %ds", *task.IntervalSeconds)
			}
			nextRun := "-"
			if task.NextRunAt != nil {
				nextRun = task.NextRunAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
				task.ID,
				task.Name,
				schedule,
				task.Active,
				nextRun,
			)
		}
		w.Flush()

		return nil
	},
}

func init() {
	taskCmd.AddCommand(taskListCmd)
}

var taskRunsLimit int

var taskRunsCmd = &cobra.Command{
	Use:   "runs [task-id]",
	Short: "Show recent runs for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid task ID: %w", err)
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}

		var runs []models.TaskRun
		err = database.Where("task_id = ?", taskID).
			Order("started_at DESC").
			Limit(taskRunsLimit).
			Find(&runs).Error
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN_ID\tSTATUS\tSTARTED\tFINISHED\tLOADED")
		for _, run := range runs {
			finished := "-"
			if run.FinishedAt != nil {
				finished = run.FinishedAt.Format("15:04:05")
			}
			loaded := "-"
			if stats, ok := run.Result["stats"].(map[string]interface{}); ok {
				if v, ok := stats["loaded"]; ok {
					loaded = fmt.Sprintf("%v", v)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				run.ID,
				run.Status,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				finished,
				loaded,
			)
		}
		w.Flush()

		return nil
	},
}

func init() {
	taskCmd.AddCommand(taskRunsCmd)
	taskRunsCmd.Flags().IntVar(&taskRunsLimit, "limit", 20, "Maximum runs to show")
}
