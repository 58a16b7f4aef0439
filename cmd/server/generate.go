package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/jobs"
)

var (
	generateClasses []uint
	generatePoll    time.Duration
)

// generateCmd 不经过 HTTP 直接为指定班级生成课表，输出每个任务的结果与冲突报告
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "为指定班级生成课表（一次性）",
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().UintSliceVar(&generateClasses, "class", nil, "班级 ID，可重复")
	generateCmd.Flags().DurationVar(&generatePoll, "poll", 200*time.Millisecond, "轮询任务状态的间隔")
	_ = generateCmd.MarkFlagRequired("class")
}

type generateResult struct {
	JobID            uint         `json:"job_id"`
	ClassID          uint         `json:"class_id"`
	Status           string       `json:"status"`
	PlacedUnits      int          `json:"placed_units"`
	UnsatisfiedUnits int          `json:"unsatisfied_units"`
	Error            *string      `json:"error_message,omitempty"`
	Report           *jobs.Report `json:"report,omitempty"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	a.connectOptional()
	manager := a.newManager()
	manager.Start()
	defer manager.Stop()

	created, err := manager.Submit(ctx, generateClasses, "cli")
	if err != nil {
		return fmt.Errorf("提交生成任务失败: %w", err)
	}

	ticker := time.NewTicker(generatePoll)
	defer ticker.Stop()

	results := make([]generateResult, 0, len(created))
	for _, job := range created {
		for {
			current, report, err := manager.Conflicts(ctx, job.ID)
			if err != nil {
				return err
			}
			if current.Status.Finished() {
				results = append(results, generateResult{
					JobID:            current.ID,
					ClassID:          current.ClassID,
					Status:           string(current.Status),
					PlacedUnits:      current.PlacedUnits,
					UnsatisfiedUnits: current.UnsatisfiedUnits,
					Error:            current.ErrorMessage,
					Report:           report,
				})
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
