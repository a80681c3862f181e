package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"ats-engine/internal/types"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Score one résumé text file against a job without saving",
	Long: `Scores a plain-text résumé against a job and prints the full result as JSON.

The job is read from MySQL (--job ID) or from a JSON job profile file
(--job-file job.json); the latter needs no database. Use --resume - to read
the résumé from stdin.`,
	RunE: runScan,
}

var (
	scanJob     string
	scanJobFile string
	scanResume  string
	scanWeights map[string]string
)

func init() {
	scanCmd.Flags().StringVarP(&scanJob, "job", "j", "", "Job id (read from MySQL)")
	scanCmd.Flags().StringVar(&scanJobFile, "job-file", "", "Path to a JSON job profile")
	scanCmd.Flags().StringVarP(&scanResume, "resume", "r", "", "Path to résumé text file, - for stdin")
	scanCmd.Flags().StringToStringVar(&scanWeights, "weight", nil, "Dimension weight override, e.g. roleFit=0.4")
	_ = scanCmd.MarkFlagRequired("resume")
	scanCmd.MarkFlagsMutuallyExclusive("job", "job-file")
	scanCmd.MarkFlagsOneRequired("job", "job-file")

	rootCmd.AddCommand(scanCmd)
}

func readResume(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("读取简历文本失败: %w", err)
	}
	return string(data), nil
}

func readJobFile(path string) (*types.JobProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取岗位文件失败: %w", err)
	}
	var job types.JobProfile
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("岗位文件不是合法JSON: %v: %w", err, types.ErrInvalidRequest)
	}
	return &job, nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	weights, err := parseWeights(scanWeights)
	if err != nil {
		return err
	}
	text, err := readResume(scanResume, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	e, err := setup(ctx, scanJob != "")
	if err != nil {
		return err
	}
	defer e.close()

	job, err := resolveJob(ctx, e)
	if err != nil {
		return err
	}
	res, err := e.comps.Orchestrator.EvaluateText(ctx, job, text, weights)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func resolveJob(ctx context.Context, e *env) (*types.JobProfile, error) {
	if scanJobFile != "" {
		return readJobFile(scanJobFile)
	}
	return e.st.Candidates.GetJobProfile(ctx, scanJob)
}
