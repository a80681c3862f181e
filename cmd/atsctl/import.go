package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import-text",
	Short: "Upload a candidate's résumé text to object storage",
	Long: `Uploads pre-extracted résumé text to MinIO and points the candidate row at
the object, so later scoring reads the text from object storage.`,
	RunE: runImport,
}

var (
	importCandidate string
	importFile      string
)

func init() {
	importCmd.Flags().StringVar(&importCandidate, "candidate", "", "Candidate id")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Path to résumé text file, - for stdin")
	_ = importCmd.MarkFlagRequired("candidate")
	_ = importCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	text, err := readResume(importFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	e, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()
	if e.st.MinIO == nil {
		return fmt.Errorf("MinIO 未配置或不可用")
	}

	key, err := e.st.MinIO.PutResumeText(ctx, importCandidate, text)
	if err != nil {
		return err
	}
	if err := e.st.Candidates.AttachResumeText(ctx, importCandidate, key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "candidate %s -> %s\n", importCandidate, key)
	return nil
}
