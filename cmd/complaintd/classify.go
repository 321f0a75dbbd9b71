package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joelkehle/hmrc-complaints/internal/classify"
	"github.com/joelkehle/hmrc-complaints/internal/store"
)

func newClassifyCmd(a *app) *cobra.Command {
	var (
		docs    []string
		caseRef string
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "classify [narrative-file]",
		Short: "Classify a case as complaint, penalty appeal, review or tribunal matter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			narrative, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var documents []classify.Document
			for _, p := range docs {
				blob, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				documents = append(documents, classify.Document{Name: filepath.Base(p), Text: string(blob)})
			}

			engine, err := newClassifier(a.cfg)
			if err != nil {
				return err
			}
			c := engine.Classify(narrative, documents...)

			if save {
				if caseRef == "" {
					return fmt.Errorf("--save needs --case")
				}
				if err := saveClassification(cmd.Context(), a.cfg.Store.Path, caseRef, c); err != nil {
					return err
				}
				a.logger.Info("classification saved", "case_reference", caseRef, "primary_type", string(c.PrimaryType))
			}
			return writeIndented(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().StringArrayVar(&docs, "doc", nil, "supporting document to include (repeatable)")
	cmd.Flags().StringVar(&caseRef, "case", "", "case reference")
	cmd.Flags().BoolVar(&save, "save", false, "store the classification under --case")
	return cmd
}

func saveClassification(ctx context.Context, dbPath, caseRef string, c classify.Classification) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SaveClassification(ctx, caseRef, c)
}
