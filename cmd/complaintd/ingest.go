package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelkehle/hmrc-complaints/internal/knowledge"
	"github.com/joelkehle/hmrc-complaints/internal/logging"
	"github.com/joelkehle/hmrc-complaints/internal/store"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <corpus.yaml>",
		Short: "Embed a guidance corpus into the knowledge store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			corpus, err := knowledge.LoadCorpus(f)
			if err != nil {
				return err
			}

			embedder, err := newEmbedder(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			s, err := store.Open(a.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := knowledge.Ingest(cmd.Context(), embedder, s, corpus, logging.Component(a.logger, "ingest"))
			if err != nil {
				return err
			}
			total, err := s.CountChunks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks from %d documents (%d in store)\n", n, len(corpus.Documents), total)
			return nil
		},
	}
}
