package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelkehle/hmrc-complaints/internal/extract"
)

func newExtractCmd(_ *app) *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract stats, quotes, lists and timelines from a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			ex := extract.New(extract.Config{})
			var res extract.Result
			if asHTML || (len(args) == 1 && isHTMLPath(args[0])) {
				if res, err = ex.ExtractHTML(text); err != nil {
					return fmt.Errorf("parse html: %w", err)
				}
			} else {
				res = ex.Extract(text)
			}
			return writeIndented(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "treat input as HTML")
	return cmd
}

// readInput reads the named file, or stdin when no file is given or the
// name is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		blob, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(blob), nil
	}
	blob, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(blob), nil
}

func isHTMLPath(p string) bool {
	p = strings.ToLower(p)
	return strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
