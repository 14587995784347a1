package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/kaizen-comms/backend/internal/service"
	"github.com/spf13/cobra"
)

func newExtractCmd(opts *options) *cobra.Command {
	var maxChars int
	var full bool
	cmd := &cobra.Command{
		Use:   "extract <deck.pptx>",
		Short: "Print the slide text that would be sent for generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(false)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			result, err := svc.Extract(cmd.Context(), data, maxChars)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			text := result.Preview
			if full {
				text = result.Text
			}
			fmt.Fprintln(out, text)
			fmt.Fprintf(cmd.ErrOrStderr(), "%d slides, %d characters extracted, %d sent (max %d), truncated=%v\n",
				result.SlideCount, result.TotalChars, result.SentChars, result.MaxChars, result.Truncated)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "character budget for slide text (0 uses the configured default)")
	cmd.Flags().BoolVar(&full, "full", false, "print the whole truncated text instead of the preview")
	return cmd
}

func newGenerateCmd(opts *options) *cobra.Command {
	var (
		deckPath     string
		document     string
		maxChars     int
		templatePath string
		outPath      string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one communication document from a deck",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(true)
			if err != nil {
				return err
			}
			deck, err := os.ReadFile(deckPath)
			if err != nil {
				return err
			}
			req := service.GenerateRequest{
				DeckName:    filepath.Base(deckPath),
				Deck:        deck,
				DocumentKey: document,
				MaxChars:    maxChars,
			}
			if templatePath != "" {
				if req.Template, err = os.ReadFile(templatePath); err != nil {
					return err
				}
			}

			result, err := svc.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}

			path := outPath
			if path == "" {
				path = result.Document.FileName
			}
			if err := os.WriteFile(path, result.Document.Data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated: %s -> %s (model=%s, tokens=%d, truncated=%v)\n",
				result.Document.Name, path, result.Model, result.Usage.TotalTokens, result.Extraction.Truncated)
			return nil
		},
	}
	cmd.Flags().StringVar(&deckPath, "deck", "", "Kaizen report-out deck (.pptx)")
	cmd.Flags().StringVar(&document, "document", "", "document key or name (see `kaizenctl catalog`)")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "character budget for slide text (0 uses the configured default)")
	cmd.Flags().StringVar(&templatePath, "template", "", "Word template for structured documents (.docx)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default \"<Document Name>.docx\")")
	_ = cmd.MarkFlagRequired("deck")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

func newTemplateCmd(opts *options) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the default Word template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(false)
			if err != nil {
				return err
			}
			data, err := svc.DefaultTemplate()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", service.DefaultTemplateName+".docx", "output file")
	return cmd
}

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the documents that can be generated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(false)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tKIND")
			for _, d := range svc.Catalog().Documents {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Key, d.Name, d.Kind)
			}
			return w.Flush()
		},
	}
}
