package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/fieldcat/internal/ads"
)

var sourceCodeOnly bool

var sourceCmd = &cobra.Command{
	Use:   "source <locator>",
	Short: "Resolve a citation locator and print its publication record",
	Long: `Resolve a citation locator (arXiv id, DOI, URL, or raw bibcode) into a
canonical bibliographic code and print the publication record behind it.

Requires an ADS API token, from the config file or the FIELDCAT_ADS_TOKEN
or ADS_API_TOKEN environment variables.

Examples:
  fieldcat source arXiv:astro-ph/0009119
  fieldcat source 10.1086/318628
  fieldcat source 2001ApJ...548..296W --code-only`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []ads.Option{
			ads.WithToken(cfg.ADS.Token),
			ads.WithRecordTTL(cfg.ADS.RecordTTL()),
		}
		if cfg.ADS.BaseURL != "" {
			opts = append(opts, ads.WithBaseURL(cfg.ADS.BaseURL))
		}
		client := ads.NewClient(cfg.ADS.SkipCache, opts...)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		code, err := client.ResolveCode(ctx, args[0])
		if err != nil {
			if errors.Is(err, ads.ErrNoRecord) {
				return fmt.Errorf("no publication found for %q", args[0])
			}
			return err
		}

		out := cmd.OutOrStdout()
		if sourceCodeOnly {
			fmt.Fprintln(out, code)
			return nil
		}

		rec, err := client.FetchRecord(ctx, code)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "bibcode:  %s\n", rec.Bibcode)
		fmt.Fprintf(out, "title:    %s\n", rec.Title)
		fmt.Fprintf(out, "authors:  %s\n", strings.Join(rec.Authors, "; "))
		fmt.Fprintf(out, "pubdate:  %s\n", rec.PubDate)
		if len(rec.Keywords) > 0 {
			fmt.Fprintf(out, "keywords: %s\n", strings.Join(rec.Keywords, ", "))
		}
		if rec.Abstract != "" {
			fmt.Fprintf(out, "\n%s\n", rec.Abstract)
		}
		for name, link := range rec.Links {
			fmt.Fprintf(out, "link %s: %s\n", name, link)
		}
		return nil
	},
}

func init() {
	sourceCmd.Flags().BoolVar(&sourceCodeOnly, "code-only", false, "print only the resolved bibcode")
	rootCmd.AddCommand(sourceCmd)
}
