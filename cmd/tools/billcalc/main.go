// Command billcalc prices a document file offline with the same engine the API uses.
//
//	billcalc totals --file quote.yaml --kind quotation
//	billcalc words 118000
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backoffice-api/internal/document"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// sheet is the on-disk document format. JSON is valid YAML, so both parse.
type sheet struct {
	Kind    string      `yaml:"kind"`
	VATRate *float64    `yaml:"vatRate"`
	Items   []sheetItem `yaml:"items"`
}

type sheetItem struct {
	Description     string  `yaml:"description"`
	Quantity        int     `yaml:"quantity"`
	UnitPrice       float64 `yaml:"unitPrice"`
	DiscountPercent float64 `yaml:"discountPercent"`
}

type lineOutput struct {
	PriceExclVAT float64 `json:"priceExclVat"`
	VAT          float64 `json:"vat"`
	TotalIncl    float64 `json:"totalIncl"`
}

type totalsOutput struct {
	Kind          string       `json:"kind"`
	VATRate       float64      `json:"vatRate"`
	Lines         []lineOutput `json:"lines"`
	TotalExcl     float64      `json:"totalExcl"`
	Tax           float64      `json:"tax"`
	TotalIncl     float64      `json:"totalIncl"`
	TotalDiscount float64      `json:"totalDiscount"`
	AmountInWords string       `json:"amountInWords"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "billcalc",
		Short:         "Compute document totals and amount-in-words offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTotalsCmd(), newWordsCmd())
	return root
}

func newTotalsCmd() *cobra.Command {
	var (
		file   string
		kind   string
		vat    float64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Price the line items in a YAML or JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var s sheet
			if err := yaml.NewDecoder(in).Decode(&s); err != nil {
				return fmt.Errorf("decode %s: %w", file, err)
			}
			if cmd.Flags().Changed("kind") || s.Kind == "" {
				s.Kind = kind
			}
			rate := vat
			if s.VATRate != nil && !cmd.Flags().Changed("vat") {
				rate = *s.VATRate
			}
			out, err := computeTotals(s, rate)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printTotals(cmd.OutOrStdout(), s, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "document file, - for stdin")
	cmd.Flags().StringVar(&kind, "kind", "invoice", "invoice, proforma or quotation")
	cmd.Flags().Float64Var(&vat, "vat", pricing.DefaultVATRate, "VAT rate as a fraction")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newWordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "words AMOUNT",
		Short: "Spell out the whole-unit part of an amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			if err := pricing.CheckAmount(amount); err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pricing.AmountToWords(pricing.WholeUnits(amount)))
			return err
		},
	}
}

func computeTotals(s sheet, rate float64) (totalsOutput, error) {
	if rate < 0 || rate >= 1 {
		return totalsOutput{}, fmt.Errorf("vat rate %v out of range [0, 1)", rate)
	}
	kind, err := document.ParseKind(s.Kind)
	if err != nil {
		return totalsOutput{}, err
	}
	if len(s.Items) == 0 {
		return totalsOutput{}, errors.New("no items")
	}
	items := make([]pricing.LineItem, 0, len(s.Items))
	for i, it := range s.Items {
		if it.Quantity < 1 {
			return totalsOutput{}, fmt.Errorf("item %d: quantity must be at least 1", i+1)
		}
		if it.UnitPrice < 0 {
			return totalsOutput{}, fmt.Errorf("item %d: unit price must not be negative", i+1)
		}
		if it.DiscountPercent < 0 || it.DiscountPercent > 100 {
			return totalsOutput{}, fmt.Errorf("item %d: discount must be within 0-100", i+1)
		}
		items = append(items, pricing.LineItem{
			Description:     it.Description,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
		})
	}

	engine := kind.Engine(rate)
	raw := engine.Document(items)
	if err := pricing.CheckDocument(raw); err != nil {
		return totalsOutput{}, fmt.Errorf("totals exceed %.0f: %w", pricing.MaxAmount, err)
	}
	doc := pricing.RoundDocument(raw)
	out := totalsOutput{
		Kind:          string(kind),
		VATRate:       rate,
		TotalExcl:     doc.TotalExcl,
		Tax:           doc.Tax,
		TotalIncl:     doc.TotalIncl,
		TotalDiscount: doc.TotalDiscount,
		AmountInWords: pricing.AmountToWords(pricing.WholeUnits(raw.TotalIncl)),
	}
	for _, line := range engine.Lines(items) {
		line = pricing.RoundLine(line)
		out.Lines = append(out.Lines, lineOutput{PriceExclVAT: line.PriceExclVAT, VAT: line.VAT, TotalIncl: line.TotalIncl})
	}
	return out, nil
}

func printTotals(w io.Writer, s sheet, out totalsOutput) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "#\tdescription\tqty\tunit\texcl\tvat\tincl\t\n")
	for i, line := range out.Lines {
		it := s.Items[i]
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t\n", i+1, it.Description, it.Quantity, it.UnitPrice, line.PriceExclVAT, line.VAT, line.TotalIncl)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nkind: %s  vat: %.2f%%\n", out.Kind, out.VATRate*100)
	fmt.Fprintf(w, "total excl: %.2f\n", out.TotalExcl)
	fmt.Fprintf(w, "tax:        %.2f\n", out.Tax)
	fmt.Fprintf(w, "total incl: %.2f\n", out.TotalIncl)
	if out.TotalDiscount > 0 {
		fmt.Fprintf(w, "discount:   %.2f\n", out.TotalDiscount)
	}
	_, err := fmt.Fprintf(w, "in words:   %s\n", out.AmountInWords)
	return err
}
