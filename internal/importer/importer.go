package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog CSV exports and inserts/updates products.
//
// Expected headers: key, name, price (major units), currency; id is optional.
// Header names are matched case-insensitively and column order is free.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
	currency string
}

// NewCSVImporter builds an importer. defaultCurrency fills rows whose
// currency column is empty or missing.
func NewCSVImporter(r io.Reader, repo ProductWriter, defaultCurrency string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:   csvr,
		products: repo,
		currency: strings.ToUpper(strings.TrimSpace(defaultCurrency)),
	}
}

// Run parses CSV rows and upserts one product per row. It stops at the first
// invalid row and reports how many products were saved before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"key", "name", "price"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing %q column", required)
		}
	}

	imported := 0
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line, _ := i.reader.FieldPos(0)
		if blank(record) {
			continue
		}

		p, err := i.parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if _, err := i.products.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.Key, err)
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		ID:       pick(record, index, "id"),
		Key:      pick(record, index, "key"),
		Name:     pick(record, index, "name"),
		Currency: strings.ToUpper(pick(record, index, "currency")),
	}
	if p.Currency == "" {
		p.Currency = i.currency
	}
	if p.Key == "" || p.Name == "" || p.Currency == "" {
		return p, domain.Invalid("row", "key, name and currency are required")
	}
	if p.ID != "" {
		if _, err := uuid.Parse(p.ID); err != nil {
			return p, domain.Invalid("id", fmt.Sprintf("invalid id for key %q", p.Key))
		}
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil {
		return p, domain.Invalid("price", fmt.Sprintf("invalid price for key %q", p.Key))
	}
	p.PriceMinor, err = domain.ToMinorUnits(price)
	if err != nil {
		return p, domain.Invalid("price", err.Error())
	}
	return p, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
