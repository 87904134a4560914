package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/elastic/go-elasticsearch/v7"
)

// CatalogEntry is what we remember about a product between orders.
type CatalogEntry struct {
	Barcode       string `json:"barcode"`
	Name          string `json:"name"`
	NormalName    string `json:"normalname"`
	Specification string `json:"specification"`
	Unit          string `json:"unit"`
}

// ProductCatalog remembers products we've seen so that later sheets with gaps can be filled in.
type ProductCatalog interface {
	Lookup(ctx context.Context, barcode string) (*CatalogEntry, error)
	SearchName(ctx context.Context, name string) (*CatalogEntry, error)
	Index(ctx context.Context, entry CatalogEntry) error
}

type ElasticCatalog struct {
	es    *elasticsearch.Client
	index string
}

func NewElasticCatalog(addresses []string, index string) (*ElasticCatalog, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticCatalog{es: es, index: index}, nil
}

var (
	reBrackets = regexp.MustCompile(`[(（\[【][^)）\]】]*[)）\]】]`)
	reNonWord  = regexp.MustCompile(`[^\p{Han}\p{L}\p{N} ]+`)
)

// NormalizeName reduces a product name to something stable across suppliers' spellings.
func NormalizeName(name string) string {
	// Anything in brackets is promotional or packaging noise.
	name = reBrackets.ReplaceAllString(name, "")

	name = reNonWord.ReplaceAllString(name, " ")

	return CleanString(strings.ToLower(name))
}

// compare gives a percentage similarity between two strings.
func compare(str1, str2 string) int {
	len1 := runeLen(str1)
	len2 := runeLen(str2)

	if len1 == 0 || len2 == 0 {
		return 0
	}

	lenratio := float32(len1) / float32(len2)

	if (strings.Contains(str1, str2) || strings.Contains(str2, str1)) && lenratio >= 0.5 && lenratio <= 2 {
		// One inside the other is pretty good as long as they're not too different in length.
		return confidence
	}

	dist := levenshtein.ComputeDistance(str1, str2)

	max := len1
	if len2 > max {
		max = len2
	}

	return 100 - 100*dist/max
}

func (c *ElasticCatalog) Lookup(ctx context.Context, barcode string) (*CatalogEntry, error) {
	res, err := c.es.Get(c.index, barcode, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("catalog lookup %s: %w", barcode, err)
	}

	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if res.IsError() {
		return nil, fmt.Errorf("catalog lookup %s: %s", barcode, res.Status())
	}

	var doc struct {
		Found  bool         `json:"found"`
		Source CatalogEntry `json:"_source"`
	}

	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog lookup %s: %w", barcode, err)
	}

	if !doc.Found {
		return nil, nil
	}

	return &doc.Source, nil
}

// SearchName finds the best catalog match for a product name, or nil if nothing is close enough.
func (c *ElasticCatalog) SearchName(ctx context.Context, name string) (*CatalogEntry, error) {
	normal := NormalizeName(name)

	if runeLen(normal) < 2 {
		return nil, nil
	}

	var buf bytes.Buffer
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"fuzzy": map[string]interface{}{
				"normalname": map[string]interface{}{
					"value":     normal,
					"fuzziness": "AUTO",
				},
			},
		},
	}

	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
		c.es.Search.WithSize(5),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog search %s: %w", name, err)
	}

	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("catalog search %s: %s", name, res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source CatalogEntry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("catalog search %s: %w", name, err)
	}

	var best *CatalogEntry
	bestScore := 0

	for i, hit := range r.Hits.Hits {
		score := compare(normal, hit.Source.NormalName)
		sugar.Debugf("Name match %d: %s vs %s", score, normal, hit.Source.NormalName)

		if score >= confidence && score > bestScore {
			best = &r.Hits.Hits[i].Source
			bestScore = score
		}
	}

	return best, nil
}

func (c *ElasticCatalog) Index(ctx context.Context, entry CatalogEntry) error {
	entry.NormalName = NormalizeName(entry.Name)

	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(body),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(entry.Barcode),
		c.es.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("catalog index %s: %w", entry.Barcode, err)
	}

	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("catalog index %s: %s", entry.Barcode, res.Status())
	}

	return nil
}

// fillFromCatalog supplies a missing name or spec from what we saw last time.  The catalog is a nicety, so failures
// are logged and ignored.
func (e *Extractor) fillFromCatalog(ctx context.Context, p *Product) {
	entry, err := e.catalog.Lookup(ctx, p.Barcode)
	if err != nil {
		sugar.Warnf("Catalog lookup failed: %v", err)
		return
	}

	if entry == nil {
		return
	}

	if p.Name == "" {
		p.Name = entry.Name
	}

	if p.Specification == "" && entry.Specification != "" {
		sugar.Infof("Spec for %s from catalog: %s", p.Barcode, entry.Specification)
		p.Specification = entry.Specification
	}
}

func (e *Extractor) indexInCatalog(ctx context.Context, p Product) {
	// Placeholder names are no use to anyone.
	if strings.HasPrefix(p.Name, "商品 (") {
		return
	}

	err := e.catalog.Index(ctx, CatalogEntry{
		Barcode:       p.Barcode,
		Name:          p.Name,
		Specification: p.Specification,
		Unit:          p.Unit,
	})

	if err != nil {
		sugar.Warnf("Catalog index failed: %v", err)
	}
}
