// Package snapshot imports page observations from external sources: JSON
// snapshot files produced by a scanning collaborator, and raw HTML documents
// from which a partial observation (script inventory only) can be derived.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/tagscope/internal/model"
)

// LoadObservation reads a JSON observation snapshot from disk.
func LoadObservation(path string) (*model.Observation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var obs model.Observation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if obs.URL == "" {
		return nil, fmt.Errorf("snapshot has no page URL")
	}
	if obs.ScanID == "" {
		obs.ScanID = model.NewID()
	}
	return &obs, nil
}

// FromHTML builds a partial observation from a static HTML document. Only the
// script inventory can be recovered this way: there is no runtime, so no
// requests, data-layer pushes or cookies are present, and nothing is marked
// dynamically injected.
func FromHTML(r io.Reader, pageURL string) (*model.Observation, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	obs := &model.Observation{
		ScanID: model.NewID(),
		URL:    pageURL,
	}

	doc.Find("script").Each(func(order int, sel *goquery.Selection) {
		tag := model.ScriptTag{
			ID:            model.NewID(),
			DocumentOrder: order,
		}
		if src, ok := sel.Attr("src"); ok && src != "" {
			tag.Src = src
		} else {
			tag.Content = strings.TrimSpace(sel.Text())
			if tag.Content == "" {
				return
			}
		}
		_, tag.Async = sel.Attr("async")
		_, tag.Defer = sel.Attr("defer")
		obs.Scripts = append(obs.Scripts, tag)
	})

	return obs, nil
}
