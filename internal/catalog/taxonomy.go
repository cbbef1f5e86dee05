package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"encar-telegram-bot/internal/database"
	"encar-telegram-bot/internal/types"
)

// configurationChunk caps one upsert batch of the deepest taxonomy level.
const configurationChunk = 4_000

type navResponse struct {
	INav struct {
		Nodes []navNode `json:"Nodes"`
	} `json:"iNav"`
}

type navNode struct {
	Name   string     `json:"Name"`
	Facets []navFacet `json:"Facets"`
}

type navFacet struct {
	Action       string              `json:"Action"`
	DisplayValue string              `json:"DisplayValue"`
	Expression   string              `json:"Expression"`
	IsSelected   bool                `json:"IsSelected"`
	Count        int64               `json:"Count"`
	Metadata     map[string][]string `json:"Metadata"`
	Refinements  struct {
		Nodes []navNode `json:"Nodes"`
	} `json:"Refinements"`
}

func (f *navFacet) meta(key string) string {
	if vals := f.Metadata[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (f *navFacet) children() []navFacet {
	if len(f.Refinements.Nodes) == 0 {
		return nil
	}
	return f.Refinements.Nodes[0].Facets
}

// Nav fetches the faceted navigation tree for an action expression. An empty
// action asks for the marketplace's default root (the brand level).
func (c *Client) Nav(ctx context.Context, action string) (*navResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if action == "" {
		action = "(And.CarType.Y.)"
	}

	params := url.Values{}
	params.Set("count", "true")
	params.Set("q", action)
	params.Set("inav", "|Metadata|Sort")

	body, err := c.doGET(ctx, c.apiBase+"/search/car/list/premium?"+params.Encode(), "application/json")
	if err != nil {
		return nil, err
	}

	var nav navResponse
	if err := json.Unmarshal(body, &nav); err != nil {
		return nil, fmt.Errorf("nav payload parse: %w", err)
	}
	return &nav, nil
}

// carTypeFacets returns the brand-level facets below the selected CarType.
func carTypeFacets(nodes []navNode) []navFacet {
	for _, node := range nodes {
		if node.Name != "CarType" {
			continue
		}
		for _, facet := range node.Facets {
			if facet.IsSelected {
				return facet.children()
			}
		}
	}
	return nil
}

// descendSelected follows the selected facet path the given number of levels
// down and returns the facets found there. Year-group pseudo-facets are never
// part of the hierarchy and are skipped during descent.
func descendSelected(facets []navFacet, levels int) []navFacet {
	for ; levels > 0; levels-- {
		var next []navFacet
		for _, facet := range facets {
			if facet.IsSelected && !strings.HasPrefix(facet.Expression, "YearGroup.") {
				next = facet.children()
				break
			}
		}
		if next == nil {
			return nil
		}
		facets = next
	}
	return facets
}

// RefreshTaxonomy runs the daily five-stage catalog crawl. Each stage is
// independent: a failure is logged and the remaining stages still run, so a
// flaky deep level cannot block the brand refresh.
func (c *Client) RefreshTaxonomy(ctx context.Context) {
	log.Info("🔄 Starting taxonomy refresh...")

	stages := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"brands", c.refreshBrands},
		{"models", c.refreshModels},
		{"generations", c.refreshGenerations},
		{"modifications", c.refreshModifications},
		{"configurations", c.refreshConfigurations},
	}
	for _, stage := range stages {
		log.Infof("Refreshing %s...", stage.name)
		rows, err := stage.run(ctx)
		if err != nil {
			log.Errorf("❌ Failed to refresh %s: %v", stage.name, err)
			continue
		}
		log.Infof("✅ %s refreshed (%s rows)", stage.name, humanize.Comma(int64(rows)))
	}

	log.Info("✅ Taxonomy refresh completed.")
}

func (c *Client) refreshBrands(ctx context.Context) (int, error) {
	nav, err := c.Nav(ctx, "")
	if err != nil {
		return 0, err
	}

	var brands []types.TaxonomyNode
	for _, facet := range carTypeFacets(nav.INav.Nodes) {
		brands = append(brands, types.TaxonomyNode{
			Code:         facet.meta("Code"),
			Action:       facet.Action,
			DisplayValue: facet.DisplayValue,
			EngName:      facet.meta("EngName"),
		})
	}
	return len(brands), database.UpsertBrands(brands)
}

func (c *Client) refreshModels(ctx context.Context) (int, error) {
	brands, err := database.AllActions("brands")
	if err != nil {
		return 0, err
	}

	var models []types.TaxonomyNode
	for _, brand := range brands {
		nav, err := c.Nav(ctx, brand.Action)
		if err != nil {
			log.Errorf("❌ Failed to fetch models of brand %d: %v", brand.ID, err)
			continue
		}
		for _, facet := range descendSelected(carTypeFacets(nav.INav.Nodes), 1) {
			models = append(models, types.TaxonomyNode{
				Code:         facet.meta("Code"),
				Action:       facet.Action,
				DisplayValue: facet.DisplayValue,
				EngName:      facet.meta("EngName"),
				ParentID:     brand.ID,
			})
		}
	}
	return len(models), database.UpsertModels(models)
}

func (c *Client) refreshGenerations(ctx context.Context) (int, error) {
	models, err := database.AllActions("models")
	if err != nil {
		return 0, err
	}

	var generations []types.TaxonomyNode
	for _, model := range models {
		nav, err := c.Nav(ctx, model.Action)
		if err != nil {
			log.Errorf("❌ Failed to fetch generations of model %d: %v", model.ID, err)
			continue
		}
		for _, facet := range descendSelected(carTypeFacets(nav.INav.Nodes), 2) {
			generations = append(generations, types.TaxonomyNode{
				Code:         facet.meta("Code"),
				Action:       facet.Action,
				DisplayValue: facet.DisplayValue,
				ParentID:     model.ID,
				StartYear:    yearOf(facet.meta("ModelStartDate")),
				EndYear:      yearOf(facet.meta("ModelEndDate")),
			})
		}
	}
	return len(generations), database.UpsertGenerations(generations)
}

func (c *Client) refreshModifications(ctx context.Context) (int, error) {
	generations, err := database.AllActions("generations")
	if err != nil {
		return 0, err
	}

	var modifications []types.TaxonomyNode
	for _, generation := range generations {
		nav, err := c.Nav(ctx, generation.Action)
		if err != nil {
			log.Errorf("❌ Failed to fetch modifications of generation %d: %v", generation.ID, err)
			continue
		}
		for _, facet := range descendSelected(carTypeFacets(nav.INav.Nodes), 3) {
			if strings.HasPrefix(facet.Expression, "YearGroup.") {
				continue
			}
			modifications = append(modifications, types.TaxonomyNode{
				Code:         facet.meta("Code"),
				Action:       facet.Action,
				DisplayValue: facet.DisplayValue,
				ParentID:     generation.ID,
			})
		}
	}
	return len(modifications), database.UpsertModifications(modifications)
}

func (c *Client) refreshConfigurations(ctx context.Context) (int, error) {
	modifications, err := database.AllActions("modifications")
	if err != nil {
		return 0, err
	}

	var configurations []types.TaxonomyNode
	for _, modification := range modifications {
		nav, err := c.Nav(ctx, modification.Action)
		if err != nil {
			log.Errorf("❌ Failed to fetch configurations of modification %d: %v", modification.ID, err)
			continue
		}
		for _, facet := range descendSelected(carTypeFacets(nav.INav.Nodes), 4) {
			configurations = append(configurations, types.TaxonomyNode{
				Code:         facet.meta("Code"),
				Action:       facet.Action,
				DisplayValue: facet.DisplayValue,
				ParentID:     modification.ID,
				Count:        facet.Count,
			})
		}
	}

	total := len(configurations)
	for len(configurations) >= configurationChunk {
		if err := database.UpsertConfigurations(configurations[:configurationChunk]); err != nil {
			return 0, err
		}
		configurations = configurations[configurationChunk:]
	}
	if len(configurations) > 0 {
		return total, database.UpsertConfigurations(configurations)
	}
	return total, nil
}

func yearOf(date string) int64 {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.ParseInt(date[:4], 10, 64)
	if err != nil {
		return 0
	}
	return year
}
