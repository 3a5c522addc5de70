// Package query turns raw request parameters into a normalized services.ServiceSearchQuery.
package query

import (
	"strings"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/internal/tokenizer"
	"github.com/gcbaptista/package-search/services"
)

// orderAliases maps accepted spellings to sort orders.
var orderAliases = map[string]services.SortOrder{
	"text":        services.OrderText,
	"relevance":   services.OrderText,
	"popularity":  services.OrderPopularity,
	"health":      services.OrderHealth,
	"maintenance": services.OrderMaintenance,
	"recency":     services.OrderMaintenance,
	"created":     services.OrderCreated,
	"updated":     services.OrderUpdated,
}

// ParseOrder resolves an order name. The boolean is false for empty or unknown names.
func ParseOrder(order string) (services.SortOrder, bool) {
	o, ok := orderAliases[strings.ToLower(strings.TrimSpace(order))]
	return o, ok
}

// Parse builds a query from raw caller input. It never fails:
//   - free text goes through the same tokenizer as indexing and is deduplicated by folded form;
//   - an empty or unknown order falls back to text when there are terms, popularity otherwise;
//   - a negative offset becomes 0, limit <= 0 becomes the default page size and
//     limits above the maximum are clamped;
//   - blank tags are dropped and the rest are lower-cased and deduplicated.
func Parse(raw, order string, offset, limit int, tags []string, settings config.SearchSettings) services.ServiceSearchQuery {
	settings.ApplyDefaults()

	terms := tokenizer.Terms(raw)

	sortOrder, ok := ParseOrder(order)
	if !ok {
		if len(terms) > 0 {
			sortOrder = services.OrderText
		} else {
			sortOrder = services.OrderPopularity
		}
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = settings.DefaultLimit
	}
	if limit > settings.MaxLimit {
		limit = settings.MaxLimit
	}

	return services.ServiceSearchQuery{
		Terms:  terms,
		Order:  sortOrder,
		Offset: offset,
		Limit:  limit,
		Tags:   normalizeTags(tags),
	}
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
