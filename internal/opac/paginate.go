package opac

import (
	"context"
	"fmt"
)

// MaxCrawlPages bounds Crawl for backends that never stop advertising a next page.
const MaxCrawlPages = 50

// PageFunc handles one page and returns the url of the next one, "" if
// there is none.
type PageFunc func(ctx context.Context, url string) (next string, err error)

// Crawl walks a chain of pages sequentially starting at first. It stops when
// no next page is advertised, when a url repeats or after MaxCrawlPages.
func Crawl(ctx context.Context, first string, fetch PageFunc) (int, error) {
	visited := make(map[string]struct{})
	url := first
	pages := 0
	for url != "" && pages < MaxCrawlPages {
		if _, ok := visited[url]; ok {
			break
		}
		visited[url] = struct{}{}
		err := ctx.Err()
		if err != nil {
			return pages, err
		}
		next, err := fetch(ctx, url)
		if err != nil {
			return pages, fmt.Errorf("page %d (%s): %w", pages+1, url, err)
		}
		pages++
		url = next
	}
	return pages, nil
}
