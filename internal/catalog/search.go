package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/tendant/vision-catalog/internal/storage"
)

// URLFunc renders an addressable reference for an object. The default points
// at the service's own file-serving routes.
type URLFunc func(container, name string) string

func defaultURL(container, name string) string {
	return "/files/" + container + "/" + name
}

// Searcher resolves search terms against the catalog by scanning the
// originals container and decoding each object's annotation metadata. The
// store is the only index; every search re-enumerates it, trading throughput
// for freshness at small catalog scale.
type Searcher struct {
	store storage.Store
	urlFn URLFunc
}

// NewSearcher creates a searcher over the given store.
func NewSearcher(store storage.Store, urlFn URLFunc) *Searcher {
	if urlFn == nil {
		urlFn = defaultURL
	}
	return &Searcher{store: store, urlFn: urlFn}
}

// Search returns catalog items matching term. An empty term returns every
// item, including unannotated ones. A non-empty term matches items having at
// least one tag equal to it under case-insensitive comparison; captions are
// not matched. Result order is whatever the store's enumeration yields.
func (s *Searcher) Search(ctx context.Context, term string) ([]Item, error) {
	names, err := s.store.List(ctx, ContainerOriginals)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	items := make([]Item, 0, len(names))
	for _, name := range names {
		meta, err := s.store.GetMetadata(ctx, ContainerOriginals, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata for %s: %w", name, err)
		}

		ann, annotated := DecodeAnnotation(meta)
		if term != "" && !hasTag(ann.Tags, term) {
			continue
		}

		caption := ann.Caption
		if caption == "" {
			caption = name
		}

		items = append(items, Item{
			Name:         name,
			OriginalURL:  s.urlFn(ContainerOriginals, name),
			ThumbnailURL: s.urlFn(ContainerThumbnails, name),
			Caption:      caption,
			Tags:         ann.Tags,
			Annotated:    annotated,
		})
	}
	return items, nil
}

func hasTag(tags []string, term string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, term) {
			return true
		}
	}
	return false
}
