package unsplash

import (
	"net/url"

	"github.com/plashr/plashr/pkg/pagination"
)

// SearchFilter narrows photo searches.
type SearchFilter struct {
	OrderBy       string `validate:"omitempty,oneof=relevant latest"`
	Color         string `validate:"omitempty,oneof=black_and_white black white yellow orange red purple magenta green teal blue"`
	Orientation   string `validate:"omitempty,oneof=landscape portrait squarish"`
	ContentFilter string `validate:"omitempty,oneof=low high"`
}

type searchQuery struct {
	Query string `validate:"required,max=200"`
}

// SearchPhotosSource searches photos.
func (a *API) SearchPhotosSource(query string, filter SearchFilter) (*pagination.Source[Photo], error) {
	if err := a.check("search query", searchQuery{Query: query}); err != nil {
		return nil, err
	}
	if err := a.check("search filter", filter); err != nil {
		return nil, err
	}

	q := url.Values{"query": {query}}
	setIf(q, "order_by", filter.OrderBy)
	setIf(q, "color", filter.Color)
	setIf(q, "orientation", filter.Orientation)
	setIf(q, "content_filter", filter.ContentFilter)

	return newSource(a, "search_photos", "/search/photos", q, decodeSearch[Photo]), nil
}

// SearchCollectionsSource searches collections.
func (a *API) SearchCollectionsSource(query string) (*pagination.Source[Collection], error) {
	if err := a.check("search query", searchQuery{Query: query}); err != nil {
		return nil, err
	}
	return newSource(a, "search_collections", "/search/collections", url.Values{"query": {query}}, decodeSearch[Collection]), nil
}

// SearchUsersSource searches users.
func (a *API) SearchUsersSource(query string) (*pagination.Source[User], error) {
	if err := a.check("search query", searchQuery{Query: query}); err != nil {
		return nil, err
	}
	return newSource(a, "search_users", "/search/users", url.Values{"query": {query}}, decodeSearch[User]), nil
}
