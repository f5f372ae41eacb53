package unsplash

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/plashr/plashr/pkg/pagination"
)

// Photo list orderings.
const (
	OrderLatest  = "latest"
	OrderOldest  = "oldest"
	OrderPopular = "popular"
)

// PhotoListOptions filters photo listings of topics, collections and users.
type PhotoListOptions struct {
	OrderBy     string `validate:"omitempty,oneof=latest oldest popular views downloads"`
	Orientation string `validate:"omitempty,oneof=landscape portrait squarish"`
}

func (o PhotoListOptions) query() url.Values {
	q := url.Values{}
	setIf(q, "order_by", o.OrderBy)
	setIf(q, "orientation", o.Orientation)
	return q
}

// RandomOptions selects random photos.
type RandomOptions struct {
	Count         int      `validate:"omitempty,min=1,max=30"`
	Query         string   `validate:"omitempty,max=200"`
	Username      string   `validate:"omitempty,max=100"`
	Orientation   string   `validate:"omitempty,oneof=landscape portrait squarish"`
	ContentFilter string   `validate:"omitempty,oneof=low high"`
	Topics        []string `validate:"omitempty,dive,required"`
	Collections   []string `validate:"omitempty,dive,required"`
}

// PhotosSource lists the editorial feed.
func (a *API) PhotosSource(order string) (*pagination.Source[Photo], error) {
	if err := a.check("photo order", PhotoListOptions{OrderBy: order}); err != nil {
		return nil, err
	}
	q := url.Values{}
	setIf(q, "order_by", order)
	return newSource(a, "photos", "/photos", q, pagination.DecodeArray[Photo]), nil
}

// Photo returns a single photo.
func (a *API) Photo(ctx context.Context, id string) (*Photo, error) {
	var photo Photo
	if err := a.get(ctx, "photo", "/photos/"+pathID(id), nil, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// RandomPhotos returns up to opts.Count random photos.
func (a *API) RandomPhotos(ctx context.Context, opts RandomOptions) ([]Photo, error) {
	if err := a.check("random options", opts); err != nil {
		return nil, err
	}

	count := opts.Count
	if count == 0 {
		count = 1
	}

	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	setIf(q, "query", opts.Query)
	setIf(q, "username", opts.Username)
	setIf(q, "orientation", opts.Orientation)
	setIf(q, "content_filter", opts.ContentFilter)
	setIf(q, "topics", strings.Join(opts.Topics, ","))
	setIf(q, "collections", strings.Join(opts.Collections, ","))

	var photos []Photo
	if err := a.get(ctx, "random_photos", "/photos/random", q, &photos); err != nil {
		return nil, err
	}
	return photos, nil
}

// LikePhoto likes a photo on behalf of the authenticated user.
func (a *API) LikePhoto(ctx context.Context, id string) (*LikeResult, error) {
	var res LikeResult
	err := a.call(ctx, "like_photo", &res, func() (*http.Response, error) {
		return a.http.Post(ctx, "/photos/"+pathID(id)+"/like", nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UnlikePhoto removes the authenticated user's like.
func (a *API) UnlikePhoto(ctx context.Context, id string) (*LikeResult, error) {
	var res LikeResult
	err := a.call(ctx, "unlike_photo", &res, func() (*http.Response, error) {
		return a.http.Delete(ctx, "/photos/"+pathID(id)+"/like", nil)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// TrackDownload registers a download with the API and returns the URL to
// fetch the original from. It must be called for every download.
func (a *API) TrackDownload(ctx context.Context, id string) (*DownloadLink, error) {
	var link DownloadLink
	if err := a.get(ctx, "track_download", "/photos/"+pathID(id)+"/download", nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}
