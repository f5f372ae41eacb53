package unsplash

import (
	"context"
	"net/http"
	"net/url"

	"github.com/plashr/plashr/pkg/pagination"
)

// CollectionInput is the body of create and update requests.
type CollectionInput struct {
	Title       string `json:"title,omitempty" validate:"required,max=60"`
	Description string `json:"description,omitempty" validate:"max=250"`
	Private     *bool  `json:"private,omitempty"`
}

// CollectionsSource lists featured collections.
func (a *API) CollectionsSource() *pagination.Source[Collection] {
	return newSource(a, "collections", "/collections", nil, pagination.DecodeArray[Collection])
}

// Collection returns a collection.
func (a *API) Collection(ctx context.Context, id string) (*Collection, error) {
	var c Collection
	if err := a.get(ctx, "collection", "/collections/"+pathID(id), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CollectionPhotosSource lists the photos of a collection.
func (a *API) CollectionPhotosSource(id string, opts PhotoListOptions) (*pagination.Source[Photo], error) {
	if err := a.check("collection photo options", opts); err != nil {
		return nil, err
	}
	return newSource(a, "collection_photos", "/collections/"+pathID(id)+"/photos", opts.query(), pagination.DecodeArray[Photo]), nil
}

// RelatedCollections returns up to three collections related to id.
func (a *API) RelatedCollections(ctx context.Context, id string) ([]Collection, error) {
	var cs []Collection
	if err := a.get(ctx, "related_collections", "/collections/"+pathID(id)+"/related", nil, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// CreateCollection creates a collection owned by the authenticated user.
func (a *API) CreateCollection(ctx context.Context, in CollectionInput) (*Collection, error) {
	if err := a.check("collection", in); err != nil {
		return nil, err
	}

	var c Collection
	err := a.call(ctx, "create_collection", &c, func() (*http.Response, error) {
		return a.http.Post(ctx, "/collections", nil, in)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCollection changes a collection's title, description or visibility.
func (a *API) UpdateCollection(ctx context.Context, id string, in CollectionInput) (*Collection, error) {
	if err := a.check("collection", in); err != nil {
		return nil, err
	}

	var c Collection
	err := a.call(ctx, "update_collection", &c, func() (*http.Response, error) {
		return a.http.Put(ctx, "/collections/"+pathID(id), nil, in)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCollection deletes a collection.
func (a *API) DeleteCollection(ctx context.Context, id string) error {
	return a.call(ctx, "delete_collection", nil, func() (*http.Response, error) {
		return a.http.Delete(ctx, "/collections/"+pathID(id), nil)
	})
}

// AddToCollection adds a photo to a collection.
func (a *API) AddToCollection(ctx context.Context, collectionID, photoID string) (*CollectionPhotoResult, error) {
	var res CollectionPhotoResult
	err := a.call(ctx, "add_to_collection", &res, func() (*http.Response, error) {
		return a.http.Post(ctx, "/collections/"+pathID(collectionID)+"/add", nil, map[string]string{"photo_id": photoID})
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveFromCollection removes a photo from a collection.
func (a *API) RemoveFromCollection(ctx context.Context, collectionID, photoID string) (*CollectionPhotoResult, error) {
	var res CollectionPhotoResult
	err := a.call(ctx, "remove_from_collection", &res, func() (*http.Response, error) {
		return a.http.Delete(ctx, "/collections/"+pathID(collectionID)+"/remove", url.Values{"photo_id": {photoID}})
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
