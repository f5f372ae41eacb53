package unsplash

import (
	"context"
	"net/url"

	"github.com/plashr/plashr/pkg/pagination"
)

// User returns a public profile.
func (a *API) User(ctx context.Context, username string) (*User, error) {
	var u User
	if err := a.get(ctx, "user", "/users/"+pathID(username), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Me returns the authenticated user's profile.
func (a *API) Me(ctx context.Context) (*User, error) {
	var u User
	if err := a.get(ctx, "me", "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserPhotosSource lists photos uploaded by a user.
func (a *API) UserPhotosSource(username string, opts PhotoListOptions) (*pagination.Source[Photo], error) {
	if err := a.check("user photo options", opts); err != nil {
		return nil, err
	}
	return newSource(a, "user_photos", "/users/"+pathID(username)+"/photos", opts.query(), pagination.DecodeArray[Photo]), nil
}

// UserLikesSource lists photos a user liked.
func (a *API) UserLikesSource(username string, opts PhotoListOptions) (*pagination.Source[Photo], error) {
	if err := a.check("user likes options", opts); err != nil {
		return nil, err
	}
	return newSource(a, "user_likes", "/users/"+pathID(username)+"/likes", opts.query(), pagination.DecodeArray[Photo]), nil
}

// UserCollectionsSource lists a user's collections.
func (a *API) UserCollectionsSource(username string) *pagination.Source[Collection] {
	return newSource(a, "user_collections", "/users/"+pathID(username)+"/collections", url.Values{}, pagination.DecodeArray[Collection])
}
