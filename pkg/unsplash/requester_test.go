package unsplash

import (
	"context"
	"net/http"
	"net/url"
)

// FailingRequester fails every request with Err.
type FailingRequester struct {
	Err error
}

func (f FailingRequester) Get(context.Context, string, url.Values) (*http.Response, error) {
	return nil, f.Err
}

func (f FailingRequester) Post(context.Context, string, url.Values, any) (*http.Response, error) {
	return nil, f.Err
}

func (f FailingRequester) Put(context.Context, string, url.Values, any) (*http.Response, error) {
	return nil, f.Err
}

func (f FailingRequester) Delete(context.Context, string, url.Values) (*http.Response, error) {
	return nil, f.Err
}
