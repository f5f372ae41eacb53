package unsplash

import (
	"context"
	"net/url"

	"github.com/plashr/plashr/pkg/pagination"
)

type topicsQuery struct {
	OrderBy string `validate:"omitempty,oneof=featured latest oldest position"`
}

// TopicsSource lists topics, ordered by featured, latest, oldest or position.
func (a *API) TopicsSource(order string) (*pagination.Source[Topic], error) {
	if err := a.check("topic order", topicsQuery{OrderBy: order}); err != nil {
		return nil, err
	}
	q := url.Values{}
	setIf(q, "order_by", order)
	return newSource(a, "topics", "/topics", q, pagination.DecodeArray[Topic]), nil
}

// Topic returns a topic by slug or id.
func (a *API) Topic(ctx context.Context, slug string) (*Topic, error) {
	var topic Topic
	if err := a.get(ctx, "topic", "/topics/"+pathID(slug), nil, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

// TopicPhotosSource lists the photos of a topic.
func (a *API) TopicPhotosSource(slug string, opts PhotoListOptions) (*pagination.Source[Photo], error) {
	if err := a.check("topic photo options", opts); err != nil {
		return nil, err
	}
	return newSource(a, "topic_photos", "/topics/"+pathID(slug)+"/photos", opts.query(), pagination.DecodeArray[Photo]), nil
}
