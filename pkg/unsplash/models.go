package unsplash

import "time"

// Photo is a photo record as returned by the API.
type Photo struct {
	ID             string     `json:"id"`
	Slug           string     `json:"slug,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	Color          string     `json:"color,omitempty"`
	BlurHash       string     `json:"blur_hash,omitempty"`
	Description    string     `json:"description,omitempty"`
	AltDescription string     `json:"alt_description,omitempty"`
	Likes          int        `json:"likes"`
	LikedByUser    bool       `json:"liked_by_user"`
	Downloads      int        `json:"downloads,omitempty"`
	Views          int        `json:"views,omitempty"`
	URLs           PhotoURLs  `json:"urls"`
	Links          PhotoLinks `json:"links"`
	User           *User      `json:"user,omitempty"`
	Exif           *Exif      `json:"exif,omitempty"`
	Location       *Location  `json:"location,omitempty"`
	Tags           []Tag      `json:"tags,omitempty"`
	Topics         []Topic    `json:"topics,omitempty"`
}

// PhotoURLs are the rendition URLs of a photo.
type PhotoURLs struct {
	Raw     string `json:"raw"`
	Full    string `json:"full"`
	Regular string `json:"regular"`
	Small   string `json:"small"`
	Thumb   string `json:"thumb"`
}

// PhotoLinks holds the photo's API and web links.
type PhotoLinks struct {
	Self             string `json:"self"`
	HTML             string `json:"html"`
	Download         string `json:"download"`
	DownloadLocation string `json:"download_location"`
}

type Exif struct {
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Name         string `json:"name,omitempty"`
	ExposureTime string `json:"exposure_time,omitempty"`
	Aperture     string `json:"aperture,omitempty"`
	FocalLength  string `json:"focal_length,omitempty"`
	ISO          int    `json:"iso,omitempty"`
}

type Location struct {
	Name     string    `json:"name,omitempty"`
	City     string    `json:"city,omitempty"`
	Country  string    `json:"country,omitempty"`
	Position *Position `json:"position,omitempty"`
}

type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Tag struct {
	Type  string `json:"type,omitempty"`
	Title string `json:"title"`
}

// Collection is a named, user-curated set of photos.
type Collection struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
	TotalPhotos   int             `json:"total_photos"`
	Private       bool            `json:"private"`
	CoverPhoto    *Photo          `json:"cover_photo,omitempty"`
	PreviewPhotos []Photo         `json:"preview_photos,omitempty"`
	User          *User           `json:"user,omitempty"`
	Links         CollectionLinks `json:"links"`
}

type CollectionLinks struct {
	Self   string `json:"self"`
	HTML   string `json:"html"`
	Photos string `json:"photos"`
}

// Topic is an editorial photo category.
type Topic struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	TotalPhotos int        `json:"total_photos"`
	Featured    bool       `json:"featured"`
	Status      string     `json:"status,omitempty"`
	CoverPhoto  *Photo     `json:"cover_photo,omitempty"`
	Links       TopicLinks `json:"links"`
}

type TopicLinks struct {
	Self   string `json:"self"`
	HTML   string `json:"html"`
	Photos string `json:"photos"`
}

// User is a public profile, or the authenticated user for Me.
type User struct {
	ID               string        `json:"id"`
	Username         string        `json:"username"`
	Name             string        `json:"name,omitempty"`
	FirstName        string        `json:"first_name,omitempty"`
	LastName         string        `json:"last_name,omitempty"`
	Email            string        `json:"email,omitempty"`
	Bio              string        `json:"bio,omitempty"`
	Location         string        `json:"location,omitempty"`
	PortfolioURL     string        `json:"portfolio_url,omitempty"`
	InstagramName    string        `json:"instagram_username,omitempty"`
	TwitterName      string        `json:"twitter_username,omitempty"`
	TotalLikes       int           `json:"total_likes"`
	TotalPhotos      int           `json:"total_photos"`
	TotalCollections int           `json:"total_collections"`
	FollowersCount   int           `json:"followers_count,omitempty"`
	FollowingCount   int           `json:"following_count,omitempty"`
	Downloads        int           `json:"downloads,omitempty"`
	ProfileImage     *ProfileImage `json:"profile_image,omitempty"`
	Links            UserLinks     `json:"links"`
}

type ProfileImage struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type UserLinks struct {
	Self      string `json:"self"`
	HTML      string `json:"html"`
	Photos    string `json:"photos"`
	Likes     string `json:"likes"`
	Portfolio string `json:"portfolio"`
}

// SearchResult is the envelope wrapping every search listing.
type SearchResult[T any] struct {
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	Results    []T `json:"results"`
}

// LikeResult is returned by like and unlike.
type LikeResult struct {
	Photo *Photo `json:"photo"`
	User  *User  `json:"user"`
}

// CollectionPhotoResult is returned when a photo is added to or removed
// from a collection.
type CollectionPhotoResult struct {
	Photo      *Photo      `json:"photo"`
	Collection *Collection `json:"collection"`
	User       *User       `json:"user"`
}

// DownloadLink is the tracked download URL of a photo.
type DownloadLink struct {
	URL string `json:"url"`
}
