package cache

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestCacheEntry_TTLAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expires time.Time
		want    time.Duration
	}{
		{"max-age 300 just stored", now.Add(5 * time.Minute), 5 * time.Minute},
		{"expires this instant", now, 0},
		{"expired a second ago", now.Add(-time.Second), 0},
		{"zero expiry", time.Time{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.ttlAt(now); got != tt.want {
				t.Errorf("ttlAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_IsExpired(t *testing.T) {
	if !(&CacheEntry{Expires: time.Now().Add(-time.Minute)}).IsExpired() {
		t.Error("entry past Expires should be expired")
	}
	if (&CacheEntry{Expires: time.Now().Add(time.Hour)}).IsExpired() {
		t.Error("entry before Expires should not be expired")
	}
}

func TestCacheEntry_Age(t *testing.T) {
	if got := (&CacheEntry{}).Age(); got != 0 {
		t.Errorf("Age() of unstored entry = %v, want 0", got)
	}

	age := (&CacheEntry{CachedAt: time.Now().Add(-2 * time.Minute)}).Age()
	if age < 2*time.Minute || age > 3*time.Minute {
		t.Errorf("Age() = %v, want about 2m", age)
	}
}

func TestCacheEntry_Revalidatable(t *testing.T) {
	tests := []struct {
		name  string
		entry CacheEntry
		want  bool
	}{
		{"etag", CacheEntry{ETag: `W/"photos-1"`}, true},
		{"last modified", CacheEntry{LastModified: time.Now()}, true},
		{"body only", CacheEntry{Data: []byte(`[]`)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Revalidatable(); got != tt.want {
				t.Errorf("Revalidatable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_Size(t *testing.T) {
	entry := &CacheEntry{
		Data:    []byte("12345"),
		ETag:    `"ab"`,
		Headers: http.Header{"X-A": []string{"bc"}},
	}
	// 5 data + 4 etag + 3 key + 2 value
	if got := entry.Size(); got != 14 {
		t.Errorf("Size() = %d, want 14", got)
	}
}

func TestCacheEntry_JSONOmitsMissingValidators(t *testing.T) {
	data, err := json.Marshal(&CacheEntry{Data: []byte(`[]`), StatusCode: http.StatusOK})
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["etag"]; ok {
		t.Error("empty etag should be omitted")
	}
	if _, ok := fields["last_modified"]; ok {
		t.Error("zero last_modified should be omitted")
	}
}
