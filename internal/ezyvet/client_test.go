package ezyvet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/ezyvet-etl/internal/model"
	apperrors "github.com/jwalitptl/ezyvet-etl/pkg/errors"
)

type tokenUpdate struct {
	token      string
	createTime time.Time
}

type fakeCredentialStore struct {
	cred    model.Credential
	getErr  error
	updates []tokenUpdate
}

func (f *fakeCredentialStore) GetByLocation(ctx context.Context, locationID int64) (*model.Credential, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	c := f.cred
	return &c, nil
}

func (f *fakeCredentialStore) UpdateToken(ctx context.Context, locationID int64, token string, createTime time.Time) error {
	f.updates = append(f.updates, tokenUpdate{token: token, createTime: createTime})
	return nil
}

type fakeIssuer struct {
	token string
	err   error
	calls int
}

func (f *fakeIssuer) AccessToken(ctx context.Context, cred *model.Credential) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func freshStore(token string) *fakeCredentialStore {
	now := time.Date(2021, 1, 1, 5, 34, 22, 0, time.UTC)
	created := time.Date(2021, 1, 1, 5, 32, 22, 0, time.UTC)
	return &fakeCredentialStore{cred: model.Credential{
		LocationID:            3,
		PartnerID:             "partner",
		ClientID:              "client",
		ClientSecret:          "secret",
		AccessToken:           &token,
		AccessTokenCreateTime: &created,
		SystemTime:            now,
	}}
}

func newTestClient(baseURL string, store *fakeCredentialStore, issuer TokenIssuer) *Client {
	return NewClient(Config{
		BaseURL:       baseURL + "/",
		RetrySleep:    0,
		TokenCacheTTL: 10 * time.Minute,
		RateLimit:     10000,
		RateBurst:     100,
	}, store, issuer, nil, nil)
}

func pageJSON(total, pages, pageSize int, resource string, firstID int) string {
	items := make([]string, 0, pageSize)
	for i := 0; i < pageSize; i++ {
		items = append(items, fmt.Sprintf(`{%q: {"id": %d, "name": "record"}}`, resource, firstID+i))
	}
	return fmt.Sprintf(
		`{"meta": {"items_total": %d, "items_page_total": %d, "items_page_size": %d}, "items": [%s]}`,
		total, pages, pageSize, strings.Join(items, ","))
}

func TestGetFlattensPages(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))

		page := r.URL.Query().Get("page")
		if page == "" {
			fmt.Fprint(w, pageJSON(10, 2, 5, "testing", 1))
			return
		}
		assert.Equal(t, "2", page)
		fmt.Fprint(w, pageJSON(10, 2, 5, "testing", 6))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, freshStore("abc123"), &fakeIssuer{})
	records, err := client.Get(context.Background(), 3, "v2", "testing", nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 10)
	assert.Equal(t, int32(2), requests)

	var rec struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(records[0], &rec))
	assert.Equal(t, int64(1), rec.ID)

	// Item 0 of page 2 lands at output index 5.
	require.NoError(t, json.Unmarshal(records[5], &rec))
	assert.Equal(t, int64(6), rec.ID)

	require.NoError(t, json.Unmarshal(records[9], &rec))
	assert.Equal(t, int64(10), rec.ID)
}

func TestGetMergesHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc123", r.Header.Get("Authorization"))
		assert.Equal(t, "y", r.Header.Get("X-Custom"))
		fmt.Fprint(w, pageJSON(1, 1, 1, "testing", 1))
	}))
	defer srv.Close()

	store := freshStore("abc123")
	issuer := &fakeIssuer{}
	client := newTestClient(srv.URL, store, issuer)

	_, err := client.Get(context.Background(), 3, "v2", "testing", nil, map[string]string{"X-Custom": "y"})
	require.NoError(t, err)

	// Fresh token, so no refresh and no store write.
	assert.Zero(t, issuer.calls)
	assert.Empty(t, store.updates)
}

func TestGetMissingItemsTotalIsSoftNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta": {}, "items": []}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, freshStore("abc123"), &fakeIssuer{})
	records, err := client.Get(context.Background(), 3, "v2", "testing", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestGetEmptyFirstPageIsSoftNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta": {"items_total": 0, "items_page_total": 0, "items_page_size": 0}, "items": []}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, freshStore("abc123"), &fakeIssuer{})
	records, err := client.Get(context.Background(), 3, "v2", "testing", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestGetRetriesOnceThenFails(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "server exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, freshStore("abc123"), &fakeIssuer{})
	_, err := client.Get(context.Background(), 3, "v2", "testing", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "server exploded")
	assert.Equal(t, int32(2), requests)
}

func TestGetRetriesOnceThenSucceeds(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, pageJSON(1, 1, 1, "testing", 1))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, freshStore("abc123"), &fakeIssuer{})
	records, err := client.Get(context.Background(), 3, "v2", "testing", nil, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), requests)
}

func TestCredentialRefreshWhenStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer updated_cache_token", r.Header.Get("Authorization"))
		fmt.Fprint(w, pageJSON(1, 1, 1, "testing", 1))
	}))
	defer srv.Close()

	store := freshStore("abc123")
	// Push the server clock past the 10 minute cache TTL.
	store.cred.SystemTime = time.Date(2021, 1, 1, 5, 44, 22, 0, time.UTC)
	issuer := &fakeIssuer{token: "updated_cache_token"}

	client := newTestClient(srv.URL, store, issuer)
	_, err := client.Get(context.Background(), 3, "v2", "testing", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, issuer.calls)
	require.Len(t, store.updates, 1)
	assert.Equal(t, "updated_cache_token", store.updates[0].token)
	assert.Equal(t, store.cred.SystemTime, store.updates[0].createTime)
}

func TestCredentialRefreshWhenTokenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageJSON(1, 1, 1, "testing", 1))
	}))
	defer srv.Close()

	store := freshStore("abc123")
	store.cred.AccessToken = nil
	store.cred.AccessTokenCreateTime = nil
	issuer := &fakeIssuer{token: "brand_new"}

	client := newTestClient(srv.URL, store, issuer)
	_, err := client.Get(context.Background(), 3, "v2", "testing", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, issuer.calls)
	require.Len(t, store.updates, 1)
	assert.Equal(t, "brand_new", store.updates[0].token)
}

func TestGetMissingCredentials(t *testing.T) {
	store := &fakeCredentialStore{getErr: apperrors.MissingCredentials(99)}
	client := newTestClient("http://unused.invalid", store, &fakeIssuer{})

	_, err := client.Get(context.Background(), 99, "v2", "testing", nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrMissingCredentials, apperrors.CodeOf(err))
}

func TestGetByIDsChunks(t *testing.T) {
	var chunkSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var filter struct {
			In []int64 `json:"in"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("id")), &filter))
		chunkSizes = append(chunkSizes, len(filter.In))

		items := make([]string, 0, len(filter.In))
		for _, id := range filter.In {
			items = append(items, fmt.Sprintf(`{"animal": {"id": %d}}`, id))
		}
		fmt.Fprintf(w, `{"meta": {"items_total": %d, "items_page_total": 1, "items_page_size": %d}, "items": [%s]}`,
			len(filter.In), len(filter.In), strings.Join(items, ","))
	}))
	defer srv.Close()

	ids := make([]int64, 250)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	client := newTestClient(srv.URL, freshStore("abc123"), &fakeIssuer{})
	records, err := client.GetByIDs(context.Background(), 3, "v1", "animal", ids, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 100, 50}, chunkSizes)
	require.Len(t, records, 250)

	var rec struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(records[0], &rec))
	assert.Equal(t, int64(1), rec.ID)
	require.NoError(t, json.Unmarshal(records[100], &rec))
	assert.Equal(t, int64(101), rec.ID)
	require.NoError(t, json.Unmarshal(records[249], &rec))
	assert.Equal(t, int64(250), rec.ID)
}

func TestGetTranslationBuildsAndCachesMap(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, `{"meta": {"items_total": 2, "items_page_total": 1, "items_page_size": 2},
			"items": [{"appointmenttype": {"id": 1, "name": "red"}}, {"appointmenttype": {"id": "2", "name": "green"}}]}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, freshStore("abc123"), &fakeIssuer{})
	translation, err := client.GetTranslation(context.Background(), 3, "v1", "appointmenttype")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "red", 2: "green"}, translation)

	// Second call is served from cache.
	_, err = client.GetTranslation(context.Background(), 3, "v1", "appointmenttype")
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests)
}

func TestGetDateRangeMergesFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("active"))

		var filter struct {
			Gt  int64 `json:"gt"`
			Lte int64 `json:"lte"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("modified_at")), &filter))
		assert.Equal(t, int64(1609459200), filter.Gt)
		assert.Equal(t, int64(1609545599), filter.Lte)

		fmt.Fprint(w, pageJSON(1, 1, 1, "appointment", 1))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, freshStore("abc123"), &fakeIssuer{})
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	records, err := client.GetDateRange(context.Background(), 3, "v2", "appointment", "modified_at",
		Params{"active": true}, &start, &end, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGetDateRangeRejectsBadFilter(t *testing.T) {
	client := newTestClient("http://unused.invalid", freshStore("abc123"), &fakeIssuer{})
	_, err := client.GetDateRange(context.Background(), 3, "v2", "appointment", "modified_at", nil, nil, nil, 0)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidDateFilter, apperrors.CodeOf(err))
}
