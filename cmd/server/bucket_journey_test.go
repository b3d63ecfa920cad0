package main

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestListBucketsJourney(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "viewer", "viewer-pass")

	s.store.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{
		{Name: "docs", CreationDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "media", CreationDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}, nil)
	s.admin.On("DataUsageInfo", mock.Anything).Return(madmin.DataUsageInfo{
		BucketSizes: map[string]uint64{"docs": 2048},
	}, nil)

	rec := s.do(http.MethodGet, "/api/buckets", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Buckets []struct {
			Name string `json:"name"`
			Size uint64 `json:"size"`
		} `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Buckets, 2)
	assert.Equal(t, "docs", resp.Buckets[0].Name)
	assert.Equal(t, uint64(2048), resp.Buckets[0].Size)
	assert.Equal(t, uint64(0), resp.Buckets[1].Size)
}

func TestListBucketsJourney_UsageUnavailable(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "viewer", "viewer-pass")

	s.store.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{{Name: "docs"}}, nil)
	s.admin.On("DataUsageInfo", mock.Anything).Return(madmin.DataUsageInfo{}, assert.AnError)

	rec := s.do(http.MethodGet, "/api/buckets", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBucketJourney(t *testing.T) {
	s := newTestServer(t)

	// Regular users cannot create buckets
	viewerToken := s.login(t, "viewer", "viewer-pass")
	rec := s.do(http.MethodPost, "/api/buckets", viewerToken, map[string]string{"name": "fresh"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := s.login(t, "admin", "admin-pass")
	s.store.On("MakeBucket", mock.Anything, "fresh", mock.Anything).Return(nil)

	rec = s.do(http.MethodPost, "/api/buckets", adminToken, map[string]string{"name": "fresh"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateBucketJourney_NameValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin-pass")

	rec := s.do(http.MethodPost, "/api/buckets", token, map[string]string{"name": "ab"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteBucketJourney_EmptiesFirst(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin-pass")

	s.store.On("ListObjects", mock.Anything, "stale", minio.ListObjectsOptions{Recursive: true}).
		Return([]minio.ObjectInfo{
			{Key: "a.txt", Size: 1},
			{Key: "b.txt", Size: 2},
		}, nil)
	s.store.On("RemoveObjects", mock.Anything, "stale", []string{"a.txt", "b.txt"}).
		Return(nil, nil)
	s.store.On("RemoveBucket", mock.Anything, "stale").Return(nil)

	rec := s.do(http.MethodDelete, "/api/buckets/stale", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RemovedObjects int `json:"removedObjects"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.RemovedObjects)
	s.store.AssertExpectations(t)
}

func TestBucketStatsJourney(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "viewer", "viewer-pass")

	s.store.On("ListObjects", mock.Anything, "docs", minio.ListObjectsOptions{Recursive: true}).
		Return([]minio.ObjectInfo{
			{Key: "folder/", Size: 0},
			{Key: "folder/a.txt", Size: 100},
			{Key: "b.txt", Size: 50},
		}, nil)

	rec := s.do(http.MethodGet, "/api/buckets/docs/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ObjectCount int   `json:"objectCount"`
		TotalSize   int64 `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ObjectCount)
	assert.Equal(t, int64(150), resp.TotalSize)
}

func TestBucketPolicyJourney(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin-pass")

	s.store.On("SetBucketPolicy", mock.Anything, "docs", mock.MatchedBy(func(policy string) bool {
		return policy != "" // public-read carries a statement
	})).Return(nil)

	rec := s.do(http.MethodPut, "/api/buckets/docs/policy", token, map[string]string{"access": "public-read"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPut, "/api/buckets/docs/policy", token, map[string]string{"access": "nonsense"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMeJourney(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin-pass")

	rec := s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var principal struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &principal))
	assert.Equal(t, "admin", principal.Username)
	assert.Equal(t, "ADMIN", principal.Role)
}

func TestLoginJourney_BadPassword(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
