package gcp

import (
	"errors"
	"testing"
)

func setStorageEnv(t *testing.T, mode, emulator string) {
	t.Helper()
	t.Setenv("OBJECT_STORAGE_MODE", mode)
	t.Setenv("STORAGE_EMULATOR_HOST", emulator)
	t.Setenv("OUTPUT_GCS_BUCKET_NAME", "kt-output")
	t.Setenv("OUTPUT_CDN_DOMAIN", "")
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "")
}

func TestResolveObjectStorageConfigFromEnv(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		emulator string
		want     ObjectStorageMode
		implied  bool
	}{
		{"default", "", "", ObjectStorageModeGCS, false},
		{"explicit gcs ignores emulator", "gcs", "http://fake-gcs:4443", ObjectStorageModeGCS, false},
		{"explicit emulator", "GCS_EMULATOR", "http://fake-gcs:4443", ObjectStorageModeGCSEmulator, false},
		{"implied emulator", "", "http://fake-gcs:4443/", ObjectStorageModeGCSEmulator, true},
	}
	for _, tc := range cases {
		setStorageEnv(t, tc.mode, tc.emulator)
		cfg, err := ResolveObjectStorageConfigFromEnv()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if cfg.Mode != tc.want || cfg.Implied != tc.implied {
			t.Fatalf("%s: mode want=%q got=%q implied want=%v got=%v", tc.name, tc.want, cfg.Mode, tc.implied, cfg.Implied)
		}
	}
}

func TestResolveObjectStorageConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		mode, emulator, bucket string
		code                   ObjectStorageConfigErrorCode
	}{
		{"local", "", "kt-output", ObjectStorageConfigErrorInvalidMode},
		{"gcs_emulator", "", "kt-output", ObjectStorageConfigErrorMissingEmulatorHost},
		{"gcs_emulator", "fake-gcs", "kt-output", ObjectStorageConfigErrorInvalidURL},
		{"gcs", "", "", ObjectStorageConfigErrorMissingBucket},
	}
	for _, tc := range cases {
		setStorageEnv(t, tc.mode, tc.emulator)
		t.Setenv("OUTPUT_GCS_BUCKET_NAME", tc.bucket)
		_, err := ResolveObjectStorageConfigFromEnv()
		var ce *ObjectStorageConfigError
		if !errors.As(err, &ce) || ce.Code != tc.code {
			t.Fatalf("mode=%q emulator=%q: want code=%q got=%v", tc.mode, tc.emulator, tc.code, err)
		}
	}
}

func TestPublicURL(t *testing.T) {
	key := "/processed/j1/video.mp4"
	cases := []struct {
		cfg  ObjectStorageConfig
		want string
	}{
		{ObjectStorageConfig{Mode: ObjectStorageModeGCS, Bucket: "b"}, "https://storage.googleapis.com/b/processed/j1/video.mp4"},
		{ObjectStorageConfig{Mode: ObjectStorageModeGCS, Bucket: "b", CDNDomain: "cdn.example.com"}, "https://cdn.example.com/processed/j1/video.mp4"},
		{ObjectStorageConfig{Mode: ObjectStorageModeGCS, Bucket: "b", PublicBaseURL: "http://localhost:9000"}, "http://localhost:9000/b/processed/j1/video.mp4"},
		{ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, Bucket: "b", EmulatorHost: "http://fake-gcs:4443"}, "http://fake-gcs:4443/storage/v1/b/b/o/processed%2Fj1%2Fvideo.mp4?alt=media"},
	}
	for _, tc := range cases {
		if got := publicURL(tc.cfg, key); got != tc.want {
			t.Fatalf("publicURL(%+v): want=%q got=%q", tc.cfg, tc.want, got)
		}
	}
}
