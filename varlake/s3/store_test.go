package s3

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3api "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/varlake/varlake/varlake"
)

// -----------------------------------------------------------------------------
// Construction
// These use the mock client and don't require real S3/LocalStack/MinIO.
// -----------------------------------------------------------------------------

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, Config{Bucket: "test"})
	if err == nil {
		t.Error("expected error for nil client")
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(NewMockS3Client(), Config{})
	if err == nil {
		t.Error("expected error for empty bucket")
	}
}

func TestNew_PrefixNormalization(t *testing.T) {
	tests := []struct {
		prefix   string
		expected string
	}{
		{"", ""},
		{"datasets", "datasets/"},
		{"datasets/", "datasets/"},
		{"datasets/d1", "datasets/d1/"},
	}

	for _, tt := range tests {
		store, err := New(NewMockS3Client(), Config{Bucket: "test", Prefix: tt.prefix})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if store.prefix != tt.expected {
			t.Errorf("prefix %q: expected %q, got %q", tt.prefix, tt.expected, store.prefix)
		}
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		location string
		want     Config
		wantErr  bool
	}{
		{"s3://bucket", Config{Bucket: "bucket"}, false},
		{"s3://bucket/prefix", Config{Bucket: "bucket", Prefix: "prefix"}, false},
		{"s3://bucket/a/b/c", Config{Bucket: "bucket", Prefix: "a/b/c"}, false},
		{"s3://", Config{}, true},
		{"http://bucket/x", Config{}, true},
		{"", Config{}, true},
	}

	for _, tt := range tests {
		got, err := ParseLocation(tt.location)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.location)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.location, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %+v, want %+v", tt.location, got, tt.want)
		}
	}
}

// -----------------------------------------------------------------------------
// Put
// -----------------------------------------------------------------------------

func TestStore_Put_Success(t *testing.T) {
	ctx := context.Background()
	mock := NewMockS3Client()
	store, _ := New(mock, Config{Bucket: "test", Prefix: "ds"})

	if err := store.Put(ctx, "manifest.json", []byte(`{}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mock.mu.RLock()
	putCalls := mock.PutObjectCalls
	stored := mock.objects["ds/manifest.json"]
	mock.mu.RUnlock()

	if putCalls != 1 {
		t.Errorf("expected 1 PutObject call, got %d", putCalls)
	}
	if !bytes.Equal(stored, []byte(`{}`)) {
		t.Errorf("stored %q under prefixed key", stored)
	}
}

func TestStore_Put_ErrExists(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	if err := store.Put(ctx, "fragments/a.parquet", []byte("one")); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	err := store.Put(ctx, "fragments/a.parquet", []byte("two"))
	if !errors.Is(err, varlake.ErrExists) {
		t.Errorf("expected ErrExists, got: %v", err)
	}
}

func TestStore_Put_ErrInvalidPath(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	for _, key := range []string{"", "..", "../foo", "foo/../.."} {
		err := store.Put(ctx, key, []byte("x"))
		if !errors.Is(err, varlake.ErrInvalidPath) {
			t.Errorf("key %q: expected ErrInvalidPath, got: %v", key, err)
		}
	}
}

// -----------------------------------------------------------------------------
// Get / Exists / Delete
// -----------------------------------------------------------------------------

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	want := []byte("fragment bytes")
	if err := store.Put(ctx, "fragments/a.parquet", want); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "fragments/a.parquet")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}

	_, err = store.Get(ctx, "missing.json")
	if !errors.Is(err, varlake.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestStore_Exists(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	ok, err := store.Exists(ctx, "manifest.json")
	if err != nil || ok {
		t.Errorf("exists before put = %v, %v", ok, err)
	}
	if err := store.Put(ctx, "manifest.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	ok, err = store.Exists(ctx, "manifest.json")
	if err != nil || !ok {
		t.Errorf("exists after put = %v, %v", ok, err)
	}
}

func TestStore_Delete_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	if err := store.Put(ctx, "manifest.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "manifest.json"); err != nil {
		t.Errorf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, "manifest.json"); err != nil {
		t.Errorf("repeat delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "manifest.json"); !errors.Is(err, varlake.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got: %v", err)
	}
}

// -----------------------------------------------------------------------------
// List
// -----------------------------------------------------------------------------

func TestStore_List_SortedAndStripped(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test", Prefix: "datasets/d1"})

	for _, key := range []string{"fragments/b.parquet", "fragments/a.parquet", "manifest.json"} {
		if err := store.Put(ctx, key, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.List(ctx, "fragments")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"fragments/a.parquet", "fragments/b.parquet"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("list = %v, want %v", got, want)
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("unprefixed list = %v, want 3 keys", all)
	}
}

func TestStore_List_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	mock := NewMockS3Client()
	d1, _ := New(mock, Config{Bucket: "test", Prefix: "datasets/d1"})
	d2, _ := New(mock, Config{Bucket: "test", Prefix: "datasets/d2"})

	if err := d1.Put(ctx, "manifest.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	keys, err := d2.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("d2 sees d1 objects: %v", keys)
	}
}

// -----------------------------------------------------------------------------
// CompareAndSwap
// -----------------------------------------------------------------------------

func TestStore_CompareAndSwap_Create(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	if err := store.CompareAndSwap(ctx, "manifest.json", "", "v1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	got, err := store.Get(ctx, "manifest.json")
	if err != nil || string(got) != "v1" {
		t.Fatalf("after create: %q, %v", got, err)
	}

	// Creating over an existing object loses.
	err = store.CompareAndSwap(ctx, "manifest.json", "", "v1b")
	if !errors.Is(err, varlake.ErrCommitConflict) {
		t.Errorf("repeat create: expected ErrCommitConflict, got: %v", err)
	}
}

func TestStore_CompareAndSwap_Replace(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	if err := store.CompareAndSwap(ctx, "manifest.json", "", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := store.CompareAndSwap(ctx, "manifest.json", "v1", "v2"); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	got, _ := store.Get(ctx, "manifest.json")
	if string(got) != "v2" {
		t.Errorf("after replace: %q", got)
	}
}

func TestStore_CompareAndSwap_StaleWitness(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	if err := store.CompareAndSwap(ctx, "manifest.json", "", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := store.CompareAndSwap(ctx, "manifest.json", "v1", "v2"); err != nil {
		t.Fatal(err)
	}

	err := store.CompareAndSwap(ctx, "manifest.json", "v1", "v3")
	if !errors.Is(err, varlake.ErrCommitConflict) {
		t.Errorf("stale witness: expected ErrCommitConflict, got: %v", err)
	}
	got, _ := store.Get(ctx, "manifest.json")
	if string(got) != "v2" {
		t.Errorf("content after failed swap: %q, want %q", got, "v2")
	}
}

func TestStore_CompareAndSwap_MissingObject(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	err := store.CompareAndSwap(ctx, "absent.json", "v1", "v2")
	if !errors.Is(err, varlake.ErrCommitConflict) {
		t.Errorf("expected ErrCommitConflict, got: %v", err)
	}
}

// staleETagClient serves reads with a wrong ETag, standing in for a
// writer that slips between the read and the conditional replace.
type staleETagClient struct {
	*MockS3Client
}

func (c *staleETagClient) GetObject(ctx context.Context, params *s3api.GetObjectInput, optFns ...func(*s3api.Options)) (*s3api.GetObjectOutput, error) {
	out, err := c.MockS3Client.GetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	out.ETag = aws.String(`"stale"`)
	return out, nil
}

func TestStore_CompareAndSwap_LostRace(t *testing.T) {
	ctx := context.Background()
	mock := NewMockS3Client()
	store, _ := New(&staleETagClient{mock}, Config{Bucket: "test"})

	if err := store.CompareAndSwap(ctx, "manifest.json", "", "v1"); err != nil {
		t.Fatal(err)
	}

	// The witness matches, but the If-Match condition fails.
	err := store.CompareAndSwap(ctx, "manifest.json", "v1", "v2")
	if !errors.Is(err, varlake.ErrCommitConflict) {
		t.Errorf("expected ErrCommitConflict, got: %v", err)
	}
	got, _ := store.Get(ctx, "manifest.json")
	if string(got) != "v1" {
		t.Errorf("content after lost race: %q, want %q", got, "v1")
	}
}

// -----------------------------------------------------------------------------
// Store interface compliance
// -----------------------------------------------------------------------------

func TestStore_ImplementsVarlakeInterfaces(t *testing.T) {
	store, err := New(NewMockS3Client(), Config{Bucket: "test"})
	if err != nil {
		t.Fatal(err)
	}
	var _ varlake.Store = store
	var _ varlake.ConditionalWriter = store
}
