package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/veridian-dash/veridian/lib/db"
	dbtesting "github.com/veridian-dash/veridian/lib/db/testing"
)

// fakeObjectAPI is an in-memory bucket implementing the calls the engine makes.
type fakeObjectAPI struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	version int

	// beforePut runs once before a PutObject is applied, outside the bucket lock
	beforePut func(in *s3.PutObjectInput)
}

type fakeObject struct {
	body     []byte
	metadata map[string]string
	etag     string
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: make(map[string]fakeObject)}
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	if hook := f.beforePut; hook != nil {
		f.beforePut = nil
		hook(in)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(in.Key)
	current, exists := f.objects[key]
	if aws.ToString(in.IfNoneMatch) == "*" && exists {
		return nil, preconditionFailed()
	}
	if in.IfMatch != nil {
		if !exists {
			return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
		}
		if current.etag != aws.ToString(in.IfMatch) {
			return nil, preconditionFailed()
		}
	}

	meta := make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		meta[k] = v
	}
	f.version++
	etag := fmt.Sprintf("\"%d\"", f.version)
	f.objects[key] = fakeObject{body: body, metadata: meta, etag: etag}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func preconditionFailed() error {
	return &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
}

func (f *fakeObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(bytes.Clone(obj.body))),
		ContentLength: aws.Int64(int64(len(obj.body))),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeObjectAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.body))),
		Metadata:      obj.metadata,
		ETag:          aws.String(obj.etag),
	}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeObjectAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k].body)))})
	}
	return out, nil
}

func newTestDB(testing.TB) db.KVDB {
	return NewWithAPI(newFakeObjectAPI(), Config{Bucket: "veridian-test", Prefix: "kv/"})
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "S3", newTestDB)
}

func TestKeysArePrefixed(t *testing.T) {
	api := newFakeObjectAPI()
	database := NewWithAPI(api, Config{Bucket: "veridian-test", Prefix: "kv/"})

	if err := database.Set("user:u1", []byte("x")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := api.objects["kv/user:u1"]; !ok {
		t.Errorf("Expected object kv/user:u1, got %v", api.objects)
	}

	info := database.GetInfo()
	if info.Entries != 1 || info.DbType != db.ImplS3 {
		t.Errorf("Unexpected info: %+v", info)
	}
}

func TestSaveLoadUnsupported(t *testing.T) {
	database := newTestDB(t)
	if database.SupportsFeature(db.FeatureSave) || database.SupportsFeature(db.FeatureLoad) {
		t.Fatalf("S3 engine must not advertise Save/Load")
	}
	if err := database.Save(io.Discard); err == nil {
		t.Errorf("Expected Save to fail")
	}
}

// A writer that replaces the expired object between our HeadObject and PutObject must win alone.
func TestExpiredTakeoverIsConditional(t *testing.T) {
	api := newFakeObjectAPI()
	cfg := Config{Bucket: "veridian-test", Prefix: "kv/"}
	first := NewWithAPI(api, cfg)
	second := NewWithAPI(api, cfg)

	key := "chat:c1:__lock__"
	if _, err := first.SetIfUnset(key, []byte("owner-0"), time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var competitorStored bool
	api.beforePut = func(*s3.PutObjectInput) {
		var err error
		competitorStored, err = second.SetIfUnset(key, []byte("owner-2"), time.Now().Add(time.Minute))
		if err != nil {
			t.Errorf("Unexpected error from competing writer: %v", err)
		}
	}

	stored, err := first.SetIfUnset(key, []byte("owner-1"), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !competitorStored {
		t.Fatalf("Expected the competing writer to take over the expired lock")
	}
	if stored {
		t.Errorf("Expected the slower writer to lose the takeover")
	}

	value, ok, err := first.Get(key)
	if err != nil || !ok || string(value) != "owner-2" {
		t.Errorf("Expected owner-2, got %q (ok=%v, err=%v)", value, ok, err)
	}
}

func TestConcurrentExpiredTakeover(t *testing.T) {
	api := newFakeObjectAPI()
	cfg := Config{Bucket: "veridian-test", Prefix: "kv/"}

	key := "chat:c1:__lock__"
	if _, err := NewWithAPI(api, cfg).SetIfUnset(key, []byte("owner-0"), time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			stored, err := NewWithAPI(api, cfg).SetIfUnset(key, []byte(fmt.Sprintf("owner-%d", worker+1)), time.Now().Add(time.Minute))
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if stored {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("Expected exactly one writer to take over the expired lock, got %d", n)
	}
}
