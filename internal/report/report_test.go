package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cascade/internal/publish"
)

func sampleSummary() *publish.Summary {
	return &publish.Summary{
		Outcomes: []publish.Outcome{
			{Name: "a", Version: "0.2.0", Status: publish.StatusPublished, Batch: 1, Duration: 1500 * time.Millisecond, Visible: true},
			{Name: "b", Version: "1.0.0", Status: publish.StatusFailed, Batch: 2, Err: errors.New("rejected")},
			{Name: "c", Version: "0.1.1", Status: publish.StatusSkipped, Batch: 2, Detail: "already published"},
		},
		Batches:   [][]string{{"a"}, {"b", "c"}},
		Published: 1,
		Skipped:   1,
		Failed:    1,
		Duration:  3 * time.Second,
	}
}

func TestNew(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(sampleSummary(), started)

	assert.Len(t, r.RunID, 36)
	assert.Equal(t, started.Add(3*time.Second), r.FinishedAt)
	assert.Equal(t, 1, r.Failed)
	require.Len(t, r.Packages, 3)
	assert.Equal(t, "1.5s", r.Packages[0].Duration)
	assert.Equal(t, "rejected", r.Packages[1].Error)
	assert.Equal(t, "already published", r.Packages[2].Detail)
	assert.Empty(t, r.Cancelled)

	other := New(sampleSummary(), started)
	assert.NotEqual(t, r.RunID, other.RunID)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("out/report.YML"))
	assert.Equal(t, FormatYAML, FormatFor("report.yaml"))
	assert.Equal(t, FormatJSON, FormatFor("report.json"))
	assert.Equal(t, FormatJSON, FormatFor("report"))
}

func TestFileSink(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(sampleSummary(), time.Now())

	require.NoError(t, NewFileSink(fs, "/out/run.json").Write(context.Background(), r))
	data, err := afero.ReadFile(fs, "/out/run.json")
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r.RunID, decoded.RunID)

	require.NoError(t, NewFileSink(fs, "/out/run.yaml").Write(context.Background(), r))
	data, err = afero.ReadFile(fs, "/out/run.yaml")
	require.NoError(t, err)
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, r.Packages, fromYAML.Packages)
}

type fakeStore struct {
	exists  bool
	made    []string
	objects map[string][]byte
	putErr  error
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	f.exists = true
	return nil
}

func (f *fakeStore) PutObject(_ context.Context, bucket, object string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+object] = data
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: int64(len(data))}, nil
}

func TestObjectSink(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{}}
	sink := &ObjectSink{client: store, cfg: ObjectConfig{Bucket: "releases", Prefix: "cascade/runs"}}
	r := New(sampleSummary(), time.Now())

	require.NoError(t, sink.Write(context.Background(), r))
	assert.Equal(t, []string{"releases"}, store.made)
	assert.Contains(t, store.objects, "releases/cascade/runs/"+r.RunID+".json")

	store.putErr = errors.New("access denied")
	require.Error(t, sink.Write(context.Background(), r))
}

func TestObjectConfigValidate(t *testing.T) {
	assert.False(t, ObjectConfig{}.Enabled())
	assert.Error(t, ObjectConfig{Endpoint: "localhost:9000"}.Validate())
	assert.Error(t, ObjectConfig{Endpoint: "localhost:9000", Bucket: "b"}.Validate())
	assert.NoError(t, ObjectConfig{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "k", SecretKey: "s"}.Validate())

	_, err := NewObjectSink(ObjectConfig{})
	require.Error(t, err)
}

type failingSink struct{}

func (failingSink) Write(context.Context, *Report) error { return errors.New("disk full") }

func TestMulti(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(sampleSummary(), time.Now())

	require.NoError(t, Multi{NewFileSink(fs, "a.json"), NewFileSink(fs, "b.yaml")}.Write(context.Background(), r))
	require.Error(t, Multi{failingSink{}, NewFileSink(fs, "c.json")}.Write(context.Background(), r))
	exists, _ := afero.Exists(fs, "c.json")
	assert.False(t, exists)
}
