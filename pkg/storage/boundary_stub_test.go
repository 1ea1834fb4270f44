package storage

import (
	"context"
	"sync"
)

// stubBoundary implements Boundary with per-operation hooks. Tests set only
// the hooks they care about; unset hooks return empty outputs. Every call is
// recorded by operation name so tests can assert the traffic the client
// produced.
type stubBoundary struct {
	mu    sync.Mutex
	calls []string

	getRetryTime   func(in *GetRetryTimeInput) (*GetRetryTimeOutput, error)
	setRetryTime   func(in *SetRetryTimeInput) (*SetRetryTimeOutput, error)
	getData        func(ctx context.Context, in *GetDataInput) (*GetDataOutput, error)
	writeToFile    func(ctx context.Context, in *WriteToFileInput) (*WriteToFileOutput, error)
	putFile        func(ctx context.Context, in *PutFileInput) (*PutObjectOutput, error)
	putData        func(ctx context.Context, in *PutDataInput) (*PutObjectOutput, error)
	getDownloadURL func(in *GetDownloadURLInput) (*GetDownloadURLOutput, error)
	deleteObject   func(in *DeleteInput) (*DeleteOutput, error)
	getMetadata    func(in *GetMetadataInput) (*GetMetadataOutput, error)
	updateMetadata func(in *UpdateMetadataInput) (*UpdateMetadataOutput, error)
	listObjects    func(in *ListObjectsInput) (*ListObjectsOutput, error)
	bucketUsage    func(in *BucketUsageInput) (*BucketUsageOutput, error)
}

var _ Boundary = (*stubBoundary)(nil)

func (s *stubBoundary) record(op string) {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.mu.Unlock()
}

func (s *stubBoundary) callCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (s *stubBoundary) GetRetryTime(ctx context.Context, in *GetRetryTimeInput) (*GetRetryTimeOutput, error) {
	s.record("getRetryTime")
	if s.getRetryTime != nil {
		return s.getRetryTime(in)
	}
	return &GetRetryTimeOutput{}, nil
}

func (s *stubBoundary) SetRetryTime(ctx context.Context, in *SetRetryTimeInput) (*SetRetryTimeOutput, error) {
	s.record("setRetryTime")
	if s.setRetryTime != nil {
		return s.setRetryTime(in)
	}
	return &SetRetryTimeOutput{}, nil
}

func (s *stubBoundary) ResolveBucket(ctx context.Context, in *ResolveBucketInput) (*ResolveBucketOutput, error) {
	s.record("resolveBucket")
	return &ResolveBucketOutput{Bucket: in.Scope.Bucket}, nil
}

func (s *stubBoundary) ResolvePath(ctx context.Context, in *ResolvePathInput) (*ResolvePathOutput, error) {
	s.record("resolvePath")
	return &ResolvePathOutput{Path: in.Path}, nil
}

func (s *stubBoundary) ResolveName(ctx context.Context, in *ResolveNameInput) (*ResolveNameOutput, error) {
	s.record("resolveName")
	return &ResolveNameOutput{Name: in.Path}, nil
}

func (s *stubBoundary) GetData(ctx context.Context, in *GetDataInput) (*GetDataOutput, error) {
	s.record("getData")
	if s.getData != nil {
		return s.getData(ctx, in)
	}
	return &GetDataOutput{}, nil
}

func (s *stubBoundary) WriteToFile(ctx context.Context, in *WriteToFileInput) (*WriteToFileOutput, error) {
	s.record("writeToFile")
	if s.writeToFile != nil {
		return s.writeToFile(ctx, in)
	}
	return &WriteToFileOutput{}, nil
}

func (s *stubBoundary) PutFile(ctx context.Context, in *PutFileInput) (*PutObjectOutput, error) {
	s.record("putFile")
	if s.putFile != nil {
		return s.putFile(ctx, in)
	}
	return &PutObjectOutput{}, nil
}

func (s *stubBoundary) PutData(ctx context.Context, in *PutDataInput) (*PutObjectOutput, error) {
	s.record("putData")
	if s.putData != nil {
		return s.putData(ctx, in)
	}
	return &PutObjectOutput{}, nil
}

func (s *stubBoundary) GetDownloadURL(ctx context.Context, in *GetDownloadURLInput) (*GetDownloadURLOutput, error) {
	s.record("getDownloadUrl")
	if s.getDownloadURL != nil {
		return s.getDownloadURL(in)
	}
	return &GetDownloadURLOutput{}, nil
}

func (s *stubBoundary) Delete(ctx context.Context, in *DeleteInput) (*DeleteOutput, error) {
	s.record("delete")
	if s.deleteObject != nil {
		return s.deleteObject(in)
	}
	return &DeleteOutput{}, nil
}

func (s *stubBoundary) GetMetadata(ctx context.Context, in *GetMetadataInput) (*GetMetadataOutput, error) {
	s.record("getMetadata")
	if s.getMetadata != nil {
		return s.getMetadata(in)
	}
	return &GetMetadataOutput{Metadata: map[string]any{}}, nil
}

func (s *stubBoundary) UpdateMetadata(ctx context.Context, in *UpdateMetadataInput) (*UpdateMetadataOutput, error) {
	s.record("updateMetadata")
	if s.updateMetadata != nil {
		return s.updateMetadata(in)
	}
	return &UpdateMetadataOutput{Metadata: map[string]any{}}, nil
}

func (s *stubBoundary) ListObjects(ctx context.Context, in *ListObjectsInput) (*ListObjectsOutput, error) {
	s.record("listObjects")
	if s.listObjects != nil {
		return s.listObjects(in)
	}
	return &ListObjectsOutput{}, nil
}

func (s *stubBoundary) BucketUsage(ctx context.Context, in *BucketUsageInput) (*BucketUsageOutput, error) {
	s.record("bucketUsage")
	if s.bucketUsage != nil {
		return s.bucketUsage(in)
	}
	return &BucketUsageOutput{}, nil
}

func (s *stubBoundary) Close() error {
	s.record("close")
	return nil
}
