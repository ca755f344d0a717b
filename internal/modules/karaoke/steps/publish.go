package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/karatrack-backend/internal/platform/gcp"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

// Publisher uploads a job's artifacts and remembers them so a failed job
// can take back what it already published.
type Publisher struct {
	log       *logger.Logger
	bucket    gcp.BucketService
	projectID string

	mu   sync.Mutex
	keys []string
}

func NewPublisher(log *logger.Logger, bucket gcp.BucketService, projectID string) *Publisher {
	return &Publisher{log: log.With("service", "Publisher", "project_id", projectID), bucket: bucket, projectID: projectID}
}

// Publish uploads localPath as processed/<project>/<name> and returns its
// public URL.
func (p *Publisher) Publish(ctx context.Context, name, localPath string) (string, error) {
	key := ArtifactKey(p.projectID, name)
	url, err := p.bucket.UploadLocalFile(ctx, key, localPath)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", name, err)
	}
	p.mu.Lock()
	p.keys = append(p.keys, key)
	p.mu.Unlock()
	return url, nil
}

// Stage uploads a working copy that is removed by Discard or Rollback. It
// returns the key.
func (p *Publisher) Stage(ctx context.Context, name, localPath string) (string, error) {
	key := ArtifactKey(p.projectID, "work/"+name)
	if _, err := p.bucket.UploadLocalFile(ctx, key, localPath); err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	p.mu.Lock()
	p.keys = append(p.keys, key)
	p.mu.Unlock()
	return key, nil
}

// Discard deletes one staged or published key.
func (p *Publisher) Discard(ctx context.Context, key string) {
	if err := p.bucket.DeleteFile(context.WithoutCancel(ctx), key); err != nil {
		p.log.Warn("discard artifact failed", "key", key, "error", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

func (p *Publisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// Rollback deletes everything uploaded through p. It runs detached from ctx
// cancellation because it is usually called on the failure path.
func (p *Publisher) Rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range p.Keys() {
		if err := p.bucket.DeleteFile(ctx, key); err != nil {
			p.log.Warn("rollback delete failed", "key", key, "error", err)
		}
	}
	p.mu.Lock()
	p.keys = nil
	p.mu.Unlock()
}
