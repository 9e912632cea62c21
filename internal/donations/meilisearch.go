package donations

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meilisearch/meilisearch-go"
)

const defaultMeilisearchHost = "http://localhost:7700"

type meilisearchTarget struct {
	client *meilisearch.Client
	index  *meilisearch.Index
	logger *slog.Logger
}

// NewMeilisearchTarget connects to Meilisearch and prepares the configured
// index. It returns nil without error when no index is configured.
func NewMeilisearchTarget(ctx context.Context, cfg MeilisearchConfig, logger *slog.Logger) (RecordSyncTarget, error) {
	host := strings.TrimSpace(cfg.Host)
	indexName := strings.TrimSpace(cfg.Index)
	if indexName == "" {
		return nil, nil
	}
	if host == "" {
		host = defaultMeilisearchHost
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: strings.TrimSpace(cfg.APIKey),
	})
	index := client.Index(indexName)

	t := &meilisearchTarget{client: client, index: index, logger: logger}
	if err := t.ensureIndex(ctx, indexName); err != nil {
		return nil, err
	}
	logger.Debug("Meilisearch index ready", "host", host, "index", indexName)
	return t, nil
}

func (t *meilisearchTarget) ensureIndex(ctx context.Context, indexName string) error {
	_, err := t.client.GetIndex(indexName)
	if err != nil {
		var meiliErr *meilisearch.Error
		if errors.As(err, &meiliErr) && meiliErr.MeilisearchApiError.Code == "index_not_found" {
			task, createErr := t.client.CreateIndex(&meilisearch.IndexConfig{Uid: indexName, PrimaryKey: "id"})
			if createErr != nil {
				return createErr
			}
			if err := t.waitForTask(ctx, task); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	searchable := []string{"name", "taxId"}
	if err := t.ensureSearchableAttributes(ctx, searchable); err != nil {
		return err
	}

	filterable := []string{"bloodType"}
	return t.ensureFilterableAttributes(ctx, filterable)
}

func (t *meilisearchTarget) ensureSearchableAttributes(ctx context.Context, desired []string) error {
	currentPtr, err := t.index.GetSearchableAttributes()
	if err != nil {
		return err
	}
	if stringSlicesEqual(derefSlice(currentPtr), desired) {
		return nil
	}
	task, err := t.index.UpdateSearchableAttributes(&desired)
	if err != nil {
		return err
	}
	return t.waitForTask(ctx, task)
}

func (t *meilisearchTarget) ensureFilterableAttributes(ctx context.Context, desired []string) error {
	currentPtr, err := t.index.GetFilterableAttributes()
	if err != nil {
		return err
	}
	if stringSlicesEqual(derefSlice(currentPtr), desired) {
		return nil
	}
	task, err := t.index.UpdateFilterableAttributes(&desired)
	if err != nil {
		return err
	}
	return t.waitForTask(ctx, task)
}

func (t *meilisearchTarget) waitForTask(ctx context.Context, task *meilisearch.TaskInfo) error {
	if task == nil || task.TaskUID == 0 {
		return nil
	}
	_, err := t.client.WaitForTask(task.TaskUID, meilisearch.WaitParams{Context: ctx})
	return err
}

// ApplyRecordChanges satisfies the RecordSyncTarget interface.
func (t *meilisearchTarget) ApplyRecordChanges(ctx context.Context, changes RecordChangeSet) error {
	if changes.IsEmpty() {
		return nil
	}

	if len(changes.Upserts) > 0 {
		task, err := t.index.AddDocuments(changes.Upserts, "id")
		if err != nil {
			return err
		}
		if err := t.waitForTask(ctx, task); err != nil {
			return err
		}
	}

	if len(changes.Deletions) > 0 {
		task, err := t.index.DeleteDocuments(recordDocumentIDs(changes.Deletions))
		if err != nil {
			return err
		}
		if err := t.waitForTask(ctx, task); err != nil {
			return err
		}
	}

	t.logger.Debug("Synced records to Meilisearch", "upserts", len(changes.Upserts), "deletions", len(changes.Deletions))
	return nil
}

func recordDocumentIDs(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.Itoa(id))
	}
	return out
}

func derefSlice(ptr *[]string) []string {
	if ptr == nil {
		return nil
	}
	return *ptr
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
