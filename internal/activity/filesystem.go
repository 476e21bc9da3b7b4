package activity

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"api/internal/models"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const schemaVersion = "1"

var schemaVersionKey = []byte("schema_version")

// keywordFields are indexed untokenized so filters match exact values, an
// IP address or a UUID must never be split into terms.
var keywordFields = []string{
	"action",
	"object_type",
	"user_id",
	"email",
	"client_ip",
	"session_id",
	"method",
	"outcome",
}

// FilesystemActivityEntry is the document shape indexed in bleve.
type FilesystemActivityEntry struct {
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	ObjectType string    `json:"object_type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	ClientIP   string    `json:"client_ip"`
	SessionID  string    `json:"session_id"`
	Method     string    `json:"method"`
	Outcome    string    `json:"outcome"`
	Object     string    `json:"object"`
}

// FilesystemClient implements IActivityLogger on a local bleve index, the
// zero-dependency option for single-node deployments.
type FilesystemClient struct {
	index bleve.Index
}

// NewFilesystemClient opens the index at the configured directory, creating
// it on first run. An index written under an older schema version is
// migrated in place before use.
func NewFilesystemClient(config models.ActivityConfiguration) IActivityLogger {
	dir := config.Filesystem.Directory

	index, err := bleve.Open(dir)
	if err != nil {
		index, err = bleve.New(dir, buildIndexMapping())
		if err != nil {
			zap.L().Fatal("Failed to create filesystem activity index", zap.Error(err))
		}
		if err = index.SetInternal(schemaVersionKey, []byte(schemaVersion)); err != nil {
			zap.L().Fatal("Failed to set schema version", zap.Error(err))
		}
		return &FilesystemClient{index: index}
	}

	storedVersion, err := index.GetInternal(schemaVersionKey)
	if err != nil {
		zap.L().Fatal("Failed to get schema version", zap.Error(err))
	}

	if string(storedVersion) != schemaVersion {
		zap.L().Info("Schema version mismatch, migrating index",
			zap.String("old_version", string(storedVersion)),
			zap.String("new_version", schemaVersion),
		)
		if err = index.Close(); err != nil {
			zap.L().Fatal("Failed to close old index before migration", zap.Error(err))
		}
		if err = migrateIndex(dir); err != nil {
			zap.L().Fatal("Failed to migrate index", zap.Error(err))
		}
		index, err = bleve.Open(dir)
		if err != nil {
			zap.L().Fatal("Failed to open migrated index", zap.Error(err))
		}
		if err = index.SetInternal(schemaVersionKey, []byte(schemaVersion)); err != nil {
			zap.L().Fatal("Failed to set schema version after migration", zap.Error(err))
		}
	}

	return &FilesystemClient{index: index}
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	keywordMapping := bleve.NewKeywordFieldMapping()

	// The raw object payload is stored for display but never queried.
	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Index = false
	storedOnly.Store = true

	docMapping := bleve.NewDocumentMapping()
	for _, field := range keywordFields {
		docMapping.AddFieldMappingsAt(field, keywordMapping)
	}
	docMapping.AddFieldMappingsAt("timestamp", bleve.NewDateTimeFieldMapping())
	docMapping.AddFieldMappingsAt("message", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("object", storedOnly)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

func cleanupOnError(indexes []bleve.Index, dirs []string) {
	for _, idx := range indexes {
		_ = idx.Close()
	}
	for _, d := range dirs {
		_ = os.RemoveAll(d)
	}
}

func copyDocuments(oldIndex, newIndex bleve.Index) (int, error) {
	const pageSize = 100
	from := 0
	totalMigrated := 0

	for {
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = pageSize
		req.From = from
		req.Fields = []string{"*"}

		result, err := oldIndex.Search(req)
		if err != nil {
			return 0, fmt.Errorf("failed to search old index: %w", err)
		}

		if len(result.Hits) == 0 {
			break
		}

		batch := newIndex.NewBatch()
		for _, hit := range result.Hits {
			entry := reconstructEntry(hit.Fields)
			if batchErr := batch.Index(hit.ID, entry); batchErr != nil {
				return 0, fmt.Errorf("failed to index document %s: %w", hit.ID, batchErr)
			}
		}

		if err = newIndex.Batch(batch); err != nil {
			return 0, fmt.Errorf("failed to batch index: %w", err)
		}

		totalMigrated += len(result.Hits)
		from += pageSize

		if len(result.Hits) < pageSize {
			break
		}
	}

	return totalMigrated, nil
}

// migrateIndex rebuilds the index under the current mapping in a sibling
// directory, then swaps it in. The old index is only removed after the swap
// succeeds.
func migrateIndex(dir string) error {
	oldIndex, err := bleve.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open old index: %w", err)
	}

	newDir := dir + ".new"
	newIndex, err := bleve.New(newDir, buildIndexMapping())
	if err != nil {
		_ = oldIndex.Close()
		return fmt.Errorf("failed to create new index: %w", err)
	}

	totalMigrated, err := copyDocuments(oldIndex, newIndex)
	if err != nil {
		cleanupOnError([]bleve.Index{oldIndex, newIndex}, []string{newDir})
		return err
	}

	zap.L().Info("Migration: copied documents", zap.Int("count", totalMigrated))

	if err = oldIndex.Close(); err != nil {
		_ = newIndex.Close()
		return fmt.Errorf("failed to close old index: %w", err)
	}
	if err = newIndex.Close(); err != nil {
		return fmt.Errorf("failed to close new index: %w", err)
	}

	oldDir := dir + ".old"
	if err = os.Rename(dir, oldDir); err != nil {
		return fmt.Errorf("failed to rename old index dir: %w", err)
	}
	if err = os.Rename(newDir, dir); err != nil {
		return fmt.Errorf("failed to rename new index dir: %w", err)
	}
	if err = os.RemoveAll(oldDir); err != nil {
		zap.L().Warn("Failed to remove old index dir", zap.Error(err))
	}

	return nil
}

func reconstructEntry(fields map[string]any) FilesystemActivityEntry {
	var entry FilesystemActivityEntry
	b, err := json.Marshal(fields)
	if err != nil {
		return entry
	}
	if unmarshalErr := json.Unmarshal(b, &entry); unmarshalErr != nil {
		return entry
	}
	return entry
}

func parseTimestamp(fields map[string]any) time.Time {
	if s, ok := fields["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (c *FilesystemClient) Close() error {
	return c.index.Close()
}

func (c *FilesystemClient) Send(activity models.Activity) error {
	ts, err := strconv.ParseInt(activity.Filter.Timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp: %w", err)
	}

	fields := activity.Filter.Fields

	var objectJSON string
	if activity.Object != nil && isAuthorizedObject(fields["object_type"]) {
		var b []byte
		b, err = json.Marshal(activity.Object)
		if err != nil {
			return fmt.Errorf("failed to marshal object: %w", err)
		}
		objectJSON = string(b)
	}

	entry := FilesystemActivityEntry{
		Message:    activity.Message,
		Timestamp:  time.Unix(0, ts),
		Action:     fields["action"],
		ObjectType: fields["object_type"],
		UserID:     fields["user_id"],
		Email:      fields["email"],
		ClientIP:   fields["client_ip"],
		SessionID:  fields["session_id"],
		Method:     fields["method"],
		Outcome:    fields["outcome"],
		Object:     objectJSON,
	}

	if err = c.index.Index(uuid.New().String(), entry); err != nil {
		return fmt.Errorf("failed to index activity: %w", err)
	}

	return nil
}

func (c *FilesystemClient) Search(searchCriteria map[string][]string) ([]map[string]any, error) {
	criteriaQuery := buildBleveQuery(searchCriteria)

	now := time.Now()
	dateQuery := bleve.NewDateRangeQuery(now.AddDate(0, 0, -30), now)
	dateQuery.SetField("timestamp")

	searchRequest := bleve.NewSearchRequest(bleve.NewConjunctionQuery(criteriaQuery, dateQuery))
	searchRequest.Size = 100
	searchRequest.SortBy([]string{"-timestamp"})
	searchRequest.Fields = []string{"*"}

	result, err := c.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search activity: %w", err)
	}

	var activities []map[string]any
	for _, hit := range result.Hits {
		entry := make(map[string]any, len(keywordFields)+3)
		for _, field := range append(keywordFields, "message") {
			value, _ := hit.Fields[field].(string)
			entry[field] = value
		}

		if t := parseTimestamp(hit.Fields); !t.IsZero() {
			entry["timestamp"] = strconv.FormatInt(t.UnixNano(), 10)
		}

		if objectStr, _ := hit.Fields["object"].(string); objectStr != "" {
			var objectMap map[string]any
			if json.Unmarshal([]byte(objectStr), &objectMap) == nil {
				entry["object"] = objectMap
			}
		}

		activities = append(activities, entry)
	}

	return activities, nil
}

// CountByDay buckets matching entries into calendar days via a date-range
// facet. Days with no hits are omitted from the result.
func (c *FilesystemClient) CountByDay(searchCriteria map[string][]string, days int) ([]models.TimeSeriesPoint, error) {
	criteriaQuery := buildBleveQuery(searchCriteria)

	now := time.Now()
	dateQuery := bleve.NewDateRangeQuery(now.AddDate(0, 0, -days), now)
	dateQuery.SetField("timestamp")

	searchRequest := bleve.NewSearchRequest(bleve.NewConjunctionQuery(criteriaQuery, dateQuery))
	searchRequest.Size = 0

	facet := bleve.NewFacetRequest("timestamp", days+1)
	for i := days; i >= 0; i-- {
		dayStart := now.AddDate(0, 0, -i).Truncate(24 * time.Hour)
		facet.AddDateTimeRange(dayStart.Format("2006-01-02"), dayStart, dayStart.Add(24*time.Hour))
	}
	searchRequest.AddFacet("daily_counts", facet)

	result, err := c.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity by day: %w", err)
	}

	dailyFacet, ok := result.Facets["daily_counts"]
	if !ok {
		return []models.TimeSeriesPoint{}, nil
	}

	points := make([]models.TimeSeriesPoint, 0, len(dailyFacet.DateRanges))
	for _, bucket := range dailyFacet.DateRanges {
		if bucket.Count > 0 {
			points = append(points, models.TimeSeriesPoint{
				Date:  bucket.Name,
				Count: int64(bucket.Count),
			})
		}
	}

	return points, nil
}

func buildBleveQuery(searchCriteria map[string][]string) query.Query {
	var queries []query.Query

	for key, values := range searchCriteria {
		if len(values) == 1 {
			termQuery := bleve.NewTermQuery(values[0])
			termQuery.SetField(key)
			queries = append(queries, termQuery)
		} else if len(values) > 1 {
			var termQueries []query.Query
			for _, v := range values {
				tq := bleve.NewTermQuery(v)
				tq.SetField(key)
				termQueries = append(termQueries, tq)
			}
			disjunction := bleve.NewDisjunctionQuery(termQueries...)
			disjunction.SetMin(1)
			queries = append(queries, disjunction)
		}
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}

	if len(queries) == 1 {
		return queries[0]
	}

	return bleve.NewConjunctionQuery(queries...)
}
