package activity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"api/internal/configuration"
	"api/internal/models"

	"github.com/go-resty/resty/v2"
)

// Loki label set is kept small on purpose. High cardinality fields such as
// user_id or client_ip travel in the log line and are filtered with the
// json pipeline stage at query time.
var lokiLabelKeys = map[string]bool{
	"action":      true,
	"object_type": true,
}

// LokiClient implements IActivityLogger against a Grafana Loki instance.
type LokiClient struct {
	client   *resty.Client
	endpoint string
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiQueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Metric map[string]string `json:"metric"`
			Values [][]any           `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

func NewLokiClient(config models.ActivityConfiguration) IActivityLogger {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &LokiClient{
		client:   client,
		endpoint: strings.TrimRight(config.Loki.Endpoint, "/"),
	}
}

func (c *LokiClient) Close() error {
	return nil
}

func (c *LokiClient) Send(activity models.Activity) error {
	labels := map[string]string{"app": configuration.AppName}
	line := map[string]any{"message": activity.Message}

	for key, value := range activity.Filter.Fields {
		if lokiLabelKeys[key] {
			labels[key] = value
		}
		line[key] = value
	}

	if activity.Object != nil && isAuthorizedObject(activity.Filter.Fields["object_type"]) {
		line["object"] = activity.Object
	}

	lineJSON, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal activity line: %w", err)
	}

	payload := lokiPushRequest{
		Streams: []lokiStream{{
			Stream: labels,
			Values: [][]string{{activity.Filter.Timestamp, string(lineJSON)}},
		}},
	}

	resp, err := c.client.R().
		SetBody(payload).
		Post(c.endpoint + "/loki/api/v1/push")
	if err != nil {
		return fmt.Errorf("failed to push activity to loki: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to push activity to loki: status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

func (c *LokiClient) Search(searchCriteria map[string][]string) ([]map[string]any, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -30)

	var result lokiQueryResponse
	resp, err := c.client.R().
		SetQueryParams(map[string]string{
			"query":     buildLogQL(searchCriteria),
			"start":     strconv.FormatInt(start.UnixNano(), 10),
			"end":       strconv.FormatInt(now.UnixNano(), 10),
			"limit":     "100",
			"direction": "backward",
		}).
		SetResult(&result).
		Get(c.endpoint + "/loki/api/v1/query_range")
	if err != nil {
		return nil, fmt.Errorf("failed to search loki: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to search loki: status %d: %s", resp.StatusCode(), resp.String())
	}

	var activities []map[string]any
	for _, stream := range result.Data.Result {
		for _, value := range stream.Values {
			if len(value) != 2 {
				continue
			}

			ts, _ := value[0].(string)
			line, _ := value[1].(string)

			entry := map[string]any{}
			if json.Unmarshal([]byte(line), &entry) != nil {
				continue
			}
			entry["timestamp"] = ts

			activities = append(activities, entry)
		}
	}

	sort.Slice(activities, func(i, j int) bool {
		left, _ := activities[i]["timestamp"].(string)
		right, _ := activities[j]["timestamp"].(string)
		return left > right
	})

	return activities, nil
}

func (c *LokiClient) CountByDay(searchCriteria map[string][]string, days int) ([]models.TimeSeriesPoint, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -days)

	query := fmt.Sprintf("sum(count_over_time(%s [1d]))", buildLogQL(searchCriteria))

	var result lokiQueryResponse
	resp, err := c.client.R().
		SetQueryParams(map[string]string{
			"query": query,
			"start": strconv.FormatInt(start.Unix(), 10),
			"end":   strconv.FormatInt(now.Unix(), 10),
			"step":  "86400",
		}).
		SetResult(&result).
		Get(c.endpoint + "/loki/api/v1/query_range")
	if err != nil {
		return nil, fmt.Errorf("failed to count loki activity: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to count loki activity: status %d: %s", resp.StatusCode(), resp.String())
	}

	points := []models.TimeSeriesPoint{}
	for _, series := range result.Data.Result {
		for _, value := range series.Values {
			if len(value) != 2 {
				continue
			}

			ts, ok := value[0].(float64)
			if !ok {
				continue
			}
			countStr, _ := value[1].(string)
			count, err := strconv.ParseInt(countStr, 10, 64)
			if err != nil || count == 0 {
				continue
			}

			points = append(points, models.TimeSeriesPoint{
				Date:  time.Unix(int64(ts), 0).UTC().Format("2006-01-02"),
				Count: count,
			})
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	return points, nil
}

// buildLogQL renders a stream selector plus json pipeline filters. Label
// criteria narrow the selector, everything else is matched after parsing.
func buildLogQL(searchCriteria map[string][]string) string {
	selectors := []string{fmt.Sprintf("app=%q", configuration.AppName)}
	var filters []string

	keys := make([]string, 0, len(searchCriteria))
	for key := range searchCriteria {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := searchCriteria[key]
		if len(values) == 0 {
			continue
		}

		matcher := fmt.Sprintf("%s=~%q", key, strings.Join(values, "|"))
		if len(values) == 1 {
			matcher = fmt.Sprintf("%s=%q", key, values[0])
		}

		if lokiLabelKeys[key] {
			selectors = append(selectors, matcher)
		} else {
			filters = append(filters, matcher)
		}
	}

	query := fmt.Sprintf("{%s} | json", strings.Join(selectors, ","))
	for _, filter := range filters {
		query += " | " + filter
	}

	return query
}
