package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EnsureTemplate upserts the index template matching "{prefix}-*" with the
// Sentry document mapping (see the canonical OpenSearch schema). Priority
// 100 matches broad base templates a cluster operator may also define.
func (idx *Indexer) EnsureTemplate(ctx context.Context) error {
	template := map[string]interface{}{
		"index_patterns": []string{idx.config.IndexPrefix + "-*"},
		"template": map[string]interface{}{
			"settings": map[string]interface{}{
				"number_of_shards":   3,
				"number_of_replicas": 1,
				"refresh_interval":   "5s",
			},
			"mappings": sentryMappings(),
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		"/_index_template/"+idx.config.IndexPrefix+"-template", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := idx.client.Transport.Perform(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		respBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to create index template: %d - %s", res.StatusCode, string(respBody))
	}
	return nil
}

func sentryMappings() map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	textWithKeyword := map[string]interface{}{
		"type": "text",
		"fields": map[string]interface{}{
			"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
		},
	}

	return map[string]interface{}{
		"dynamic": true,
		"properties": map[string]interface{}{
			"@timestamp":      map[string]interface{}{"type": "date"},
			"received_at":     map[string]interface{}{"type": "date"},
			"event_id":        keyword,
			"project_id":      map[string]interface{}{"type": "integer"},
			"level":           keyword,
			"platform":        keyword,
			"environment":     keyword,
			"release":         keyword,
			"transaction":     keyword,
			"server_name":     keyword,
			"logger":          keyword,
			"message":         textWithKeyword,
			"exception_type":  keyword,
			"exception_value": textWithKeyword,
			"stacktrace":      map[string]interface{}{"type": "text"},
			"fingerprint":     keyword,
			"tags":            map[string]interface{}{"type": "object"},
			"user": map[string]interface{}{
				"properties": map[string]interface{}{
					"id":         keyword,
					"email_hash": keyword,
					"username":   keyword,
					"ip":         map[string]interface{}{"type": "ip"},
				},
			},
			"geo": map[string]interface{}{
				"properties": map[string]interface{}{
					"country_code": keyword,
					"country_name": keyword,
					"region_name":  keyword,
					"city":         keyword,
					"location":     map[string]interface{}{"type": "geo_point"},
				},
			},
			"browser": map[string]interface{}{"properties": map[string]interface{}{"name": keyword, "version": keyword}},
			"os":      map[string]interface{}{"properties": map[string]interface{}{"name": keyword, "version": keyword}},
			"device": map[string]interface{}{"properties": map[string]interface{}{
				"family": keyword, "model": keyword, "brand": keyword,
			}},
			"runtime": map[string]interface{}{"properties": map[string]interface{}{"name": keyword, "version": keyword}},
			"request": map[string]interface{}{"properties": map[string]interface{}{"url": keyword, "method": keyword}},
			"sdk":     map[string]interface{}{"properties": map[string]interface{}{"name": keyword, "version": keyword}},
		},
	}
}

// EnsurePolicy upserts the ISM lifecycle policy: hot -> warm (force-merge)
// -> cold -> delete, per the configured day offsets. Policy creation is
// advisory: callers should log a failure here and continue startup.
func (idx *Indexer) EnsurePolicy(ctx context.Context) error {
	policyName := idx.config.IndexPrefix + "-policy"

	policy := map[string]interface{}{
		"policy": map[string]interface{}{
			"description":   "sentrel event index lifecycle policy",
			"default_state": "hot",
			"states": []map[string]interface{}{
				{
					"name": "hot",
					"transitions": []map[string]interface{}{
						{"state_name": "warm", "conditions": map[string]interface{}{
							"min_index_age": fmt.Sprintf("%dd", idx.config.WarmAfterDays),
						}},
					},
				},
				{
					"name": "warm",
					"actions": []map[string]interface{}{
						{"force_merge": map[string]interface{}{"max_num_segments": 1}},
					},
					"transitions": []map[string]interface{}{
						{"state_name": "cold", "conditions": map[string]interface{}{
							"min_index_age": fmt.Sprintf("%dd", idx.config.ColdAfterDays),
						}},
					},
				},
				{
					"name": "cold",
					"transitions": []map[string]interface{}{
						{"state_name": "delete", "conditions": map[string]interface{}{
							"min_index_age": fmt.Sprintf("%dd", idx.config.DeleteAfterDays),
						}},
					},
				},
				{
					"name":    "delete",
					"actions": []map[string]interface{}{{"delete": map[string]interface{}{}}},
				},
			},
			"ism_template": []map[string]interface{}{
				{"index_patterns": []string{idx.config.IndexPrefix + "-*"}, "priority": 100},
			},
		},
	}

	body, err := json.Marshal(policy)
	if err != nil {
		return err
	}

	checkReq, err := http.NewRequestWithContext(ctx, http.MethodGet, "/_plugins/_ism/policies/"+policyName, http.NoBody)
	if err != nil {
		return err
	}
	checkRes, err := idx.client.Transport.Perform(checkReq)
	if err != nil {
		return err
	}
	checkRes.Body.Close()

	method := http.MethodPut
	url := "/_plugins/_ism/policies/" + policyName
	if checkRes.StatusCode == http.StatusOK {
		url += "?if_seq_no=1&if_primary_term=1"
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := idx.client.Transport.Perform(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 && res.StatusCode != http.StatusConflict {
		respBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to upsert ISM policy: %d - %s", res.StatusCode, string(respBody))
	}
	return nil
}

// EnsureTodayIndex creates today's index on demand if it doesn't exist, then
// repoints the "{prefix}-write" alias at it and refreshes it so documents
// indexed immediately after a day rollover are search-visible without
// waiting for the template's refresh_interval.
func (idx *Indexer) EnsureTodayIndex(ctx context.Context) error {
	indexName := fmt.Sprintf("%s-%s", idx.config.IndexPrefix, time.Now().UTC().Format("2006.01.02"))

	existsReq, err := http.NewRequestWithContext(ctx, http.MethodHead, "/"+indexName, http.NoBody)
	if err != nil {
		return err
	}
	existsRes, err := idx.client.Transport.Perform(existsReq)
	if err != nil {
		return err
	}
	existsRes.Body.Close()

	if existsRes.StatusCode != http.StatusOK {
		createReq, err := http.NewRequestWithContext(ctx, http.MethodPut, "/"+indexName, http.NoBody)
		if err != nil {
			return err
		}
		createRes, err := idx.client.Transport.Perform(createReq)
		if err != nil {
			return err
		}
		defer createRes.Body.Close()

		if createRes.StatusCode >= 400 && createRes.StatusCode != http.StatusBadRequest {
			body, _ := io.ReadAll(createRes.Body)
			return fmt.Errorf("failed to create index %s: %d - %s", indexName, createRes.StatusCode, string(body))
		}
	}

	if err := idx.updateWriteAlias(ctx, indexName); err != nil {
		return err
	}

	return idx.Refresh(ctx, indexName)
}

// updateWriteAlias atomically removes "{prefix}-write" from every index it
// currently marks as the write target and assigns it to indexName instead,
// mirroring the teacher's write-alias rollover
// (storage/opensearch.go's createInitialIndex): writers that address the
// alias rather than a literal date-named index always land on the current
// day's backing index.
func (idx *Indexer) updateWriteAlias(ctx context.Context, indexName string) error {
	alias := idx.config.IndexPrefix + "-write"

	actions := map[string]interface{}{
		"actions": []map[string]interface{}{
			{
				"remove": map[string]interface{}{
					"index": idx.config.IndexPrefix + "-*",
					"alias": alias,
				},
			},
			{
				"add": map[string]interface{}{
					"index":          indexName,
					"alias":          alias,
					"is_write_index": true,
				},
			},
		},
	}

	body, err := json.Marshal(actions)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/_aliases", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := idx.client.Transport.Perform(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		respBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to update write alias %s: %d - %s", alias, res.StatusCode, string(respBody))
	}
	return nil
}
