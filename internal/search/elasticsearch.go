package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tourbook/internal/config"
	"tourbook/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient хранит историю переходов бронирований и туров
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает клиент и индекс истории, если его нет
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// auditDoc - документ индекса; одна запись на переход
type auditDoc struct {
	Kind          string               `json:"kind"`
	Type          string               `json:"type"`
	BookingID     string               `json:"booking_id,omitempty"`
	TourID        string               `json:"tour_id"`
	UserID        string               `json:"user_id,omitempty"`
	TicketCount   int                  `json:"ticket_count,omitempty"`
	Status        models.BookingStatus `json:"status,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
	TicketNumber  int                  `json:"ticket_number,omitempty"`
	Capacity      int                  `json:"capacity,omitempty"`
	BookedCount   int                  `json:"booked_count,omitempty"`
	ActorID       string               `json:"actor_id,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	keyword := map[string]interface{}{"type": "keyword"}
	integer := map[string]interface{}{"type": "integer"}
	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"kind":           keyword,
				"type":           keyword,
				"booking_id":     keyword,
				"tour_id":        keyword,
				"user_id":        keyword,
				"status":         keyword,
				"payment_status": keyword,
				"actor_id":       keyword,
				"ticket_count":   integer,
				"ticket_number":  integer,
				"capacity":       integer,
				"booked_count":   integer,
				"reason":         map[string]interface{}{"type": "text"},
				"timestamp":      map[string]interface{}{"type": "date"},
			},
		},
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// IndexBookingEvent записывает переход бронирования. Повторная доставка
// того же события перезаписывает документ.
func (c *ElasticsearchClient) IndexBookingEvent(ctx context.Context, ev models.BookingEvent) error {
	doc := auditDoc{
		Kind:          "booking",
		Type:          ev.Type,
		BookingID:     ev.BookingID,
		TourID:        ev.TourID,
		UserID:        ev.UserID,
		TicketCount:   ev.TicketCount,
		Status:        ev.Status,
		PaymentStatus: ev.PaymentStatus,
		TicketNumber:  ev.TicketNumber,
		ActorID:       ev.ActorID,
		Reason:        ev.Reason,
		Timestamp:     ev.Timestamp,
	}
	id := fmt.Sprintf("%s:%s:%d:%d", ev.BookingID, ev.Type, ev.TicketNumber, ev.Timestamp.UnixNano())
	return c.index(ctx, id, doc)
}

// IndexTourEvent записывает изменение тура
func (c *ElasticsearchClient) IndexTourEvent(ctx context.Context, ev models.TourEvent) error {
	doc := auditDoc{
		Kind:        "tour",
		Type:        ev.Type,
		TourID:      ev.TourID,
		Capacity:    ev.Capacity,
		BookedCount: ev.BookedCount,
		ActorID:     ev.ActorID,
		Timestamp:   ev.Timestamp,
	}
	id := fmt.Sprintf("%s:%s:%d", ev.TourID, ev.Type, ev.Timestamp.UnixNano())
	return c.index(ctx, id, doc)
}

func (c *ElasticsearchClient) index(ctx context.Context, id string, doc auditDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal audit document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index audit document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// BookingHistory возвращает переходы бронирования в хронологическом порядке
func (c *ElasticsearchClient) BookingHistory(ctx context.Context, bookingID string) ([]models.AuditEntry, error) {
	searchRequest := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"kind": "booking"}},
					{"term": map[string]interface{}{"booking_id": bookingID}},
				},
			},
		},
		"sort": []map[string]interface{}{
			{"timestamp": map[string]interface{}{"order": "asc"}},
		},
		"size": 100,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  strings.NewReader(string(searchJSON)),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source auditDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	entries := make([]models.AuditEntry, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		d := hit.Source
		entries[i] = models.AuditEntry{
			Type:          d.Type,
			Status:        d.Status,
			PaymentStatus: d.PaymentStatus,
			ActorID:       d.ActorID,
			Reason:        d.Reason,
			TicketNumber:  d.TicketNumber,
			Timestamp:     d.Timestamp,
		}
	}

	return entries, nil
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
