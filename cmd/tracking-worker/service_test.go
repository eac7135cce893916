package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/pkg/courier"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/logger"
)

type stubLister struct {
	shipments []models.Shipment
	err       error
}

func (l *stubLister) ListActiveShipments(ctx context.Context, limit int) ([]models.Shipment, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.shipments, nil
}

type stubTracker struct {
	results map[string]*courier.TrackResult
	errs    map[string]error
}

func (t *stubTracker) TrackByAWB(ctx context.Context, awb string) (*courier.TrackResult, error) {
	if err, ok := t.errs[awb]; ok {
		return nil, err
	}
	if result, ok := t.results[awb]; ok {
		return result, nil
	}
	return nil, errors.New("unknown awb")
}

type stubIngester struct {
	bodies []map[string]any
	err    error
}

func (i *stubIngester) Handle(ctx context.Context, carrierName string, body []byte) (string, error) {
	if i.err != nil {
		return "error", i.err
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "invalid", err
	}
	i.bodies = append(i.bodies, decoded)
	return "applied", nil
}

func strPtr(s string) *string { return &s }

func activeShipment(awb, statusCode string) models.Shipment {
	return models.Shipment{
		ID:                uuid.New(),
		OrderID:           uuid.New(),
		AWB:               strPtr(awb),
		CarrierShipmentID: strPtr("SHIP-" + awb),
		StatusCode:        statusCode,
	}
}

func newTestService(t *testing.T, lister shipmentLister, track tracker, ingest ingester) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "tracking-worker-test", Output: io.Discard})
	service, err := NewService(ServiceParams{
		Logger:    logg,
		Shipments: lister,
		Tracker:   track,
		Ingest:    ingest,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestSweepIngestsMovedShipments(t *testing.T) {
	lister := &stubLister{shipments: []models.Shipment{
		activeShipment("AWB1", "in_transit"),
		activeShipment("AWB2", "in_transit"),
	}}
	track := &stubTracker{results: map[string]*courier.TrackResult{
		"AWB1": {AWB: "AWB1", StatusCode: "Delivered", Description: "Delivered to consignee"},
		"AWB2": {AWB: "AWB2", StatusCode: "IN TRANSIT"},
	}}
	ingest := &stubIngester{}
	service := newTestService(t, lister, track, ingest)

	if err := service.sweep(context.Background()); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}
	if len(ingest.bodies) != 1 {
		t.Fatalf("expected one ingested event, got %d", len(ingest.bodies))
	}
	body := ingest.bodies[0]
	if body["awb"] != "AWB1" {
		t.Fatalf("unexpected awb: %v", body["awb"])
	}
	if body["current_status"] != "Delivered" {
		t.Fatalf("unexpected status: %v", body["current_status"])
	}
	if body["shipment_id"] != "SHIP-AWB1" {
		t.Fatalf("unexpected shipment reference: %v", body["shipment_id"])
	}
}

func TestSweepSkipsUnchangedStatus(t *testing.T) {
	lister := &stubLister{shipments: []models.Shipment{activeShipment("AWB1", "out_for_delivery")}}
	track := &stubTracker{results: map[string]*courier.TrackResult{
		"AWB1": {AWB: "AWB1", StatusCode: "OUT FOR DELIVERY"},
	}}
	ingest := &stubIngester{}
	service := newTestService(t, lister, track, ingest)

	if err := service.sweep(context.Background()); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}
	if len(ingest.bodies) != 0 {
		t.Fatalf("expected no ingested events, got %d", len(ingest.bodies))
	}
}

func TestSweepContinuesPastFailedPolls(t *testing.T) {
	lister := &stubLister{shipments: []models.Shipment{
		activeShipment("AWB1", "in_transit"),
		activeShipment("AWB2", "in_transit"),
	}}
	track := &stubTracker{
		errs: map[string]error{"AWB1": errors.New("carrier timeout")},
		results: map[string]*courier.TrackResult{
			"AWB2": {AWB: "AWB2", StatusCode: "delivered"},
		},
	}
	ingest := &stubIngester{}
	service := newTestService(t, lister, track, ingest)

	err := service.sweep(context.Background())
	if err == nil {
		t.Fatalf("expected combined poll error")
	}
	if len(ingest.bodies) != 1 || ingest.bodies[0]["awb"] != "AWB2" {
		t.Fatalf("expected AWB2 to be ingested despite AWB1 failure")
	}
}

func TestSweepUsesLatestScanTimestamp(t *testing.T) {
	scanAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	lister := &stubLister{shipments: []models.Shipment{activeShipment("AWB1", "shipped")}}
	track := &stubTracker{results: map[string]*courier.TrackResult{
		"AWB1": {
			AWB:        "AWB1",
			StatusCode: "in_transit",
			Events: []courier.TrackEvent{
				{StatusCode: "shipped", At: scanAt.Add(-2 * time.Hour)},
				{StatusCode: "in_transit", At: scanAt},
			},
		},
	}}
	ingest := &stubIngester{}
	service := newTestService(t, lister, track, ingest)

	if err := service.sweep(context.Background()); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}
	if len(ingest.bodies) != 1 {
		t.Fatalf("expected one ingested event, got %d", len(ingest.bodies))
	}
	got, ok := ingest.bodies[0]["timestamp"].(string)
	if !ok {
		t.Fatalf("timestamp missing from event")
	}
	parsed, err := time.Parse(time.RFC3339, got)
	if err != nil {
		t.Fatalf("parsing timestamp: %v", err)
	}
	if !parsed.Equal(scanAt) {
		t.Fatalf("unexpected timestamp: %s", got)
	}
}

func TestSweepSurfacesListError(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}
	service := newTestService(t, lister, &stubTracker{}, &stubIngester{})

	if err := service.sweep(context.Background()); err == nil {
		t.Fatalf("expected list error to surface")
	}
}
