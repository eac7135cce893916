package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/threadkart/marketplace-backend/pkg/courier"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/metrics"
)

const (
	defaultPollInterval = 15 * time.Minute
	defaultBatchSize    = 50
	carrierName         = "tracking-poll"
)

type shipmentLister interface {
	ListActiveShipments(ctx context.Context, limit int) ([]models.Shipment, error)
}

type tracker interface {
	TrackByAWB(ctx context.Context, awb string) (*courier.TrackResult, error)
}

type ingester interface {
	Handle(ctx context.Context, carrierName string, body []byte) (string, error)
}

type ServiceParams struct {
	Logger       *logger.Logger
	Shipments    shipmentLister
	Tracker      tracker
	Ingest       ingester
	Metrics      *metrics.JobMetrics
	BatchSize    int
	PollInterval time.Duration
}

// Service polls the carrier for every in-flight shipment and pushes status
// changes through the same ingestion path as carrier webhooks, so a missed
// push is recovered on the next sweep.
type Service struct {
	logg         *logger.Logger
	shipments    shipmentLister
	tracker      tracker
	ingest       ingester
	metrics      *metrics.JobMetrics
	batchSize    int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Shipments == nil {
		return nil, errors.New("shipment lister is required")
	}
	if params.Tracker == nil {
		return nil, errors.New("tracker is required")
	}
	if params.Ingest == nil {
		return nil, errors.New("ingester is required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Service{
		logg:         params.Logger,
		shipments:    params.Shipments,
		tracker:      params.Tracker,
		ingest:       params.Ingest,
		metrics:      params.Metrics,
		batchSize:    batch,
		pollInterval: interval,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	if err := s.sweep(ctx); err != nil {
		s.logg.Error(ctx, "tracking sweep failed", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "tracking worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logg.Error(ctx, "tracking sweep failed", err)
				s.metrics.IncFailure("tracking_sweep")
			}
		}
	}
}

// sweep walks a page of active shipments and ingests one synthetic carrier
// event per shipment whose carrier-side status moved. Individual shipment
// failures do not stall the sweep; they are combined into the returned error.
func (s *Service) sweep(ctx context.Context) error {
	start := time.Now()
	shipments, err := s.shipments.ListActiveShipments(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("listing active shipments: %w", err)
	}

	var applied int
	var errs []error
	for _, shipment := range shipments {
		if shipment.AWB == nil || *shipment.AWB == "" {
			continue
		}
		moved, err := s.pollShipment(ctx, shipment)
		if err != nil {
			logCtx := s.logg.WithField(ctx, "awb", *shipment.AWB)
			s.logg.Warn(logCtx, "shipment poll failed: "+err.Error())
			errs = append(errs, fmt.Errorf("poll %s: %w", *shipment.AWB, err))
			continue
		}
		if moved {
			applied++
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"shipments": len(shipments),
		"applied":   applied,
	})
	s.logg.Info(logCtx, "tracking sweep complete")

	s.metrics.ObserveDuration("tracking_sweep", time.Since(start))
	if len(errs) > 0 {
		return multierr.Combine(errs...)
	}
	s.metrics.IncSuccess("tracking_sweep")
	return nil
}

func (s *Service) pollShipment(ctx context.Context, shipment models.Shipment) (bool, error) {
	result, err := s.tracker.TrackByAWB(ctx, *shipment.AWB)
	if err != nil {
		return false, err
	}

	normalized := courier.NormalizeStatusCode(result.StatusCode)
	if normalized == "" || normalized == shipment.StatusCode {
		return false, nil
	}

	body, err := syntheticEvent(shipment, result)
	if err != nil {
		return false, err
	}
	if _, err := s.ingest.Handle(ctx, carrierName, body); err != nil {
		return false, err
	}
	return true, nil
}

// syntheticEvent shapes a poll result like a carrier push. No event id is
// set: the sweep already compares against stored state before ingesting, and
// a stable id would block the retry after a failed apply.
func syntheticEvent(shipment models.Shipment, result *courier.TrackResult) ([]byte, error) {
	at := time.Now().UTC()
	if n := len(result.Events); n > 0 && !result.Events[n-1].At.IsZero() {
		at = result.Events[n-1].At
	}
	event := map[string]any{
		"awb":            *shipment.AWB,
		"current_status": result.StatusCode,
		"description":    result.Description,
		"freight_cents":  result.FreightCents,
		"timestamp":      at,
	}
	if shipment.CarrierShipmentID != nil {
		event["shipment_id"] = *shipment.CarrierShipmentID
	}
	return json.Marshal(event)
}
