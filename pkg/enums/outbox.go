package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateReturnRequest OutboxAggregateType = "return_request"
	AggregateWithdrawal    OutboxAggregateType = "withdrawal"
	AggregateWallet        OutboxAggregateType = "wallet"
	AggregateShipment      OutboxAggregateType = "shipment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateReturnRequest,
	AggregateWithdrawal,
	AggregateWallet,
	AggregateShipment,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderConfirmed      OutboxEventType = "order_confirmed"
	EventOrderStatusChanged  OutboxEventType = "order_status_changed"
	EventOrderDelivered      OutboxEventType = "order_delivered"
	EventOrderCancelled      OutboxEventType = "order_cancelled"
	EventOrderRefunded       OutboxEventType = "order_refunded"
	EventSellerCredited      OutboxEventType = "seller_credited"
	EventReturnRequested     OutboxEventType = "return_requested"
	EventReturnApproved      OutboxEventType = "return_approved"
	EventReturnRejected      OutboxEventType = "return_rejected"
	EventReturnChargeApplied OutboxEventType = "return_charge_applied"
	EventWithdrawalRequested OutboxEventType = "withdrawal_requested"
	EventWithdrawalDecided   OutboxEventType = "withdrawal_decided"
	EventWithdrawalPaid      OutboxEventType = "withdrawal_paid"
	EventShipmentUpdated     OutboxEventType = "shipment_updated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderStatusChanged,
	EventOrderDelivered,
	EventOrderCancelled,
	EventOrderRefunded,
	EventSellerCredited,
	EventReturnRequested,
	EventReturnApproved,
	EventReturnRejected,
	EventReturnChargeApplied,
	EventWithdrawalRequested,
	EventWithdrawalDecided,
	EventWithdrawalPaid,
	EventShipmentUpdated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
