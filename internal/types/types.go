package types

type OrderSide string

type OrderType string

type OrderStatus string

type PositionSide string

type ReconcileMode string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderTypeMarket OrderType = "MARKET"
)

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

const (
	PositionSideLong  PositionSide = "BUY"
	PositionSideShort PositionSide = "SELL"
)

const (
	ReconcileInsert ReconcileMode = "insert"
	ReconcileUpdate ReconcileMode = "update"
	ReconcileReduce ReconcileMode = "reduce"
	ReconcileDelete ReconcileMode = "delete"
)

// NormalizeOrderStatus maps empty or unknown statuses to "filled". Every
// order in this system is an instantaneous market fill; the other statuses
// exist only for compatibility with older ledger rows.
func NormalizeOrderStatus(raw string) OrderStatus {
	switch OrderStatus(raw) {
	case OrderStatusOpen, OrderStatusFilled, OrderStatusCancelled:
		return OrderStatus(raw)
	default:
		return OrderStatusFilled
	}
}
