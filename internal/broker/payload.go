package broker

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PayloadOptions are the account-level fields of every order.
type PayloadOptions struct {
	AccountID   string
	OrderType   string // MARKET | LIMIT
	TimeInForce string // DAY | GTC | IOC ...
	TickSize    float64
	QtyDecimals int32
}

// BuildPayload renders intent in the broker's placeOrder shape. Prices are
// snapped to the tick grid and quantities rounded with decimal arithmetic so
// 0.1+0.2 style residue never reaches the wire.
func BuildPayload(in OrderIntent, o PayloadOptions) (map[string]any, error) {
	if in.Side.Sign() == 0 {
		return nil, fmt.Errorf("broker: invalid side %q", in.Side)
	}
	if !(in.Quantity > 0) {
		return nil, fmt.Errorf("broker: quantity must be > 0 (got %v)", in.Quantity)
	}
	qty, _ := decimal.NewFromFloat(in.Quantity).Round(o.QtyDecimals).Float64()
	if qty <= 0 {
		return nil, fmt.Errorf("broker: quantity %v rounds to zero", in.Quantity)
	}

	orderType := strings.ToUpper(strings.TrimSpace(o.OrderType))
	if orderType == "" {
		orderType = "MARKET"
	}
	tif := strings.ToUpper(strings.TrimSpace(o.TimeInForce))
	if tif == "" {
		tif = "DAY"
	}

	p := map[string]any{
		"accountId":   o.AccountID,
		"symbol":      in.Symbol,
		"side":        string(in.Side),
		"orderType":   orderType,
		"timeInForce": tif,
		"quantity":    qty,
	}
	if in.LimitPrice != nil {
		p["price"] = SnapToTick(*in.LimitPrice, o.TickSize)
	}
	if in.IdempotencyKey != "" {
		p["clientOrderId"] = in.IdempotencyKey
	}
	return p, nil
}

// SnapToTick rounds price to the nearest multiple of tick. A non-positive
// tick leaves the price unchanged.
func SnapToTick(price, tick float64) float64 {
	if !(tick > 0) {
		return price
	}
	t := decimal.NewFromFloat(tick)
	n := decimal.NewFromFloat(price).Div(t).Round(0)
	f, _ := n.Mul(t).Float64()
	return f
}
