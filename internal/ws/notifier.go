package ws

import (
	"encoding/json"

	"go-pos-ledger/internal/service"
)

// StockAlertBroadcaster pushes low/out-of-stock summaries emitted by the
// transaction engine to connected dashboards. Delivery is fire-and-forget.
type StockAlertBroadcaster struct {
	hub *Hub
}

func NewStockAlertBroadcaster(hub *Hub) *StockAlertBroadcaster {
	return &StockAlertBroadcaster{hub: hub}
}

func (b *StockAlertBroadcaster) NotifyStockAlert(action service.CheckoutAction, summary service.StockSummary) {
	go func() {
		payload := map[string]interface{}{
			"type":         "stock_alert",
			"action":       action,
			"low_stock":    summary.LowNow,
			"out_of_stock": summary.OutNow,
		}
		msg, _ := json.Marshal(payload)
		b.hub.Broadcast <- msg
	}()
}
