package receipt

import "github.com/xenking/tableside/internal/domain/order"

var statusLabels = map[order.Status]string{
	order.StatusPending:       "Pending",
	order.StatusConfirmed:     "Confirmed",
	order.StatusInPreparation: "In preparation",
	order.StatusReady:         "Ready",
	order.StatusServed:        "Served",
	order.StatusCompleted:     "Completed",
	order.StatusCancelled:     "Cancelled",
}

var itemStatusLabels = map[order.ItemStatus]string{
	order.ItemOrdered:       "Ordered",
	order.ItemInPreparation: "In preparation",
	order.ItemReady:         "Ready",
	order.ItemServed:        "Served",
}

// StatusLabel returns the display name of an order status.
func StatusLabel(s order.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ItemStatusLabel returns the display name of an item status.
func ItemStatusLabel(s order.ItemStatus) string {
	if l, ok := itemStatusLabels[s]; ok {
		return l
	}
	return string(s)
}
