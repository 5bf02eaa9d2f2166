package order

import (
	"sort"
	"time"
)

// FilterKind selects one of the supported order listings.
type FilterKind int

const (
	// FilterAll lists every order, newest first.
	FilterAll FilterKind = iota
	// FilterActive lists non-terminal orders, oldest first.
	FilterActive
	// FilterKitchen lists CONFIRMED and IN_PREPARATION orders, oldest first,
	// so the kitchen serves in arrival order.
	FilterKitchen
	// FilterTable lists one table's orders, newest first.
	FilterTable
	// FilterRange lists orders created in [From, To), newest first.
	FilterRange
)

// Filter describes an order listing.
type Filter struct {
	Kind    FilterKind
	TableID string
	From    time.Time
	To      time.Time
}

// All returns the filter listing every order.
func All() Filter { return Filter{Kind: FilterAll} }

// Active returns the filter listing non-terminal orders.
func Active() Filter { return Filter{Kind: FilterActive} }

// KitchenQueue returns the filter listing orders awaiting preparation.
func KitchenQueue() Filter { return Filter{Kind: FilterKitchen} }

// ByTable returns the filter listing a single table's orders.
func ByTable(tableID string) Filter { return Filter{Kind: FilterTable, TableID: tableID} }

// Between returns the filter listing orders created in [from, to).
func Between(from, to time.Time) Filter { return Filter{Kind: FilterRange, From: from, To: to} }

// Today returns the range filter covering the local calendar day of now in
// loc, from local midnight inclusive to the next local midnight exclusive.
func Today(now time.Time, loc *time.Location) Filter {
	from, to := DayRange(now, loc)
	return Between(from, to)
}

// DayRange returns the bounds of the calendar day containing t in loc. The
// end is computed with AddDate so days with a DST shift keep their real length.
func DayRange(t time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	from = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}

// Match reports whether o belongs to the listing.
func (f Filter) Match(o *Order) bool {
	switch f.Kind {
	case FilterActive:
		return o.Status.Active()
	case FilterKitchen:
		return o.Status.InKitchenQueue()
	case FilterTable:
		return o.TableID == f.TableID
	case FilterRange:
		return !o.CreatedAt.Before(f.From) && o.CreatedAt.Before(f.To)
	}
	return true
}

// OldestFirst reports whether the listing is ordered by ascending creation time.
func (f Filter) OldestFirst() bool {
	return f.Kind == FilterActive || f.Kind == FilterKitchen
}

// Apply selects and orders orders in memory the way the storage layer does.
func (f Filter) Apply(orders []Order) []Order {
	out := make([]Order, 0, len(orders))
	for i := range orders {
		if f.Match(&orders[i]) {
			out = append(out, orders[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.OldestFirst() {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
