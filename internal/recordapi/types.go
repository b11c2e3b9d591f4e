package recordapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ItemStatus is the lending state of a catalog item.
type ItemStatus string

const (
	StatusInStock     ItemStatus = "instock"
	StatusReserved    ItemStatus = "reserved"
	StatusRented      ItemStatus = "rented"
	StatusOutOfStock  ItemStatus = "outofstock"
	StatusOnBackorder ItemStatus = "onbackorder"
	StatusRepairing   ItemStatus = "repairing"
	StatusLost        ItemStatus = "lost"
	StatusForSale     ItemStatus = "forsale"
	StatusDeleted     ItemStatus = "deleted"
)

var statusLabels = map[ItemStatus]string{
	StatusInStock:     "Verfügbar",
	StatusReserved:    "Reserviert",
	StatusRented:      "Ausgeliehen",
	StatusOutOfStock:  "Nicht vorrätig",
	StatusOnBackorder: "Nachbestellt",
	StatusRepairing:   "In Reparatur",
	StatusLost:        "Verloren",
	StatusForSale:     "Zu verkaufen",
	StatusDeleted:     "Gelöscht",
}

// Label returns the German display label, or the raw status if unknown.
func (s ItemStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Item is a lendable object from the public item collection.
type Item struct {
	ID          string     `json:"id"`
	IID         int        `json:"iid"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      ItemStatus `json:"status"`
	Deposit     float64    `json:"deposit"`
	Synonyms    string     `json:"synonyms"`
	Category    string     `json:"category"`
	Brand       string     `json:"brand"`
	Model       string     `json:"model"`
	Packaging   string     `json:"packaging"`
	Manual      bool       `json:"manual"`
	Parts       int        `json:"parts"`
	Copies      int        `json:"copies"`
	Images      []string   `json:"images"`
	AddedOn     string     `json:"added_on"`
	Created     string     `json:"created"`
	Updated     string     `json:"updated"`
}

// IsAvailable is true only for items in stock.
func (i Item) IsAvailable() bool {
	return i.Status == StatusInStock
}

// ItemsResponse is one page of items.
type ItemsResponse struct {
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
	TotalItems int    `json:"totalItems"`
	TotalPages int    `json:"totalPages"`
	Items      []Item `json:"items"`
}

// ReservationRequest is the body posted to the reservation collection.
type ReservationRequest struct {
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
	Items         []string `json:"items"`
	Pickup        string   `json:"pickup"` // "YYYY-MM-DD HH:mm:ss"
	Comments      string   `json:"comments,omitempty"`
}

// ReservationResponse is the created reservation record.
type ReservationResponse struct {
	ID      string `json:"id"`
	Created string `json:"created"`
	Updated string `json:"updated"`
}

// ErrNotFound is returned when a lookup yields no record.
var ErrNotFound = errors.New("record not found")

// FieldError is a per-field validation failure.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a structured error body returned by the record API.
type APIError struct {
	Status  int                   `json:"-"`
	Code    int                   `json:"code"`
	Message string                `json:"message"`
	Data    map[string]FieldError `json:"data,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("record api: http %d", e.Status)
	}
	return fmt.Sprintf("record api: %s (http %d)", e.Message, e.Status)
}

// FieldMessages renders per-field errors as "field: message" pairs joined
// by ", ", fields in lexical order. Empty when there are none.
func (e *APIError) FieldMessages() string {
	if len(e.Data) == 0 {
		return ""
	}
	fields := make([]string, 0, len(e.Data))
	for f := range e.Data {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e.Data[f].Message)
	}
	return strings.Join(parts, ", ")
}
