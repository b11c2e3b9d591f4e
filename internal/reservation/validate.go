package reservation

import (
	"net/mail"
	"strings"
	"time"

	"leihlokal/internal/slots"
)

// Input is what the visitor enters in the checkout form.
type Input struct {
	Email    string `json:"customer_email"`
	Pickup   string `json:"pickup"`
	Comments string `json:"comments,omitempty"`
}

// Normalize trims surrounding whitespace.
func (in Input) Normalize() Input {
	return Input{
		Email:    strings.TrimSpace(in.Email),
		Pickup:   strings.TrimSpace(in.Pickup),
		Comments: strings.TrimSpace(in.Comments),
	}
}

// Validate checks in against the cart size and the opening schedule. It
// returns the first *ValidationError found, cart first.
func Validate(in Input, cartSize int, gen *slots.Generator, now time.Time) error {
	if cartSize == 0 {
		return &ValidationError{Field: "items", Message: "Ihr Ausleihkorb ist leer.", Err: ErrEmptyCart}
	}
	if in.Email == "" {
		return &ValidationError{Field: "customer_email", Message: "E-Mail ist erforderlich", Err: ErrInvalidEmail}
	}
	if !validEmail(in.Email) {
		return &ValidationError{Field: "customer_email", Message: "Bitte geben Sie eine gültige E-Mail-Adresse ein", Err: ErrInvalidEmail}
	}
	if in.Pickup == "" {
		return &ValidationError{Field: "pickup", Message: "Bitte wählen Sie einen Abholtermin", Err: ErrNoPickup}
	}
	if gen != nil {
		t, err := slots.ParsePickup(in.Pickup, now.Location())
		if err != nil || !gen.IsValidPickupTime(t, now) {
			return &ValidationError{Field: "pickup", Message: "Der gewählte Abholtermin ist nicht mehr verfügbar", Err: ErrInvalidPickup}
		}
	}
	return nil
}

// validEmail accepts a bare address with a dotted domain, no display name.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(s, "@")
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
