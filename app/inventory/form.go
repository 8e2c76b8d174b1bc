package inventory

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// user-facing messages for rejected input
const (
	msgAllRequired       = "All fields are required."
	msgNumbersRequired   = "Price and Quantity fields are required."
	msgNotNumbers        = "Price and Quantity must be numbers."
	msgNegative          = "Price and Quantity must not be negative."
	msgSelectForUpdate   = "Please select an item to update."
	msgSelectForRemoval  = "Please select an item to remove."
	msgStorageFailure    = "Storage error, the operation was not completed."
	msgItemAdded         = "Item added successfully."
	msgItemUpdated       = "Item updated successfully."
	msgItemRemoved       = "Item removed successfully."
	msgItemNotFound      = "The selected item no longer exists."
	msgConfirmationAsked = "Are you sure you want to remove this item?"
)

// ValidationError reports input rejected before reaching the store
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Form keeps field values exactly as the user typed them
type Form struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// entry is a parsed form, checked by validator tags
type entry struct {
	Name     string  `validate:"required"`
	Price    float64 `validate:"gte=0"`
	Quantity int64   `validate:"gte=0"`
}

// stock is the subset of a form used by updates, the name is never changed
type stock struct {
	Price    float64 `validate:"gte=0"`
	Quantity int64   `validate:"gte=0"`
}

var validate = validator.New()

// parseEntry converts a form into an entry for a new item
func parseEntry(f Form) (entry, error) {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Price) == "" || strings.TrimSpace(f.Quantity) == "" {
		return entry{}, &ValidationError{Msg: msgAllRequired}
	}
	price, quantity, err := parseNumbers(f.Price, f.Quantity)
	if err != nil {
		return entry{}, err
	}
	res := entry{Name: strings.TrimSpace(f.Name), Price: price, Quantity: quantity}
	if err := checkStruct(res); err != nil {
		return entry{}, err
	}
	return res, nil
}

// parseStock converts price and quantity fields for an update
func parseStock(f Form) (stock, error) {
	if strings.TrimSpace(f.Price) == "" || strings.TrimSpace(f.Quantity) == "" {
		return stock{}, &ValidationError{Msg: msgNumbersRequired}
	}
	price, quantity, err := parseNumbers(f.Price, f.Quantity)
	if err != nil {
		return stock{}, err
	}
	res := stock{Price: price, Quantity: quantity}
	if err := checkStruct(res); err != nil {
		return stock{}, err
	}
	return res, nil
}

func parseNumbers(priceStr, quantityStr string) (price float64, quantity int64, err error) {
	price, err = strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, 0, &ValidationError{Msg: msgNotNumbers}
	}
	quantity, err = strconv.ParseInt(strings.TrimSpace(quantityStr), 10, 64)
	if err != nil {
		return 0, 0, &ValidationError{Msg: msgNotNumbers}
	}
	return price, quantity, nil
}

func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	for _, fe := range verrs {
		if fe.Tag() == "gte" {
			return &ValidationError{Msg: msgNegative}
		}
	}
	return &ValidationError{Msg: msgAllRequired}
}

// formatPrice renders a price the way it is shown in the list
func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
