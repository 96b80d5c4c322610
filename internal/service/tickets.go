package service

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "tourbook/internal/errors"
)

// TicketCode renders the code printed on ticket n of a booking
func TicketCode(bookingID string, n int) string {
	return fmt.Sprintf("%s-%d", bookingID, n)
}

// ParseTicketCode splits a ticket code on its last hyphen. Booking ids
// contain hyphens themselves.
func ParseTicketCode(code string) (string, int, error) {
	code = strings.TrimSpace(code)
	i := strings.LastIndex(code, "-")
	if i <= 0 || i == len(code)-1 {
		return "", 0, apperrors.InvalidRedemption("malformed ticket code")
	}
	n, err := strconv.Atoi(code[i+1:])
	if err != nil {
		return "", 0, apperrors.InvalidRedemption("malformed ticket number")
	}
	return code[:i], n, nil
}
