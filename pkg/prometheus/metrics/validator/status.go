package validator

import "errors"

var StatusCodeIsOutOfRangeError = errors.New("an HTTP status code accepts only codes in range from 100 to 599")

// StatusCode rejects codes which cannot be exported as a status label.
func StatusCode(code int) error {
	if code < 100 || code > 599 {
		return StatusCodeIsOutOfRangeError
	}
	return nil
}
