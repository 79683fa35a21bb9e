// Package qr builds image URLs for an external QR code service.
package qr

import "net/url"

const serviceURL = "https://api.qrserver.com/v1/create-qr-code/"

// Payload encodes the registration fields scanned at the venue,
// in "Name,Phone" form for spreadsheet import.
func Payload(name, phone string) string {
	return name + "," + phone
}

// URL returns the QR image URL encoding text.
func URL(text string) string {
	return serviceURL + "?size=250x250&margin=20&ecc=L&data=" + url.QueryEscape(text)
}
