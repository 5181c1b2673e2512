// Package receipt renders the order confirmation sent to the shop admin
// over WhatsApp.
package receipt

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	waBaseURL = "https://wa.me/"
	// rupiahSymbol is followed by a no-break space, as id-ID currency
	// formatting prints it.
	rupiahSymbol = "Rp\u00a0"
)

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// Line is one purchased variant on the receipt.
type Line struct {
	Name        string
	VariantName string
	Quantity    int
	Price       int64
}

// Receipt is the data shown in the confirmation message.
type Receipt struct {
	OrderID      string
	CustomerName string
	Items        []Line
	Total        int64
}

// FormatRupiah renders an amount as "Rp 20.000": no-break space after the
// symbol, dot thousands separators, no decimals.
func FormatRupiah(amount int64) string {
	if amount < 0 {
		return "-" + rupiahSymbol + rupiahPrinter.Sprintf("%d", -amount)
	}
	return rupiahSymbol + rupiahPrinter.Sprintf("%d", amount)
}

// Message builds the confirmation text.
func Message(r Receipt) string {
	var b strings.Builder
	b.WriteString("Halo Admin, saya ingin konfirmasi pesanan:\n\n")
	fmt.Fprintf(&b, "Order ID: %s\n\n", r.OrderID)
	for i, item := range r.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "• %s — %s (%dx) — %s", item.Name, item.VariantName, item.Quantity, FormatRupiah(item.Price*int64(item.Quantity)))
	}
	fmt.Fprintf(&b, "\n\nTotal: %s\n", FormatRupiah(r.Total))
	fmt.Fprintf(&b, "Nama: %s\n\n", r.CustomerName)
	b.WriteString("Terima kasih! 🙏")
	return b.String()
}

// WhatsAppURL returns the wa.me link that opens a chat with number
// prefilled with the receipt message.
func WhatsAppURL(number string, r Receipt) (string, error) {
	digits := strings.Map(func(c rune) rune {
		if c >= '0' && c <= '9' {
			return c
		}
		return -1
	}, number)
	if digits == "" {
		return "", errors.New("whatsapp number required")
	}
	return waBaseURL + digits + "?text=" + encodeComponent(Message(r)), nil
}

// encodeComponent percent-encodes like a URI component: letters, digits
// and -_.!~*'() stay literal, every other byte becomes %XX.
func encodeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isComponentSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isComponentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
