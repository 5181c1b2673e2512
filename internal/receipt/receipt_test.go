package receipt

import (
	"net/url"
	"strings"
	"testing"
)

func TestFormatRupiah(t *testing.T) {
	cases := map[int64]string{
		0:       "Rp\u00a00",
		500:     "Rp\u00a0500",
		20000:   "Rp\u00a020.000",
		1250000: "Rp\u00a01.250.000",
		-15000:  "-Rp\u00a015.000",
	}
	for amount, want := range cases {
		if got := FormatRupiah(amount); got != want {
			t.Errorf("FormatRupiah(%d) = %q, want %q", amount, got, want)
		}
	}
}

func sample() Receipt {
	return Receipt{
		OrderID:      "7f1c",
		CustomerName: "Budi",
		Items: []Line{
			{Name: "Sabun Sereh", VariantName: "100g", Quantity: 2, Price: 10000},
			{Name: "Sabun Arang", VariantName: "Bar", Quantity: 1, Price: 15000},
		},
		Total: 35000,
	}
}

func TestMessage(t *testing.T) {
	want := "Halo Admin, saya ingin konfirmasi pesanan:\n\n" +
		"Order ID: 7f1c\n\n" +
		"• Sabun Sereh — 100g (2x) — Rp\u00a020.000\n" +
		"• Sabun Arang — Bar (1x) — Rp\u00a015.000\n\n" +
		"Total: Rp\u00a035.000\n" +
		"Nama: Budi\n\n" +
		"Terima kasih! 🙏"
	if got := Message(sample()); got != want {
		t.Fatalf("unexpected message:\n%s", got)
	}
}

func TestWhatsAppURL(t *testing.T) {
	got, err := WhatsAppURL("+62 812-3456-7890", sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "https://wa.me/6281234567890?text=") {
		t.Fatalf("unexpected prefix: %s", got)
	}
	if strings.Contains(got, "+") {
		t.Fatalf("spaces must be encoded as %%20: %s", got)
	}

	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if text := parsed.Query().Get("text"); text != Message(sample()) {
		t.Fatalf("decoded text mismatch: %q", text)
	}
}

func TestEncodeComponentMatchesURIComponent(t *testing.T) {
	cases := map[string]string{
		"Terima kasih! (ok)": "Terima%20kasih!%20(ok)",
		"a*b'c~d_e-f.g":      "a*b'c~d_e-f.g",
		"x+y&z=1/2?#":        "x%2By%26z%3D1%2F2%3F%23",
		"Rp\u00a020.000":     "Rp%C2%A020.000",
		"•\n🙏":               "%E2%80%A2%0A%F0%9F%99%8F",
	}
	for in, want := range cases {
		if got := encodeComponent(in); got != want {
			t.Errorf("encodeComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWhatsAppURLRequiresNumber(t *testing.T) {
	if _, err := WhatsAppURL(" - ", sample()); err == nil {
		t.Fatal("expected error for empty number")
	}
}
